// Package transports defines the I/O boundary for session channels.
package transports

import "context"

// Transport owns a network listener that accepts client sessions.
// Implementations are responsible for their own lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
