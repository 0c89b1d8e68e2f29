// Package audio provides pooled buffers for inbound PCM chunks.
// Chunks arrive many times per second per session, so the copy made at
// the transport boundary reuses pooled storage.
package audio

import "sync"

var bufPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

// AcquireBuf returns a buffer of the given length, reusing pooled
// storage when its capacity suffices.
func AcquireBuf(size int) []byte {
	b := bufPool.Get().([]byte)
	if cap(b) < size {
		return make([]byte, size)
	}
	return b[:size]
}

// ReleaseBuf returns a buffer to the pool. The caller must not touch
// the slice afterwards.
func ReleaseBuf(b []byte) {
	bufPool.Put(b[:0])
}
