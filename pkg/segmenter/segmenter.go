package segmenter

import (
	"encoding/binary"
	"math"
)

// Policy selects how a speech segment is closed.
type Policy string

const (
	// PolicyDuration finalizes once buffered speech exceeds MaxSegmentSec.
	PolicyDuration Policy = "duration"
	// PolicySilence finalizes once SilenceGateSec of silence follows speech.
	PolicySilence Policy = "silence"
)

// Decision is the outcome of feeding one chunk.
type Decision int

const (
	// DecisionDropped means the chunk was silence and nothing was buffered.
	DecisionDropped Decision = iota
	// DecisionBuffered means the chunk was appended to the current segment.
	DecisionBuffered
	// DecisionFinalize means the segment boundary was reached and the
	// caller should Finalize.
	DecisionFinalize
)

type Config struct {
	SampleRate         int
	SilenceThresholdDB float64
	MaxSegmentSec      float64
	SilenceGateSec     float64
	Policy             Policy
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.SilenceThresholdDB == 0 {
		c.SilenceThresholdDB = -60.0
	}
	if c.MaxSegmentSec <= 0 {
		c.MaxSegmentSec = 7.0
	}
	if c.SilenceGateSec <= 0 {
		c.SilenceGateSec = 1.0
	}
	if c.Policy == "" {
		c.Policy = PolicyDuration
	}
	return c
}

// Segmenter accumulates voiced audio for one session and decides when a
// contiguous stretch of speech is complete. Not safe for concurrent use;
// each session owns its own instance.
type Segmenter struct {
	cfg        Config
	buf        []float32
	elapsedSec float64
	silenceSec float64
}

func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg.withDefaults()}
}

// AcceptChunk decodes one raw PCM chunk (int16 little-endian) and either
// drops it as silence or appends it to the current segment. The returned
// decision tells the caller whether the segment boundary was reached;
// voiced is the decoded chunk when it was appended, nil otherwise.
func (s *Segmenter) AcceptChunk(raw []byte) (Decision, []float32) {
	samples := DecodePCM16(raw)
	if len(samples) == 0 {
		return DecisionDropped, nil
	}
	dur := float64(len(samples)) / float64(s.cfg.SampleRate)

	if EnergyDB(samples) < s.cfg.SilenceThresholdDB {
		if s.cfg.Policy == PolicySilence && len(s.buf) > 0 {
			s.silenceSec += dur
			if s.silenceSec >= s.cfg.SilenceGateSec {
				return DecisionFinalize, nil
			}
		}
		return DecisionDropped, nil
	}

	s.silenceSec = 0
	s.buf = append(s.buf, samples...)
	s.elapsedSec += dur

	if s.cfg.Policy == PolicyDuration && s.elapsedSec >= s.cfg.MaxSegmentSec {
		return DecisionFinalize, samples
	}
	return DecisionBuffered, samples
}

// Finalize returns the buffered segment and resets the accumulator.
// Calling it with an empty buffer is a no-op and returns ok=false.
func (s *Segmenter) Finalize() (segment []float32, ok bool) {
	if len(s.buf) == 0 {
		return nil, false
	}
	segment = s.buf
	s.buf = nil
	s.elapsedSec = 0
	s.silenceSec = 0
	return segment, true
}

// Reset discards any buffered audio without dispatching it.
func (s *Segmenter) Reset() {
	s.buf = nil
	s.elapsedSec = 0
	s.silenceSec = 0
}

// BufferedSec reports the voiced duration accumulated so far.
func (s *Segmenter) BufferedSec() float64 {
	return s.elapsedSec
}

// DecodePCM16 converts int16 little-endian bytes to normalized float32
// samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(raw []byte) []float32 {
	n := len(raw) / 2
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// EnergyDB computes the RMS energy of a sample window in decibels.
// An all-zero window reports a floor well below any usable threshold.
func EnergyDB(samples []float32) float64 {
	if len(samples) == 0 {
		return -math.MaxFloat64
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return -math.MaxFloat64
	}
	return 20 * math.Log10(rms)
}
