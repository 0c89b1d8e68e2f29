package segmenter

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcmChunk(amplitude float64, samples int) []byte {
	raw := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * 32767 * math.Sin(float64(i)*0.3))
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(v))
	}
	return raw
}

func TestSilenceNeverFinalizes(t *testing.T) {
	s := New(Config{Policy: PolicyDuration})
	quiet := pcmChunk(0.0001, 16000)
	for i := 0; i < 100; i++ {
		d, voiced := s.AcceptChunk(quiet)
		if d != DecisionDropped || voiced != nil {
			t.Fatalf("chunk %d: expected dropped silence, got %d", i, d)
		}
	}
	if _, ok := s.Finalize(); ok {
		t.Fatalf("expected nothing to finalize after silence-only stream")
	}
}

func TestDurationGate(t *testing.T) {
	s := New(Config{Policy: PolicyDuration, MaxSegmentSec: 7.0})
	speech := pcmChunk(0.5, 16000)
	for i := 0; i < 6; i++ {
		d, voiced := s.AcceptChunk(speech)
		if d != DecisionBuffered {
			t.Fatalf("chunk %d: expected DecisionBuffered, got %d", i, d)
		}
		if len(voiced) != 16000 {
			t.Fatalf("chunk %d: expected decoded samples, got %d", i, len(voiced))
		}
	}
	d, voiced := s.AcceptChunk(speech)
	if d != DecisionFinalize {
		t.Fatalf("expected DecisionFinalize at 7s, got %d", d)
	}
	if len(voiced) != 16000 {
		t.Fatalf("finalizing chunk must still return its samples")
	}
	seg, ok := s.Finalize()
	if !ok {
		t.Fatalf("expected a segment")
	}
	if len(seg) != 7*16000 {
		t.Fatalf("expected %d samples, got %d", 7*16000, len(seg))
	}
	if s.BufferedSec() != 0 {
		t.Fatalf("expected elapsed counter reset, got %f", s.BufferedSec())
	}
}

func TestSilenceGate(t *testing.T) {
	s := New(Config{Policy: PolicySilence, SilenceGateSec: 1.0})
	speech := pcmChunk(0.5, 8000)
	quiet := pcmChunk(0.0001, 8000)

	if d, _ := s.AcceptChunk(speech); d != DecisionBuffered {
		t.Fatalf("expected DecisionBuffered, got %d", d)
	}
	if d, _ := s.AcceptChunk(quiet); d != DecisionDropped {
		t.Fatalf("half gate: expected DecisionDropped, got %d", d)
	}
	d, voiced := s.AcceptChunk(quiet)
	if d != DecisionFinalize {
		t.Fatalf("full gate: expected DecisionFinalize, got %d", d)
	}
	if voiced != nil {
		t.Fatalf("silence trigger chunk must not return samples")
	}
	seg, ok := s.Finalize()
	if !ok || len(seg) != 8000 {
		t.Fatalf("expected 8000-sample segment, got %d (ok=%v)", len(seg), ok)
	}
}

func TestLeadingSilenceNeverFinalizes(t *testing.T) {
	s := New(Config{Policy: PolicySilence, SilenceGateSec: 1.0})
	quiet := pcmChunk(0.0001, 8000)
	for i := 0; i < 10; i++ {
		if d, _ := s.AcceptChunk(quiet); d != DecisionDropped {
			t.Fatalf("leading silence: expected DecisionDropped, got %d", d)
		}
	}
}

func TestSpeechResetsSilenceRun(t *testing.T) {
	s := New(Config{Policy: PolicySilence, SilenceGateSec: 1.0})
	speech := pcmChunk(0.5, 8000)
	quiet := pcmChunk(0.0001, 8000)

	s.AcceptChunk(speech)
	s.AcceptChunk(quiet)
	s.AcceptChunk(speech) // silence run must restart
	if d, _ := s.AcceptChunk(quiet); d != DecisionDropped {
		t.Fatalf("expected DecisionDropped after silence run reset, got %d", d)
	}
}

func TestResetDiscardsBuffer(t *testing.T) {
	s := New(Config{Policy: PolicyDuration})
	s.AcceptChunk(pcmChunk(0.5, 16000))
	s.Reset()
	if _, ok := s.Finalize(); ok {
		t.Fatalf("expected empty buffer after Reset")
	}
}

func TestFinalizeIdempotentOnEmpty(t *testing.T) {
	s := New(Config{})
	for i := 0; i < 3; i++ {
		if _, ok := s.Finalize(); ok {
			t.Fatalf("call %d: expected ok=false on empty buffer", i)
		}
	}
}

func TestDecodePCM16(t *testing.T) {
	raw := []byte{0x00, 0x40, 0x00, 0xC0, 0xFF} // 16384, -16384, trailing byte
	got := DecodePCM16(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0] != 0.5 || got[1] != -0.5 {
		t.Fatalf("unexpected samples: %v", got)
	}
}

func TestEnergyDB(t *testing.T) {
	if db := EnergyDB(nil); db > -1e100 {
		t.Fatalf("expected floor energy for empty window, got %f", db)
	}
	full := make([]float32, 100)
	for i := range full {
		full[i] = 1.0
	}
	if db := EnergyDB(full); math.Abs(db) > 1e-9 {
		t.Fatalf("expected 0 dB for full-scale signal, got %f", db)
	}
}
