package audio

import "testing"

func TestAcquireBufLength(t *testing.T) {
	b := AcquireBuf(100)
	if len(b) != 100 {
		t.Fatalf("expected len 100, got %d", len(b))
	}
	ReleaseBuf(b)
}

func TestAcquireBufLargerThanPooled(t *testing.T) {
	b := AcquireBuf(1 << 16)
	if len(b) != 1<<16 {
		t.Fatalf("expected len %d, got %d", 1<<16, len(b))
	}
	ReleaseBuf(b)
}

func TestReuseAfterRelease(t *testing.T) {
	b := AcquireBuf(64)
	for i := range b {
		b[i] = 0xFF
	}
	ReleaseBuf(b)
	c := AcquireBuf(64)
	if len(c) != 64 {
		t.Fatalf("expected len 64, got %d", len(c))
	}
	ReleaseBuf(c)
}
