package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonLLMComplete)
	if Reason(err) != ReasonLLMComplete {
		t.Fatalf("expected reason %s, got %s", ReasonLLMComplete, Reason(err))
	}
	if !HasReason(err, ReasonLLMComplete) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonASRFinish)
	second := Wrap(first, ReasonLLMComplete)
	if Reason(second) != ReasonASRFinish {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
