package posting

import "testing"

func TestTermFrequency_Positional(t *testing.T) {
	p := Posting{DocID: 3, Positions: []Position{1, 4, 9}}
	if got := p.TermFrequency(); got != 3 {
		t.Errorf("TermFrequency() = %d, want 3", got)
	}
}

func TestTermFrequency_SkipDecoded(t *testing.T) {
	p := WithSkipTermFrequency(7, 5)
	if p.Positions != nil {
		t.Fatalf("expected nil Positions for a skip-decoded posting, got %v", p.Positions)
	}
	if got := p.TermFrequency(); got != 5 {
		t.Errorf("TermFrequency() = %d, want 5", got)
	}
}
