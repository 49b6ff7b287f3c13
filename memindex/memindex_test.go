package memindex

import (
	"reflect"
	"testing"

	"github.com/mzieve/spindex/posting"
)

func TestAddAndPostings_SingleTermMultipleDocs(t *testing.T) {
	idx := New()
	idx.Add("fox", 1, 3)
	idx.Add("fox", 0, 1)
	idx.Add("fox", 1, 7)
	idx.Add("fox", 5, 2)

	got := idx.Postings("fox")
	want := []posting.Posting{
		{DocID: 0, Positions: []posting.Position{1}},
		{DocID: 1, Positions: []posting.Position{3, 7}},
		{DocID: 5, Positions: []posting.Position{2}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d postings, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].DocID != want[i].DocID {
			t.Errorf("posting %d: DocID = %d, want %d", i, got[i].DocID, want[i].DocID)
		}
		if !reflect.DeepEqual(got[i].Positions, want[i].Positions) {
			t.Errorf("posting %d: Positions = %v, want %v", i, got[i].Positions, want[i].Positions)
		}
	}
}

func TestPostings_UnknownTermReturnsNil(t *testing.T) {
	idx := New()
	if got := idx.Postings("absent"); got != nil {
		t.Errorf("Postings(absent) = %v, want nil", got)
	}
}

func TestVocabulary_LexicographicOrder(t *testing.T) {
	idx := New()
	idx.Add("zebra", 0, 0)
	idx.Add("apple", 0, 1)
	idx.Add("mango", 0, 2)

	got := idx.Vocabulary()
	want := []string{"apple", "mango", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Vocabulary() = %v, want %v", got, want)
	}
}

func TestLen_CountsDistinctTerms(t *testing.T) {
	idx := New()
	idx.Add("a", 0, 0)
	idx.Add("b", 0, 1)
	idx.Add("a", 1, 0)
	if got := idx.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestClear_RemovesAllTerms(t *testing.T) {
	idx := New()
	idx.Add("a", 0, 0)
	idx.Clear()
	if got := idx.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
	if got := idx.Postings("a"); got != nil {
		t.Errorf("Postings(a) after Clear = %v, want nil", got)
	}
}

func TestAdd_DuplicatePositionIgnored(t *testing.T) {
	idx := New()
	idx.Add("dup", 0, 4)
	idx.Add("dup", 0, 4)

	got := idx.Postings("dup")
	if len(got) != 1 || len(got[0].Positions) != 1 {
		t.Fatalf("got %v, want a single posting with one position", got)
	}
}
