package bucket

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mzieve/spindex/memindex"
	"github.com/mzieve/spindex/posting"
)

func TestSpillAndReadBack_LexicographicOrder(t *testing.T) {
	dir := t.TempDir()

	idx := memindex.New()
	idx.Add("fox", 0, 4)
	idx.Add("brown", 0, 3)
	idx.Add("brown", 1, 2)

	path, err := Spill(dir, 0, idx)
	if err != nil {
		t.Fatalf("Spill: %v", err)
	}
	if filepath.Base(path) != "bucket_00000" {
		t.Errorf("path = %q, want bucket_00000", filepath.Base(path))
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var terms []string
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		terms = append(terms, rec.Term)
	}

	want := []string{"brown", "fox"}
	if len(terms) != len(want) {
		t.Fatalf("got %d terms, want %d: %v", len(terms), len(want), terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("term %d = %q, want %q", i, terms[i], want[i])
		}
	}
}

func TestSpill_RecordsSurviveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	idx := memindex.New()
	idx.Add("dog", 2, 1)
	idx.Add("dog", 2, 9)

	path, err := Spill(dir, 1, idx)
	if err != nil {
		t.Fatalf("Spill: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.Term != "dog" {
		t.Fatalf("Term = %q, want dog", rec.Term)
	}
	if len(rec.Postings) != 1 || rec.Postings[0].DocID != 2 {
		t.Fatalf("Postings = %v, want single posting for doc 2", rec.Postings)
	}
	want := []posting.Position{1, 9}
	got := rec.Postings[0].Positions
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Positions = %v, want %v", got, want)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("second Next() = %v, want io.EOF", err)
	}
}

func TestList_ReturnsPathsInCreationOrder(t *testing.T) {
	dir := t.TempDir()
	got := List(dir, 3)
	want := []string{
		filepath.Join(dir, "bucket_00000"),
		filepath.Join(dir, "bucket_00001"),
		filepath.Join(dir, "bucket_00002"),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRemove_DeletesFile(t *testing.T) {
	dir := t.TempDir()
	idx := memindex.New()
	idx.Add("a", 0, 0)
	path, err := Spill(dir, 0, idx)
	if err != nil {
		t.Fatalf("Spill: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %q to be removed, stat err = %v", path, err)
	}
}
