package termdir

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCreateAndQuery_TermOffsetRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "directory.db")

	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	if err := s.PutTermOffset(ctx, "brown", 128); err != nil {
		t.Fatalf("PutTermOffset: %v", err)
	}

	offset, ok, err := s.TermOffset(ctx, "brown")
	if err != nil {
		t.Fatalf("TermOffset: %v", err)
	}
	if !ok || offset != 128 {
		t.Errorf("TermOffset(brown) = (%d, %v), want (128, true)", offset, ok)
	}

	_, ok, err = s.TermOffset(ctx, "missing")
	if err != nil {
		t.Fatalf("TermOffset(missing): %v", err)
	}
	if ok {
		t.Errorf("TermOffset(missing) ok = true, want false")
	}
}

func TestVocabulary_LexicographicOrder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "directory.db")

	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	for i, term := range []string{"zebra", "apple", "mango"} {
		if err := s.PutTermOffset(ctx, term, int64(i)); err != nil {
			t.Fatalf("PutTermOffset(%q): %v", term, err)
		}
	}

	got, err := s.Vocabulary(ctx)
	if err != nil {
		t.Fatalf("Vocabulary: %v", err)
	}
	want := []string{"apple", "mango", "zebra"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Vocabulary()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDocumentMetadataBatch_FlushAndLookup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "directory.db")

	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	batch := s.NewDocumentMetadataBatch()
	batch.Add(0, "the quick brown fox", 4)
	batch.Add(1, "the brown dog", 3)
	if err := batch.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	meta, ok, err := s.Document(ctx, 1)
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if !ok || meta.Title != "the brown dog" || meta.DocLength != 3 {
		t.Errorf("Document(1) = %+v, %v, want title=%q length=3", meta, ok, "the brown dog")
	}
}

func TestCorpusStats_TotalsAndAverage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "directory.db")

	s, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	if err := s.SetTotalTokens(ctx, 7); err != nil {
		t.Fatalf("SetTotalTokens: %v", err)
	}
	if err := s.SetTotalDocuments(ctx, 2); err != nil {
		t.Fatalf("SetTotalDocuments: %v", err)
	}

	avg, err := s.AverageDocumentLength(ctx)
	if err != nil {
		t.Fatalf("AverageDocumentLength: %v", err)
	}
	if avg != 3.5 {
		t.Errorf("AverageDocumentLength() = %v, want 3.5", avg)
	}
}

func TestDocumentWeights_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.bin")
	weights := []float64{0, 1.4142135623730951, 2.0}

	if err := WriteDocumentWeights(path, weights); err != nil {
		t.Fatalf("WriteDocumentWeights: %v", err)
	}
	got, err := ReadDocumentWeights(path)
	if err != nil {
		t.Fatalf("ReadDocumentWeights: %v", err)
	}
	if len(got) != len(weights) {
		t.Fatalf("got %d weights, want %d", len(got), len(weights))
	}
	for i := range weights {
		if got[i] != weights[i] {
			t.Errorf("weight %d = %v, want %v", i, got[i], weights[i])
		}
	}
}
