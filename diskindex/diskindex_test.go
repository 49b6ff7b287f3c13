package diskindex

import (
	"context"
	"testing"

	"github.com/mzieve/spindex/builder"
	"github.com/mzieve/spindex/config"
	"github.com/mzieve/spindex/posting"
)

type fakeSource struct {
	docs []builder.Document
	i    int
}

func (f *fakeSource) Next(ctx context.Context) (builder.Document, bool, error) {
	if f.i >= len(f.docs) {
		return builder.Document{}, false, nil
	}
	d := f.docs[f.i]
	f.i++
	return d, true, nil
}

func tokens(terms ...string) builder.TokenStream {
	ts := make(builder.TokenStream, len(terms))
	for i, term := range terms {
		ts[i] = builder.Token{Term: term, Position: posting.Position(i + 1)}
	}
	return ts
}

func buildS1(t *testing.T) (config.IndexConfig, *Index) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.WithDefaults(config.IndexConfig{IndexDir: dir})

	src := &fakeSource{docs: []builder.Document{
		{DocID: 0, Title: "the quick brown fox", Tokens: tokens("the", "quick", "brown", "fox")},
		{DocID: 1, Title: "the brown dog", Tokens: tokens("the", "brown", "dog")},
	}}
	if _, err := builder.Build(context.Background(), cfg, src); err != nil {
		t.Fatalf("builder.Build: %v", err)
	}

	idx, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return cfg, idx
}

func TestOpen_RejectsMissingCommitMarker(t *testing.T) {
	dir := t.TempDir()
	cfg := config.WithDefaults(config.IndexConfig{IndexDir: dir})
	if _, err := Open(cfg); err == nil {
		t.Fatal("expected Open to fail when no build has committed")
	}
}

func TestPostings_FullDecode_S1(t *testing.T) {
	_, idx := buildS1(t)
	ctx := context.Background()

	brown, err := idx.Postings(ctx, "brown", true)
	if err != nil {
		t.Fatalf("Postings(brown): %v", err)
	}
	if len(brown) != 2 || brown[0].DocID != 0 || brown[0].Positions[0] != 3 || brown[1].DocID != 1 || brown[1].Positions[0] != 2 {
		t.Errorf("Postings(brown) = %+v, want [(0,[3]),(1,[2])]", brown)
	}

	fox, err := idx.Postings(ctx, "fox", true)
	if err != nil {
		t.Fatalf("Postings(fox): %v", err)
	}
	if len(fox) != 1 || fox[0].DocID != 0 || fox[0].Positions[0] != 4 {
		t.Errorf("Postings(fox) = %+v, want [(0,[4])]", fox)
	}

	cat, err := idx.Postings(ctx, "cat", true)
	if err != nil {
		t.Fatalf("Postings(cat): %v", err)
	}
	if cat != nil {
		t.Errorf("Postings(cat) = %v, want nil", cat)
	}
}

func TestPostings_SkipDecode_NoPositions(t *testing.T) {
	_, idx := buildS1(t)
	ctx := context.Background()

	brown, err := idx.Postings(ctx, "brown", false)
	if err != nil {
		t.Fatalf("Postings(brown, skip): %v", err)
	}
	if len(brown) != 2 {
		t.Fatalf("got %d postings, want 2", len(brown))
	}
	for _, p := range brown {
		if p.Positions != nil {
			t.Errorf("skip-decoded posting %+v should carry no positions", p)
		}
	}
	if brown[0].TermFrequency() != 1 || brown[1].TermFrequency() != 1 {
		t.Errorf("brown term frequencies = %d, %d, want 1, 1", brown[0].TermFrequency(), brown[1].TermFrequency())
	}
}

func TestTermFrequency(t *testing.T) {
	_, idx := buildS1(t)
	ctx := context.Background()

	tf, err := idx.TermFrequency(ctx, "brown", 1)
	if err != nil {
		t.Fatalf("TermFrequency: %v", err)
	}
	if tf != 1 {
		t.Errorf("TermFrequency(brown, 1) = %d, want 1", tf)
	}

	tf, err = idx.TermFrequency(ctx, "brown", 5)
	if err != nil {
		t.Fatalf("TermFrequency: %v", err)
	}
	if tf != 0 {
		t.Errorf("TermFrequency(brown, 5) = %d, want 0", tf)
	}
}

func TestDocumentMetadataAndStats(t *testing.T) {
	_, idx := buildS1(t)
	ctx := context.Background()

	length, err := idx.DocumentLength(ctx, 0)
	if err != nil {
		t.Fatalf("DocumentLength: %v", err)
	}
	if length != 4 {
		t.Errorf("DocumentLength(0) = %d, want 4", length)
	}

	title, err := idx.DocumentTitle(ctx, 1)
	if err != nil {
		t.Fatalf("DocumentTitle: %v", err)
	}
	if title != "the brown dog" {
		t.Errorf("DocumentTitle(1) = %q, want %q", title, "the brown dog")
	}

	totalDocs, err := idx.TotalDocuments(ctx)
	if err != nil {
		t.Fatalf("TotalDocuments: %v", err)
	}
	if totalDocs != 2 {
		t.Errorf("TotalDocuments = %d, want 2", totalDocs)
	}

	avg, err := idx.AverageDocumentLength(ctx)
	if err != nil {
		t.Fatalf("AverageDocumentLength: %v", err)
	}
	if avg != 3.5 {
		t.Errorf("AverageDocumentLength = %v, want 3.5", avg)
	}
}

func TestDocumentWeights_IndexedByDocId(t *testing.T) {
	_, idx := buildS1(t)
	weights := idx.DocumentWeights()
	if len(weights) != 2 {
		t.Fatalf("got %d weights, want 2", len(weights))
	}
	if idx.DocumentWeight(0) != weights[0] {
		t.Errorf("DocumentWeight(0) mismatch")
	}
	if idx.DocumentWeight(99) != 0 {
		t.Errorf("DocumentWeight(99) = %v, want 0 for an out-of-range docId", idx.DocumentWeight(99))
	}
}

func TestVocabulary_LexicographicOrder(t *testing.T) {
	_, idx := buildS1(t)
	vocab, err := idx.Vocabulary(context.Background())
	if err != nil {
		t.Fatalf("Vocabulary: %v", err)
	}
	want := []string{"brown", "dog", "fox", "quick", "the"}
	if len(vocab) != len(want) {
		t.Fatalf("got %v, want %v", vocab, want)
	}
	for i := range want {
		if vocab[i] != want[i] {
			t.Errorf("Vocabulary()[%d] = %q, want %q", i, vocab[i], want[i])
		}
	}
}
