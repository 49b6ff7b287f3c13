// Package builder drives the SPIMI loop (spec §4.E): it streams
// documents from a DocumentSource through a Tokenizer collaborator,
// accumulates postings in memindex, spills sorted buckets once the
// configured memory bound is crossed, and k-way merges the buckets into
// the final postings file, term directory, and document-weights file.
//
// The overall shape — a locked build step logging document counts and
// accumulating a per-document term-frequency map for later weighting —
// is adapted from the teacher's index.go Index/indexToken pair; here
// that single in-memory step becomes a streaming pipeline with a spill
// boundary instead of unbounded growth.
package builder

import (
	"container/heap"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/mzieve/spindex/bucket"
	"github.com/mzieve/spindex/codec"
	"github.com/mzieve/spindex/config"
	"github.com/mzieve/spindex/errs"
	"github.com/mzieve/spindex/memindex"
	"github.com/mzieve/spindex/posting"
	"github.com/mzieve/spindex/termdir"
)

// bytesPerToken is the fixed per-token memory estimate spec §4.E step 2
// permits in place of exact accounting.
const bytesPerToken = 24

// Document is one document yielded by a DocumentSource: its assigned
// DocId, title, and already-tokenized (term, position) stream. Position
// is 1-based per spec §3.
type Document struct {
	DocID  posting.DocId
	Title  string
	Tokens TokenStream
}

// Token is one (term, position) pair emitted by a Tokenizer.
type Token struct {
	Term     string
	Position posting.Position
}

// TokenStream is an ordered, finite sequence of tokens for one document
// (spec §9: coroutine/generator streams modeled as ordered finite
// sequences rather than channels or generators).
type TokenStream []Token

// DocumentSource is the external collaborator named in spec §6: it
// yields documents with their tokens already produced by a Tokenizer.
// Next returns (doc, true, nil) while documents remain, (zero, false,
// nil) at a clean end, and a non-nil error for anything that should be a
// fatal InputError.
type DocumentSource interface {
	Next(ctx context.Context) (Document, bool, error)
}

// Result summarizes a completed build.
type Result struct {
	TotalDocuments int64
	TotalTokens    int64
	SpillCount     int
}

// Build runs the full SPIMI loop against cfg, reading documents from src
// until it is exhausted or ctx is cancelled. On success it leaves a
// committed index at cfg.IndexDir (postings file, term directory,
// document-weights file, commit marker) and returns a Result. On
// failure, or on cancellation, no commit marker is written and any
// partial output is left for the caller to clean up — spec §4.E's
// "failure during spill or merge leaves a partial output" contract.
func Build(ctx context.Context, cfg config.IndexConfig, src DocumentSource) (Result, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return Result{}, &errs.ResourceError{Op: "builder.Build mkdir", Err: err}
	}
	if err := os.MkdirAll(cfg.BucketDir, 0o755); err != nil {
		return Result{}, &errs.ResourceError{Op: "builder.Build mkdir bucket dir", Err: err}
	}

	dir, err := termdir.Create(cfg.DirectoryPath)
	if err != nil {
		return Result{}, err
	}
	defer dir.Close()

	b := &build{
		cfg:        cfg,
		src:        src,
		dir:        dir,
		metaBatch:  dir.NewDocumentMetadataBatch(),
		docTF:      make(map[posting.DocId]map[string]int),
		mem:        memindex.New(),
	}

	if err := b.ingest(ctx); err != nil {
		return Result{}, err
	}
	if err := b.metaBatch.Flush(ctx); err != nil {
		return Result{}, err
	}
	if err := b.merge(ctx); err != nil {
		return Result{}, err
	}
	if err := b.writeWeights(); err != nil {
		return Result{}, err
	}
	if err := dir.SetTotalTokens(ctx, b.totalTokens); err != nil {
		return Result{}, err
	}
	if err := dir.SetTotalDocuments(ctx, b.totalDocuments); err != nil {
		return Result{}, err
	}
	for _, path := range b.bucketPaths {
		if err := bucket.Remove(path); err != nil {
			return Result{}, err
		}
	}
	if err := writeCommitMarker(cfg); err != nil {
		return Result{}, err
	}

	slog.Info("build committed",
		slog.Int64("totalDocuments", b.totalDocuments),
		slog.Int64("totalTokens", b.totalTokens),
		slog.Int("spillCount", len(b.bucketPaths)))

	return Result{
		TotalDocuments: b.totalDocuments,
		TotalTokens:    b.totalTokens,
		SpillCount:     len(b.bucketPaths),
	}, nil
}

type build struct {
	cfg config.IndexConfig
	src DocumentSource
	dir *termdir.Store

	metaBatch *termdir.DocumentMetadataBatch
	mem       *memindex.Index

	bytesAccumulated int64
	bucketPaths      []string

	docTF          map[posting.DocId]map[string]int
	totalTokens    int64
	totalDocuments int64
}

// ingest performs spec §4.E steps 1–3: stream documents into mem,
// spilling whenever the memory estimate crosses cfg.MemoryLimitBytes.
func (b *build) ingest(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return &errs.Cancelled{}
		default:
		}

		doc, ok, err := b.src.Next(ctx)
		if err != nil {
			return &errs.InputError{Op: "builder.ingest DocumentSource.Next", Err: err}
		}
		if !ok {
			break
		}

		tf := make(map[string]int, len(doc.Tokens))
		for _, tok := range doc.Tokens {
			if tok.Term == "" {
				continue
			}
			b.mem.Add(tok.Term, doc.DocID, tok.Position)
			b.bytesAccumulated += bytesPerToken
			tf[tok.Term]++
		}
		b.docTF[doc.DocID] = tf

		b.metaBatch.Add(doc.DocID, doc.Title, uint32(len(doc.Tokens)))
		b.totalTokens += int64(len(doc.Tokens))
		b.totalDocuments++

		slog.Info("document ingested", slog.Int("docID", int(doc.DocID)), slog.Int("tokens", len(doc.Tokens)))

		if b.bytesAccumulated >= b.cfg.MemoryLimitBytes {
			if err := b.spill(ctx); err != nil {
				return err
			}
		}
	}

	if b.mem.Len() > 0 {
		if err := b.spill(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) spill(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &errs.Cancelled{}
	default:
	}

	path, err := bucket.Spill(b.cfg.BucketDir, len(b.bucketPaths), b.mem)
	if err != nil {
		return err
	}
	b.bucketPaths = append(b.bucketPaths, path)
	b.mem.Clear()
	b.bytesAccumulated = 0

	if err := b.metaBatch.Flush(ctx); err != nil {
		return err
	}

	slog.Info("spilled bucket", slog.String("path", path), slog.Int("bucket", len(b.bucketPaths)-1))
	return nil
}

// heapEntry is one bucket file's current front record, ordered by term
// for the k-way merge's min-heap (spec §4.E step 4).
type heapEntry struct {
	term     string
	postings []posting.Posting
	fileIdx  int
}

type mergeHeap []*heapEntry

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].term < h[j].term }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*heapEntry)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// merge performs spec §4.E step 4: open every bucket, min-heap merge by
// term, writing one record per distinct term to the final postings file
// and recording its offset in the term directory.
func (b *build) merge(ctx context.Context) error {
	readers := make([]*bucket.Reader, len(b.bucketPaths))
	for i, path := range b.bucketPaths {
		r, err := bucket.Open(path)
		if err != nil {
			return err
		}
		readers[i] = r
		defer r.Close()
	}

	out, err := os.Create(b.cfg.PostingsPath)
	if err != nil {
		return &errs.ResourceError{Op: "builder.merge create postings file", Err: err}
	}
	defer out.Close()

	h := &mergeHeap{}
	heap.Init(h)
	for i, r := range readers {
		if err := pushNext(h, r, i); err != nil {
			return err
		}
	}

	var offset int64
	for h.Len() > 0 {
		select {
		case <-ctx.Done():
			return &errs.Cancelled{}
		default:
		}

		first := heap.Pop(h).(*heapEntry)
		term := first.term
		merged := first.postings
		consumed := []int{first.fileIdx}

		for h.Len() > 0 && (*h)[0].term == term {
			next := heap.Pop(h).(*heapEntry)
			merged = unionPostings(merged, next.postings)
			consumed = append(consumed, next.fileIdx)
		}

		if len(merged) == 0 {
			continue
		}

		if err := b.dir.PutTermOffset(ctx, term, offset); err != nil {
			return err
		}
		encoded, err := codec.EncodeToBytes(term, merged)
		if err != nil {
			return err
		}
		n, err := out.Write(encoded)
		if err != nil {
			return &errs.ResourceError{Op: "builder.merge write postings", Err: err}
		}
		offset += int64(n)

		for _, idx := range consumed {
			if err := pushNext(h, readers[idx], idx); err != nil {
				return err
			}
		}
	}

	return nil
}

func pushNext(h *mergeHeap, r *bucket.Reader, fileIdx int) error {
	rec, err := r.Next()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	heap.Push(h, &heapEntry{term: rec.Term, postings: rec.Postings, fileIdx: fileIdx})
	return nil
}

// unionPostings merges two postings lists, already sorted ascending by
// DocId, into one sorted list; equal DocIds have their position lists
// merged and re-sorted (spec §4.E: "union their postings lists ... for
// equal docIds, merge and sort position lists").
func unionPostings(a, b []posting.Posting) []posting.Posting {
	out := make([]posting.Posting, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			out = append(out, a[i])
			i++
		case a[i].DocID > b[j].DocID:
			out = append(out, b[j])
			j++
		default:
			out = append(out, posting.Posting{
				DocID:     a[i].DocID,
				Positions: mergePositions(a[i].Positions, b[j].Positions),
			})
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func mergePositions(a, b []posting.Position) []posting.Position {
	out := make([]posting.Position, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// writeWeights performs spec §4.E step 5: L_d = sqrt(sum((1+ln tf)^2))
// per document, written as an 8-byte double at offset 8*docId.
func (b *build) writeWeights() error {
	weights := make([]float64, b.totalDocuments)
	for docID, tf := range b.docTF {
		var sumSq float64
		for _, freq := range tf {
			w := 1 + math.Log(float64(freq))
			sumSq += w * w
		}
		weights[docID] = math.Sqrt(sumSq)
	}
	return termdir.WriteDocumentWeights(b.cfg.WeightsPath, weights)
}

func writeCommitMarker(cfg config.IndexConfig) error {
	path := cfg.CommitMarkerPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &errs.ResourceError{Op: "builder.writeCommitMarker mkdir", Err: err}
	}
	if err := os.WriteFile(path, []byte("committed\n"), 0o644); err != nil {
		return &errs.ResourceError{Op: "builder.writeCommitMarker write", Err: err}
	}
	return nil
}
