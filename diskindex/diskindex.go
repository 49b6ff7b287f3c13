// Package diskindex implements the disk positional index reader (spec
// §4.G): random-access postings retrieval against the committed
// postings file, term directory, and document-weights file a builder
// produces.
package diskindex

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mzieve/spindex/codec"
	"github.com/mzieve/spindex/config"
	"github.com/mzieve/spindex/errs"
	"github.com/mzieve/spindex/posting"
	"github.com/mzieve/spindex/termdir"
)

// Index is an immutable, concurrency-safe view over a committed build.
// Per spec §5, the reader must be safe for concurrent use from multiple
// query threads once Open returns; every exported method here only
// reads shared-but-immutable state (the directory store, the weights
// slice) or performs its own independent ReadAt on the postings file, so
// no additional locking is required.
type Index struct {
	cfg              config.IndexConfig
	dir              *termdir.Store
	postingsFile     *os.File
	postingsFileSize int64
	weights          []float64
}

// Open loads the term directory and document weights, and opens the
// postings file for random access. Callers MUST NOT call Open before the
// build's commit marker exists (spec §3 lifecycle) — Open checks for it
// and returns an IndexCorruption error if absent, since opening a
// partial build would silently surface truncated results instead of a
// clear failure.
func Open(cfg config.IndexConfig) (*Index, error) {
	if _, err := os.Stat(cfg.CommitMarkerPath()); err != nil {
		return nil, &errs.IndexCorruption{Detail: fmt.Sprintf("index at %q has no commit marker", cfg.IndexDir), Err: err}
	}

	dir, err := termdir.Open(cfg.DirectoryPath)
	if err != nil {
		return nil, err
	}

	weights, err := termdir.ReadDocumentWeights(cfg.WeightsPath)
	if err != nil {
		dir.Close()
		return nil, err
	}

	f, err := os.Open(cfg.PostingsPath)
	if err != nil {
		dir.Close()
		return nil, &errs.ResourceError{Op: "diskindex.Open postings file", Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		dir.Close()
		return nil, &errs.ResourceError{Op: "diskindex.Open stat postings file", Err: err}
	}

	return &Index{cfg: cfg, dir: dir, postingsFile: f, postingsFileSize: info.Size(), weights: weights}, nil
}

// Close releases the underlying file and database handles.
func (idx *Index) Close() error {
	var firstErr error
	if err := idx.postingsFile.Close(); err != nil {
		firstErr = &errs.ResourceError{Op: "diskindex.Close postings file", Err: err}
	}
	if err := idx.dir.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Postings returns term's postings list. If needPositions is false, the
// skip decoder is used and every returned Posting carries no positions
// (TermFrequency still works via the skip-decoded count). Unknown terms
// return (nil, nil) — spec §4.G: "unknown term -> empty result (not an
// error)".
func (idx *Index) Postings(ctx context.Context, term string, needPositions bool) ([]posting.Posting, error) {
	offset, ok, err := idx.dir.TermOffset(ctx, term)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rec, err := idx.decodeAt(offset, term, needPositions)
	if err != nil {
		return nil, err
	}
	return rec.Postings, nil
}

// decodeAt seeks to offset, validates the self-describing term prefix
// against want, and decodes the record — full or skip, per needPositions
// (spec §4.G).
func (idx *Index) decodeAt(offset int64, want string, needPositions bool) (codec.Record, error) {
	sr := io.NewSectionReader(idx.postingsFile, offset, idx.postingsFileSize-offset)

	term, err := codec.PeekTerm(sr)
	if err != nil {
		return codec.Record{}, err
	}
	if term != want {
		return codec.Record{}, &errs.IndexCorruption{Detail: fmt.Sprintf("term prefix mismatch at offset %d: directory says %q, record says %q", offset, want, term)}
	}

	if needPositions {
		return codec.Decode(sr)
	}
	return codec.DecodeSkip(sr)
}

// TermFrequency scans term's postings list (via the skip decoder, per
// spec §4.G) until docID is found; returns its tf or 0 if the term does
// not occur in that document.
func (idx *Index) TermFrequency(ctx context.Context, term string, docID posting.DocId) (int, error) {
	postings, err := idx.Postings(ctx, term, false)
	if err != nil {
		return 0, err
	}
	for _, p := range postings {
		if p.DocID == docID {
			return p.TermFrequency(), nil
		}
		if p.DocID > docID {
			break
		}
	}
	return 0, nil
}

// DocumentFrequency returns df_t = |postings(t)| without materializing
// positions.
func (idx *Index) DocumentFrequency(ctx context.Context, term string) (int, error) {
	postings, err := idx.Postings(ctx, term, false)
	if err != nil {
		return 0, err
	}
	return len(postings), nil
}

// Vocabulary returns every indexed term in lexicographic order.
func (idx *Index) Vocabulary(ctx context.Context) ([]string, error) {
	return idx.dir.Vocabulary(ctx)
}

// DocumentLength, DocumentTitle, TotalDocuments, TotalTokens, and
// AverageDocumentLength read from the metadata store, per spec §4.G.

func (idx *Index) DocumentLength(ctx context.Context, docID posting.DocId) (uint32, error) {
	meta, ok, err := idx.dir.Document(ctx, docID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &errs.IndexCorruption{Detail: fmt.Sprintf("no document_metadata row for docId %d", docID)}
	}
	return meta.DocLength, nil
}

func (idx *Index) DocumentTitle(ctx context.Context, docID posting.DocId) (string, error) {
	meta, ok, err := idx.dir.Document(ctx, docID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &errs.IndexCorruption{Detail: fmt.Sprintf("no document_metadata row for docId %d", docID)}
	}
	return meta.Title, nil
}

func (idx *Index) TotalDocuments(ctx context.Context) (int64, error) {
	return idx.dir.TotalDocuments(ctx)
}

func (idx *Index) TotalTokens(ctx context.Context) (int64, error) {
	return idx.dir.TotalTokens(ctx)
}

func (idx *Index) AverageDocumentLength(ctx context.Context) (float64, error) {
	return idx.dir.AverageDocumentLength(ctx)
}

// DocumentWeights returns the dense L_d array, indexed by DocId, spec
// §4.G's documentWeights() operation.
func (idx *Index) DocumentWeights() []float64 {
	return idx.weights
}

// DocumentWeight returns L_d for a single DocId, or 0 if docID is beyond
// the weights file. A document with no tokens is in range and stored
// with weight 0 (spec §4.E step 5).
func (idx *Index) DocumentWeight(docID posting.DocId) float64 {
	if int(docID) >= len(idx.weights) {
		return 0
	}
	return idx.weights[docID]
}
