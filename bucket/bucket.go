// Package bucket implements the sorted spill-file store (spec §4.D): the
// sequence of sort-and-flush files the builder produces while its
// in-memory index (memindex) fills past the configured memory bound.
//
// Each bucket file is a back-to-back sequence of codec records, one per
// term, written in lexicographic term order — the same length-prefixed,
// one-record-after-another layout the teacher's serialization.go used
// for its encoded index, adapted here to hold one spill chunk instead of
// a whole index.
package bucket

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mzieve/spindex/codec"
	"github.com/mzieve/spindex/errs"
	"github.com/mzieve/spindex/memindex"
)

// fileName returns the name of the k-th bucket file, 0-based.
func fileName(k int) string {
	return fmt.Sprintf("bucket_%05d", k)
}

// Spill writes every term in idx, in lexicographic order, as one codec
// record per term, into a new file named bucket_<k> inside dir. The
// caller is responsible for clearing idx afterward (builder does this
// immediately so the next ingestion chunk starts from an empty index).
func Spill(dir string, k int, idx *memindex.Index) (path string, err error) {
	path = filepath.Join(dir, fileName(k))
	f, err := os.Create(path)
	if err != nil {
		return "", &errs.ResourceError{Op: "bucket.Spill create", Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &errs.ResourceError{Op: "bucket.Spill close", Err: cerr}
		}
	}()

	w := bufio.NewWriter(f)
	for _, term := range idx.Vocabulary() {
		postings := idx.Postings(term)
		if len(postings) == 0 {
			continue
		}
		if encErr := codec.Encode(w, term, postings); encErr != nil {
			return path, encErr
		}
	}
	if flushErr := w.Flush(); flushErr != nil {
		return path, &errs.ResourceError{Op: "bucket.Spill flush", Err: flushErr}
	}
	return path, nil
}

// Reader sequentially decodes the records of one bucket file, in the
// order Spill wrote them (lexicographic by term).
type Reader struct {
	f *os.File
	r *bufio.Reader
}

// Open opens an existing bucket file for sequential reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.ResourceError{Op: "bucket.Open", Err: err}
	}
	return &Reader{f: f, r: bufio.NewReader(f)}, nil
}

// Next decodes the next record. Returns io.EOF (unwrapped) when the file
// is cleanly exhausted after a whole number of records — the normal way
// callers detect the end of a bucket — and a genuine error for anything
// that looks like a truncated record mid-stream.
func (r *Reader) Next() (codec.Record, error) {
	atEnd, err := codec.AtEnd(r.r)
	if err != nil {
		return codec.Record{}, err
	}
	if atEnd {
		return codec.Record{}, io.EOF
	}
	return codec.Decode(r.r)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	if err := r.f.Close(); err != nil {
		return &errs.ResourceError{Op: "bucket.Reader.Close", Err: err}
	}
	return nil
}

// Remove deletes the bucket file at path. The builder calls this for
// every bucket once the merge that consumed it has completed — spec §3
// requires bucket spills to be deleted after a successful merge, never
// left behind as debris.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return &errs.ResourceError{Op: "bucket.Remove", Err: err}
	}
	return nil
}

// List returns the paths of the first count bucket files in dir, in
// creation order (bucket_00000, bucket_00001, ...). The paths are built
// from the naming scheme Spill uses; List does not check that the files
// exist.
func List(dir string, count int) []string {
	paths := make([]string, count)
	for k := 0; k < count; k++ {
		paths[k] = filepath.Join(dir, fileName(k))
	}
	return paths
}
