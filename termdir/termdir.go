// Package termdir implements the term directory & metadata store (spec
// §4.F): the persistent mapping from term to postings-file byte offset,
// per-document metadata, and corpus statistics, plus the dense
// document-weights file (spec §3's L_d array).
//
// The teacher repo has no persistence layer of its own — it keeps
// everything in memory and serializes the whole structure as one byte
// blob (serialization.go). The schema and access pattern here are taken
// directly from spec §4.F; the storage engine is modernc.org/sqlite, a
// pure-Go (no cgo) embedded SQL engine, the same family of dependency
// the wider retrieval pack reaches for when it needs embedded storage.
package termdir

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"

	_ "modernc.org/sqlite"

	"github.com/mzieve/spindex/errs"
	"github.com/mzieve/spindex/posting"
)

const schema = `
CREATE TABLE IF NOT EXISTS term_positions (
	term   TEXT PRIMARY KEY,
	offset INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS document_metadata (
	docId     INTEGER PRIMARY KEY,
	title     TEXT NOT NULL,
	docLength INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS corpus_stats (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// Store wraps the embedded SQL database holding the three spec §4.F
// tables. The builder opens it read-write; readers open it read-only.
type Store struct {
	db *sql.DB
}

// Create initializes a fresh store at path, creating the schema. The
// builder calls this once at the start of a build; any pre-existing file
// at path is truncated.
func Create(path string) (*Store, error) {
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return nil, &errs.ResourceError{Op: "termdir.Create remove stale file", Err: err}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &errs.ResourceError{Op: "termdir.Create open", Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &errs.ResourceError{Op: "termdir.Create schema", Err: err}
	}
	slog.Info("term directory created", slog.String("path", path))
	return &Store{db: db}, nil
}

// Open opens an existing store read-only. Callers MUST NOT call Open
// before the build that produced path has committed (spec §3 lifecycle).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &errs.ResourceError{Op: "termdir.Open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errs.ResourceError{Op: "termdir.Open ping", Err: err}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return &errs.ResourceError{Op: "termdir.Close", Err: err}
	}
	return nil
}

// PutTermOffset records the byte offset in the final postings file at
// which term's record begins. The builder calls this once per term
// during merge (spec §4.E step 4).
func (s *Store) PutTermOffset(ctx context.Context, term string, offset int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO term_positions(term, offset) VALUES (?, ?)`, term, offset)
	if err != nil {
		return &errs.ResourceError{Op: fmt.Sprintf("termdir.PutTermOffset %q", term), Err: err}
	}
	return nil
}

// DocumentMetadataBatch buffers document_metadata rows so the builder can
// flush them in a single transaction per batch (one prepared insert per
// row), satisfying spec
// §4.E's "batch inserts are recommended" and §4.F's O(N) amortized bulk
// insert contract.
type DocumentMetadataBatch struct {
	store *Store
	rows  []docRow
}

type docRow struct {
	docID     posting.DocId
	title     string
	docLength uint32
}

// NewDocumentMetadataBatch returns an empty batch bound to s.
func (s *Store) NewDocumentMetadataBatch() *DocumentMetadataBatch {
	return &DocumentMetadataBatch{store: s}
}

// Add buffers one document's metadata row.
func (b *DocumentMetadataBatch) Add(docID posting.DocId, title string, docLength uint32) {
	b.rows = append(b.rows, docRow{docID: docID, title: title, docLength: docLength})
}

// Flush writes every buffered row in one transaction and clears the
// batch. The builder calls this periodically (e.g. once per spill) and
// once more at commit time for any remaining rows.
func (b *DocumentMetadataBatch) Flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}
	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &errs.ResourceError{Op: "termdir.Flush begin", Err: err}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_metadata(docId, title, docLength) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return &errs.ResourceError{Op: "termdir.Flush prepare", Err: err}
	}
	defer stmt.Close()

	for _, row := range b.rows {
		if _, err := stmt.ExecContext(ctx, row.docID, row.title, row.docLength); err != nil {
			tx.Rollback()
			return &errs.ResourceError{Op: fmt.Sprintf("termdir.Flush insert doc %d", row.docID), Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.ResourceError{Op: "termdir.Flush commit", Err: err}
	}
	slog.Info("document metadata flushed", slog.Int("rows", len(b.rows)))
	b.rows = b.rows[:0]
	return nil
}

// SetTotalTokens writes the corpus_stats row named by spec §4.F
// ('total_tokens', totalTokens).
func (s *Store) SetTotalTokens(ctx context.Context, totalTokens int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO corpus_stats(name, value) VALUES ('total_tokens', ?)`, totalTokens)
	if err != nil {
		return &errs.ResourceError{Op: "termdir.SetTotalTokens", Err: err}
	}
	return nil
}

// SetTotalDocuments writes a corpus_stats row recording the document
// count, so readers don't need a COUNT(*) scan to derive
// averageDocumentLength.
func (s *Store) SetTotalDocuments(ctx context.Context, totalDocuments int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO corpus_stats(name, value) VALUES ('total_documents', ?)`, totalDocuments)
	if err != nil {
		return &errs.ResourceError{Op: "termdir.SetTotalDocuments", Err: err}
	}
	return nil
}

// TermOffset looks up term's byte offset in the postings file. ok is
// false when term is absent from the vocabulary (not an error — spec
// §4.G: "unknown term -> empty result").
func (s *Store) TermOffset(ctx context.Context, term string) (offset int64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT offset FROM term_positions WHERE term = ?`, term)
	if scanErr := row.Scan(&offset); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, &errs.ResourceError{Op: fmt.Sprintf("termdir.TermOffset %q", term), Err: scanErr}
	}
	return offset, true, nil
}

// Vocabulary returns every term in lexicographic order, as spec §4.G
// requires of the reader's vocabulary() operation.
func (s *Store) Vocabulary(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT term FROM term_positions ORDER BY term ASC`)
	if err != nil {
		return nil, &errs.ResourceError{Op: "termdir.Vocabulary query", Err: err}
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, &errs.ResourceError{Op: "termdir.Vocabulary scan", Err: err}
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.ResourceError{Op: "termdir.Vocabulary rows", Err: err}
	}
	return terms, nil
}

// DocumentMetadata is one row of the document_metadata table.
type DocumentMetadata struct {
	DocID     posting.DocId
	Title     string
	DocLength uint32
}

// Document looks up one document's metadata record.
func (s *Store) Document(ctx context.Context, docID posting.DocId) (DocumentMetadata, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT title, docLength FROM document_metadata WHERE docId = ?`, docID)
	var meta DocumentMetadata
	meta.DocID = docID
	if err := row.Scan(&meta.Title, &meta.DocLength); err != nil {
		if err == sql.ErrNoRows {
			return DocumentMetadata{}, false, nil
		}
		return DocumentMetadata{}, false, &errs.ResourceError{Op: fmt.Sprintf("termdir.Document %d", docID), Err: err}
	}
	return meta, true, nil
}

// TotalDocuments returns the document count recorded at commit time.
func (s *Store) TotalDocuments(ctx context.Context) (int64, error) {
	return s.corpusStat(ctx, "total_documents")
}

// TotalTokens returns the corpus-wide token count (spec §3's corpus
// stats record).
func (s *Store) TotalTokens(ctx context.Context) (int64, error) {
	return s.corpusStat(ctx, "total_tokens")
}

func (s *Store) corpusStat(ctx context.Context, name string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM corpus_stats WHERE name = ?`, name)
	var value int64
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, &errs.IndexCorruption{Detail: fmt.Sprintf("corpus_stats missing row %q", name)}
		}
		return 0, &errs.ResourceError{Op: fmt.Sprintf("termdir.corpusStat %q", name), Err: err}
	}
	return value, nil
}

// AverageDocumentLength computes totalTokens / totalDocuments as spec
// §4.G defines it.
func (s *Store) AverageDocumentLength(ctx context.Context) (float64, error) {
	totalDocs, err := s.TotalDocuments(ctx)
	if err != nil {
		return 0, err
	}
	if totalDocs == 0 {
		return 0, nil
	}
	totalTokens, err := s.TotalTokens(ctx)
	if err != nil {
		return 0, err
	}
	return float64(totalTokens) / float64(totalDocs), nil
}

// WriteDocumentWeights writes the dense document-weights file (spec §3):
// exactly N 8-byte little-endian IEEE-754 doubles, the i-th being L_i.
// weights must be indexed by DocId and have length == totalDocuments.
func WriteDocumentWeights(path string, weights []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return &errs.ResourceError{Op: "termdir.WriteDocumentWeights create", Err: err}
	}
	defer f.Close()

	buf := make([]byte, 8*len(weights))
	for i, w := range weights {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(w))
	}
	if _, err := f.Write(buf); err != nil {
		return &errs.ResourceError{Op: "termdir.WriteDocumentWeights write", Err: err}
	}
	return nil
}

// ReadDocumentWeights reads the dense document-weights file back into a
// DocId-indexed slice.
func ReadDocumentWeights(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ResourceError{Op: "termdir.ReadDocumentWeights", Err: err}
	}
	if len(data)%8 != 0 {
		return nil, &errs.IndexCorruption{Detail: fmt.Sprintf("document weights file length %d is not a multiple of 8", len(data))}
	}
	n := len(data) / 8
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		weights[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return weights, nil
}
