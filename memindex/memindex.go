// Package memindex implements the in-memory positional index (spec
// §4.B): a bounded accumulator of per-term postings that the SPIMI
// builder fills until the configured memory threshold is crossed, then
// sorts and spills.
package memindex

import (
	"math/rand"
	"sort"
	"time"

	"github.com/mzieve/spindex/posting"
)

// Index accumulates postings for a bounded subset of documents during
// SPIMI ingestion. It is not safe for concurrent use — spec §5 notes the
// SPIMI consumer is single-threaded by design since this structure is
// not shared across goroutines.
type Index struct {
	terms map[string]*orderedSet
	rng   *rand.Rand
}

// New returns an empty in-memory index.
func New() *Index {
	return &Index{
		terms: make(map[string]*orderedSet),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Add records one occurrence of term at (docID, position). Each term's
// (DocId, Position) pairs are kept in an ordered set sorted by DocId and
// then Position, so occurrences may arrive in any order: a position for a
// DocId the term already has joins that posting in ascending order (spec
// §4.B's ordered-insertion fallback), and a new DocId gets its own
// posting in DocId order. A (docID, position) pair already recorded is
// ignored.
func (idx *Index) Add(term string, docID posting.DocId, position posting.Position) {
	set, ok := idx.terms[term]
	if !ok {
		set = newOrderedSet(idx.rng)
		idx.terms[term] = set
	}
	set.insert(docID, position)
}

// Postings returns the stored postings for term in ascending DocId
// order, each posting's positions strictly ascending. Returns nil if
// term has never been added.
func (idx *Index) Postings(term string) []posting.Posting {
	set, ok := idx.terms[term]
	if !ok {
		return nil
	}

	var out []posting.Posting
	var cur *posting.Posting
	set.forEach(func(doc posting.DocId, pos posting.Position) {
		if cur == nil || cur.DocID != doc {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &posting.Posting{DocID: doc}
		}
		cur.Positions = append(cur.Positions, pos)
	})
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// Vocabulary returns every term currently accumulated, in lexicographic
// byte order — the order the builder spills in.
func (idx *Index) Vocabulary() []string {
	terms := make([]string, 0, len(idx.terms))
	for t := range idx.terms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Len returns the number of distinct terms currently accumulated.
func (idx *Index) Len() int {
	return len(idx.terms)
}

// Clear drops all accumulated state so the index can be reused for the
// next spill chunk.
func (idx *Index) Clear() {
	idx.terms = make(map[string]*orderedSet)
}
