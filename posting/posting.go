// Package posting defines the core value types shared by every layer of
// the index: the document identifier, the within-document position, and
// the posting tuple that ties them together.
package posting

import "fmt"

// DocId is a dense identifier assigned to documents in ingestion order,
// starting from zero.
type DocId uint32

// Position is the 1-based ordinal of a token within a document, counted
// after tokenizer normalization.
type Position uint32

// Posting pairs a document with the ordered positions a term occurs at
// in that document. Positions is strictly ascending. A posting produced
// by the position-skip decode path carries a nil Positions slice and
// only asserts that the term occurs in DocID; callers must not treat a
// nil slice as "no occurrences" in that context.
type Posting struct {
	DocID     DocId
	Positions []Position

	// skipTF carries tf for a positionless posting produced by the
	// skip decoder, which knows tf without reading position gaps.
	skipTF int
}

// TermFrequency returns the number of occurrences this posting records.
// For a position-skip posting (Positions == nil) this returns the tf
// that was carried alongside the gap-encoded record.
func (p Posting) TermFrequency() int {
	if p.Positions != nil {
		return len(p.Positions)
	}
	return p.skipTF
}

// WithSkipTermFrequency returns a positionless posting carrying tf
// without having decoded any position gaps. Used by codec's skip decoder.
func WithSkipTermFrequency(docID DocId, tf int) Posting {
	return Posting{DocID: docID, skipTF: tf}
}

func (p Posting) String() string {
	if p.Positions == nil {
		return fmt.Sprintf("Posting{doc=%d tf=%d}", p.DocID, p.skipTF)
	}
	return fmt.Sprintf("Posting{doc=%d positions=%v}", p.DocID, p.Positions)
}
