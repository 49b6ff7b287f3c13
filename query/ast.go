// Package query implements the Boolean/phrase query language of spec
// §4.H: a small recursive-descent parser over the grammar, an AST of
// five node kinds modeled as a tagged sum type rather than an
// inheritance hierarchy (spec §9), and merge-based postings
// combinators.
//
// The AST's shared-helper dispatch-by-variant idea and the
// document-level roaring-bitmap fast path are adapted from the
// teacher's query.go QueryBuilder — there a fluent stack machine built
// directly on roaring.Bitmap; here an explicit tree is built first
// (so AndQuery/NotQuery validation can run before any evaluation) and
// the bitmap path is used only when no phrase literal is present in the
// subtree, since roaring bitmaps cannot carry position lists.
package query

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	"github.com/mzieve/spindex/errs"
	"github.com/mzieve/spindex/posting"
)

// PostingsReader is the read side of diskindex.Index that the evaluator
// needs. Declared here, not imported from diskindex, so query has no
// dependency on the disk format — only on "something that can answer
// postings(term, needPositions)".
type PostingsReader interface {
	Postings(ctx context.Context, term string, needPositions bool) ([]posting.Posting, error)
}

// Query is the sum type of AST node kinds: TermLiteral, PhraseLiteral,
// AndQuery, OrQuery, NotQuery.
type Query interface {
	// Postings evaluates this node against r. needPositions requests that
	// returned postings carry position lists; a PhraseLiteral anywhere in
	// the subtree always fetches positions for itself regardless of this
	// flag, since it cannot compute adjacency without them.
	Postings(ctx context.Context, r PostingsReader, needPositions bool) ([]posting.Posting, error)

	containsPhrase() bool
	isNot() bool
}

// TermLiteral matches a single term's postings list directly.
type TermLiteral struct {
	Term string
}

func (t *TermLiteral) containsPhrase() bool { return false }
func (t *TermLiteral) isNot() bool          { return false }

func (t *TermLiteral) Postings(ctx context.Context, r PostingsReader, needPositions bool) ([]posting.Posting, error) {
	return r.Postings(ctx, t.Term, needPositions)
}

// PhraseLiteral matches documents where Terms occur as a contiguous
// run — adjacency only (k=1), per spec §9's resolved Open Question.
// len(Terms) is always >= 2; a single-term phrase is folded into a
// TermLiteral by the parser (spec §4.H grammar note).
type PhraseLiteral struct {
	Terms []string
}

func (p *PhraseLiteral) containsPhrase() bool { return true }
func (p *PhraseLiteral) isNot() bool          { return false }

func (p *PhraseLiteral) Postings(ctx context.Context, r PostingsReader, _ bool) ([]posting.Posting, error) {
	current, err := r.Postings(ctx, p.Terms[0], true)
	if err != nil {
		return nil, err
	}

	for _, term := range p.Terms[1:] {
		next, err := r.Postings(ctx, term, true)
		if err != nil {
			return nil, err
		}
		current = adjacentIntersect(current, next)
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

// adjacentIntersect returns, for each DocId common to both lists, the
// positions of b that immediately follow some position of a (spec
// §4.H: "position p+1 appears in the next term's positions for
// adjacent pair (i, i+1)"). A DocId with no such pair is dropped.
func adjacentIntersect(a, b []posting.Posting) []posting.Posting {
	var out []posting.Posting
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			i++
		case a[i].DocID > b[j].DocID:
			j++
		default:
			matches := matchAdjacent(a[i].Positions, b[j].Positions)
			if len(matches) > 0 {
				out = append(out, posting.Posting{DocID: a[i].DocID, Positions: matches})
			}
			i++
			j++
		}
	}
	return out
}

// matchAdjacent returns the positions in bPos that are immediately
// preceded by some position in aPos, preserving ascending order; both
// inputs are strictly ascending (spec invariant 1).
func matchAdjacent(aPos, bPos []posting.Position) []posting.Position {
	var out []posting.Position
	i, j := 0, 0
	for i < len(aPos) && j < len(bPos) {
		want := aPos[i] + 1
		switch {
		case bPos[j] < want:
			j++
		case bPos[j] > want:
			i++
		default:
			out = append(out, bPos[j])
			i++
			j++
		}
	}
	return out
}

// AndQuery is the conjunction of its children; a child that is a
// *NotQuery is handled as a set-difference pass rather than a plain
// merge (spec §4.H).
type AndQuery struct {
	Children []Query
}

func (a *AndQuery) isNot() bool { return false }
func (a *AndQuery) containsPhrase() bool {
	for _, c := range a.Children {
		if c.containsPhrase() {
			return true
		}
	}
	return false
}

func (a *AndQuery) Postings(ctx context.Context, r PostingsReader, needPositions bool) ([]posting.Posting, error) {
	var positive []Query
	var negative []Query
	for _, c := range a.Children {
		if c.isNot() {
			negative = append(negative, c.(*NotQuery).Child)
		} else {
			positive = append(positive, c)
		}
	}
	if len(positive) == 0 {
		return nil, &errs.ProtocolError{Detail: "AndQuery has no positive child to intersect against"}
	}

	if !needPositions && !a.containsPhrase() && canUseBitmapFastPath(a) {
		return andBitmapFastPath(ctx, r, positive, negative)
	}

	acc, err := positive[0].Postings(ctx, r, needPositions)
	if err != nil {
		return nil, err
	}
	for _, child := range positive[1:] {
		childPostings, err := child.Postings(ctx, r, needPositions)
		if err != nil {
			return nil, err
		}
		acc = intersectKeepLeft(acc, childPostings)
		if len(acc) == 0 {
			return nil, nil
		}
	}
	for _, child := range negative {
		childPostings, err := child.Postings(ctx, r, false)
		if err != nil {
			return nil, err
		}
		acc = subtract(acc, childPostings)
		if len(acc) == 0 {
			return nil, nil
		}
	}
	return acc, nil
}

// OrQuery is the disjunction (union) of its children (spec §4.H).
type OrQuery struct {
	Children []Query
}

func (o *OrQuery) isNot() bool { return false }
func (o *OrQuery) containsPhrase() bool {
	for _, c := range o.Children {
		if c.containsPhrase() {
			return true
		}
	}
	return false
}

func (o *OrQuery) Postings(ctx context.Context, r PostingsReader, needPositions bool) ([]posting.Posting, error) {
	if !needPositions && !o.containsPhrase() && canUseBitmapFastPath(o) {
		return orBitmapFastPath(ctx, r, o.Children)
	}

	acc, err := o.Children[0].Postings(ctx, r, needPositions)
	if err != nil {
		return nil, err
	}
	for _, child := range o.Children[1:] {
		childPostings, err := child.Postings(ctx, r, needPositions)
		if err != nil {
			return nil, err
		}
		acc = unionKeepLeft(acc, childPostings)
	}
	return acc, nil
}

// NotQuery negates its child. It is only meaningful as a direct child
// of an AndQuery (spec §4.H); Parse rejects any tree where that is not
// the case. Calling Postings directly on a free-standing NotQuery
// still returns the child's own postings (the well-defined "postings
// for the subtraction pass" spec §4.H names), since the caller that
// would misuse it in isolation has already been rejected at parse time.
type NotQuery struct {
	Child Query
}

func (n *NotQuery) isNot() bool          { return true }
func (n *NotQuery) containsPhrase() bool { return n.Child.containsPhrase() }

func (n *NotQuery) Postings(ctx context.Context, r PostingsReader, needPositions bool) ([]posting.Posting, error) {
	return n.Child.Postings(ctx, r, needPositions)
}

// canUseBitmapFastPath reports whether every leaf in the subtree is a
// plain TermLiteral (no phrase, which the check above already covers,
// but also nothing unusual that would make a bitmap round-trip lossy
// for this query's purpose — currently always true once containsPhrase
// is false, kept as a named hook so future leaf kinds can opt out).
func canUseBitmapFastPath(q Query) bool {
	return !q.containsPhrase()
}

func andBitmapFastPath(ctx context.Context, r PostingsReader, positive, negative []Query) ([]posting.Posting, error) {
	acc, err := bitmapFor(ctx, r, positive[0])
	if err != nil {
		return nil, err
	}
	for _, child := range positive[1:] {
		bm, err := bitmapFor(ctx, r, child)
		if err != nil {
			return nil, err
		}
		acc.And(bm)
	}
	for _, child := range negative {
		bm, err := bitmapFor(ctx, r, child)
		if err != nil {
			return nil, err
		}
		acc.AndNot(bm)
	}
	return bitmapToPostings(acc), nil
}

func orBitmapFastPath(ctx context.Context, r PostingsReader, children []Query) ([]posting.Posting, error) {
	acc, err := bitmapFor(ctx, r, children[0])
	if err != nil {
		return nil, err
	}
	for _, child := range children[1:] {
		bm, err := bitmapFor(ctx, r, child)
		if err != nil {
			return nil, err
		}
		acc.Or(bm)
	}
	return bitmapToPostings(acc), nil
}

func bitmapFor(ctx context.Context, r PostingsReader, q Query) (*roaring.Bitmap, error) {
	postings, err := q.Postings(ctx, r, false)
	if err != nil {
		return nil, err
	}
	bm := roaring.NewBitmap()
	for _, p := range postings {
		bm.Add(uint32(p.DocID))
	}
	return bm, nil
}

func bitmapToPostings(bm *roaring.Bitmap) []posting.Posting {
	if bm.IsEmpty() {
		return nil
	}
	out := make([]posting.Posting, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, posting.Posting{DocID: posting.DocId(it.Next())})
	}
	return out
}

// intersectKeepLeft returns postings present in both a and b, sorted
// ascending by DocId, keeping a's posting data for each match (spec
// doesn't mandate which side's position data survives an AND; the
// accumulator side is kept for consistency with how the merge walks).
func intersectKeepLeft(a, b []posting.Posting) []posting.Posting {
	var out []posting.Posting
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			i++
		case a[i].DocID > b[j].DocID:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// unionKeepLeft merges a and b preserving DocId order; for overlapping
// DocIds the earlier (a's) posting is kept, per spec §4.H.
func unionKeepLeft(a, b []posting.Posting) []posting.Posting {
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
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// subtract returns the postings of a whose DocId does not occur in b.
func subtract(a, b []posting.Posting) []posting.Posting {
	var out []posting.Posting
	i, j := 0, 0
	for i < len(a) {
		for j < len(b) && b[j].DocID < a[i].DocID {
			j++
		}
		if j < len(b) && b[j].DocID == a[i].DocID {
			i++
			continue
		}
		out = append(out, a[i])
		i++
	}
	return out
}
