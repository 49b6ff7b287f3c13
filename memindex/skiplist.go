package memindex

import (
	"math/rand"

	"github.com/mzieve/spindex/posting"
)

// MaxHeight bounds the tower height a node can be assigned. 32 levels is
// comfortable headroom for any in-memory spill chunk bounded by
// config.IndexConfig.MemoryLimitBytes (adapted from the teacher's
// skiplist.go, which used the same constant for the same reason).
const MaxHeight = 32

// key orders entries first by DocId, then by Position within a
// document — the same (major, minor) ordering the teacher's
// Position{DocumentID, Offset} used, re-typed to the spec's dense
// uint32 ids instead of float64-with-sentinel values.
type key struct {
	doc posting.DocId
	pos posting.Position
}

func (a key) less(b key) bool {
	if a.doc != b.doc {
		return a.doc < b.doc
	}
	return a.pos < b.pos
}

func (a key) equal(b key) bool {
	return a.doc == b.doc && a.pos == b.pos
}

type node struct {
	key   key
	tower [MaxHeight]*node
}

// orderedSet is a skip list over (DocId, Position) pairs: the ordered
// structure backing one term's accumulator in the in-memory positional
// index (component B). Kept from the teacher's skiplist.go because
// spec §4.B's "locate the correct slot by ordered insertion" fallback is
// exactly what a skip list gives for free, without the query-time
// traversal methods (First/Last/Next/Previous/FindGreaterThan/
// FindLessThan) the teacher built on top — those belonged to a
// different architecture (live in-memory phrase search) and have no
// role here, where postings are spilled to disk and queried back
// through the codec instead.
type orderedSet struct {
	head   *node
	height int
	rng    *rand.Rand
}

func newOrderedSet(rng *rand.Rand) *orderedSet {
	return &orderedSet{head: &node{}, height: 1, rng: rng}
}

// search returns the exact-match node (or nil) and, for every level, the
// predecessor node the new key would splice after.
func (s *orderedSet) search(k key) (*node, [MaxHeight]*node) {
	var journey [MaxHeight]*node
	current := s.head

	for level := s.height - 1; level >= 0; level-- {
		next := current.tower[level]
		for next != nil && next.key.less(k) {
			current = next
			next = current.tower[level]
		}
		journey[level] = current
	}

	next := current.tower[0]
	if next != nil && next.key.equal(k) {
		return next, journey
	}
	return nil, journey
}

// insert adds (doc, pos) to the set if absent. Returns false if the pair
// was already present, in which case the set is left unchanged.
func (s *orderedSet) insert(doc posting.DocId, pos posting.Position) bool {
	k := key{doc: doc, pos: pos}
	found, journey := s.search(k)
	if found != nil {
		return false
	}

	height := s.randomHeight()
	n := &node{key: k}
	for level := 0; level < height; level++ {
		pred := journey[level]
		if pred == nil {
			pred = s.head
		}
		n.tower[level] = pred.tower[level]
		pred.tower[level] = n
	}
	if height > s.height {
		s.height = height
	}
	return true
}

// forEach walks every (doc, pos) pair in ascending order.
func (s *orderedSet) forEach(fn func(doc posting.DocId, pos posting.Position)) {
	for n := s.head.tower[0]; n != nil; n = n.tower[0] {
		fn(n.key.doc, n.key.pos)
	}
}

// randomHeight flips a coin per level, exactly as the teacher's
// skiplist.go did: ~50% chance of each additional level, capped at
// MaxHeight.
func (s *orderedSet) randomHeight() int {
	height := 1
	for height < MaxHeight && s.rng.Intn(2) == 0 {
		height++
	}
	return height
}
