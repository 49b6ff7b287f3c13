// Package rank implements the ranked scorer of spec §4.I: TF-IDF by
// default, Okapi BM25 when selected, both evaluated bag-of-terms rather
// than through the Boolean combinators in query.
package rank

import (
	"context"
	"math"
	"sort"

	"github.com/mzieve/spindex/config"
	"github.com/mzieve/spindex/posting"
)

// Reader is the read side of diskindex.Index the scorer needs. Declared
// locally, same reasoning as query.PostingsReader: rank has no
// dependency on the disk format itself.
type Reader interface {
	Postings(ctx context.Context, term string, needPositions bool) ([]posting.Posting, error)
	TotalDocuments(ctx context.Context) (int64, error)
	DocumentLength(ctx context.Context, docID posting.DocId) (uint32, error)
	AverageDocumentLength(ctx context.Context) (float64, error)
	DocumentWeight(docID posting.DocId) float64
}

// Match is a scored document, highest Score first once Sorted.
type Match struct {
	DocID posting.DocId
	Score float64
}

// TFIDF scores every document containing at least one of terms under
// spec §4.I's TF-IDF formula:
//
//	w_q,t = ln(1 + N/df_t)
//	w_d,t = 1 + ln(tf_t,d)
//	A_d  += (w_q,t * w_d,t) / L_d
//
// terms is the bag of distinct query terms; duplicates contribute no
// extra weight since the query is treated as a set of terms, not a
// multiset (spec §4.I: "the scorer walks each distinct term").
func TFIDF(ctx context.Context, r Reader, terms []string) ([]Match, error) {
	terms = distinct(terms)

	totalDocs, err := r.TotalDocuments(ctx)
	if err != nil {
		return nil, err
	}
	N := float64(totalDocs)

	accum := make(map[posting.DocId]float64)
	for _, term := range terms {
		postings, err := r.Postings(ctx, term, false)
		if err != nil {
			return nil, err
		}
		df := float64(len(postings))
		if df == 0 {
			continue
		}
		wq := math.Log(1 + N/df)

		for _, p := range postings {
			tf := p.TermFrequency()
			if tf == 0 {
				continue
			}
			wd := 1 + math.Log(float64(tf))
			ld := r.DocumentWeight(p.DocID)
			if ld == 0 {
				continue
			}
			accum[p.DocID] += (wq * wd) / ld
		}
	}

	return sortedMatches(accum), nil
}

// BM25 scores every document containing at least one of terms under
// spec §4.I's Okapi BM25 formula:
//
//	w_q,t = max(0.1, ln((N - df_t + 0.5) / (df_t + 0.5)))
//	w_d,t = (2.2*tf) / (1.2*(0.25+0.75*(docLen/avgLen)) + tf)
//	A_d  += w_q,t * w_d,t
//
// cfg.BM25's K1/B constants expand to the 2.2/1.2/0.25/0.75 coefficients
// above (config.DefaultBM25Params documents the expansion).
func BM25(ctx context.Context, r Reader, cfg config.IndexConfig, terms []string) ([]Match, error) {
	terms = distinct(terms)

	totalDocs, err := r.TotalDocuments(ctx)
	if err != nil {
		return nil, err
	}
	N := float64(totalDocs)

	avgLen, err := r.AverageDocumentLength(ctx)
	if err != nil {
		return nil, err
	}
	if avgLen == 0 {
		return nil, nil
	}

	k1 := cfg.BM25.K1
	b := cfg.BM25.B

	accum := make(map[posting.DocId]float64)
	for _, term := range terms {
		postings, err := r.Postings(ctx, term, false)
		if err != nil {
			return nil, err
		}
		df := float64(len(postings))
		if df == 0 {
			continue
		}
		wq := math.Log((N - df + 0.5) / (df + 0.5))
		if wq < 0.1 {
			wq = 0.1
		}

		for _, p := range postings {
			tf := float64(p.TermFrequency())
			if tf == 0 {
				continue
			}
			docLen, err := r.DocumentLength(ctx, p.DocID)
			if err != nil {
				return nil, err
			}
			ratio := float64(docLen) / avgLen
			wd := ((k1 + 1) * tf) / (k1*((1-b)+b*ratio) + tf)
			accum[p.DocID] += wq * wd
		}
	}

	return sortedMatches(accum), nil
}

// sortedMatches converts an accumulator into a Match slice sorted by
// descending score, breaking ties by ascending DocId for a stable,
// reproducible order.
func sortedMatches(accum map[posting.DocId]float64) []Match {
	matches := make([]Match, 0, len(accum))
	for docID, score := range accum {
		matches = append(matches, Match{DocID: docID, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DocID < matches[j].DocID
	})
	return matches
}

// Top truncates matches to at most n results; a negative n returns
// matches unchanged.
func Top(matches []Match, n int) []Match {
	if n < 0 || n >= len(matches) {
		return matches
	}
	return matches[:n]
}

func distinct(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
