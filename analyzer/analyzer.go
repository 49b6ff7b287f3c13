// Package analyzer implements the Tokenizer collaborator named in spec
// §6: it turns raw document or query text into the (term, position)
// pairs the rest of the system operates on, via Unicode-aware
// splitting, lowercasing, English stopword removal, and Snowball
// (Porter2) stemming.
//
// Adapted from the teacher's analyzer.go pipeline — same stage order
// and the same stopword list — generalized to emit Position alongside
// each term (spec §3: "tokenizer collaborator yields (term, position)
// pairs") instead of a bare []string, and to expose the stages as an
// explicit Config rather than positional booleans.
package analyzer

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"

	"github.com/mzieve/spindex/posting"
)

// Config controls which pipeline stages run. Zero value is not valid
// for direct use; callers should start from Default().
type Config struct {
	MinTokenLength  int
	EnableStemming  bool
	EnableStopwords bool
}

// Default returns the standard pipeline: length >= 2, stopwords
// removed, stemming applied.
func Default() Config {
	return Config{MinTokenLength: 2, EnableStemming: true, EnableStopwords: true}
}

// Token pairs a normalized term with its 1-based position within the
// text it was analyzed from (spec §3).
type Token struct {
	Term     string
	Position posting.Position
}

// Analyze runs text through the default pipeline.
func Analyze(text string) []Token {
	return AnalyzeWithConfig(text, Default())
}

// AnalyzeWithConfig runs text through the pipeline configured by cfg.
// Position numbering is assigned once, after every filtering stage, so
// position N always refers to the Nth surviving term — matching how
// the disk postings format records adjacency for phrase queries (spec
// §4.H: phrase matching relies on positions being dense and ordered
// over the *indexed* token stream, not the raw input).
func AnalyzeWithConfig(text string, cfg Config) []Token {
	terms := tokenize(text)
	terms = lowercaseFilter(terms)

	if cfg.EnableStopwords {
		terms = stopwordFilter(terms)
	}
	terms = lengthFilter(terms, cfg.MinTokenLength)

	if cfg.EnableStemming {
		terms = stemmerFilter(terms)
	}

	tokens := make([]Token, len(terms))
	for i, term := range terms {
		tokens[i] = Token{Term: term, Position: posting.Position(i + 1)}
	}
	return tokens
}

// tokenize splits text on any rune that is not a letter or a number, so
// punctuation and whitespace of any kind delimit terms while Unicode
// letters (accents, non-Latin scripts) survive intact.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func lowercaseFilter(terms []string) []string {
	r := make([]string, len(terms))
	for i, term := range terms {
		r[i] = strings.ToLower(term)
	}
	return r
}

func stopwordFilter(terms []string) []string {
	r := make([]string, 0, len(terms))
	for _, term := range terms {
		if !isStopword(term) {
			r = append(r, term)
		}
	}
	return r
}

func lengthFilter(terms []string, minLength int) []string {
	r := make([]string, 0, len(terms))
	for _, term := range terms {
		if len(term) >= minLength {
			r = append(r, term)
		}
	}
	return r
}

// stemmerFilter reduces each term to its Snowball (Porter2) root, e.g.
// "running" -> "run", so query terms and index terms meet at the same
// normal form regardless of inflection.
func stemmerFilter(terms []string) []string {
	r := make([]string, len(terms))
	for i, term := range terms {
		r[i] = snowballeng.Stem(term, false)
	}
	return r
}

func isStopword(term string) bool {
	_, ok := englishStopwords[term]
	return ok
}
