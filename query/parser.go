package query

import (
	"github.com/mzieve/spindex/errs"
)

// Parse builds a Query AST from input per spec §4.H's grammar:
//
//	query    := subquery ( '+' subquery )*
//	subquery := literal ( WS literal )*
//	literal  := '"' phrase '"' | '-' literal | term
//	phrase   := term ( WS term )+
//	term     := <token bytes>
//
// input is assumed already tokenized by the external text processor (spec
// §6) — Parse only splits on the '+', '-', '"' and whitespace delimiters
// the grammar names, it does not stem or case-fold terms itself.
func Parse(input string) (Query, error) {
	p := &parser{s: input}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.atEnd() {
		return nil, &errs.ProtocolError{Detail: "unexpected trailing input in query: " + p.s[p.pos:]}
	}
	return q, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.s) }

func (p *parser) peek() byte {
	if p.atEnd() {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) skipSpace() {
	for !p.atEnd() && isSpace(p.s[p.pos]) {
		p.pos++
	}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// parseQuery parses one or more '+'-separated subqueries; a single
// subquery collapses directly to its own node rather than an OrQuery of
// one child.
func (p *parser) parseQuery() (Query, error) {
	first, err := p.parseSubquery()
	if err != nil {
		return nil, err
	}
	children := []Query{first}
	for {
		p.skipSpace()
		if p.peek() != '+' {
			break
		}
		p.pos++
		p.skipSpace()
		child, err := p.parseSubquery()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &OrQuery{Children: children}, nil
}

// parseSubquery parses a run of space-separated literals and validates
// that they are not all negated (spec §4.H: a subquery with nothing
// positive to intersect against has no defined postings list).
func (p *parser) parseSubquery() (Query, error) {
	first, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	literals := []Query{first}
	for {
		p.skipSpace()
		if p.atEnd() || p.peek() == '+' {
			break
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		literals = append(literals, lit)
	}

	allNegated := true
	for _, l := range literals {
		if !l.isNot() {
			allNegated = false
			break
		}
	}
	if allNegated {
		return nil, &errs.ProtocolError{Detail: "subquery has no positive literal to intersect against"}
	}

	if len(literals) == 1 {
		return literals[0], nil
	}
	return &AndQuery{Children: literals}, nil
}

// parseLiteral parses '-'literal, '"'phrase'"', or a bare term.
func (p *parser) parseLiteral() (Query, error) {
	if p.atEnd() {
		return nil, &errs.ProtocolError{Detail: "expected a literal, found end of input"}
	}

	if p.peek() == '-' {
		p.pos++
		p.skipSpace()
		child, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		if child.isNot() {
			return nil, &errs.ProtocolError{Detail: "double negation is not a valid literal"}
		}
		return &NotQuery{Child: child}, nil
	}

	if p.peek() == '"' {
		p.pos++
		return p.parsePhrase()
	}

	return p.parseTerm(), nil
}

// parsePhrase collects whitespace-separated words until a closing '"' or
// end of input. A single word folds into a bare TermLiteral (spec §4.H:
// "a single-term phrase is equivalent to a bare term"). Per spec §7, an
// unterminated phrase is recovered rather than rejected: the words
// collected so far are treated as an ordinary AND of term literals, the
// behavior the reference parser uses.
func (p *parser) parsePhrase() (Query, error) {
	var words []string
	for {
		p.skipSpace()
		if p.atEnd() {
			return foldWords(words), nil
		}
		if p.peek() == '"' {
			p.pos++
			if len(words) == 0 {
				return nil, &errs.ProtocolError{Detail: "empty phrase"}
			}
			return foldTerms(words), nil
		}
		words = append(words, p.readWord())
	}
}

func foldTerms(words []string) Query {
	if len(words) == 1 {
		return &TermLiteral{Term: words[0]}
	}
	return &PhraseLiteral{Terms: words}
}

// foldWords implements the unterminated-phrase fallback: the words seen
// before running out of input become ordinary (AND'd) term literals
// rather than a phrase, since no closing quote ever arrived to establish
// adjacency semantics.
func foldWords(words []string) Query {
	if len(words) == 1 {
		return &TermLiteral{Term: words[0]}
	}
	children := make([]Query, len(words))
	for i, w := range words {
		children[i] = &TermLiteral{Term: w}
	}
	return &AndQuery{Children: children}
}

func (p *parser) parseTerm() Query {
	return &TermLiteral{Term: p.readWord()}
}

// readWord consumes bytes up to the next delimiter the grammar
// recognizes: whitespace, '"', or '+'. '-' is not a delimiter here since
// it only has negation meaning at the start of a literal.
func (p *parser) readWord() string {
	start := p.pos
	for !p.atEnd() {
		b := p.s[p.pos]
		if isSpace(b) || b == '"' || b == '+' {
			break
		}
		p.pos++
	}
	return p.s[start:p.pos]
}
