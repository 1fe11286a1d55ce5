package main

import (
	"errors"
	"fmt"
	"io"
)

var (
	errExpectedWord = errors.New("expected word after `:`")
	errNestedColon  = errors.New("unexpected `:` inside definition")
)

// unexpectedCloserError reports a closer token found where a top-level
// expression was expected.
type unexpectedCloserError tokenKind

func (kind unexpectedCloserError) Error() string {
	return fmt.Sprintf("unexpected %q", tokenNames[tokenKind(kind)])
}

// parser lazily turns the token stream into expressions, one complete
// top-level expression per call. Descent is deterministic with no
// backtracking; the accumulation helpers are plain loops where the grammar
// is tail recursive.
type parser struct {
	sc scanner
}

// next returns the next top-level expression, or io.EOF once the stream is
// exhausted.
func (p *parser) next() (expr, error) {
	tok, err := p.sc.next()
	if err != nil {
		return expr{}, err
	}
	return p.parseToken(tok, false)
}

// mustNext is next for positions inside an open composite, where running out
// of input is an error rather than a clean end.
func (p *parser) mustNext() (token, error) {
	tok, err := p.sc.next()
	if err == io.EOF {
		return token{}, errUnexpectedEOF
	}
	return tok, err
}

func (p *parser) parseToken(tok token, inDef bool) (expr, error) {
	switch tok.kind {
	case tokenNumber:
		return expr{kind: exprNumber, num: tok.num}, nil
	case tokenString:
		return expr{kind: exprString, str: tok.str}, nil
	case tokenWord:
		return expr{kind: exprWord, name: tok.name}, nil

	case tokenColon:
		if inDef {
			return expr{}, errNestedColon
		}
		return p.parseDefine()
	case tokenIf:
		return p.parseIf(inDef)
	case tokenBegin:
		return p.parseBegin(inDef)

	case tokenSemi, tokenThen, tokenElse, tokenUntil, tokenWhile, tokenRepeat, tokenAgain:
		return expr{}, unexpectedCloserError(tok.kind)
	}

	if kind, ok := opExprs[tok.kind]; ok {
		return expr{kind: kind}, nil
	}
	return expr{}, fmt.Errorf("unhandled token %v", tok)
}

func (p *parser) parseDefine() (expr, error) {
	tok, err := p.mustNext()
	if err != nil {
		return expr{}, err
	}
	if tok.kind != tokenWord {
		return expr{}, errExpectedWord
	}
	name := tok.name

	var body []expr
	for {
		tok, err := p.mustNext()
		if err != nil {
			return expr{}, err
		}
		if tok.kind == tokenSemi {
			return expr{kind: exprDefine, name: name, body: body}, nil
		}
		e, err := p.parseToken(tok, true)
		if err != nil {
			return expr{}, err
		}
		body = append(body, e)
	}
}

// parseIf accumulates an open `if`; the first `else` or `then` decides which
// composite it becomes.
func (p *parser) parseIf(inDef bool) (expr, error) {
	var body []expr
	for {
		tok, err := p.mustNext()
		if err != nil {
			return expr{}, err
		}
		switch tok.kind {
		case tokenThen:
			return expr{kind: exprIfThen, body: body}, nil
		case tokenElse:
			return p.parseIfElse(inDef, body)
		}
		e, err := p.parseToken(tok, inDef)
		if err != nil {
			return expr{}, err
		}
		body = append(body, e)
	}
}

func (p *parser) parseIfElse(inDef bool, ifBody []expr) (expr, error) {
	var elseBody []expr
	for {
		tok, err := p.mustNext()
		if err != nil {
			return expr{}, err
		}
		if tok.kind == tokenThen {
			return expr{kind: exprIfElseThen, body: ifBody, alt: elseBody}, nil
		}
		e, err := p.parseToken(tok, inDef)
		if err != nil {
			return expr{}, err
		}
		elseBody = append(elseBody, e)
	}
}

// parseBegin accumulates an open `begin`; the first `until`, `while`, or
// `again` decides which loop it becomes.
func (p *parser) parseBegin(inDef bool) (expr, error) {
	var body []expr
	for {
		tok, err := p.mustNext()
		if err != nil {
			return expr{}, err
		}
		switch tok.kind {
		case tokenUntil:
			return expr{kind: exprBeginUntil, body: body}, nil
		case tokenWhile:
			return p.parseBeginWhile(inDef, body)
		case tokenAgain:
			return expr{kind: exprBeginAgain, body: body}, nil
		}
		e, err := p.parseToken(tok, inDef)
		if err != nil {
			return expr{}, err
		}
		body = append(body, e)
	}
}

func (p *parser) parseBeginWhile(inDef bool, condBody []expr) (expr, error) {
	var whileBody []expr
	for {
		tok, err := p.mustNext()
		if err != nil {
			return expr{}, err
		}
		if tok.kind == tokenRepeat {
			return expr{kind: exprBeginWhileRepeat, body: condBody, alt: whileBody}, nil
		}
		e, err := p.parseToken(tok, inDef)
		if err != nil {
			return expr{}, err
		}
		whileBody = append(whileBody, e)
	}
}
