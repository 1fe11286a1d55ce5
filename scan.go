package main

import (
	"errors"
	"io"
	"strings"

	"github.com/stacker-lang/stacker/internal/fileinput"
)

var (
	errUnexpectedEOF = errors.New("unexpected EOF")
	errExpectedQuote = errors.New("expected closing single-quote")
)

// scanner lazily turns the byte source into tokens. It keeps no state of its
// own between calls beyond the shared input.
type scanner struct {
	in *fileinput.Input
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// next returns the next token, or io.EOF once the stream is exhausted.
func (sc *scanner) next() (token, error) {
	b, err := sc.in.ReadByte()
	for err == nil && isSpace(b) {
		b, err = sc.in.ReadByte()
	}
	if err == io.EOF {
		return token{}, io.EOF
	} else if err != nil {
		return token{}, err
	}

	switch b {
	case '\'':
		return sc.scanChar()
	case '"':
		return sc.scanString()
	}

	var sb strings.Builder
	sb.WriteByte(b)
	for {
		b, err = sc.in.ReadByte()
		if err == io.EOF || (err == nil && isSpace(b)) {
			break
		} else if err != nil {
			return token{}, err
		}
		sb.WriteByte(b)
	}
	return classify(sb.String()), nil
}

// scanChar reads the body of a 'c' literal; the opening quote has been
// consumed.
func (sc *scanner) scanChar() (token, error) {
	b, err := sc.in.ReadByte()
	if err == io.EOF {
		return token{}, errUnexpectedEOF
	} else if err != nil {
		return token{}, err
	}
	if b == '\\' {
		if b, err = sc.scanEscape(); err != nil {
			return token{}, err
		}
	}
	q, err := sc.in.ReadByte()
	if err == io.EOF {
		return token{}, errUnexpectedEOF
	} else if err != nil {
		return token{}, err
	} else if q != '\'' {
		return token{}, errExpectedQuote
	}
	return token{kind: tokenNumber, num: int64(b)}, nil
}

// scanString reads the body of a "..." literal; the opening quote has been
// consumed.
func (sc *scanner) scanString() (token, error) {
	str := []byte{}
	for {
		b, err := sc.in.ReadByte()
		if err == io.EOF {
			return token{}, errUnexpectedEOF
		} else if err != nil {
			return token{}, err
		}
		switch b {
		case '"':
			return token{kind: tokenString, str: str}, nil
		case '\\':
			if b, err = sc.scanEscape(); err != nil {
				return token{}, err
			}
		}
		str = append(str, b)
	}
}

// scanEscape reads the byte following a backslash inside a literal. Only the
// four named escapes translate; any other byte passes through.
func (sc *scanner) scanEscape() (byte, error) {
	b, err := sc.in.ReadByte()
	if err == io.EOF {
		return 0, errUnexpectedEOF
	} else if err != nil {
		return 0, err
	}
	switch b {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'b':
		return '\b', nil
	}
	return b, nil
}

// classify resolves an accumulated word: a signed decimal integer, a
// reserved keyword, or a user word, in that order. Sign bytes only commit to
// a number once the whole word has been seen, so "-5" is a number while
// "-foo" stays a word.
func classify(w string) token {
	if num, ok := parseNumber(w); ok {
		return token{kind: tokenNumber, num: num}
	}
	if kind, ok := keywords[w]; ok {
		return token{kind: kind}
	}
	return token{kind: tokenWord, name: w}
}

// parseNumber accepts an optional sign followed by one or more decimal
// digits. Magnitude accumulates in 64-bit signed arithmetic and silently
// wraps on overflow.
func parseNumber(w string) (int64, bool) {
	sign := int64(1)
	digits := w
	switch {
	case strings.HasPrefix(w, "+"):
		digits = w[1:]
	case strings.HasPrefix(w, "-"):
		sign, digits = -1, w[1:]
	}
	if digits == "" {
		return 0, false
	}
	var mag int64
	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return 0, false
		}
		mag = mag*10 + int64(digits[i]-'0')
	}
	return sign * mag, true
}
