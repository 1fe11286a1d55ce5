package main

import (
	"bytes"
	"io"
)

// coreKernel is the builtin copy of the core.forth prelude, used whenever no
// prelude file sits next to the executable. Kept as source rather than
// pre-parsed expressions so the file on disk can override it wholesale.
var coreKernel = coreSource{}

type coreSource struct{}

func (coreSource) Name() string { return "core.forth" }

func (coreSource) WriteTo(w io.Writer) (n int64, err error) {
	var buf bytes.Buffer
	line := func(parts ...string) {
		if err != nil {
			return
		}
		for _, s := range parts {
			buf.WriteString(s)
		}
		buf.WriteByte('\n')
		var m int64
		m, err = buf.WriteTo(w)
		n += m
	}

	// Counting and truth helpers first; everything below leans on them.
	line(`: 1+ 1 + ;`)
	line(`: 1- 1 - ;`)
	line(`: 0= 0 = ;`)
	line(`: 0< 0 < ;`)
	line(`: negate 0 swap - ;`)

	// Stack shuffles beyond the primitives.
	line(`: nip swap drop ;`)
	line(`: tuck swap over ;`)
	line(`: 2dup over over ;`)
	line(`: 2drop drop drop ;`)

	line(`: abs dup 0< if negate then ;`)
	line(`: min 2dup < if drop else nip then ;`)
	line(`: max 2dup < if nip else drop then ;`)

	// Output words.
	line(`: cr 10 emit ;`)
	line(`: space 32 emit ;`)
	line(`: spaces begin dup while space 1- repeat drop ;`)

	// type prints an addr/len string byte by byte; the caller keeps
	// ownership of the buffer.
	line(`: type begin dup while swap dup c@ emit 1+ swap 1- repeat 2drop ;`)

	// Cell-sized address arithmetic for @ and ! chains.
	line(`: cell 8 ;`)
	line(`: cell+ cell + ;`)

	return n, err
}
