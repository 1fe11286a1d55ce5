package main

import (
	"bytes"
	"io"

	"github.com/stacker-lang/stacker/internal/flushio"
)

// Option configures an Engine at construction time.
type Option interface{ apply(eng *Engine) }

var defaults = []Option{
	withOutput(io.Discard),
}

func (eng *Engine) apply(opts ...Option) {
	for _, opt := range defaults {
		if opt != nil {
			opt.apply(eng)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(eng)
		}
	}
}

type withLogfn func(mess string, args ...interface{})

func (logfn withLogfn) apply(eng *Engine) {
	eng.logfn = logfn
}

type inputOption struct{ io.Reader }
type inputWriterOption struct{ io.WriterTo }
type outputOption struct{ io.Writer }
type teeOption struct{ io.Writer }

func withInput(r io.Reader) inputOption               { return inputOption{r} }
func withInputWriter(w io.WriterTo) inputWriterOption { return inputWriterOption{w} }
func withOutput(w io.Writer) outputOption             { return outputOption{w} }
func withTee(w io.Writer) teeOption                   { return teeOption{w} }

// Input readers queue in option order, so a prelude, a program file, and an
// interactive stream chain into one session.
func (i inputOption) apply(eng *Engine) {
	eng.in.Queue = append(eng.in.Queue, i.Reader)
	if cl, ok := i.Reader.(io.Closer); ok {
		eng.closers = append(eng.closers, cl)
	}
}

// An input writer is drained into a buffer up front, keeping its name if it
// has one; used for sources that live in the binary.
func (iw inputWriterOption) apply(eng *Engine) {
	var buf bytes.Buffer
	if _, err := iw.WriteTo(&buf); err != nil {
		panic(haltError{err})
	}
	r := io.Reader(&buf)
	if nom, ok := iw.WriterTo.(interface{ Name() string }); ok {
		r = NamedReader(nom.Name(), r)
	}
	inputOption{r}.apply(eng)
}

func (o outputOption) apply(eng *Engine) {
	if eng.out != nil {
		eng.out.Flush()
	}
	eng.out = flushio.NewWriteFlusher(o.Writer)
}

func (o teeOption) apply(eng *Engine) {
	eng.out = flushio.WriteFlushers(eng.out, flushio.NewWriteFlusher(o.Writer))
}

// NamedReader attaches a name to a reader so input locations can refer to it.
func NamedReader(name string, r io.Reader) io.Reader {
	return namedReader{r, name}
}

type namedReader struct {
	io.Reader
	name string
}

func (nr namedReader) Name() string { return nr.name }
