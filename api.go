package main

import (
	"context"
	"errors"
	"io"

	"github.com/stacker-lang/stacker/internal/panicerr"
)

// New creates an Engine with the given options applied over the defaults.
func New(opts ...Option) *Engine {
	var eng Engine
	eng.apply(opts...)
	return &eng
}

// Run evaluates the queued input sources until they drain or the program
// says bye, whichever comes first. Internal halts surface as errors; a
// drained session additionally enforces the shutdown invariants (no live
// allocations, empty return stack). A bye exit skips those checks and
// reports success.
func (eng *Engine) Run(ctx context.Context) error {
	err := panicerr.Recover("engine", func() error {
		return eng.run(ctx)
	})
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, errBye) {
		return nil
	}
	var halted haltError
	if errors.As(err, &halted) {
		err = halted.error
	}
	return err
}

func WithInput(r io.Reader) Option         { return withInput(r) }
func WithInputWriter(w io.WriterTo) Option { return withInputWriter(w) }
func WithOutput(w io.Writer) Option        { return withOutput(w) }
func WithTee(w io.Writer) Option           { return withTee(w) }

func WithLogf(logfn func(mess string, args ...interface{})) Option { return withLogfn(logfn) }
