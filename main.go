package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/stacker-lang/stacker/internal/logio"
)

func main() {
	var timeout time.Duration
	var trace bool
	flag.DurationVar(&timeout, "timeout", 0, "specify a time limit")
	flag.BoolVar(&trace, "trace", false, "enable trace logging")
	flag.Parse()

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var log logio.Logger
	log.SetOutput(os.Stderr)

	args := flag.Args()
	switch {
	case len(args) == 0:
		interpret(ctx, &log, "", nil, trace)
	case args[0] == "interp" && len(args) >= 2:
		interpret(ctx, &log, args[1], args[2:], trace)
	case args[0] == "comp" && len(args) == 2:
		transpile(&log, args[1])
	default:
		log.Errorf("unknown command %q", strings.Join(args, " "))
	}
	os.Exit(log.ExitCode())
}

// interpret runs one session over the prelude, an optional program file, and
// finally standard input. The pieces chain through the engine's input queue,
// so a program that ends without bye falls through to the interactive
// stream.
func interpret(ctx context.Context, log *logio.Logger, path string, progArgs []string, trace bool) {
	opts := []Option{
		preludeOption(),
		WithOutput(os.Stdout),
	}
	if trace {
		opts = append(opts, WithLogf(log.Leveledf("TRACE")))
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			log.Errorf("%v", err)
			return
		}
		opts = append(opts, WithInput(f))
	}

	stdin, err := stdinSource()
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	opts = append(opts, WithInput(stdin))

	eng := New(opts...)
	defer eng.Close()
	if len(progArgs) > 0 {
		eng.pushArgs(progArgs)
	}
	log.ErrorIf(eng.Run(ctx))
}

// transpile compiles the prelude and the given program, writing the emitted
// C program next to the source as <path>.c.
func transpile(log *logio.Logger, path string) {
	comp := NewCompiler()
	if err := comp.Compile(preludeReader()); err != nil {
		log.Errorf("%v", err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	err = comp.Compile(f)
	f.Close()
	if err != nil {
		log.Errorf("%v", err)
		return
	}

	out, err := os.Create(path + ".c")
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	err = comp.Write(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	log.ErrorIf(err)
}

// preludeReader prefers a core.forth file sitting next to the executable,
// falling back to the builtin kernel copy.
func preludeReader() io.Reader {
	if exe, err := os.Executable(); err == nil {
		if f, err := os.Open(filepath.Join(filepath.Dir(exe), "core.forth")); err == nil {
			return f
		}
	}
	var buf bytes.Buffer
	if _, err := coreKernel.WriteTo(&buf); err != nil {
		panic(err)
	}
	return NamedReader(coreKernel.Name(), &buf)
}

func preludeOption() Option {
	return WithInput(preludeReader())
}

// stdinSource wraps standard input, adding line editing when it is a
// terminal.
func stdinSource() (io.Reader, error) {
	if !readline.DefaultIsTerminal() {
		return NamedReader("<stdin>", os.Stdin), nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		InterruptPrompt:   "^C",
		EOFPrompt:         "bye",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("readline: %w", err)
	}
	return &replReader{rl: rl}, nil
}

// replReader adapts a readline instance into the byte stream the engine
// scans: each accepted line arrives with its line feed restored, interrupts
// clear the current line, and editor EOF ends the stream.
type replReader struct {
	rl  *readline.Instance
	buf []byte
}

func (r *replReader) Name() string { return "<stdin>" }

func (r *replReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err != nil {
			return 0, io.EOF
		}
		r.buf = append(r.buf, line...)
		r.buf = append(r.buf, '\n')
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *replReader) Close() error { return r.rl.Close() }
