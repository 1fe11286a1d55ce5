package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/stacker-lang/stacker/internal/byteio"
	"github.com/stacker-lang/stacker/internal/fileinput"
	"github.com/stacker-lang/stacker/internal/flushio"
	"github.com/stacker-lang/stacker/internal/mem"
)

// Engine walks expressions against a parameter stack, a return stack, a word
// dictionary, and a set of live heap allocations. It owns its state
// exclusively; a session is strictly synchronous.
type Engine struct {
	in  fileinput.Input
	out flushio.WriteFlusher

	logfn func(mess string, args ...interface{})

	stack  []int64
	rstack []int64
	dict   map[string][]expr
	order  []string
	heap   mem.Arena

	closers []io.Closer
}

var (
	errBye             = errors.New("bye")
	errStackUnderflow  = errors.New("stack underflow")
	errDivideByZero    = errors.New("divide by zero")
	errInvalidAlloc    = errors.New("expected positive allocation size")
	errReturnImbalance = errors.New("expected empty return stack")
)

type unknownWordError string
type redefinitionError string
type invalidFreeError int64
type leakError int

func (name unknownWordError) Error() string   { return fmt.Sprintf("unknown word %q", string(name)) }
func (name redefinitionError) Error() string  { return fmt.Sprintf("word already defined: %q", string(name)) }
func (addr invalidFreeError) Error() string   { return fmt.Sprintf("invalid free of address %v", int64(addr)) }
func (live leakError) Error() string          { return fmt.Sprintf("found memory leak: %v live allocations", int(live)) }

type haltError struct{ error }

func (err haltError) Error() string {
	if err.error != nil {
		return fmt.Sprintf("halted: %v", err.error)
	}
	return "halted"
}
func (err haltError) Unwrap() error { return err.error }

// halt flushes pending output and unwinds the whole evaluation with err.
func (eng *Engine) halt(err error) {
	// ignore any panics while trying to flush output
	func() {
		defer func() { recover() }()
		if eng.out != nil {
			if ferr := eng.out.Flush(); err == nil {
				err = ferr
			}
		}
	}()
	eng.logf("halt error: %v", err)
	panic(haltError{err})
}

func (eng *Engine) haltif(err error) {
	if err != nil {
		eng.halt(err)
	}
}

func (eng *Engine) logf(mess string, args ...interface{}) {
	if eng.logfn != nil {
		eng.logfn(mess, args...)
	}
}

func (eng *Engine) withLogPrefix(prefix string) func() {
	logfn := eng.logfn
	eng.logfn = func(mess string, args ...interface{}) {
		logfn(prefix+mess, args...)
	}
	return func() {
		eng.logfn = logfn
	}
}

// Close closes every input stream given as an io.Closer, drained or not.
func (eng *Engine) Close() (err error) {
	for i := len(eng.closers) - 1; i >= 0; i-- {
		if cerr := eng.closers[i].Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// run is the session loop: parse one top-level expression, evaluate it,
// repeat until the input drains. Shutdown invariants only run on the drained
// path; bye and fatal errors unwind past them.
func (eng *Engine) run(ctx context.Context) error {
	p := parser{scanner{&eng.in}}
	for {
		e, err := p.next()
		if err == io.EOF {
			return eng.shutdown()
		} else if err != nil {
			return err
		}
		eng.haltif(ctx.Err())
		eng.eval(ctx, e)
	}
}

// shutdown validates the end-of-session invariants: every allocation freed,
// return stack empty.
func (eng *Engine) shutdown() error {
	if eng.out != nil {
		if err := eng.out.Flush(); err != nil {
			return err
		}
	}
	if live := eng.heap.Live(); live > 0 {
		return leakError(live)
	}
	if len(eng.rstack) > 0 {
		return errReturnImbalance
	}
	return nil
}

func (eng *Engine) push(val int64) {
	eng.stack = append(eng.stack, val)
}

func (eng *Engine) pop() int64 {
	i := len(eng.stack) - 1
	if i < 0 {
		eng.halt(errStackUnderflow)
	}
	val := eng.stack[i]
	eng.stack = eng.stack[:i]
	return val
}

func (eng *Engine) pushr(val int64) {
	eng.rstack = append(eng.rstack, val)
}

func (eng *Engine) popr() int64 {
	i := len(eng.rstack) - 1
	if i < 0 {
		eng.halt(errStackUnderflow)
	}
	val := eng.rstack[i]
	eng.rstack = eng.rstack[:i]
	return val
}

func (eng *Engine) define(name string, body []expr) {
	if _, exists := eng.dict[name]; exists {
		eng.halt(redefinitionError(name))
	}
	if eng.dict == nil {
		eng.dict = make(map[string][]expr)
	}
	eng.dict[name] = body
	eng.order = append(eng.order, name)
}

// call runs a user word inside its own return-stack frame: the caller's
// return stack is set aside, the body runs against a fresh one, and the
// frame must drain before the caller's is restored.
func (eng *Engine) call(ctx context.Context, name string) {
	body, defined := eng.dict[name]
	if !defined {
		eng.halt(unknownWordError(name))
	}
	if eng.logfn != nil {
		defer eng.withLogPrefix("	")()
	}
	saved := eng.rstack
	eng.rstack = nil
	eng.evalBody(ctx, body)
	if len(eng.rstack) != 0 {
		eng.halt(errReturnImbalance)
	}
	eng.rstack = saved
}

func (eng *Engine) evalBody(ctx context.Context, body []expr) {
	for _, e := range body {
		eng.eval(ctx, e)
	}
}

func (eng *Engine) eval(ctx context.Context, e expr) {
	if eng.logfn != nil {
		eng.logf("eval %v -- s:%v r:%v", e, eng.stack, eng.rstack)
	}

	switch e.kind {

	case exprNumber:
		eng.push(e.num)
	case exprString:
		addr := eng.heap.Alloc(int64(len(e.str)))
		eng.haltif(eng.heap.Copy(addr, e.str))
		eng.push(addr)
		eng.push(int64(len(e.str)))
	case exprWord:
		eng.call(ctx, e.name)

	case exprAdd:
		b, a := eng.pop(), eng.pop()
		eng.push(a + b)
	case exprSub:
		b, a := eng.pop(), eng.pop()
		eng.push(a - b)
	case exprMul:
		b, a := eng.pop(), eng.pop()
		eng.push(a * b)
	case exprDiv:
		b, a := eng.pop(), eng.pop()
		if b == 0 {
			eng.halt(errDivideByZero)
		}
		eng.push(a / b)
	case exprRem:
		b, a := eng.pop(), eng.pop()
		if b == 0 {
			eng.halt(errDivideByZero)
		}
		eng.push(a % b)
	case exprMod:
		b, a := eng.pop(), eng.pop()
		if b == 0 {
			eng.halt(errDivideByZero)
		}
		eng.push((a%b + b) % b)

	case exprLess:
		b, a := eng.pop(), eng.pop()
		eng.push(boolInt64(a < b))
	case exprMore:
		b, a := eng.pop(), eng.pop()
		eng.push(boolInt64(a > b))
	case exprEqual:
		b, a := eng.pop(), eng.pop()
		eng.push(boolInt64(a == b))
	case exprNotEqual:
		b, a := eng.pop(), eng.pop()
		eng.push(boolInt64(a != b))

	case exprAnd:
		b, a := eng.pop(), eng.pop()
		eng.push(a & b)
	case exprOr:
		b, a := eng.pop(), eng.pop()
		eng.push(a | b)
	case exprInvert:
		eng.push(^eng.pop())

	case exprEmit:
		eng.writeByte(byte(eng.pop()))
	case exprKey:
		eng.push(eng.readKey())

	case exprDup:
		a := eng.pop()
		eng.push(a)
		eng.push(a)
	case exprDrop:
		eng.pop()
	case exprSwap:
		b, a := eng.pop(), eng.pop()
		eng.push(b)
		eng.push(a)
	case exprOver:
		b, a := eng.pop(), eng.pop()
		eng.push(a)
		eng.push(b)
		eng.push(a)
	case exprRot:
		c, b, a := eng.pop(), eng.pop(), eng.pop()
		eng.push(b)
		eng.push(c)
		eng.push(a)

	case exprToR:
		eng.pushr(eng.pop())
	case exprRFrom:
		eng.push(eng.popr())
	case exprRFetch:
		a := eng.popr()
		eng.pushr(a)
		eng.push(a)

	case exprStore:
		b, a := eng.pop(), eng.pop()
		eng.haltif(eng.heap.Stor(b, a))
	case exprFetch:
		val, err := eng.heap.Load(eng.pop())
		eng.haltif(err)
		eng.push(val)
	case exprCStore:
		b, a := eng.pop(), eng.pop()
		eng.haltif(eng.heap.StorByte(b, byte(a)))
	case exprCFetch:
		val, err := eng.heap.LoadByte(eng.pop())
		eng.haltif(err)
		eng.push(int64(val))
	case exprAlloc:
		size := eng.pop()
		if size <= 0 {
			eng.halt(errInvalidAlloc)
		}
		eng.push(eng.heap.Alloc(size))
	case exprFree:
		addr := eng.pop()
		if !eng.heap.Free(addr) {
			eng.halt(invalidFreeError(addr))
		}

	case exprDotS:
		fmt.Fprintf(eng.out, "<%d> ", len(eng.stack))
		for _, val := range eng.stack {
			fmt.Fprintf(eng.out, "%d ", val)
		}
	case exprBye:
		eng.halt(errBye)

	case exprDefine:
		eng.define(e.name, e.body)

	case exprIfThen:
		if int64Bool(eng.pop()) {
			eng.evalBody(ctx, e.body)
		}
	case exprIfElseThen:
		if int64Bool(eng.pop()) {
			eng.evalBody(ctx, e.body)
		} else {
			eng.evalBody(ctx, e.alt)
		}

	case exprBeginUntil:
		for {
			eng.haltif(ctx.Err())
			eng.evalBody(ctx, e.body)
			if int64Bool(eng.pop()) {
				break
			}
		}
	case exprBeginWhileRepeat:
		eng.evalBody(ctx, e.body)
		for int64Bool(eng.pop()) {
			eng.haltif(ctx.Err())
			eng.evalBody(ctx, e.alt)
			eng.evalBody(ctx, e.body)
		}
	case exprBeginAgain:
		for {
			eng.haltif(ctx.Err())
			eng.evalBody(ctx, e.body)
		}

	default:
		eng.halt(fmt.Errorf("unhandled expression %v", e))
	}
}

func (eng *Engine) writeByte(b byte) {
	if err := byteio.WriteByte(eng.out, b); err != nil {
		eng.halt(err)
	}
}

// readKey reads one byte from the input source, flushing pending output
// first so a prompt lands before the read blocks. End of input reads -1.
func (eng *Engine) readKey() int64 {
	if err := eng.out.Flush(); err != nil {
		eng.halt(err)
	}
	b, err := eng.in.ReadByte()
	if err == io.EOF {
		return -1
	} else if err != nil {
		eng.halt(err)
	}
	return int64(b)
}

// pushArgs copies program arguments into fresh heap strings, pushing the
// address and length of each followed by the argument count. The receiving
// program owns the buffers.
func (eng *Engine) pushArgs(args []string) {
	for _, arg := range args {
		addr := eng.heap.Alloc(int64(len(arg)))
		eng.haltif(eng.heap.Copy(addr, []byte(arg)))
		eng.push(addr)
		eng.push(int64(len(arg)))
	}
	eng.push(int64(len(args)))
}

func boolInt64(b bool) int64 {
	if b {
		return ^int64(0)
	}
	return 0
}

func int64Bool(val int64) bool { return val != 0 }
