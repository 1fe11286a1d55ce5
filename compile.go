package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/stacker-lang/stacker/internal/fileinput"
)

// Compiler lowers the same expression stream the Engine walks into a
// self-contained C program. Word definitions become numbered functions;
// everything else appends straight-line statements to the growing main body.
type Compiler struct {
	decls strings.Builder
	defs  strings.Builder
	main  strings.Builder
	words wordIndex
}

// wordIndex hands out a fresh integer suffix per defined word, so emitted
// function names never collide with source spellings.
type wordIndex struct {
	ids  map[string]int
	next int
}

func (wi *wordIndex) lookup(name string) (int, bool) {
	id, defined := wi.ids[name]
	return id, defined
}

func (wi *wordIndex) define(name string) (int, error) {
	if _, defined := wi.ids[name]; defined {
		return 0, redefinitionError(name)
	}
	if wi.ids == nil {
		wi.ids = make(map[string]int)
	}
	id := wi.next
	wi.next++
	wi.ids[name] = id
	return id, nil
}

// NewCompiler creates an empty Compiler. Compile may be called any number of
// times before Write; definitions accumulate across calls, which is how the
// prelude and the program share one dictionary.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses the given source to exhaustion, appending compiled
// top-level expressions to the main body.
func (comp *Compiler) Compile(r io.Reader) error {
	var in fileinput.Input
	in.Queue = []io.Reader{r}
	p := parser{scanner{&in}}
	for {
		e, err := p.next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := comp.compileExpr(e, &comp.main); err != nil {
			return err
		}
	}
}

func (comp *Compiler) compileBody(body []expr, dst *strings.Builder) error {
	for _, e := range body {
		if err := comp.compileExpr(e, dst); err != nil {
			return err
		}
	}
	return nil
}

func (comp *Compiler) compileExpr(e expr, dst *strings.Builder) error {
	switch e.kind {

	case exprNumber:
		fmt.Fprintf(dst, "// Number\n"+
			"push(&ps, INT64_C(%d));\n", e.num)
	case exprString:
		fmt.Fprintf(dst, "// String\n"+
			"{\n"+
			"int64_t addr = stk_alloc(%d);\n", len(e.str))
		for i, b := range e.str {
			fmt.Fprintf(dst, "stor1(addr + %d, %d);\n", i, b)
		}
		fmt.Fprintf(dst, "push(&ps, addr);\n"+
			"push(&ps, %d);\n"+
			"}\n", len(e.str))
	case exprWord:
		id, defined := comp.words.lookup(e.name)
		if !defined {
			return unknownWordError(e.name)
		}
		fmt.Fprintf(dst, "// Word %s\n"+
			"word_%d();\n", e.name, id)

	case exprAdd:
		comp.binaryOp(dst, "Add", "a + b")
	case exprSub:
		comp.binaryOp(dst, "Sub", "a - b")
	case exprMul:
		comp.binaryOp(dst, "Mul", "a * b")
	case exprDiv:
		comp.divideOp(dst, "Div", "a / b")
	case exprRem:
		comp.divideOp(dst, "Rem", "a % b")
	case exprMod:
		comp.divideOp(dst, "Mod", "(a % b + b) % b")

	case exprLess:
		comp.binaryOp(dst, "Less", "bool2int(a < b)")
	case exprMore:
		comp.binaryOp(dst, "More", "bool2int(a > b)")
	case exprEqual:
		comp.binaryOp(dst, "Equal", "bool2int(a == b)")
	case exprNotEqual:
		comp.binaryOp(dst, "NotEqual", "bool2int(a != b)")

	case exprAnd:
		comp.binaryOp(dst, "And", "a & b")
	case exprOr:
		comp.binaryOp(dst, "Or", "a | b")
	case exprInvert:
		dst.WriteString("// Invert\n" +
			"push(&ps, ~pop(&ps));\n")

	case exprEmit:
		dst.WriteString("// Emit\n" +
			"putchar((int)(pop(&ps) & 0xff));\n")
	case exprKey:
		dst.WriteString("// Key\n" +
			"push(&ps, stk_key());\n")

	case exprDup:
		dst.WriteString("// Dup\n" +
			"{\n" +
			"int64_t a = pop(&ps);\n" +
			"push(&ps, a);\n" +
			"push(&ps, a);\n" +
			"}\n")
	case exprDrop:
		dst.WriteString("// Drop\n" +
			"pop(&ps);\n")
	case exprSwap:
		dst.WriteString("// Swap\n" +
			"{\n" +
			"int64_t b = pop(&ps);\n" +
			"int64_t a = pop(&ps);\n" +
			"push(&ps, b);\n" +
			"push(&ps, a);\n" +
			"}\n")
	case exprOver:
		dst.WriteString("// Over\n" +
			"{\n" +
			"int64_t b = pop(&ps);\n" +
			"int64_t a = pop(&ps);\n" +
			"push(&ps, a);\n" +
			"push(&ps, b);\n" +
			"push(&ps, a);\n" +
			"}\n")
	case exprRot:
		dst.WriteString("// Rot\n" +
			"{\n" +
			"int64_t c = pop(&ps);\n" +
			"int64_t b = pop(&ps);\n" +
			"int64_t a = pop(&ps);\n" +
			"push(&ps, b);\n" +
			"push(&ps, c);\n" +
			"push(&ps, a);\n" +
			"}\n")

	case exprToR:
		dst.WriteString("// ToR\n" +
			"push(&rs, pop(&ps));\n")
	case exprRFrom:
		dst.WriteString("// RFrom\n" +
			"push(&ps, pop(&rs));\n")
	case exprRFetch:
		dst.WriteString("// RFetch\n" +
			"{\n" +
			"int64_t a = pop(&rs);\n" +
			"push(&rs, a);\n" +
			"push(&ps, a);\n" +
			"}\n")

	case exprStore:
		dst.WriteString("// Store\n" +
			"{\n" +
			"int64_t b = pop(&ps);\n" +
			"int64_t a = pop(&ps);\n" +
			"stor8(b, a);\n" +
			"}\n")
	case exprFetch:
		dst.WriteString("// Fetch\n" +
			"push(&ps, load8(pop(&ps)));\n")
	case exprCStore:
		dst.WriteString("// CStore\n" +
			"{\n" +
			"int64_t b = pop(&ps);\n" +
			"int64_t a = pop(&ps);\n" +
			"stor1(b, a);\n" +
			"}\n")
	case exprCFetch:
		dst.WriteString("// CFetch\n" +
			"push(&ps, load1(pop(&ps)));\n")
	case exprAlloc:
		dst.WriteString("// Alloc\n" +
			"{\n" +
			"int64_t size = pop(&ps);\n" +
			"if (size <= 0) { fatal(\"expected positive allocation size\"); }\n" +
			"push(&ps, stk_alloc(size));\n" +
			"}\n")
	case exprFree:
		dst.WriteString("// Free\n" +
			"stk_free(pop(&ps));\n")

	case exprDotS:
		dst.WriteString("// DotS\n" +
			"dot_s();\n")
	case exprBye:
		dst.WriteString("// Bye\n" +
			"exit(EXIT_SUCCESS);\n")

	case exprDefine:
		id, err := comp.words.define(e.name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&comp.decls, "// Declare %s\n"+
			"void word_%d(void);\n", e.name, id)
		fmt.Fprintf(&comp.defs, "// Define %s\n"+
			"void word_%d(void) {\n"+
			"stack saved = rs;\n"+
			"rs = (stack){0};\n", e.name, id)
		if err := comp.compileBody(e.body, &comp.defs); err != nil {
			return err
		}
		comp.defs.WriteString("if (rs.len != 0) { fatal(\"expected empty return stack\"); }\n" +
			"free(rs.data);\n" +
			"rs = saved;\n" +
			"}\n")

	case exprIfThen:
		dst.WriteString("// IfThen\n" +
			"if (int2bool(pop(&ps))) {\n")
		if err := comp.compileBody(e.body, dst); err != nil {
			return err
		}
		dst.WriteString("}\n")
	case exprIfElseThen:
		dst.WriteString("// IfElseThen\n" +
			"if (int2bool(pop(&ps))) {\n")
		if err := comp.compileBody(e.body, dst); err != nil {
			return err
		}
		dst.WriteString("} else {\n")
		if err := comp.compileBody(e.alt, dst); err != nil {
			return err
		}
		dst.WriteString("}\n")

	case exprBeginUntil:
		dst.WriteString("// BeginUntil\n" +
			"do {\n")
		if err := comp.compileBody(e.body, dst); err != nil {
			return err
		}
		dst.WriteString("} while (!int2bool(pop(&ps)));\n")
	case exprBeginWhileRepeat:
		dst.WriteString("// BeginWhileRepeat\n")
		if err := comp.compileBody(e.body, dst); err != nil {
			return err
		}
		dst.WriteString("while (int2bool(pop(&ps))) {\n")
		if err := comp.compileBody(e.alt, dst); err != nil {
			return err
		}
		if err := comp.compileBody(e.body, dst); err != nil {
			return err
		}
		dst.WriteString("}\n")
	case exprBeginAgain:
		dst.WriteString("// BeginAgain\n" +
			"for (;;) {\n")
		if err := comp.compileBody(e.body, dst); err != nil {
			return err
		}
		dst.WriteString("}\n")

	default:
		return fmt.Errorf("unhandled expression %v", e)
	}
	return nil
}

func (comp *Compiler) binaryOp(dst *strings.Builder, name, result string) {
	fmt.Fprintf(dst, "// %s\n"+
		"{\n"+
		"int64_t b = pop(&ps);\n"+
		"int64_t a = pop(&ps);\n"+
		"push(&ps, %s);\n"+
		"}\n", name, result)
}

func (comp *Compiler) divideOp(dst *strings.Builder, name, result string) {
	fmt.Fprintf(dst, "// %s\n"+
		"{\n"+
		"int64_t b = pop(&ps);\n"+
		"int64_t a = pop(&ps);\n"+
		"if (b == 0) { fatal(\"divide by zero\"); }\n"+
		"push(&ps, %s);\n"+
		"}\n", name, result)
}

// compilerPrologue carries the emitted runtime: the stack type, the live
// allocation registry backing alloc/free, memory accessors, and the IO
// helpers. The emitted program refers only to this, never to the
// interpreter.
const compilerPrologue = `// HEADER
#include <inttypes.h>
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>

typedef struct {
int64_t *data;
size_t len;
size_t cap;
} stack;

void push(stack *s, int64_t v) {
if (s->len == s->cap) {
s->cap = s->cap ? s->cap * 2 : 64;
s->data = realloc(s->data, s->cap * sizeof(int64_t));
if (s->data == NULL) { fprintf(stderr, "out of memory\n"); exit(EXIT_FAILURE); }
}
s->data[s->len++] = v;
}

int64_t pop(stack *s) {
if (s->len == 0) { fprintf(stderr, "stack underflow\n"); exit(EXIT_FAILURE); }
return s->data[--s->len];
}

stack ps;
stack rs;
stack live;

int64_t bool2int(int b) { return b ? ~INT64_C(0) : INT64_C(0); }
int int2bool(int64_t v) { return v != 0; }

void fatal(const char *mess) {
fprintf(stderr, "%s\n", mess);
exit(EXIT_FAILURE);
}

int64_t stk_alloc(int64_t size) {
void *p = malloc(size > 0 ? (size_t)size : 1);
if (p == NULL) { fatal("out of memory"); }
int64_t addr = (int64_t)(intptr_t)p;
push(&live, addr);
return addr;
}

void stk_free(int64_t addr) {
for (size_t i = 0; i < live.len; i++) {
if (live.data[i] == addr) {
live.data[i] = live.data[--live.len];
free((void *)(intptr_t)addr);
return;
}
}
fatal("invalid free");
}

int64_t load8(int64_t addr) { return *(int64_t *)(intptr_t)addr; }
void stor8(int64_t addr, int64_t v) { *(int64_t *)(intptr_t)addr = v; }
int64_t load1(int64_t addr) { return *(unsigned char *)(intptr_t)addr; }
void stor1(int64_t addr, int64_t v) { *(unsigned char *)(intptr_t)addr = (unsigned char)v; }

int64_t stk_key(void) {
fflush(stdout);
int c = getchar();
return c == EOF ? -1 : c;
}

void dot_s(void) {
printf("<%zu> ", ps.len);
for (size_t i = 0; i < ps.len; i++) { printf("%" PRId64 " ", ps.data[i]); }
}

`

// Write assembles the emitted program: prologue, forward declarations, word
// definitions, then main around the straight-line body. Like the engine's
// drained path, main fails on live allocations or a non-empty return stack.
func (comp *Compiler) Write(w io.Writer) error {
	for _, part := range []string{
		compilerPrologue,
		comp.decls.String(),
		comp.defs.String(),
		"// BODY\n" +
			"int main(int argc, char **argv) {\n",
		comp.main.String(),
		"// TAIL\n" +
			"if (live.len > 0) { fatal(\"found memory leak\"); }\n" +
			"if (rs.len > 0) { fatal(\"expected empty return stack\"); }\n" +
			"return EXIT_SUCCESS;\n" +
			"}\n",
	} {
		if _, err := io.WriteString(w, part); err != nil {
			return err
		}
	}
	return nil
}
