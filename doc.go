/* Package main implements stacker, an interpreter and C transpiler for a
small stack-oriented concatenative language in the Forth tradition.

A program is a stream of whitespace-separated tokens. Execution works two
64-bit integer stacks, a parameter stack and a return stack, along with a
dictionary of user-defined words and a manually managed heap:

	: square dup * ;
	5 square emit

The language covers arithmetic (+ - * / rem mod), comparison (< > = <>),
bitwise logic (and or invert), stack shuffles (dup drop swap over rot),
return-stack transfers (>r r> r@), character IO (emit key), raw memory
(@ ! c@ c! alloc free), conditionals (if ... else ... then), loops
(begin ... until, begin ... while ... repeat, begin ... again), definitions
(: name ... ;), diagnostics (.s), and bye.

The front end is shared: a byte-oriented tokenizer feeds a recursive-descent
parser that produces one fully-nested expression per call. The Engine walks
those expressions directly; the Compiler instead lowers them to a
self-contained C program, one function per defined word.

The driver evaluates a core.forth prelude before anything else. With no
arguments it continues with standard input (through a line editor on a
terminal); `interp path` evaluates a file first and falls through to
standard input unless the program ends with bye; `comp path` writes the
transpiled program to path.c.

A session ends cleanly when input drains or the program says bye. On the
drained path the engine insists that every allocation has been freed and
that the return stack is empty; bye skips both checks.
*/
package main
