package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineTestCases []engineTestCase

func (engts engineTestCases) run(t *testing.T) {
	for _, engt := range engts {
		if !t.Run(engt.name, engt.run) {
			return
		}
	}
}

func engTest(name string) (engt engineTestCase) {
	engt.name = name
	return engt
}

type optFunc func(eng *Engine)

func (f optFunc) apply(eng *Engine) { f(eng) }

type engineTestCase struct {
	name       string
	opts       []Option
	expect     []func(t *testing.T, eng *Engine)
	timeout    time.Duration
	wantErr    error
	wantErrStr string
	wantOutput *string
}

func (engt engineTestCase) withOptions(opts ...Option) engineTestCase {
	engt.opts = append(engt.opts, opts...)
	return engt
}

func (engt engineTestCase) withInput(input string) engineTestCase {
	return engt.withOptions(WithInput(NamedReader(engt.name+"/input", strings.NewReader(input))))
}

func (engt engineTestCase) withKernel() engineTestCase {
	return engt.withOptions(WithInputWriter(coreKernel))
}

func (engt engineTestCase) withProgArgs(args ...string) engineTestCase {
	return engt.withOptions(optFunc(func(eng *Engine) {
		eng.pushArgs(args)
	}))
}

func (engt engineTestCase) withTimeout(timeout time.Duration) engineTestCase {
	engt.timeout = timeout
	return engt
}

func (engt engineTestCase) expectError(err error) engineTestCase {
	engt.wantErr = err
	return engt
}

func (engt engineTestCase) expectErrorContaining(mess string) engineTestCase {
	engt.wantErrStr = mess
	return engt
}

func (engt engineTestCase) expectOutput(output string) engineTestCase {
	engt.wantOutput = &output
	return engt
}

func (engt engineTestCase) expectStack(values ...int64) engineTestCase {
	engt.expect = append(engt.expect, func(t *testing.T, eng *Engine) {
		if values == nil {
			values = []int64{}
		}
		assert.Equal(t, values, append([]int64{}, eng.stack...), "expected stack values")
	})
	return engt
}

func (engt engineTestCase) expectRStack(values ...int64) engineTestCase {
	engt.expect = append(engt.expect, func(t *testing.T, eng *Engine) {
		if values == nil {
			values = []int64{}
		}
		assert.Equal(t, values, append([]int64{}, eng.rstack...), "expected return stack values")
	})
	return engt
}

func (engt engineTestCase) expectHeap(live int) engineTestCase {
	engt.expect = append(engt.expect, func(t *testing.T, eng *Engine) {
		assert.Equal(t, live, eng.heap.Live(), "expected live allocations")
	})
	return engt
}

func (engt engineTestCase) expectDefined(names ...string) engineTestCase {
	engt.expect = append(engt.expect, func(t *testing.T, eng *Engine) {
		for _, name := range names {
			assert.Contains(t, eng.dict, name, "expected defined word")
		}
	})
	return engt
}

func (engt engineTestCase) expectDump(dump string) engineTestCase {
	engt.expect = append(engt.expect, func(t *testing.T, eng *Engine) {
		var buf bytes.Buffer
		engineDumper{eng, &buf}.dump()
		assert.Equal(t, dump, buf.String(), "expected engine dump")
	})
	return engt
}

func (engt engineTestCase) run(t *testing.T) {
	var out bytes.Buffer
	opts := append([]Option{WithOutput(&out)}, engt.opts...)
	eng := New(opts...)
	defer eng.Close()

	ctx := context.Background()
	if engt.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, engt.timeout)
		defer cancel()
	}

	err := eng.Run(ctx)
	switch {
	case engt.wantErr != nil:
		require.ErrorIs(t, err, engt.wantErr, "expected run error")
	case engt.wantErrStr != "":
		require.Error(t, err, "expected run error")
		assert.Contains(t, err.Error(), engt.wantErrStr, "expected run error text")
	default:
		require.NoError(t, err, "unexpected run error")
	}

	if engt.wantOutput != nil {
		assert.Equal(t, *engt.wantOutput, out.String(), "expected output")
	}
	for _, expect := range engt.expect {
		expect(t, eng)
	}
}

func TestEngine_scenarios(t *testing.T) {
	engineTestCases{
		engTest("add emit").
			withInput(`1 2 + emit`).
			expectOutput("\x03").
			expectStack(),
		engTest("define square").
			withInput(`: square dup * ; 5 square emit`).
			expectOutput("\x19").
			expectDefined("square"),
		engTest("if else false").
			withInput(`0 if 'A' emit else 'B' emit then`).
			expectOutput("B"),
		engTest("if else true").
			withInput(`1 if 'A' emit else 'B' emit then`).
			expectOutput("A"),
		engTest("begin until count").
			withInput(`: count 0 begin dup emit 1 + dup 3 = until drop ; count`).
			expectOutput("\x00\x01\x02").
			expectStack(),
		engTest("alloc store fetch free").
			withInput(`8 alloc dup 65 swap c! dup c@ emit free`).
			expectOutput("A").
			expectHeap(0),
		engTest("return stack transfer").
			withInput(`1 >r 2 r> + emit`).
			expectOutput("\x03").
			expectRStack(),
	}.run(t)
}

func TestEngine_arithmetic(t *testing.T) {
	engineTestCases{
		engTest("add").withInput(`3 4 + .s`).expectOutput("<1> 7 "),
		engTest("sub").withInput(`3 4 - .s`).expectOutput("<1> -1 "),
		engTest("mul").withInput(`-3 4 * .s`).expectOutput("<1> -12 "),
		engTest("div truncates").withInput(`7 2 / .s`).expectOutput("<1> 3 "),
		engTest("div truncates negative").withInput(`-7 2 / .s`).expectOutput("<1> -3 "),
		engTest("rem sign follows dividend").withInput(`-7 2 rem .s`).expectOutput("<1> -1 "),
		engTest("mod is non-negative").withInput(`-7 2 mod .s`).expectOutput("<1> 1 "),
		engTest("div by zero").withInput(`1 0 /`).expectError(errDivideByZero),
		engTest("rem by zero").withInput(`1 0 rem`).expectError(errDivideByZero),
		engTest("mod by zero").withInput(`1 0 mod`).expectError(errDivideByZero),
	}.run(t)
}

func TestEngine_comparisons(t *testing.T) {
	engineTestCases{
		engTest("less true").withInput(`1 2 < .s`).expectOutput("<1> -1 "),
		engTest("less false").withInput(`2 1 < .s`).expectOutput("<1> 0 "),
		engTest("more").withInput(`2 1 > .s`).expectOutput("<1> -1 "),
		engTest("equal").withInput(`2 2 = .s`).expectOutput("<1> -1 "),
		engTest("not equal").withInput(`2 3 <> .s`).expectOutput("<1> -1 "),
		engTest("and").withInput(`6 3 and .s`).expectOutput("<1> 2 "),
		engTest("or").withInput(`6 3 or .s`).expectOutput("<1> 7 "),
		engTest("invert").withInput(`0 invert .s`).expectOutput("<1> -1 "),
	}.run(t)
}

func TestEngine_shuffles(t *testing.T) {
	engineTestCases{
		engTest("dup").withInput(`1 dup .s`).expectOutput("<2> 1 1 "),
		engTest("drop").withInput(`1 2 drop .s`).expectOutput("<1> 1 "),
		engTest("swap").withInput(`1 2 swap .s`).expectOutput("<2> 2 1 "),
		engTest("over").withInput(`1 2 over .s`).expectOutput("<3> 1 2 1 "),
		engTest("rot").withInput(`1 2 3 rot .s`).expectOutput("<3> 2 3 1 "),
		engTest("dup then drop restores").withInput(`7 dup drop .s`).expectOutput("<1> 7 "),
		engTest("dots keeps stack").withInput(`1 2 .s`).expectStack(1, 2),
	}.run(t)
}

func TestEngine_words(t *testing.T) {
	engineTestCases{
		engTest("word frame keeps own rstack").
			withInput(`: w 5 >r r@ r> + ; w .s`).
			expectOutput("<1> 10 "),
		engTest("recursion").
			withInput(`: down dup 0 <> if dup emit 1 - down then ; 3 down .s`).
			expectOutput("\x03\x02\x01<1> 0 "),
		engTest("imbalanced word frame").
			withInput(`: bad 1 >r ; bad`).
			expectError(errReturnImbalance),
		engTest("frame cannot see caller rstack").
			withInput(`: bad r> ; 1 >r bad`).
			expectError(errStackUnderflow),
		engTest("unknown word").
			withInput(`nope`).
			expectError(unknownWordError("nope")),
		engTest("redefinition").
			withInput(`: a ; : a ;`).
			expectError(redefinitionError("a")),
		engTest("unterminated definition fails").
			withInput(`: a`).
			expectError(errUnexpectedEOF),
	}.run(t)
}

func TestEngine_memory(t *testing.T) {
	engineTestCases{
		engTest("cell roundtrip").
			withInput(`8 alloc dup 1234 swap ! dup @ swap free .s`).
			expectOutput("<1> 1234 ").
			expectHeap(0),
		engTest("byte is zero extended").
			withInput(`8 alloc dup 255 swap c! dup c@ swap free .s`).
			expectOutput("<1> 255 "),
		engTest("string literal").
			withInput(`"Hi" drop dup c@ emit free`).
			expectOutput("H").
			expectHeap(0),
		engTest("string interior address").
			withInput(`"Hi" drop dup 1 + c@ emit free`).
			expectOutput("i"),
		engTest("alloc requires positive size").
			withInput(`0 alloc`).
			expectError(errInvalidAlloc),
		engTest("alloc rejects negative size").
			withInput(`-8 alloc`).
			expectError(errInvalidAlloc),
		engTest("free requires live address").
			withInput(`123 free`).
			expectError(invalidFreeError(123)),
		engTest("free requires base address").
			withInput(`8 alloc 1 + free`).
			expectErrorContaining("invalid free"),
		engTest("store outside any allocation").
			withInput(`5 0 !`).
			expectErrorContaining("invalid store"),
		engTest("fetch past the end").
			withInput(`4 alloc dup @ swap free`).
			expectErrorContaining("invalid load"),
	}.run(t)
}

func TestEngine_shutdown(t *testing.T) {
	engineTestCases{
		engTest("leak at shutdown").
			withInput(`8 alloc drop`).
			expectError(leakError(1)),
		engTest("return stack at shutdown").
			withInput(`1 >r`).
			expectError(errReturnImbalance),
		engTest("bye stops the session").
			withInput(`65 emit bye 66 emit`).
			expectOutput("A"),
		engTest("bye skips the leak check").
			withInput(`8 alloc drop bye`).
			expectHeap(1),
		engTest("bye skips the return stack check").
			withInput(`1 >r bye`).
			expectRStack(1),
		engTest("underflow").
			withInput(`drop`).
			expectError(errStackUnderflow),
	}.run(t)
}

func TestEngine_control(t *testing.T) {
	engineTestCases{
		engTest("empty if body").
			withInput(`1 if then .s`).
			expectOutput("<0> "),
		engTest("nested if").
			withInput(`1 if 1 if 'A' emit then then`).
			expectOutput("A"),
		engTest("begin while repeat").
			withInput(`: count 0 begin dup 3 < while dup emit 1 + repeat drop ; count`).
			expectOutput("\x00\x01\x02"),
		engTest("begin again only exits via bye").
			withInput(`0 begin dup emit 1 + dup 3 = if bye then again`).
			expectOutput("\x00\x01\x02"),
		engTest("begin again is bounded by the context").
			withInput(`begin again`).
			withTimeout(50 * time.Millisecond).
			expectError(context.DeadlineExceeded),
	}.run(t)
}

func TestEngine_key(t *testing.T) {
	engineTestCases{
		engTest("key reads the next source byte").
			withInput(`: echo key emit ; echo A`).
			expectOutput("A"),
		engTest("key reads -1 at end of input").
			withInput(`: k key ; k`).
			expectStack(-1),
	}.run(t)
}

func TestEngine_args(t *testing.T) {
	engineTestCases{
		engTest("program owns its argument strings").
			withProgArgs("ab").
			withInput(`drop drop free`).
			expectHeap(0).
			expectStack(),
		engTest("ignored arguments leak").
			withProgArgs("ab").
			withInput(`.s drop`).
			expectError(leakError(1)),
	}.run(t)
}

func TestEngine_dump(t *testing.T) {
	engineTestCases{
		engTest("dump").
			withInput(`: square dup * ; 3`).
			expectDump(lines(
				`# Engine Dump`,
				`  stack: [3]`,
				`  rstack: []`,
				`# Dictionary (1 words)`,
				`  : square dup * ;`,
				`# Heap (0 live)`,
			)),
		engTest("dump live heap").
			withInput(`8 alloc bye`).
			expectDump(lines(
				`# Engine Dump`,
				`  stack: [4096]`,
				`  rstack: []`,
				`# Dictionary (0 words)`,
				`# Heap (1 live)`,
				`  @4096 8 bytes`,
			)),
	}.run(t)
}

func lines(ss ...string) string {
	return strings.Join(ss, "\n") + "\n"
}

func TestWithTee(t *testing.T) {
	var out, tee bytes.Buffer
	eng := New(
		WithInput(strings.NewReader(`65 emit`)),
		WithOutput(&out),
		WithTee(&tee),
	)
	require.NoError(t, eng.Run(context.Background()))
	assert.Equal(t, "A", out.String())
	assert.Equal(t, "A", tee.String())
}

func TestWithLogf(t *testing.T) {
	var mess []string
	eng := New(
		WithInput(strings.NewReader(`1 2 +`)),
		WithLogf(func(m string, args ...interface{}) {
			mess = append(mess, fmt.Sprintf(m, args...))
		}),
	)
	require.NoError(t, eng.Run(context.Background()))
	require.NotEmpty(t, mess)
	assert.Contains(t, mess[0], "eval 1")
}
