package main

import (
	"fmt"
	"strings"
)

type exprKind int

// Expression kinds. Leaves mirror the non-structural tokens; composites
// carry one or two nested bodies.
const (
	exprNone exprKind = iota

	exprNumber
	exprString
	exprWord

	exprAdd
	exprSub
	exprMul
	exprDiv
	exprRem
	exprMod

	exprLess
	exprMore
	exprEqual
	exprNotEqual

	exprAnd
	exprOr
	exprInvert

	exprEmit
	exprKey

	exprDup
	exprDrop
	exprSwap
	exprOver
	exprRot

	exprToR
	exprRFrom
	exprRFetch

	exprStore
	exprFetch
	exprCStore
	exprCFetch
	exprAlloc
	exprFree

	exprDotS
	exprBye

	exprDefine
	exprIfThen
	exprIfElseThen
	exprBeginUntil
	exprBeginWhileRepeat
	exprBeginAgain
)

// expr is a tagged union: kind selects which payload fields are live.
//   - exprNumber: num
//   - exprString: str
//   - exprWord: name
//   - exprDefine: name and body
//   - exprIfThen, exprBeginUntil, exprBeginAgain: body
//   - exprIfElseThen: body (if) and alt (else)
//   - exprBeginWhileRepeat: body (condition) and alt (loop)
type expr struct {
	kind exprKind
	num  int64
	str  []byte
	name string
	body []expr
	alt  []expr
}

// opExprs maps every operator token onto its expression leaf.
var opExprs = map[tokenKind]exprKind{
	tokenAdd:      exprAdd,
	tokenSub:      exprSub,
	tokenMul:      exprMul,
	tokenDiv:      exprDiv,
	tokenRem:      exprRem,
	tokenMod:      exprMod,
	tokenLess:     exprLess,
	tokenMore:     exprMore,
	tokenEqual:    exprEqual,
	tokenNotEqual: exprNotEqual,
	tokenAnd:      exprAnd,
	tokenOr:       exprOr,
	tokenInvert:   exprInvert,
	tokenEmit:     exprEmit,
	tokenKey:      exprKey,
	tokenDup:      exprDup,
	tokenDrop:     exprDrop,
	tokenSwap:     exprSwap,
	tokenOver:     exprOver,
	tokenRot:      exprRot,
	tokenToR:      exprToR,
	tokenRFrom:    exprRFrom,
	tokenRFetch:   exprRFetch,
	tokenStore:    exprStore,
	tokenFetch:    exprFetch,
	tokenCStore:   exprCStore,
	tokenCFetch:   exprCFetch,
	tokenAlloc:    exprAlloc,
	tokenFree:     exprFree,
	tokenDotS:     exprDotS,
	tokenBye:      exprBye,
}

var exprOpNames = func() map[exprKind]string {
	names := make(map[exprKind]string, len(opExprs))
	for tok, kind := range opExprs {
		names[kind] = tokenNames[tok]
	}
	return names
}()

// String renders the expression back into source-shaped text, which is what
// the trace log and the engine dump show.
func (e expr) String() string {
	var sb strings.Builder
	e.render(&sb)
	return sb.String()
}

func (e expr) render(sb *strings.Builder) {
	switch e.kind {
	case exprNumber:
		fmt.Fprintf(sb, "%d", e.num)
	case exprString:
		fmt.Fprintf(sb, "%q", e.str)
	case exprWord:
		sb.WriteString(e.name)
	case exprDefine:
		sb.WriteString(": ")
		sb.WriteString(e.name)
		renderBody(sb, e.body)
		sb.WriteString(" ;")
	case exprIfThen:
		sb.WriteString("if")
		renderBody(sb, e.body)
		sb.WriteString(" then")
	case exprIfElseThen:
		sb.WriteString("if")
		renderBody(sb, e.body)
		sb.WriteString(" else")
		renderBody(sb, e.alt)
		sb.WriteString(" then")
	case exprBeginUntil:
		sb.WriteString("begin")
		renderBody(sb, e.body)
		sb.WriteString(" until")
	case exprBeginWhileRepeat:
		sb.WriteString("begin")
		renderBody(sb, e.body)
		sb.WriteString(" while")
		renderBody(sb, e.alt)
		sb.WriteString(" repeat")
	case exprBeginAgain:
		sb.WriteString("begin")
		renderBody(sb, e.body)
		sb.WriteString(" again")
	default:
		sb.WriteString(exprOpNames[e.kind])
	}
}

func renderBody(sb *strings.Builder, body []expr) {
	for _, e := range body {
		sb.WriteByte(' ')
		e.render(sb)
	}
}
