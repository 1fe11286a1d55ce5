package main

import (
	"fmt"
	"io"
)

// engineDumper renders a structured snapshot of engine state: both stacks,
// the dictionary in definition order, and the live heap allocations.
type engineDumper struct {
	eng *Engine
	out io.Writer
}

func (dump engineDumper) dump() {
	fmt.Fprintf(dump.out, "# Engine Dump\n")
	fmt.Fprintf(dump.out, "  stack: %v\n", dump.eng.stack)
	fmt.Fprintf(dump.out, "  rstack: %v\n", dump.eng.rstack)

	fmt.Fprintf(dump.out, "# Dictionary (%v words)\n", len(dump.eng.order))
	for _, name := range dump.eng.order {
		fmt.Fprintf(dump.out, "  %v\n", expr{kind: exprDefine, name: name, body: dump.eng.dict[name]})
	}

	bases := dump.eng.heap.Bases()
	fmt.Fprintf(dump.out, "# Heap (%v live)\n", len(bases))
	for _, base := range bases {
		fmt.Fprintf(dump.out, "  @%v %v bytes\n", base, dump.eng.heap.Size(base))
	}
}
