// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hdl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump writes a human readable listing of m to w. The output is meant for
// debugging and is not valid HDL source.
//
func Dump(w io.Writer, m *StateMachine) error {
	d := &dumper{w: bufio.NewWriter(w)}
	d.printf("machine %s\n", m.Name)
	d.objects("variable", m.Variables)
	d.objects("in signal", m.ExternalSignals)
	d.objects("out signal", m.InternalSignals)
	for _, s := range m.States {
		d.printf("state %d (%.2f cycles):\n", s.Index, s.RequiredClockCycles)
		d.block(s.Body, 1)
	}
	if d.err != nil {
		return d.err
	}
	return d.w.Flush()
}

type dumper struct {
	w   *bufio.Writer
	err error
}

func (d *dumper) printf(format string, args ...interface{}) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func (d *dumper) objects(kind string, objs []*DataObject) {
	for _, o := range objs {
		d.printf("  %s %s: %s\n", kind, o.Name, o.Type.TypeName())
	}
}

func (d *dumper) block(b *Block, depth int) {
	if b == nil {
		return
	}
	ind := strings.Repeat("  ", depth)
	for _, s := range b.Body {
		switch s := s.(type) {
		case *Assignment:
			op := ":="
			if r, ok := RootRef(s.Target); ok && r.Kind == Signal {
				op = "<="
			}
			d.printf("%s%s %s %s;\n", ind, s.Target, op, s.Value)
		case *IfElse:
			d.printf("%sif %s then\n", ind, s.Cond)
			d.block(s.True, depth+1)
			if s.Else != nil {
				d.printf("%selse\n", ind)
				d.block(s.Else, depth+1)
			}
			d.printf("%send if;\n", ind)
		case *Case:
			d.printf("%scase %s is\n", ind, s.X)
			for _, w := range s.Whens {
				choices := make([]string, len(w.Choices))
				for i, c := range w.Choices {
					choices[i] = c.String()
				}
				d.printf("%s  when %s =>\n", ind, strings.Join(choices, " | "))
				d.block(w.Body, depth+2)
			}
			d.printf("%s  when others =>\n", ind)
			d.block(s.Others, depth+2)
			d.printf("%send case;\n", ind)
		case *Block:
			d.block(s, depth)
		case *Comment:
			d.printf("%s-- %s\n", ind, s.Text)
		}
	}
}
