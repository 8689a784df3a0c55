// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"strings"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/hdl"
)

// Names of the memory signals of a machine, prefixed with the machine name.
//
const (
	MemoryCellIndex   = "Memory.CellIndex"
	MemoryDataIn      = "Memory.DataIn"
	MemoryDataOut     = "Memory.DataOut"
	MemoryReadEnable  = "Memory.ReadEnable"
	MemoryWriteEnable = "Memory.WriteEnable"
	MemoryReadsDone   = "Memory.ReadsDone"
	MemoryWritesDone  = "Memory.WritesDone"
)

// memoryKey is the justFinished key of memory operations.
const memoryKey = "Memory"

// MemoryCellSize is the width of a memory cell in bits.
const MemoryCellSize = 32

type memorySignals struct {
	cellIndex, dataIn, dataOut hdl.Ref
	readEnable, writeEnable    hdl.Ref
	readsDone, writesDone      hdl.Ref
}

func (s *scope) memorySignals() (*memorySignals, error) {
	if s.memory != nil {
		return s.memory, nil
	}
	m := s.m
	ms := &memorySignals{}
	for _, sig := range []struct {
		ref      *hdl.Ref
		name     string
		t        hdl.DataType
		external bool
	}{
		{&ms.cellIndex, MemoryCellIndex, hdl.SignedType(32), false},
		{&ms.dataOut, MemoryDataOut, hdl.VectorType(MemoryCellSize), false},
		{&ms.readEnable, MemoryReadEnable, hdl.BooleanType, false},
		{&ms.writeEnable, MemoryWriteEnable, hdl.BooleanType, false},
		{&ms.dataIn, MemoryDataIn, hdl.VectorType(MemoryCellSize), true},
		{&ms.readsDone, MemoryReadsDone, hdl.BooleanType, true},
		{&ms.writesDone, MemoryWritesDone, hdl.BooleanType, true},
	} {
		var (
			o   *hdl.DataObject
			err error
		)
		if sig.external {
			o, err = m.AddExternalSignal(m.Prefixed(sig.name), sig.t)
		} else {
			o, err = m.AddInternalSignal(m.Prefixed(sig.name), sig.t)
		}
		if err != nil {
			return nil, err
		}
		*sig.ref = o.Ref()
	}
	m.UsesMemory = true
	s.memory = ms
	return ms, nil
}

// memoryTypes maps the suffix of memory operations to the source type they
// read or write.
var memoryTypes = map[string]ast.Type{
	"Int32":   ast.Int,
	"UInt32":  ast.UInt,
	"Boolean": ast.Bool,
	"Char":    ast.Char,
	"4Bytes":  &ast.ArrayType{Elem: ast.Byte, Length: 4},
}

// memoryAccess lowers a read or write of a memory cell. The cell index and
// data are driven along with an enable signal, then the machine waits in a
// new state for the matching done signal.
func (s *scope) memoryAccess(e *ast.Call) (hdl.Expr, hdl.DataType, error) {
	name := e.Method.Name
	write := strings.HasPrefix(name, "Write")
	if !write && !strings.HasPrefix(name, "Read") {
		return nil, nil, s.errorf(ErrUnsupported, e, "unknown memory operation %s", name)
	}
	st, ok := memoryTypes[strings.TrimPrefix(strings.TrimPrefix(name, "Write"), "Read")]
	if !ok || write && len(e.Args) != 2 || !write && len(e.Args) != 1 {
		return nil, nil, s.errorf(ErrUnsupported, e, "unknown memory operation %s", name)
	}
	ms, err := s.memorySignals()
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	ht, err := s.hwType(st)
	if err != nil {
		return nil, nil, err
	}
	cell, ct, err := s.expr(e.Args[0])
	if err != nil {
		return nil, nil, err
	}
	var value hdl.Expr
	var vt hdl.DataType
	if write {
		if value, vt, err = s.expr(e.Args[1]); err != nil {
			return nil, nil, err
		}
	}
	s.settle(memoryKey)

	a, _, err := conv.Assign(ms.cellIndex, hdl.SignedType(32), cell, ct)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	s.add(a)
	enable, done := ms.readEnable, ms.readsDone
	if write {
		enable, done = ms.writeEnable, ms.writesDone
		if err = s.driveData(ms.dataOut, value, vt, ht, e); err != nil {
			return nil, nil, err
		}
	}
	s.add(hdl.Assign(enable, hdl.BoolValue(true)))
	s.openState()
	ie := hdl.If(done)
	s.add(ie)
	s.cur.block = ie.True
	s.add(hdl.Assign(enable, hdl.BoolValue(false)))
	s.markFinished(memoryKey)
	if write {
		return nil, nil, nil
	}

	v, err := s.newVariable("memoryRead", ht)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	if at, ok := ht.(*hdl.Array); ok {
		bits := MemoryCellSize / at.Length
		for i := 0; i < at.Length; i++ {
			slice := &hdl.Slice{X: ms.dataIn, High: (i+1)*bits - 1, Low: i * bits}
			r, err := conv.Convert(hdl.VectorType(bits), at.Elem, slice)
			if err != nil {
				return nil, nil, s.wrap(err, e)
			}
			s.add(hdl.Assign(&hdl.IndexRef{Array: v, Index: hdl.StateValue(i)}, r.Expr))
		}
		return v, ht, nil
	}
	r, err := conv.Convert(hdl.VectorType(MemoryCellSize), ht, ms.dataIn)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	s.add(hdl.Assign(v, r.Expr))
	return v, ht, nil
}

// driveData assigns the value to write to the data output signal. Byte
// arrays are packed little endian.
func (s *scope) driveData(out hdl.Ref, value hdl.Expr, vt, ht hdl.DataType, node interface{}) error {
	if at, ok := ht.(*hdl.Array); ok {
		bits := MemoryCellSize / at.Length
		for i := 0; i < at.Length; i++ {
			elem := &hdl.IndexRef{Array: value, Index: hdl.StateValue(i)}
			r, err := conv.Convert(at.Elem, hdl.VectorType(bits), elem)
			if err != nil {
				return s.wrap(err, node)
			}
			s.add(hdl.Assign(&hdl.Slice{X: out, High: (i+1)*bits - 1, Low: i * bits}, r.Expr))
		}
		return nil
	}
	// the value to write has the operation's type, which may be wider.
	r, err := conv.Convert(vt, ht, value)
	if err != nil {
		return s.wrap(err, node)
	}
	d, err := conv.Convert(ht, hdl.VectorType(MemoryCellSize), r.Expr)
	if err != nil {
		return s.wrap(err, node)
	}
	s.add(hdl.Assign(out, d.Expr))
	return nil
}
