// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"strings"
	"sync"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/hdl"
)

var primitiveTypes = map[ast.Primitive]hdl.DataType{
	ast.Bool:   hdl.BooleanType,
	ast.Char:   hdl.UnsignedType(16),
	ast.SByte:  hdl.SignedType(8),
	ast.Byte:   hdl.UnsignedType(8),
	ast.Short:  hdl.SignedType(16),
	ast.UShort: hdl.UnsignedType(16),
	ast.Int:    hdl.SignedType(32),
	ast.UInt:   hdl.UnsignedType(32),
	ast.Long:   hdl.SignedType(64),
	ast.ULong:  hdl.UnsignedType(64),
	ast.Float:  hdl.RealType(32),
	ast.Double: hdl.RealType(64),
}

// recordCache memoizes the records composed from classes. It is shared by
// all the members of a transformation run.
//
type recordCache struct {
	mu      sync.Mutex
	records map[string]*hdl.Record
}

func (c *recordCache) get(name string) (*hdl.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[name]
	return r, ok
}

// put stores r unless another member got there first, and returns the cached
// record.
func (c *recordCache) put(r *hdl.Record) *hdl.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records == nil {
		c.records = make(map[string]*hdl.Record)
	}
	if cached, ok := c.records[r.Name]; ok {
		return cached
	}
	c.records[r.Name] = r
	return r
}

func isMemory(t ast.Type) bool {
	c, ok := t.(*ast.Class)
	return ok && c.Name == ast.MemoryClassName
}

func isIntrinsic(m *ast.Method) bool {
	return m.Class != nil && (m.Class.Name == ast.MemoryClassName || m.Class.Name == ast.SimdClassName)
}

// hwType returns the hardware type of a source type.
//
func (s *scope) hwType(t ast.Type) (hdl.DataType, error) {
	return s.mapType(t, nil)
}

func (s *scope) mapType(t ast.Type, building []string) (hdl.DataType, error) {
	switch t := t.(type) {
	case ast.Primitive:
		if ht, ok := primitiveTypes[t]; ok {
			return ht, nil
		}
	case *ast.ArrayType:
		if t.Rank > 1 {
			return nil, s.errorf(ErrResource, t, "multi-dimensional arrays are not supported: %s", t)
		}
		elem, err := s.mapType(t.Elem, building)
		if err != nil {
			return nil, err
		}
		if !hdl.IsPrimitive(elem) && t.Length > s.t.cfg.MaxNonPrimitiveArrayLength {
			s.warn(WarnOversizedArray, "array of %d %s elements may use a lot of resources", t.Length, t.Elem)
		}
		return hdl.NewArray(elem, t.Length), nil
	case *ast.Class:
		if isMemory(t) {
			break
		}
		return s.record(t, building)
	case *ast.TaskType:
		return hdl.IntegerType, nil
	}
	return nil, s.errorf(ErrUnsupported, t, "type %s has no hardware equivalent", t)
}

// record composes the record of class c, or returns the cached one.
func (s *scope) record(c *ast.Class, building []string) (*hdl.Record, error) {
	if r, ok := s.t.records.get(c.Name); ok {
		return r, nil
	}
	for _, n := range building {
		if n == c.Name {
			return nil, s.errorf(ErrResource, c, "self-referential type %s", strings.Join(append(building, c.Name), " -> "))
		}
	}
	building = append(building, c.Name)
	r := &hdl.Record{Name: c.Name}
	for _, f := range c.Fields {
		ft, err := s.mapType(f.Type, building)
		if err != nil {
			return nil, err
		}
		r.Fields = append(r.Fields, hdl.RecordField{Name: f.Name, Type: ft})
	}
	return s.t.records.put(r), nil
}

// collectTypes returns the composite types referenced by the data objects of
// m, dependencies first, followed by the state enumeration.
//
func collectTypes(m *hdl.StateMachine) []hdl.DataType {
	seen := make(map[string]bool)
	var types []hdl.DataType
	var visit func(t hdl.DataType)
	visit = func(t hdl.DataType) {
		switch tt := t.(type) {
		case *hdl.Array:
			visit(tt.Elem)
		case *hdl.Record:
			for _, f := range tt.Fields {
				visit(f.Type)
			}
		default:
			return
		}
		if !seen[t.TypeName()] {
			seen[t.TypeName()] = true
			types = append(types, t)
		}
	}
	for _, list := range [][]*hdl.DataObject{m.Variables, m.ExternalSignals, m.InternalSignals} {
		for _, o := range list {
			visit(o.Type)
		}
	}
	return append(types, m.StateEnum())
}
