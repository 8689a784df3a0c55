// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sim

import (
	"reflect"
	"strings"

	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

// fieldName returns the record field name a struct field maps to.
//
// By default, the record field name is the struct field name. A specific
// name can be forced with a field tag: `hw:"name"`. Fields tagged `hw:"-"`
// and unexported fields are ignored.
//
func fieldName(f reflect.StructField) (string, bool) {
	if f.PkgPath != "" {
		return "", false
	}
	tag, ok := f.Tag.Lookup("hw")
	if !ok {
		return f.Name, true
	}
	tv := strings.Split(tag, ",")
	switch tv[0] {
	case "-":
		return "", false
	case "":
		return f.Name, true
	}
	return tv[0], true
}

func indirect(x interface{}) reflect.Value {
	v := reflect.ValueOf(x)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

// recordOf converts a Go struct to a value of record type t. Record fields
// without a matching struct field get their zero value.
func recordOf(t *hdl.Record, x interface{}) (Value, error) {
	sv := indirect(x)
	if sv.Kind() != reflect.Struct {
		return Value{}, errors.Errorf("cannot convert %T to %s", x, t.TypeName())
	}
	v := Zero(t)
	typ := sv.Type()
	for i := 0; i < typ.NumField(); i++ {
		name, ok := fieldName(typ.Field(i))
		if !ok {
			continue
		}
		fi := -1
		for k, f := range t.Fields {
			if f.Name == name {
				fi = k
				break
			}
		}
		if fi < 0 {
			return Value{}, errors.Errorf("no field %s in %s", name, t.TypeName())
		}
		fv, err := ValueOf(t.Fields[fi].Type, sv.Field(i).Interface())
		if err != nil {
			return Value{}, errors.Wrapf(err, "field %s", name)
		}
		v.Fields[fi] = fv
	}
	return v, nil
}

// sliceOf returns the elements of a Go slice or array.
func sliceOf(x interface{}) ([]interface{}, bool) {
	if xs, ok := x.([]interface{}); ok {
		return xs, true
	}
	sv := indirect(x)
	if k := sv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, sv.Len())
	for i := range out {
		out[i] = sv.Index(i).Interface()
	}
	return out, true
}

// basic returns x converted to the predeclared type of its kind, so that
// values of named types like `type Celsius int16` can be converted.
func basic(x interface{}) interface{} {
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return x
}

// Decode stores v in the Go value pointed to by ptr. Scalars decode into
// integer, boolean and floating point kinds, arrays into slices or arrays,
// records into structs with fields matched as for ValueOf.
//
func (v Value) Decode(ptr interface{}) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("Decode needs a non-nil pointer, got %T", ptr)
	}
	return v.decode(rv.Elem())
}

func (v Value) decode(dst reflect.Value) error {
	switch t := v.Type.(type) {
	case *hdl.Array:
		switch dst.Kind() {
		case reflect.Slice:
			dst.Set(reflect.MakeSlice(dst.Type(), len(v.Elems), len(v.Elems)))
		case reflect.Array:
			if dst.Len() < len(v.Elems) {
				return errors.Errorf("cannot decode %s into %s", t.TypeName(), dst.Type())
			}
		default:
			return errors.Errorf("cannot decode %s into %s", t.TypeName(), dst.Type())
		}
		for i, e := range v.Elems {
			if err := e.decode(dst.Index(i)); err != nil {
				return errors.Wrapf(err, "element %d", i)
			}
		}
		return nil
	case *hdl.Record:
		if dst.Kind() != reflect.Struct {
			return errors.Errorf("cannot decode %s into %s", t.TypeName(), dst.Type())
		}
		typ := dst.Type()
		for i := 0; i < typ.NumField(); i++ {
			name, ok := fieldName(typ.Field(i))
			if !ok {
				continue
			}
			if fv, ok := v.Field(name); ok {
				if err := fv.decode(dst.Field(i)); err != nil {
					return errors.Wrapf(err, "field %s", name)
				}
			}
		}
		return nil
	}
	switch dst.Kind() {
	case reflect.Bool:
		dst.SetBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(v.Int64())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		dst.SetUint(v.Bits)
	case reflect.Float32, reflect.Float64:
		dst.SetFloat(v.Float64())
	case reflect.Interface:
		dst.Set(reflect.ValueOf(v))
	default:
		return errors.Errorf("cannot decode %s into %s", v.Type.TypeName(), dst.Type())
	}
	return nil
}
