package conv_test

import (
	"testing"

	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/hdl"
	"github.com/pkg/errors"
)

var x = hdl.Ref{Name: "x", Kind: hdl.Variable}

func TestConvert_identity(t *testing.T) {
	types := []hdl.DataType{
		hdl.BooleanType,
		hdl.IntegerType,
		hdl.SignedType(32),
		hdl.UnsignedType(8),
		hdl.VectorType(32),
		hdl.RealType(64),
		hdl.NewArray(hdl.SignedType(32), 4),
	}
	for _, tt := range types {
		r, err := conv.Convert(tt, tt, x)
		if err != nil {
			t.Fatal(err)
		}
		if r.Expr != hdl.Expr(x) || r.IsLossy || r.IsResized {
			t.Errorf("%s: expected identity, got %v", tt.TypeName(), r)
		}
	}
}

func TestConvert_numeric(t *testing.T) {
	data := []struct {
		from, to hdl.Scalar
		expr     string
		lossy    bool
	}{
		{hdl.SignedType(16), hdl.SignedType(32), `SmartResize(\x\, 32)`, false},
		{hdl.SignedType(32), hdl.SignedType(16), `SmartResize(\x\, 16)`, true},
		{hdl.UnsignedType(8), hdl.UnsignedType(64), `SmartResize(\x\, 64)`, false},
		{hdl.UnsignedType(64), hdl.UnsignedType(32), `SmartResize(\x\, 32)`, true},
		{hdl.UnsignedType(16), hdl.SignedType(32), `signed(SmartResize(\x\, 32))`, false},
		{hdl.UnsignedType(32), hdl.SignedType(32), `signed(\x\)`, true},
		{hdl.UnsignedType(64), hdl.SignedType(32), `signed(SmartResize(\x\, 32))`, true},
		{hdl.SignedType(32), hdl.UnsignedType(32), `unsigned(\x\)`, true},
		{hdl.SignedType(16), hdl.UnsignedType(64), `unsigned(SmartResize(\x\, 64))`, true},
		{hdl.SignedType(32), hdl.IntegerType, `to_integer(\x\)`, true},
		{hdl.UnsignedType(8), hdl.IntegerType, `to_integer(\x\)`, true},
		{hdl.IntegerType, hdl.SignedType(32), `to_signed(\x\, 32)`, false},
		{hdl.IntegerType, hdl.SignedType(16), `to_signed(\x\, 16)`, true},
		{hdl.IntegerType, hdl.UnsignedType(32), `to_unsigned(\x\, 32)`, true},
		{hdl.SignedType(32), hdl.RealType(64), `to_real(\x\, 64)`, false},
		{hdl.SignedType(32), hdl.RealType(32), `to_real(\x\, 32)`, true},
		{hdl.RealType(64), hdl.SignedType(32), `to_signed(\x\, 32)`, true},
		{hdl.RealType(64), hdl.RealType(32), `ResizeReal(\x\, 32)`, true},
		{hdl.RealType(32), hdl.RealType(64), `ResizeReal(\x\, 64)`, false},
		{hdl.SignedType(32), hdl.VectorType(32), `std_logic_vector(\x\)`, false},
		{hdl.VectorType(32), hdl.SignedType(32), `signed(\x\)`, false},
		{hdl.VectorType(32), hdl.UnsignedType(16), `SmartResize(unsigned(\x\), 16)`, true},
		{hdl.VectorType(32), hdl.BooleanType, `StdLogicVectorToBoolean(\x\)`, true},
		{hdl.BooleanType, hdl.VectorType(1), `BooleanToStdLogicVector(\x\)`, false},
		{hdl.BooleanType, hdl.VectorType(32), `std_logic_vector(SmartResize(unsigned(BooleanToStdLogicVector(\x\)), 32))`, false},
	}
	for _, d := range data {
		r, err := conv.Convert(d.from, d.to, x)
		if err != nil {
			t.Errorf("%s -> %s: %v", d.from.TypeName(), d.to.TypeName(), err)
			continue
		}
		if got := r.Expr.String(); got != d.expr {
			t.Errorf("%s -> %s: expected %s, got %s", d.from.TypeName(), d.to.TypeName(), d.expr, got)
		}
		if r.IsLossy != d.lossy {
			t.Errorf("%s -> %s: expected lossy=%v", d.from.TypeName(), d.to.TypeName(), d.lossy)
		}
	}
}

func TestConvert_narrowingIsLossy(t *testing.T) {
	sizes := []int{8, 16, 32, 64}
	for _, k := range []hdl.ScalarKind{hdl.Signed, hdl.Unsigned} {
		for _, from := range sizes {
			for _, to := range sizes {
				r, err := conv.Convert(hdl.Scalar{Kind: k, Size: from}, hdl.Scalar{Kind: k, Size: to}, x)
				if err != nil {
					t.Fatal(err)
				}
				if r.IsLossy != (to < from) {
					t.Errorf("%s %d -> %d: lossy = %v", k, from, to, r.IsLossy)
				}
			}
		}
	}
}

func TestConvert_unsupported(t *testing.T) {
	rec := &hdl.Record{Name: "Foo"}
	pairs := [][2]hdl.DataType{
		{hdl.BooleanType, hdl.SignedType(32)},
		{hdl.SignedType(32), hdl.BooleanType},
		{rec, hdl.SignedType(32)},
		{hdl.NewArray(hdl.SignedType(32), 2), hdl.NewArray(hdl.UnsignedType(32), 2)},
		{hdl.NewArray(hdl.SignedType(32), 2), hdl.NewArray(hdl.SignedType(32), 4)},
	}
	for _, p := range pairs {
		_, err := conv.Convert(p[0], p[1], x)
		if err == nil {
			t.Errorf("%s -> %s: expected error", p[0].TypeName(), p[1].TypeName())
			continue
		}
		if _, ok := errors.Cause(err).(*conv.UnsupportedError); !ok {
			t.Errorf("%s -> %s: unexpected error type %T", p[0].TypeName(), p[1].TypeName(), errors.Cause(err))
		}
	}
}

func TestAssign_arrays(t *testing.T) {
	y := hdl.Ref{Name: "y", Kind: hdl.Variable}
	a4 := hdl.NewArray(hdl.SignedType(32), 4)
	a2 := hdl.NewArray(hdl.SignedType(32), 2)

	a, r, err := conv.Assign(x, a2, y, a4)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Target.String() + " := " + a.Value.String(); got != `\x\ := \y\(1 downto 0)` {
		t.Errorf("long to short: got %s", got)
	}
	if !r.IsResized || !r.IsLossy {
		t.Errorf("long to short: expected resized lossy result")
	}

	a, r, err = conv.Assign(x, a4, y, a2)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Target.String() + " := " + a.Value.String(); got != `\x\(1 downto 0) := \y\` {
		t.Errorf("short to long: got %s", got)
	}
	if !r.IsResized || r.IsLossy {
		t.Errorf("short to long: expected resized lossless result")
	}
}
