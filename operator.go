// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"math"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/device"
	"github.com/db47h/hwfsm/hdl"
)

// operand is a lowered operand along with its source type.
type operand struct {
	x   hdl.Expr
	t   hdl.DataType
	src ast.Type
}

// pendingOp is a lowered operation that has not been scheduled yet.
type pendingOp struct {
	expr hdl.Expr
	typ  hdl.DataType
	cost float64
}

var binaryOps = map[ast.BinaryOp]hdl.BinaryOp{
	ast.OpAdd:        hdl.Add,
	ast.OpSub:        hdl.Sub,
	ast.OpMul:        hdl.Mul,
	ast.OpDiv:        hdl.Div,
	ast.OpRem:        hdl.Rem,
	ast.OpAnd:        hdl.And,
	ast.OpOr:         hdl.Or,
	ast.OpXor:        hdl.Xor,
	ast.OpLogicalAnd: hdl.And,
	ast.OpLogicalOr:  hdl.Or,
	ast.OpEq:         hdl.Eq,
	ast.OpNeq:        hdl.Neq,
	ast.OpLt:         hdl.Lt,
	ast.OpLe:         hdl.Le,
	ast.OpGt:         hdl.Gt,
	ast.OpGe:         hdl.Ge,
}

var deviceOps = map[ast.BinaryOp]string{
	ast.OpAdd:        device.OpAdd,
	ast.OpSub:        device.OpSub,
	ast.OpMul:        device.OpMul,
	ast.OpDiv:        device.OpDiv,
	ast.OpRem:        device.OpRem,
	ast.OpShl:        device.OpShiftLeft,
	ast.OpShr:        device.OpShiftRight,
	ast.OpAnd:        device.OpLogic,
	ast.OpOr:         device.OpLogic,
	ast.OpXor:        device.OpLogic,
	ast.OpLogicalAnd: device.OpLogic,
	ast.OpLogicalOr:  device.OpLogic,
	ast.OpEq:         device.OpCompare,
	ast.OpNeq:        device.OpCompare,
	ast.OpLt:         device.OpCompare,
	ast.OpLe:         device.OpCompare,
	ast.OpGt:         device.OpCompare,
	ast.OpGe:         device.OpCompare,
}

func isComparison(op ast.BinaryOp) bool {
	switch op {
	case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	}
	return false
}

// promoteUnary returns the type unary operators and shifts operate on.
//
func promoteUnary(t ast.Type) ast.Type {
	p, ok := t.(ast.Primitive)
	if !ok {
		return t
	}
	switch p {
	case ast.SByte, ast.Byte, ast.Short, ast.UShort, ast.Char:
		return ast.Int
	}
	return p
}

// promote returns the type binary operators operate on, following the source
// language's numeric promotion rules.
//
func promote(x, y ast.Type) ast.Type {
	a, ok1 := x.(ast.Primitive)
	b, ok2 := y.(ast.Primitive)
	if !ok1 || !ok2 {
		return x
	}
	if a == ast.Bool && b == ast.Bool {
		return ast.Bool
	}
	has := func(p ast.Primitive) bool { return a == p || b == p }
	signedNarrow := func(p ast.Primitive) bool { return p == ast.SByte || p == ast.Short || p == ast.Int }
	switch {
	case has(ast.Double):
		return ast.Double
	case has(ast.Float):
		return ast.Float
	case has(ast.ULong):
		return ast.ULong
	case has(ast.Long):
		return ast.Long
	case a == ast.UInt && signedNarrow(b), b == ast.UInt && signedNarrow(a):
		return ast.Long
	case has(ast.UInt):
		return ast.UInt
	}
	return ast.Int
}

func isSigned(t ast.Type) bool {
	p, ok := t.(ast.Primitive)
	return ok && (p.IsSigned() || p.IsFloat())
}

func (s *scope) convertOperand(o operand, to hdl.DataType, node interface{}) (hdl.Expr, error) {
	r, err := conv.Convert(o.t, to, o.x)
	if err != nil {
		return nil, s.wrap(err, node)
	}
	return r.Expr, nil
}

// binaryOp lowers a binary operation on operands promoted to pt without
// scheduling it.
func (s *scope) binaryOp(op ast.BinaryOp, x, y operand, pt ast.Type, node interface{}) (pendingOp, error) {
	if op == ast.OpShl || op == ast.OpShr {
		return s.shift(op, x, y, pt, node)
	}
	hop, ok := binaryOps[op]
	if !ok {
		return pendingOp{}, s.errorf(ErrUnsupported, node, "operator %s", op)
	}
	ptype, err := s.hwType(pt)
	if err != nil {
		return pendingOp{}, err
	}
	sc, ok := ptype.(hdl.Scalar)
	if !ok {
		return pendingOp{}, s.errorf(ErrUnsupported, node, "operator %s on %s", op, pt)
	}
	xc, err := s.convertOperand(x, sc, node)
	if err != nil {
		return pendingOp{}, err
	}
	yc, err := s.convertOperand(y, sc, node)
	if err != nil {
		return pendingOp{}, err
	}
	res := pendingOp{
		expr: &hdl.Binary{Op: hop, X: xc, Y: yc},
		typ:  sc,
		cost: s.t.cfg.Device.MixedClockCycles(deviceOps[op], sc.Size, isSigned(x.src), isSigned(y.src)),
	}
	switch {
	case isComparison(op):
		res.typ = hdl.BooleanType
	case op == ast.OpMul && sc.IsNumeric():
		// the product is twice as wide as the operands.
		res.expr = hdl.SmartResize(res.expr, sc.Size)
	}
	return res, nil
}

// shift lowers a shift. The shift count is truncated to 5 bits for operands
// of up to 32 bits and to 6 bits for wider operands.
func (s *scope) shift(op ast.BinaryOp, x, y operand, pt ast.Type, node interface{}) (pendingOp, error) {
	ptype, err := s.hwType(pt)
	if err != nil {
		return pendingOp{}, err
	}
	sc, ok := ptype.(hdl.Scalar)
	if !ok || !sc.IsNumeric() {
		return pendingOp{}, s.errorf(ErrUnsupported, node, "shift of %s", pt)
	}
	xc, err := s.convertOperand(x, sc, node)
	if err != nil {
		return pendingOp{}, err
	}
	bits := 5
	if sc.Size > 32 {
		bits = 6
	}
	var (
		count hdl.Expr
		cost  float64
	)
	if v, ok := y.x.(hdl.Value); ok {
		count = hdl.IntValue(hdl.IntegerType, v.Int64()&int64(1<<uint(bits)-1))
	} else {
		ys, ok := y.t.(hdl.Scalar)
		if !ok || !ys.IsNumeric() {
			return pendingOp{}, s.errorf(ErrUnsupported, node, "shift count of type %s", y.src)
		}
		count = hdl.NewCall(hdl.FuncToInteger, hdl.NewCall(hdl.FuncUnsigned, hdl.SmartResize(y.x, bits)))
		cost = s.t.cfg.Device.ClockCycles(deviceOps[op], sc.Size, sc.Kind == hdl.Signed)
	}
	if op == ast.OpShl {
		return pendingOp{expr: hdl.NewCall(hdl.FuncShiftLeft, xc, count), typ: sc, cost: cost}, nil
	}
	// the all ones mask is a no-op kept for synthesis tools that mishandle a
	// bare shift_right of a signed value.
	e := &hdl.Binary{Op: hdl.And, X: hdl.NewCall(hdl.FuncShiftRight, xc, count), Y: hdl.IntValue(sc, -1)}
	return pendingOp{expr: e, typ: sc, cost: cost}, nil
}

func (s *scope) binary(e *ast.Binary) (hdl.Expr, hdl.DataType, error) {
	x, xt, err := s.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	y, yt, err := s.expr(e.Y)
	if err != nil {
		return nil, nil, err
	}
	pt := promote(e.X.Type(), e.Y.Type())
	if e.Op == ast.OpShl || e.Op == ast.OpShr {
		pt = promoteUnary(e.X.Type())
	}
	op, err := s.binaryOp(e.Op, operand{x, xt, e.X.Type()}, operand{y, yt, e.Y.Type()}, pt, e)
	if err != nil {
		return nil, nil, err
	}
	v, vt, err := s.schedule(op)
	if err != nil {
		return nil, nil, err
	}
	return s.toResultType(v, vt, e.T, e)
}

// toResultType resizes the result of an operation to the declared type of
// the expression when they differ.
func (s *scope) toResultType(v hdl.Expr, vt hdl.DataType, t ast.Type, node interface{}) (hdl.Expr, hdl.DataType, error) {
	if t == nil {
		return v, vt, nil
	}
	rt, err := s.hwType(t)
	if err != nil {
		return nil, nil, err
	}
	r, err := conv.Convert(vt, rt, v)
	if err != nil {
		return nil, nil, s.wrap(err, node)
	}
	return r.Expr, rt, nil
}

func (s *scope) unary(e *ast.Unary) (hdl.Expr, hdl.DataType, error) {
	switch e.Op {
	case ast.OpPreInc, ast.OpPreDec, ast.OpPostInc, ast.OpPostDec:
		return s.incDec(e, false)
	}
	x, xt, err := s.expr(e.X)
	if err != nil {
		return nil, nil, err
	}
	pt := promoteUnary(e.X.Type())
	if e.Op == ast.OpNeg && pt == ast.UInt {
		pt = ast.Long
	}
	ptype, err := s.hwType(pt)
	if err != nil {
		return nil, nil, err
	}
	sc, ok := ptype.(hdl.Scalar)
	if !ok {
		return nil, nil, s.errorf(ErrUnsupported, e, "unary operator on %s", e.X.Type())
	}
	xc, err := s.convertOperand(operand{x, xt, e.X.Type()}, sc, e)
	if err != nil {
		return nil, nil, err
	}
	var op pendingOp
	switch e.Op {
	case ast.OpPlus:
		return s.toResultType(xc, sc, e.T, e)
	case ast.OpNeg:
		op = pendingOp{expr: &hdl.Unary{Op: hdl.Neg, X: xc}, typ: sc, cost: s.t.cfg.Device.ClockCycles(device.OpNeg, sc.Size, true)}
	case ast.OpNot, ast.OpComplement:
		op = pendingOp{expr: &hdl.Unary{Op: hdl.Not, X: xc}, typ: sc, cost: s.t.cfg.Device.ClockCycles(device.OpLogic, sc.Size, isSigned(pt))}
	default:
		return nil, nil, s.errorf(ErrUnsupported, e, "unary operator %d", e.Op)
	}
	v, vt, err := s.schedule(op)
	if err != nil {
		return nil, nil, err
	}
	return s.toResultType(v, vt, e.T, e)
}

// schedule emits a single operation.
func (s *scope) schedule(op pendingOp) (hdl.Expr, hdl.DataType, error) {
	r, err := s.transformParallelBinaryOperators([]pendingOp{op})
	if err != nil {
		return nil, nil, err
	}
	return r[0], op.typ, nil
}

// transformParallelBinaryOperators schedules independent operations as a
// group: they share clock cycle accounting and, if any of them needs more
// than a clock cycle, a single wait state. The first operation of the group
// opens the wait state and the last one closes it.
//
// Operations that fit in a clock cycle are returned as is. Multi-cycle
// operations are assigned to variables in the wait state; the assignments
// execute on every cycle of the wait since the result of a multi-cycle
// operation is only stable after the required number of cycles.
//
func (s *scope) transformParallelBinaryOperators(ops []pendingOp) ([]hdl.Expr, error) {
	var cost float64
	for _, op := range ops {
		cost = math.Max(cost, op.cost)
	}
	out := make([]hdl.Expr, len(ops))
	if cost <= 1 {
		s.reserve(cost)
		for i, op := range ops {
			out[i] = op.expr
		}
		return out, nil
	}
	for i, op := range ops {
		if i == 0 {
			s.openState().RequiredClockCycles = cost
		}
		v, err := s.newVariable("binaryOperationResult", op.typ)
		if err != nil {
			return nil, s.wrap(err, nil)
		}
		s.add(hdl.Assign(v, op.expr))
		out[i] = v
		if i == len(ops)-1 {
			counter := s.clockCounter()
			after := s.newState()
			s.add(hdl.Assign(counter, &hdl.Binary{Op: hdl.Add, X: counter, Y: hdl.StateValue(1)}))
			ie := hdl.If(&hdl.Binary{Op: hdl.Ge, X: counter, Y: hdl.StateValue(int(math.Ceil(cost)))})
			ie.True.Add(hdl.Assign(counter, hdl.StateValue(0)), s.m.ChangeState(after.Index))
			s.add(ie)
			s.moveTo(after)
		}
	}
	return out, nil
}

var simdOps = map[string]ast.BinaryOp{
	"AddVectors":      ast.OpAdd,
	"SubtractVectors": ast.OpSub,
	"MultiplyVectors": ast.OpMul,
	"DivideVectors":   ast.OpDiv,
}

// simd lowers an element-wise vector operation into parallel binary
// operations.
func (s *scope) simd(e *ast.Call) (hdl.Expr, hdl.DataType, error) {
	bop, ok := simdOps[e.Method.Name]
	if !ok || len(e.Args) != 2 {
		return nil, nil, s.errorf(ErrUnsupported, e, "unknown vector operation %s", e.Method.Name)
	}
	var (
		xs  [2]hdl.Expr
		xts [2]*hdl.Array
		ats [2]*ast.ArrayType
	)
	for i, a := range e.Args {
		x, xt, err := s.expr(a)
		if err != nil {
			return nil, nil, err
		}
		at, ok1 := xt.(*hdl.Array)
		st, ok2 := a.Type().(*ast.ArrayType)
		if !ok1 || !ok2 {
			return nil, nil, s.errorf(ErrUnsupported, e, "vector operation on %s", a.Type())
		}
		xs[i], xts[i], ats[i] = x, at, st
	}
	n := xts[0].Length
	if xts[1].Length < n {
		n = xts[1].Length
	}
	rt, err := s.hwType(&ast.ArrayType{Elem: ats[0].Elem, Length: n})
	if err != nil {
		return nil, nil, err
	}
	res, err := s.newVariable("vector", rt)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	pt := promote(ats[0].Elem, ats[1].Elem)
	ops := make([]pendingOp, n)
	for i := range ops {
		idx := hdl.StateValue(i)
		x := operand{&hdl.IndexRef{Array: xs[0], Index: idx}, xts[0].Elem, ats[0].Elem}
		y := operand{&hdl.IndexRef{Array: xs[1], Index: idx}, xts[1].Elem, ats[1].Elem}
		if ops[i], err = s.binaryOp(bop, x, y, pt, e); err != nil {
			return nil, nil, err
		}
	}
	vs, err := s.transformParallelBinaryOperators(ops)
	if err != nil {
		return nil, nil, err
	}
	elem := rt.(*hdl.Array).Elem
	for i, v := range vs {
		r, err := conv.Convert(ops[i].typ, elem, v)
		if err != nil {
			return nil, nil, s.wrap(err, e)
		}
		s.add(hdl.Assign(&hdl.IndexRef{Array: res, Index: hdl.StateValue(i)}, r.Expr))
	}
	return res, rt, nil
}
