// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import (
	"sort"

	"github.com/db47h/hwfsm/ast"
	"github.com/db47h/hwfsm/conv"
	"github.com/db47h/hwfsm/device"
	"github.com/db47h/hwfsm/hdl"
	"github.com/samber/lo"
)

// paramSignal is the caller side of a callee parameter. Out is only valid
// for parameters whose value flows back to the caller.
type paramSignal struct {
	param  *ast.Param
	t      hdl.DataType
	in     hdl.Ref
	out    hdl.Ref
	hasOut bool
}

// callSignals are the signals a caller uses to drive one callee instance.
// They are named after the callee's signals, prefixed with the caller's
// name. The caller drives started and the parameter inputs; the callee
// drives finished, the return value and the parameter outputs.
type callSignals struct {
	instance string
	started  hdl.Ref
	finished hdl.Ref
	ret      *hdl.DataObject
	params   []paramSignal
}

// argument is a lowered argument. Arguments of out-flow parameters are
// assigned back when the call completes, if they are assignable.
type argument struct {
	x hdl.Expr
	t hdl.DataType
}

// callSignals returns the signals driving instance slot of target, creating
// them on first use.
func (s *scope) callSignals(target *ast.Method, slot int) (*callSignals, error) {
	x := instanceName(target, slot)
	if cs, ok := s.calls[x]; ok {
		return cs, nil
	}
	name := func(suffix string) string { return s.m.Prefixed(x + "." + suffix) }
	cs := &callSignals{instance: x}
	o, err := s.m.AddInternalSignal(name(hdl.StartedName), hdl.BooleanType)
	if err != nil {
		return nil, err
	}
	cs.started = o.Ref()
	if o, err = s.m.AddExternalSignal(name(hdl.FinishedName), hdl.BooleanType); err != nil {
		return nil, err
	}
	cs.finished = o.Ref()
	if !target.IsVoid() {
		rt, err := s.hwType(target.Result)
		if err != nil {
			return nil, err
		}
		if cs.ret, err = s.m.AddExternalSignal(name(hdl.ReturnName), rt); err != nil {
			return nil, err
		}
	}
	for _, p := range target.AllParams() {
		if isMemory(p.Type) {
			continue
		}
		pt, err := s.hwType(p.Type)
		if err != nil {
			return nil, err
		}
		ps := paramSignal{param: p, t: pt}
		if o, err = s.m.AddInternalSignal(name(p.Name+hdl.ParamInSuffix), pt); err != nil {
			return nil, err
		}
		ps.in = o.Ref()
		if isOutFlow(p) {
			if o, err = s.m.AddExternalSignal(name(p.Name+hdl.ParamOutSuffix), pt); err != nil {
				return nil, err
			}
			ps.out, ps.hasOut = o.Ref(), true
		}
		cs.params = append(cs.params, ps)
	}
	s.calls[x] = cs
	s.m.AddInvoked(x)
	if n := s.m.OtherMemberMaxInvocationInstanceCounts[target.FullName()]; slot+1 > n {
		s.m.OtherMemberMaxInvocationInstanceCounts[target.FullName()] = slot + 1
	}
	return cs, nil
}

// arguments lowers the arguments of a call to target, including the
// receiver of instance methods. Memory arguments are dropped.
func (s *scope) arguments(target *ast.Method, recv *argument, args []ast.Expr) ([]argument, error) {
	var out []argument
	if !target.Static && target.Class != nil {
		if recv == nil {
			return nil, s.errorf(ErrUnsupported, target, "call to instance method %s without a receiver", target.FullName())
		}
		out = append(out, *recv)
	}
	for i, a := range args {
		if i < len(target.Params) && isMemory(target.Params[i].Type) {
			continue
		}
		x, xt, err := s.expr(a)
		if err != nil {
			return nil, err
		}
		out = append(out, argument{x: x, t: xt})
	}
	return out, nil
}

// startInvocation drives the parameters of a callee instance and raises its
// start signal.
func (s *scope) startInvocation(b *hdl.Block, cs *callSignals, args []argument) error {
	if len(args) != len(cs.params) {
		return s.errorf(ErrUnsupported, nil, "call to %s with %d arguments, expected %d", cs.instance, len(args), len(cs.params))
	}
	for i, p := range cs.params {
		a, _, err := conv.Assign(p.in, p.t, args[i].x, args[i].t)
		if err != nil {
			return s.wrap(err, p.param)
		}
		b.Add(a)
	}
	b.Add(hdl.Assign(cs.started, hdl.BoolValue(true)))
	return nil
}

// finishInvocation drops the start signal of a completed callee, copies its
// output parameters back into assignable arguments and its return value into
// a new variable. The raw return signal would be overwritten by the next
// invocation of the same instance.
func (s *scope) finishInvocation(b *hdl.Block, cs *callSignals, args []argument) (hdl.Expr, hdl.DataType, error) {
	b.Add(hdl.Assign(cs.started, hdl.BoolValue(false)))
	for i, p := range cs.params {
		if !p.hasOut || !hdl.IsAssignable(args[i].x) {
			continue
		}
		a, _, err := conv.Assign(args[i].x, args[i].t, p.out, p.t)
		if err != nil {
			return nil, nil, s.wrap(err, p.param)
		}
		b.Add(a)
	}
	if cs.ret == nil {
		return nil, nil, nil
	}
	v, err := s.newVariable("return", cs.ret.Type)
	if err != nil {
		return nil, nil, s.wrap(err, nil)
	}
	b.Add(hdl.Assign(v, cs.ret.Ref()))
	return v, cs.ret.Type, nil
}

func (s *scope) call(e *ast.Call) (hdl.Expr, hdl.DataType, error) {
	if e.Method.Class != nil {
		switch e.Method.Class.Name {
		case ast.MemoryClassName:
			return s.memoryAccess(e)
		case ast.SimdClassName:
			return s.simd(e)
		}
	}
	var recv *argument
	if e.Recv != nil {
		x, xt, err := s.expr(e.Recv)
		if err != nil {
			return nil, nil, err
		}
		recv = &argument{x: x, t: xt}
	}
	return s.invoke(e.Method, recv, e.Args)
}

// invoke lowers a synchronous call: start the callee, then wait for it in a
// new state. Lowering continues in the wait state once the callee finished.
//
// Recursive calls, direct or through other members, go to the instance
// picked by recursionSlot. Calls past the deepest configured instance never
// complete.
//
func (s *scope) invoke(target *ast.Method, recv *argument, args []ast.Expr) (hdl.Expr, hdl.DataType, error) {
	if target.Extern {
		return nil, nil, newError(ErrExtern, target.FullName(), "", "managed code is required at this boundary")
	}
	lowered, err := s.arguments(target, recv, args)
	if err != nil {
		return nil, nil, err
	}
	slot := 0
	if s.graph.recursive(s.method, target) {
		slot = recursionSlot(s.method, target, s.instance)
		if slot >= s.t.cfg.Member(target.FullName()).MaxInvocationInstanceCount() {
			return s.deadInvocation(target)
		}
	}
	cs, err := s.callSignals(target, slot)
	if err != nil {
		return nil, nil, s.wrap(err, target)
	}
	s.settle(cs.instance)
	if err = s.startInvocation(s.cur.block, cs, lowered); err != nil {
		return nil, nil, err
	}
	s.openState()
	ie := hdl.If(cs.finished)
	s.add(ie)
	s.cur.block = ie.True
	v, vt, err := s.finishInvocation(s.cur.block, cs, lowered)
	if err != nil {
		return nil, nil, err
	}
	s.markFinished(cs.instance)
	return v, vt, nil
}

// deadInvocation lowers a recursive call that exceeds the configured
// recursion depth into a state that never exits.
func (s *scope) deadInvocation(target *ast.Method) (hdl.Expr, hdl.DataType, error) {
	s.warn(WarnRecursionDepth, "recursive call in instance %d exceeds the maximum recursion depth, it will never complete", s.instance)
	w := s.openState()
	s.transition(w.Index)
	s.moveTo(s.newState())
	if target.IsVoid() {
		return nil, nil, nil
	}
	rt, err := s.hwType(target.Result)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.newVariable("return", rt)
	if err != nil {
		return nil, nil, s.wrap(err, nil)
	}
	return v, rt, nil
}

// taskSlots holds the caller side of parallel invocations of a member: one
// pending flag and result variable per instance and a rotating index
// selecting the instance to start next.
type taskSlots struct {
	target      *ast.Method
	index       hdl.Ref
	calls       []*callSignals
	pending     []hdl.Ref
	results     []hdl.Ref
	outstanding int
}

func (s *scope) taskSlots(target *ast.Method) (*taskSlots, error) {
	name := target.FullName()
	if ts, ok := s.tasks[name]; ok {
		return ts, nil
	}
	n := s.t.cfg.Member(name).MaxInvocationInstanceCount()
	ts := &taskSlots{target: target}
	o, err := s.m.AddVariable(s.m.Prefixed(name+".invocationIndex"), hdl.IntegerType, hdl.StateValue(0))
	if err != nil {
		return nil, err
	}
	ts.index = o.Ref()
	for i := 0; i < n; i++ {
		cs, err := s.callSignals(target, i)
		if err != nil {
			return nil, err
		}
		ts.calls = append(ts.calls, cs)
		o, err := s.m.AddVariable(s.m.Prefixed(cs.instance+".pending"), hdl.BooleanType, hdl.BoolValue(false))
		if err != nil {
			return nil, err
		}
		ts.pending = append(ts.pending, o.Ref())
		if cs.ret != nil {
			o, err := s.m.AddVariable(s.m.Prefixed(cs.instance+".result"), cs.ret.Type, hdl.ZeroValue(cs.ret.Type))
			if err != nil {
				return nil, err
			}
			ts.results = append(ts.results, o.Ref())
		}
	}
	s.tasks[name] = ts
	return ts, nil
}

// startTask starts the next instance of the target and yields the index of
// that instance as the task handle.
func (s *scope) startTask(e *ast.StartTask) (hdl.Expr, hdl.DataType, error) {
	ts, err := s.taskSlots(e.Method)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	ts.outstanding++
	if ts.outstanding > len(ts.calls) {
		return nil, nil, s.errorf(ErrResource, e, "%d parallel invocations of %s started, at most %d instances are configured",
			ts.outstanding, e.Method.FullName(), len(ts.calls))
	}
	args, err := s.arguments(e.Method, nil, e.Args)
	if err != nil {
		return nil, nil, err
	}
	s.settle(lo.Map(ts.calls, func(cs *callSignals, _ int) string { return cs.instance })...)

	c := &hdl.Case{X: ts.index, Others: &hdl.Block{}}
	for i, cs := range ts.calls {
		w := &hdl.When{Choices: []hdl.Expr{hdl.StateValue(i)}, Body: &hdl.Block{}}
		if err = s.startInvocation(w.Body, cs, args); err != nil {
			return nil, nil, err
		}
		w.Body.Add(hdl.Assign(ts.pending[i], hdl.BoolValue(true)))
		c.Whens = append(c.Whens, w)
	}
	s.add(c)
	h, err := s.newVariable("task", hdl.IntegerType)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	s.add(hdl.Assign(h, ts.index))
	wrap := hdl.If(&hdl.Binary{Op: hdl.Eq, X: ts.index, Y: hdl.StateValue(len(ts.calls) - 1)})
	wrap.True.Add(hdl.Assign(ts.index, hdl.StateValue(0)))
	wrap.Else = &hdl.Block{Body: []hdl.Stmt{hdl.Assign(ts.index, &hdl.Binary{Op: hdl.Add, X: ts.index, Y: hdl.StateValue(1)})}}
	s.add(wrap)
	s.reserve(s.t.cfg.Device.ClockCycles(device.OpAdd, 32, true))
	return h, hdl.IntegerType, nil
}

// waitTargets returns the task slots a wait applies to: the targets of the
// handle variables when they are known, otherwise all members with started
// tasks.
func (s *scope) waitTargets(tasks []ast.Expr) ([]*taskSlots, error) {
	var targets []*taskSlots
	for _, t := range tasks {
		x, _, err := s.expr(t)
		if err != nil {
			return nil, err
		}
		r, ok := hdl.RootRef(x)
		if !ok {
			continue
		}
		if m, ok := s.taskVars[r.Name]; ok {
			targets = append(targets, s.tasks[m.FullName()])
		}
	}
	if len(targets) == 0 {
		for _, ts := range s.tasks {
			targets = append(targets, ts)
		}
	}
	// map iteration order is random.
	return lo.Filter(s.sortedTasks(), func(ts *taskSlots, _ int) bool { return lo.Contains(targets, ts) }), nil
}

func (s *scope) sortedTasks() []*taskSlots {
	keys := lo.Keys(s.tasks)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) *taskSlots { return s.tasks[k] })
}

// waitTasks waits for all (or any) pending instances of the targeted
// members. Every instance found finished is acknowledged and its return value
// saved.
func (s *scope) waitTasks(e *ast.WaitTasks) error {
	targets, err := s.waitTargets(e.Tasks)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return s.errorf(ErrUnsupported, e, "wait without started tasks")
	}
	var cond hdl.Expr
	join := func(op hdl.BinaryOp, x hdl.Expr) {
		if cond == nil {
			cond = x
		} else {
			cond = &hdl.Binary{Op: op, X: cond, Y: x}
		}
	}
	var keys []string
	for _, ts := range targets {
		for i, cs := range ts.calls {
			if e.Any {
				join(hdl.Or, &hdl.Binary{Op: hdl.And, X: ts.pending[i], Y: cs.finished})
			} else {
				join(hdl.And, &hdl.Binary{Op: hdl.Or, X: &hdl.Unary{Op: hdl.Not, X: ts.pending[i]}, Y: cs.finished})
			}
			keys = append(keys, cs.instance)
		}
	}
	s.openState()
	ie := hdl.If(cond)
	s.add(ie)
	s.cur.block = ie.True
	for _, ts := range targets {
		for i, cs := range ts.calls {
			done := hdl.If(&hdl.Binary{Op: hdl.And, X: ts.pending[i], Y: cs.finished})
			done.True.Add(
				hdl.Assign(cs.started, hdl.BoolValue(false)),
				hdl.Assign(ts.pending[i], hdl.BoolValue(false)),
			)
			if cs.ret != nil {
				done.True.Add(hdl.Assign(ts.results[i], cs.ret.Ref()))
			}
			s.add(done)
		}
		if e.Any {
			if ts.outstanding > 0 {
				ts.outstanding--
			}
		} else {
			ts.outstanding = 0
		}
	}
	s.markFinished(keys...)
	return nil
}

// taskResult reads the saved return value of the instance a handle refers to.
func (s *scope) taskResult(e *ast.TaskResult) (hdl.Expr, hdl.DataType, error) {
	h, ht, err := s.expr(e.Task)
	if err != nil {
		return nil, nil, err
	}
	ts, err := s.resultTarget(h, e)
	if err != nil {
		return nil, nil, err
	}
	if len(ts.results) == 0 {
		return nil, nil, s.errorf(ErrUnsupported, e, "result of void task %s", ts.target.FullName())
	}
	hi, err := conv.Convert(ht, hdl.IntegerType, h)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	rt := s.typeOf(ts.results[0])
	v, err := s.newVariable("taskResult", rt)
	if err != nil {
		return nil, nil, s.wrap(err, e)
	}
	c := &hdl.Case{X: hi.Expr, Others: &hdl.Block{}}
	for i, r := range ts.results {
		c.Whens = append(c.Whens, &hdl.When{
			Choices: []hdl.Expr{hdl.StateValue(i)},
			Body:    &hdl.Block{Body: []hdl.Stmt{hdl.Assign(v, r)}},
		})
	}
	s.add(c)
	return v, rt, nil
}

// resultTarget finds the task slots a handle belongs to, by the variable
// holding it or else by result type.
func (s *scope) resultTarget(h hdl.Expr, e *ast.TaskResult) (*taskSlots, error) {
	if r, ok := hdl.RootRef(h); ok {
		if m, ok := s.taskVars[r.Name]; ok {
			return s.tasks[m.FullName()], nil
		}
	}
	tt, _ := e.Task.Type().(*ast.TaskType)
	var found *taskSlots
	for _, ts := range s.sortedTasks() {
		if tt != nil && ast.SameType(ts.target.Result, tt.Result) {
			if found != nil {
				return nil, s.errorf(ErrUnsupported, e, "ambiguous task handle")
			}
			found = ts
		}
	}
	if found == nil {
		return nil, s.errorf(ErrUnsupported, e, "task handle of unknown origin")
	}
	return found, nil
}
