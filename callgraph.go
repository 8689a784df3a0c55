// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hwfsm

import "github.com/db47h/hwfsm/ast"

// callGraph is the static call graph of the reachable members. Members of
// the same strongly connected component call each other recursively.
//
type callGraph struct {
	members   []*ast.Method
	callees   map[*ast.Method][]*ast.Method
	component map[*ast.Method]int
}

// callees returns the methods m calls directly, including constructors and
// started tasks, in source order.
func callees(m *ast.Method) []*ast.Method {
	if m.Body == nil {
		return nil
	}
	var out []*ast.Method
	ast.Inspect(m.Body, func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.Call:
			out = append(out, e.Method)
		case *ast.StartTask:
			out = append(out, e.Method)
		case *ast.New:
			out = append(out, e.Ctor)
			for _, f := range e.Class.Fields {
				ast.InspectExpr(f.Init, func(e ast.Expr) {
					if c, ok := e.(*ast.Call); ok {
						out = append(out, c.Method)
					}
				})
			}
		}
	})
	return out
}

// newCallGraph returns the call graph of the methods reachable from the entry
// points, in discovery order. Intrinsic members are excluded.
//
func newCallGraph(entries []*ast.Method) *callGraph {
	g := &callGraph{
		callees:   make(map[*ast.Method][]*ast.Method),
		component: make(map[*ast.Method]int),
	}
	seen := make(map[*ast.Method]bool)
	var visit func(m *ast.Method)
	visit = func(m *ast.Method) {
		if m == nil || seen[m] || isIntrinsic(m) {
			return
		}
		seen[m] = true
		g.members = append(g.members, m)
		for _, c := range callees(m) {
			if c == nil || isIntrinsic(c) {
				continue
			}
			g.callees[m] = append(g.callees[m], c)
			visit(c)
		}
	}
	for _, m := range entries {
		visit(m)
	}
	g.components()
	return g
}

// components numbers the strongly connected components of g (Tarjan).
func (g *callGraph) components() {
	var (
		index   = make(map[*ast.Method]int)
		low     = make(map[*ast.Method]int)
		onStack = make(map[*ast.Method]bool)
		stack   []*ast.Method
		next    int
		comp    int
	)
	var connect func(m *ast.Method)
	connect = func(m *ast.Method) {
		index[m], low[m] = next, next
		next++
		stack = append(stack, m)
		onStack[m] = true
		for _, c := range g.callees[m] {
			if _, ok := index[c]; !ok {
				connect(c)
				if low[c] < low[m] {
					low[m] = low[c]
				}
			} else if onStack[c] && index[c] < low[m] {
				low[m] = index[c]
			}
		}
		if low[m] != index[m] {
			return
		}
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			g.component[top] = comp
			if top == m {
				break
			}
		}
		comp++
	}
	for _, m := range g.members {
		if _, ok := index[m]; !ok {
			connect(m)
		}
	}
}

// recursive reports whether a call from caller to callee can lead back to
// caller.
//
func (g *callGraph) recursive(caller, callee *ast.Method) bool {
	c1, ok1 := g.component[caller]
	c2, ok2 := g.component[callee]
	return ok1 && ok2 && c1 == c2
}

// recursionSlot returns the instance of callee that instance k of caller
// invokes, when both are in the same recursion cycle. Members of a cycle are
// ranked by name: calls to a member of lower or equal rank go one instance
// deeper, so that every path around the cycle ends up in a deeper instance.
//
func recursionSlot(caller, callee *ast.Method, k int) int {
	if callee.FullName() <= caller.FullName() {
		return k + 1
	}
	return k
}
