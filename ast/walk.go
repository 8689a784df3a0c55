// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package ast

// WalkStmt calls fn for s and every statement nested in it, depth first.
//
func WalkStmt(s Stmt, fn func(Stmt)) {
	if s == nil {
		return
	}
	if b, ok := s.(*Block); ok && b == nil {
		return
	}
	fn(s)
	switch s := s.(type) {
	case *Block:
		for _, c := range s.Stmts {
			WalkStmt(c, fn)
		}
	case *If:
		WalkStmt(s.Then, fn)
		WalkStmt(s.Else, fn)
	case *While:
		WalkStmt(s.Body, fn)
	case *DoWhile:
		WalkStmt(s.Body, fn)
	case *For:
		for _, c := range s.Init {
			WalkStmt(c, fn)
		}
		for _, c := range s.Post {
			WalkStmt(c, fn)
		}
		WalkStmt(s.Body, fn)
	case *Switch:
		for _, sec := range s.Sections {
			for _, c := range sec.Body {
				WalkStmt(c, fn)
			}
		}
	case *Labeled:
		WalkStmt(s.Stmt, fn)
	case *TryCatch:
		WalkStmt(s.Try, fn)
		WalkStmt(s.Catch, fn)
		WalkStmt(s.Finally, fn)
	}
}

// Inspect calls fn for every expression in s and its nested statements,
// including sub-expressions.
//
func Inspect(s Stmt, fn func(Expr)) {
	WalkStmt(s, func(s Stmt) {
		switch s := s.(type) {
		case *VarDecl:
			InspectExpr(s.Init, fn)
		case *ExprStmt:
			InspectExpr(s.X, fn)
		case *Return:
			InspectExpr(s.Value, fn)
		case *If:
			InspectExpr(s.Cond, fn)
		case *While:
			InspectExpr(s.Cond, fn)
		case *DoWhile:
			InspectExpr(s.Cond, fn)
		case *For:
			InspectExpr(s.Cond, fn)
		case *Switch:
			InspectExpr(s.Tag, fn)
			for _, sec := range s.Sections {
				for _, l := range sec.Labels {
					InspectExpr(l, fn)
				}
			}
		case *Throw:
			InspectExpr(s.X, fn)
		}
	})
}

// InspectExpr calls fn for e and its sub-expressions.
//
func InspectExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *MemberAccess:
		InspectExpr(e.X, fn)
	case *Cast:
		InspectExpr(e.X, fn)
	case *Binary:
		InspectExpr(e.X, fn)
		InspectExpr(e.Y, fn)
	case *Unary:
		InspectExpr(e.X, fn)
	case *Assign:
		InspectExpr(e.Target, fn)
		InspectExpr(e.Value, fn)
	case *Index:
		InspectExpr(e.X, fn)
		for _, i := range e.Indices {
			InspectExpr(i, fn)
		}
	case *New:
		for _, a := range e.Args {
			InspectExpr(a, fn)
		}
	case *Call:
		InspectExpr(e.Recv, fn)
		for _, a := range e.Args {
			InspectExpr(a, fn)
		}
	case *StartTask:
		for _, a := range e.Args {
			InspectExpr(a, fn)
		}
	case *WaitTasks:
		for _, t := range e.Tasks {
			InspectExpr(t, fn)
		}
	case *TaskResult:
		InspectExpr(e.Task, fn)
	}
}
