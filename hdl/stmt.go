// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hdl

// A Stmt is a sequential hardware statement executed within a state.
//
type Stmt interface {
	stmt()
}

// Block is an ordered list of statements.
//
type Block struct {
	Body []Stmt
}

func (*Block) stmt() {}

// Add appends statements to the block.
//
func (b *Block) Add(s ...Stmt) {
	b.Body = append(b.Body, s...)
}

// Assignment assigns Value to Target. Assignments to signals become visible
// at the next clock edge, assignments to variables immediately.
//
type Assignment struct {
	Target Expr
	Value  Expr
}

func (*Assignment) stmt() {}

// Assign returns an assignment statement.
func Assign(target, value Expr) *Assignment { return &Assignment{Target: target, Value: value} }

// IfElse is a conditional. Else may be nil.
//
type IfElse struct {
	Cond Expr
	True *Block
	Else *Block
}

func (*IfElse) stmt() {}

// If returns an IfElse with an empty True block and no Else block.
func If(cond Expr) *IfElse { return &IfElse{Cond: cond, True: &Block{}} }

// When is one branch of a Case.
//
type When struct {
	Choices []Expr
	Body    *Block
}

// Case selects a branch by value. Others is the fallback branch and is always
// present.
//
type Case struct {
	X      Expr
	Whens  []*When
	Others *Block
}

func (*Case) stmt() {}

// Comment is a line comment.
//
type Comment struct {
	Text string
}

func (*Comment) stmt() {}

// Walk calls fn for every statement in b, depth first. Nested blocks are
// visited after the statement containing them.
//
func Walk(b *Block, fn func(Stmt)) {
	if b == nil {
		return
	}
	for _, s := range b.Body {
		fn(s)
		switch s := s.(type) {
		case *Block:
			Walk(s, fn)
		case *IfElse:
			Walk(s.True, fn)
			Walk(s.Else, fn)
		case *Case:
			for _, w := range s.Whens {
				Walk(w.Body, fn)
			}
			Walk(s.Others, fn)
		}
	}
}

// forEachExpr calls VisitExpr on the expressions held directly by s.
func forEachExpr(s Stmt, fn func(Expr)) {
	switch s := s.(type) {
	case *Assignment:
		VisitExpr(s.Target, fn)
		VisitExpr(s.Value, fn)
	case *IfElse:
		VisitExpr(s.Cond, fn)
	case *Case:
		VisitExpr(s.X, fn)
		for _, w := range s.Whens {
			for _, c := range w.Choices {
				VisitExpr(c, fn)
			}
		}
	}
}
