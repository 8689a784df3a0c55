// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package ast

// A Stmt is a statement node. The set of statement kinds is closed.
//
type Stmt interface {
	stmtNode()
}

// Block is a list of statements.
type Block struct{ Stmts []Stmt }

// VarDecl declares a local variable. Synthesized declarations are produced by
// the compiler (closure helpers and the like) and do not map to user code.
type VarDecl struct {
	Name        string
	Type        Type
	Init        Expr
	Synthesized bool
}

// ExprStmt evaluates an expression and discards its value.
type ExprStmt struct{ X Expr }

// Return returns from the method. Value is nil in void methods.
type Return struct{ Value Expr }

// If is a conditional statement. Else may be nil.
type If struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// While is a pre-tested loop.
type While struct {
	Cond Expr
	Body Stmt
}

// DoWhile is a post-tested loop.
type DoWhile struct {
	Body Stmt
	Cond Expr
}

// For is a counting loop.
type For struct {
	Init []Stmt
	Cond Expr
	Post []Stmt
	Body Stmt
}

// SwitchSection is a group of case labels sharing a body. A nil Labels slice
// denotes the default section.
type SwitchSection struct {
	Labels []Expr
	Body   []Stmt
}

// Switch selects a section by value.
type Switch struct {
	Tag      Expr
	Sections []*SwitchSection
}

// Break exits the innermost loop or switch.
type Break struct{}

// Continue jumps to the next iteration of the innermost loop.
type Continue struct{}

// Throw raises an exception.
type Throw struct{ X Expr }

// Goto jumps to a label.
type Goto struct{ Label string }

// Labeled is a labeled statement.
type Labeled struct {
	Label string
	Stmt  Stmt
}

// TryCatch is a try/catch/finally statement.
type TryCatch struct {
	Try     *Block
	Catch   *Block
	Finally *Block
}

// Empty is the empty statement.
type Empty struct{}

func (*Block) stmtNode()    {}
func (*VarDecl) stmtNode()  {}
func (*ExprStmt) stmtNode() {}
func (*Return) stmtNode()   {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*DoWhile) stmtNode()  {}
func (*For) stmtNode()      {}
func (*Switch) stmtNode()   {}
func (*Break) stmtNode()    {}
func (*Continue) stmtNode() {}
func (*Throw) stmtNode()    {}
func (*Goto) stmtNode()     {}
func (*Labeled) stmtNode()  {}
func (*TryCatch) stmtNode() {}
func (*Empty) stmtNode()    {}

// An Expr is an expression node annotated with its resolved type. The set of
// expression kinds is closed.
//
type Expr interface {
	Type() Type
	exprNode()
}

// Literal is a constant. Value holds an int64 for signed integers, uint64 for
// unsigned integers, rune for chars, bool or float64.
type Literal struct {
	T     Type
	Value interface{}
}

// Ident refers to a local variable or parameter.
type Ident struct {
	Name string
	T    Type
}

// This refers to the object an instance method operates on.
type This struct{ Class *Class }

// MemberAccess accesses a field, or the Length of an array.
type MemberAccess struct {
	X    Expr
	Name string
	T    Type
}

// Cast is an explicit conversion.
type Cast struct {
	To Type
	X  Expr
}

// BinaryOp is a binary operator.
type BinaryOp int

// Binary operators.
const (
	OpNone BinaryOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpAnd // bitwise, or logical on bool
	OpOr
	OpXor
	OpLogicalAnd
	OpLogicalOr
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
)

var binaryOpNames = [...]string{
	OpNone: "?", OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpRem: "%",
	OpShl: "<<", OpShr: ">>", OpAnd: "&", OpOr: "|", OpXor: "^",
	OpLogicalAnd: "&&", OpLogicalOr: "||",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// Binary is a binary operation. T is the result type.
type Binary struct {
	Op   BinaryOp
	X, Y Expr
	T    Type
}

// UnaryOp is a unary operator.
type UnaryOp int

// Unary operators.
const (
	OpNeg UnaryOp = iota
	OpPlus
	OpNot        // logical negation
	OpComplement // bitwise complement
	OpPreInc
	OpPreDec
	OpPostInc
	OpPostDec
)

// Unary is a unary operation. T is the result type.
type Unary struct {
	Op UnaryOp
	X  Expr
	T  Type
}

// Assign assigns Value to Target. A compound assignment (x += y) has Op set.
type Assign struct {
	Target Expr
	Value  Expr
	Op     BinaryOp
}

// Index indexes an array.
type Index struct {
	X       Expr
	Indices []Expr
	T       Type
}

// New creates an object and runs its constructor, if any.
type New struct {
	Class *Class
	Ctor  *Method
	Args  []Expr
}

// NewArray creates an array.
type NewArray struct {
	T *ArrayType
}

// Call invokes a method. Recv is nil for static methods.
type Call struct {
	Method *Method
	Recv   Expr
	Args   []Expr
}

// StartTask starts a parallel invocation of Method and yields its handle.
type StartTask struct {
	Method *Method
	Args   []Expr
}

// WaitTasks waits for all (or, if Any is set, any) of the given tasks. Tasks
// are task handles or arrays of task handles.
type WaitTasks struct {
	Tasks []Expr
	Any   bool
}

// TaskResult reads the result of a completed task.
type TaskResult struct {
	Task Expr
}

// Lambda is an anonymous function.
type Lambda struct {
	Params []*Param
	Body   *Block
	T      Type
}

func (e *Literal) Type() Type      { return e.T }
func (e *Ident) Type() Type        { return e.T }
func (e *This) Type() Type         { return e.Class }
func (e *MemberAccess) Type() Type { return e.T }
func (e *Cast) Type() Type         { return e.To }
func (e *Binary) Type() Type       { return e.T }
func (e *Unary) Type() Type        { return e.T }
func (e *Assign) Type() Type       { return e.Target.Type() }
func (e *Index) Type() Type        { return e.T }
func (e *New) Type() Type          { return e.Class }
func (e *NewArray) Type() Type     { return e.T }
func (e *Call) Type() Type {
	if e.Method.Result == nil {
		return Void
	}
	return e.Method.Result
}
func (e *StartTask) Type() Type  { return &TaskType{Result: e.Method.Result} }
func (e *WaitTasks) Type() Type  { return Void }
func (e *TaskResult) Type() Type { return e.Task.Type().(*TaskType).Result }
func (e *Lambda) Type() Type     { return e.T }

func (*Literal) exprNode()      {}
func (*Ident) exprNode()        {}
func (*This) exprNode()         {}
func (*MemberAccess) exprNode() {}
func (*Cast) exprNode()         {}
func (*Binary) exprNode()       {}
func (*Unary) exprNode()        {}
func (*Assign) exprNode()       {}
func (*Index) exprNode()        {}
func (*New) exprNode()          {}
func (*NewArray) exprNode()     {}
func (*Call) exprNode()         {}
func (*StartTask) exprNode()    {}
func (*WaitTasks) exprNode()    {}
func (*TaskResult) exprNode()   {}
func (*Lambda) exprNode()       {}
