package ast

import "github.com/cairo-m/cairom/internal/cairom/diag"

// Item is a top-level declaration: a function or a struct definition.
type Item interface{ isItem() }

// TypeExpr is the surface syntax for a type annotation, resolved to a
// types.MirType by internal/cairom/types.
type TypeExpr struct {
	Name    string      // scalar/struct name, or "" for compound forms below
	Pointee *TypeExpr   // non-nil for `*T`
	Elem    *TypeExpr   // non-nil for `[T; N]`
	Length  int         // N, for fixed arrays
	Tuple   []*TypeExpr // non-nil for `(T1, T2, ...)`
	Span    diag.Span
}

// Param is one function parameter.
type Param struct {
	Name string
	Type *TypeExpr
	Span diag.Span
}

// FuncDecl is a top-level function definition.
type FuncDecl struct {
	Name       string
	Params     []Param
	ReturnType *TypeExpr // nil means Unit
	Body       *Block
	Span       diag.Span
}

func (*FuncDecl) isItem() {}

// FieldDecl is one named, typed struct field.
type FieldDecl struct {
	Name string
	Type *TypeExpr
	Span diag.Span
}

// StructDecl is a top-level struct definition.
type StructDecl struct {
	Name   string
	Fields []FieldDecl
	Span   diag.Span
}

func (*StructDecl) isItem() {}

// Stmt is a statement within a function body.
type Stmt interface{ isStmt() }

// Block is a brace-delimited sequence of statements.
type Block struct {
	Stmts []Stmt
	Span  diag.Span
}

// LetStmt binds a new local, optionally mutable, optionally type-annotated.
type LetStmt struct {
	Name  string
	Mut   bool
	Type  *TypeExpr
	Value Expr
	Span  diag.Span
}

func (*LetStmt) isStmt() {}

// AssignStmt assigns to an existing lvalue.
type AssignStmt struct {
	Target Expr
	Value  Expr
	Span   diag.Span
}

func (*AssignStmt) isStmt() {}

// ReturnStmt returns from the enclosing function.
type ReturnStmt struct {
	Value Expr // nil for a bare `return;`
	Span  diag.Span
}

func (*ReturnStmt) isStmt() {}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	Value Expr
	Span  diag.Span
}

func (*ExprStmt) isStmt() {}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Cond Expr
	Then *Block
	Else *Block // may itself be a single-statement block wrapping an `else if`
	Span diag.Span
}

func (*IfStmt) isStmt() {}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Cond Expr
	Body *Block
	Span diag.Span
}

func (*WhileStmt) isStmt() {}

// LoopStmt is an unconditional loop, exited via `break`.
type LoopStmt struct {
	Body *Block
	Span diag.Span
}

func (*LoopStmt) isStmt() {}

// BreakStmt exits the nearest enclosing loop.
type BreakStmt struct{ Span diag.Span }

func (*BreakStmt) isStmt() {}

// ContinueStmt jumps to the nearest enclosing loop's next iteration.
type ContinueStmt struct{ Span diag.Span }

func (*ContinueStmt) isStmt() {}

// ErrorStmt is an error-recovery placeholder statement. Parse does not
// produce it: a malformed statement surfaces as an ExprStmt wrapping an
// ErrorExpr.
type ErrorStmt struct{ Span diag.Span }

func (*ErrorStmt) isStmt() {}

// Expr is an expression node.
type Expr interface{ isExpr() }

// IdentExpr references a local, parameter, or function name.
type IdentExpr struct {
	Name string
	Span diag.Span
}

func (*IdentExpr) isExpr() {}

// NumberExpr is an integer literal.
type NumberExpr struct {
	Value int64
	Span  diag.Span
}

func (*NumberExpr) isExpr() {}

// BoolExpr is a `true`/`false` literal.
type BoolExpr struct {
	Value bool
	Span  diag.Span
}

func (*BoolExpr) isExpr() {}

// BinaryExpr is a binary operator application.
type BinaryExpr struct {
	Op          string
	Left, Right Expr
	Span        diag.Span
}

func (*BinaryExpr) isExpr() {}

// UnaryExpr is a prefix operator application (`-x`, `!x`, `&x`).
type UnaryExpr struct {
	Op      string
	Operand Expr
	Span    diag.Span
}

func (*UnaryExpr) isExpr() {}

// CallExpr invokes a named function.
type CallExpr struct {
	Callee string
	Args   []Expr
	Span   diag.Span
}

func (*CallExpr) isExpr() {}

// FieldExpr accesses a named struct field.
type FieldExpr struct {
	Base  Expr
	Field string
	Span  diag.Span
}

func (*FieldExpr) isExpr() {}

// TupleIndexExpr accesses a tuple element by position (`.0`, `.1`, ...).
type TupleIndexExpr struct {
	Base  Expr
	Index int
	Span  diag.Span
}

func (*TupleIndexExpr) isExpr() {}

// IndexExpr indexes into a fixed array.
type IndexExpr struct {
	Base  Expr
	Index Expr
	Span  diag.Span
}

func (*IndexExpr) isExpr() {}

// TupleExpr is a tuple constructor `(a, b, c)`.
type TupleExpr struct {
	Elements []Expr
	Span     diag.Span
}

func (*TupleExpr) isExpr() {}

// ArrayExpr is a fixed-array constructor `[a, b, c]`.
type ArrayExpr struct {
	Elements []Expr
	Span     diag.Span
}

func (*ArrayExpr) isExpr() {}

// StructLitExpr is a struct constructor `Name { field: value, ... }`.
type StructLitExpr struct {
	Name   string
	Fields []StructLitField
	Span   diag.Span
}

func (*StructLitExpr) isExpr() {}

// StructLitField is one `name: value` entry of a StructLitExpr.
type StructLitField struct {
	Name  string
	Value Expr
}

// ErrorExpr is an error-recovery placeholder substituted for an expression
// the parser couldn't make sense of.
type ErrorExpr struct{ Span diag.Span }

func (*ErrorExpr) isExpr() {}

// Module is the parsed form of one source file.
type Module struct {
	Items       []Item
	Diagnostics []diag.Diagnostic
}
