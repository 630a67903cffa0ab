// Package semantic builds the per-module semantic index: scope chains,
// definitions, and expression identities, used by the type resolver and
// validators (spec §4.3).
package semantic

import (
	"github.com/cairo-m/cairom/internal/cairom/ast"
	"github.com/cairo-m/cairom/internal/cairom/diag"
)

// ScopeId identifies one lexical scope.
type ScopeId int

// DefinitionId identifies one name binding (a function, struct, parameter,
// or local variable).
type DefinitionId int

// ExpressionId identifies one expression node, stable across a module's
// lifetime so later passes (types, mir) can attach facts to it without
// re-walking the AST.
type ExpressionId int

// DefKind classifies what a Definition binds.
type DefKind int

const (
	DefFunction DefKind = iota
	DefStruct
	DefParam
	DefLocal
)

// Definition is one name binding recorded in a scope.
type Definition struct {
	Name  string
	Kind  DefKind
	Scope ScopeId
	Node  any // *ast.FuncDecl, *ast.StructDecl, ast.Param, or *ast.LetStmt
	Span  diag.Span
	Used  bool
}

// Scope is one lexical scope: a set of bindings plus a parent link.
type Scope struct {
	Parent ScopeId // -1 for the root scope
	Defs   map[string]DefinitionId
}

// Index is the fully-built semantic index for one module.
type Index struct {
	Scopes      []Scope
	Definitions []Definition
	Expressions map[ast.Expr]ExpressionId
	Diagnostics []diag.Diagnostic
}

func newIndex() *Index {
	return &Index{Expressions: make(map[ast.Expr]ExpressionId)}
}

func (idx *Index) newScope(parent ScopeId) ScopeId {
	idx.Scopes = append(idx.Scopes, Scope{Parent: parent, Defs: make(map[string]DefinitionId)})
	return ScopeId(len(idx.Scopes) - 1)
}

func (idx *Index) define(scope ScopeId, d Definition) DefinitionId {
	id := DefinitionId(len(idx.Definitions))
	idx.Definitions = append(idx.Definitions, d)
	if prev, exists := idx.Scopes[scope].Defs[d.Name]; exists {
		idx.Diagnostics = append(idx.Diagnostics,
			diag.New(diag.CodeDuplicateDefinition, d.Span, "duplicate definition of '"+d.Name+"'").
				WithLabel(idx.Definitions[prev].Span, "previous definition here"))
	}
	idx.Scopes[scope].Defs[d.Name] = id
	return id
}

// Resolve walks scope to its root looking for name, returning its
// DefinitionId and true if found.
func (idx *Index) Resolve(scope ScopeId, name string) (DefinitionId, bool) {
	for s := scope; s >= 0; {
		if id, ok := idx.Scopes[s].Defs[name]; ok {
			return id, true
		}
		s = idx.Scopes[s].Parent
	}
	return 0, false
}

func (idx *Index) exprId(e ast.Expr) ExpressionId {
	if id, ok := idx.Expressions[e]; ok {
		return id
	}
	id := ExpressionId(len(idx.Expressions))
	idx.Expressions[e] = id
	return id
}

// Build walks mod and produces its semantic Index: a root scope holding
// every top-level function/struct name, then one nested scope per function
// body (and per nested block) holding parameters and locals.
func Build(mod *ast.Module) *Index {
	idx := newIndex()
	root := idx.newScope(-1)

	var funcs []*ast.FuncDecl
	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.FuncDecl:
			idx.define(root, Definition{Name: it.Name, Kind: DefFunction, Scope: root, Node: it, Span: it.Span})
			funcs = append(funcs, it)
		case *ast.StructDecl:
			idx.define(root, Definition{Name: it.Name, Kind: DefStruct, Scope: root, Node: it, Span: it.Span})
		}
	}

	for _, fn := range funcs {
		idx.buildFunction(root, fn)
	}

	markUnused(idx)
	return idx
}

func (idx *Index) buildFunction(root ScopeId, fn *ast.FuncDecl) {
	fnScope := idx.newScope(root)
	for _, param := range fn.Params {
		idx.define(fnScope, Definition{Name: param.Name, Kind: DefParam, Scope: fnScope, Node: param, Span: param.Span})
	}
	idx.buildBlock(fnScope, fn.Body)
}

func (idx *Index) buildBlock(parent ScopeId, block *ast.Block) {
	scope := idx.newScope(parent)
	for _, stmt := range block.Stmts {
		idx.buildStmt(scope, stmt)
	}
}

func (idx *Index) buildStmt(scope ScopeId, stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		idx.buildExpr(scope, s.Value)
		idx.define(scope, Definition{Name: s.Name, Kind: DefLocal, Scope: scope, Node: s, Span: s.Span})
	case *ast.AssignStmt:
		idx.buildExpr(scope, s.Target)
		idx.buildExpr(scope, s.Value)
	case *ast.ReturnStmt:
		if s.Value != nil {
			idx.buildExpr(scope, s.Value)
		}
	case *ast.ExprStmt:
		if s.Value != nil {
			idx.buildExpr(scope, s.Value)
		}
	case *ast.IfStmt:
		idx.buildExpr(scope, s.Cond)
		idx.buildBlock(scope, s.Then)
		if s.Else != nil {
			idx.buildBlock(scope, s.Else)
		}
	case *ast.WhileStmt:
		idx.buildExpr(scope, s.Cond)
		idx.buildBlock(scope, s.Body)
	case *ast.LoopStmt:
		idx.buildBlock(scope, s.Body)
	}
}

func (idx *Index) buildExpr(scope ScopeId, expr ast.Expr) {
	if expr == nil {
		return
	}
	idx.exprId(expr)
	switch e := expr.(type) {
	case *ast.IdentExpr:
		if def, ok := idx.Resolve(scope, e.Name); ok {
			idx.Definitions[def].Used = true
		} else {
			idx.Diagnostics = append(idx.Diagnostics, diag.New(diag.CodeUndefinedName, e.Span, "undefined name '"+e.Name+"'"))
		}
	case *ast.BinaryExpr:
		idx.buildExpr(scope, e.Left)
		idx.buildExpr(scope, e.Right)
	case *ast.UnaryExpr:
		idx.buildExpr(scope, e.Operand)
	case *ast.CallExpr:
		if _, ok := idx.Resolve(scope, e.Callee); !ok {
			idx.Diagnostics = append(idx.Diagnostics, diag.New(diag.CodeUndefinedName, e.Span, "undefined function '"+e.Callee+"'"))
		}
		for _, a := range e.Args {
			idx.buildExpr(scope, a)
		}
	case *ast.FieldExpr:
		idx.buildExpr(scope, e.Base)
	case *ast.TupleIndexExpr:
		idx.buildExpr(scope, e.Base)
	case *ast.IndexExpr:
		idx.buildExpr(scope, e.Base)
		idx.buildExpr(scope, e.Index)
	case *ast.TupleExpr:
		for _, el := range e.Elements {
			idx.buildExpr(scope, el)
		}
	case *ast.ArrayExpr:
		for _, el := range e.Elements {
			idx.buildExpr(scope, el)
		}
	case *ast.StructLitExpr:
		for _, f := range e.Fields {
			idx.buildExpr(scope, f.Value)
		}
	}
}

func markUnused(idx *Index) {
	for _, def := range idx.Definitions {
		if def.Kind == DefLocal && !def.Used {
			idx.Diagnostics = append(idx.Diagnostics, diag.Warningf(diag.CodeUnusedVariable, def.Span, "unused variable '%s'", def.Name))
		}
	}
}
