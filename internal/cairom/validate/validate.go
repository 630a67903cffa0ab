// Package validate runs the independent scope, structural, control-flow,
// and type validator passes over a parsed module (spec §4.5). Each pass
// returns its own diagnostics and never aborts the others.
package validate

import (
	"github.com/cairo-m/cairom/internal/cairom/ast"
	"github.com/cairo-m/cairom/internal/cairom/diag"
	"github.com/cairo-m/cairom/internal/cairom/semantic"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// Result bundles every validator pass's diagnostics for one module.
type Result struct {
	Scope         []diag.Diagnostic
	Structural    []diag.Diagnostic
	ControlFlow   []diag.Diagnostic
	Types         []diag.Diagnostic
}

// All returns the concatenation of every pass's diagnostics, sorted by
// source position.
func (r Result) All() []diag.Diagnostic {
	var out []diag.Diagnostic
	out = append(out, r.Scope...)
	out = append(out, r.Structural...)
	out = append(out, r.ControlFlow...)
	out = append(out, r.Types...)
	diag.SortBySpan(out)
	return out
}

// Run executes all four validator passes.
func Run(mod *ast.Module, idx *semantic.Index, resolver *types.Resolver) Result {
	return Result{
		Scope:       idx.Diagnostics, // name resolution already ran while building the index
		Structural:  validateStructural(mod),
		ControlFlow: validateControlFlow(mod),
		Types:       validateTypes(mod, idx, resolver),
	}
}

// validateStructural checks shape invariants the parser doesn't itself
// enforce: duplicate struct field names, duplicate parameter names.
func validateStructural(mod *ast.Module) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.StructDecl:
			seen := map[string]diag.Span{}
			for _, f := range it.Fields {
				if prev, ok := seen[f.Name]; ok {
					out = append(out, diag.New(diag.CodeDuplicateDefinition, f.Span, "duplicate field '"+f.Name+"'").WithLabel(prev, "previous field here"))
					continue
				}
				seen[f.Name] = f.Span
			}
		case *ast.FuncDecl:
			seen := map[string]diag.Span{}
			for _, p := range it.Params {
				if prev, ok := seen[p.Name]; ok {
					out = append(out, diag.New(diag.CodeDuplicateDefinition, p.Span, "duplicate parameter '"+p.Name+"'").WithLabel(prev, "previous parameter here"))
					continue
				}
				seen[p.Name] = p.Span
			}
		}
	}
	return out
}

// validateControlFlow checks break/continue nesting, unreachable code
// after a terminal statement, and missing returns on non-unit functions.
func validateControlFlow(mod *ast.Module) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, item := range mod.Items {
		fn, ok := item.(*ast.FuncDecl)
		if !ok {
			continue
		}
		out = append(out, checkLoopNesting(fn.Body, false)...)
		out = append(out, checkUnreachable(fn.Body)...)
		if fn.ReturnType != nil && fn.ReturnType.Name != "" && !alwaysReturns(fn.Body) {
			out = append(out, diag.New(diag.CodeMissingReturn, fn.Span, "function '"+fn.Name+"' does not return on all paths"))
		}
	}
	return out
}

func checkLoopNesting(block *ast.Block, inLoop bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, stmt := range block.Stmts {
		switch s := stmt.(type) {
		case *ast.BreakStmt:
			if !inLoop {
				out = append(out, diag.New(diag.CodeBreakOutsideLoop, s.Span, "'break' outside of a loop"))
			}
		case *ast.ContinueStmt:
			if !inLoop {
				out = append(out, diag.New(diag.CodeBreakOutsideLoop, s.Span, "'continue' outside of a loop"))
			}
		case *ast.IfStmt:
			out = append(out, checkLoopNesting(s.Then, inLoop)...)
			if s.Else != nil {
				out = append(out, checkLoopNesting(s.Else, inLoop)...)
			}
		case *ast.WhileStmt:
			out = append(out, checkLoopNesting(s.Body, true)...)
		case *ast.LoopStmt:
			out = append(out, checkLoopNesting(s.Body, true)...)
		}
	}
	return out
}

func checkUnreachable(block *ast.Block) []diag.Diagnostic {
	var out []diag.Diagnostic
	terminated := false
	for _, stmt := range block.Stmts {
		if terminated {
			out = append(out, diag.Warningf(diag.CodeUnreachableCode, stmtSpan(stmt), "unreachable code"))
		}
		switch s := stmt.(type) {
		case *ast.ReturnStmt:
			terminated = true
		case *ast.BreakStmt, *ast.ContinueStmt:
			terminated = true
		case *ast.IfStmt:
			out = append(out, checkUnreachable(s.Then)...)
			if s.Else != nil {
				out = append(out, checkUnreachable(s.Else)...)
			}
			if s.Else != nil && alwaysReturns(s.Then) && alwaysReturns(s.Else) {
				terminated = true
			}
		case *ast.WhileStmt:
			out = append(out, checkUnreachable(s.Body)...)
		case *ast.LoopStmt:
			out = append(out, checkUnreachable(s.Body)...)
			terminated = !containsBreak(s.Body) // a `loop` with no break only exits via return
		}
	}
	return out
}

func stmtSpan(s ast.Stmt) diag.Span {
	switch v := s.(type) {
	case *ast.LetStmt:
		return v.Span
	case *ast.AssignStmt:
		return v.Span
	case *ast.ReturnStmt:
		return v.Span
	case *ast.ExprStmt:
		return v.Span
	case *ast.IfStmt:
		return v.Span
	case *ast.WhileStmt:
		return v.Span
	case *ast.LoopStmt:
		return v.Span
	case *ast.BreakStmt:
		return v.Span
	case *ast.ContinueStmt:
		return v.Span
	default:
		return diag.Span{}
	}
}

// alwaysReturns reports whether every control-flow path through block ends
// in a return (or an unconditional loop with no reachable break).
func alwaysReturns(block *ast.Block) bool {
	for _, stmt := range block.Stmts {
		switch s := stmt.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.IfStmt:
			if s.Else != nil && alwaysReturns(s.Then) && alwaysReturns(s.Else) {
				return true
			}
		case *ast.LoopStmt:
			if !containsBreak(s.Body) {
				return true
			}
		}
	}
	return false
}

func containsBreak(block *ast.Block) bool {
	for _, stmt := range block.Stmts {
		switch s := stmt.(type) {
		case *ast.BreakStmt:
			return true
		case *ast.IfStmt:
			if containsBreak(s.Then) {
				return true
			}
			if s.Else != nil && containsBreak(s.Else) {
				return true
			}
		}
	}
	return false
}

// validateTypes re-walks every function body checking that expression
// types are compatible with their context: let bindings against their
// annotation, binary operator operands against each other, return values
// against the function's declared return type, and call arguments against
// the callee's parameter types.
func validateTypes(mod *ast.Module, idx *semantic.Index, resolver *types.Resolver) []diag.Diagnostic {
	var out []diag.Diagnostic
	funcSigs := map[string]types.TypeId{}
	for _, item := range mod.Items {
		if fn, ok := item.(*ast.FuncDecl); ok {
			funcSigs[fn.Name] = resolver.FunctionType(fn)
		}
	}
	tc := &typeChecker{idx: idx, resolver: resolver, funcSigs: funcSigs}
	for _, item := range mod.Items {
		fn, ok := item.(*ast.FuncDecl)
		if !ok {
			continue
		}
		retTy := resolver.ResolveAstType(fn.ReturnType)
		tc.checkBlock(fn.Body, retTy)
	}
	out = append(out, resolver.Diagnostics...)
	out = append(out, tc.out...)
	return out
}

type typeChecker struct {
	idx      *semantic.Index
	resolver *types.Resolver
	funcSigs map[string]types.TypeId
	out      []diag.Diagnostic
}

func (tc *typeChecker) checkBlock(block *ast.Block, retTy types.TypeId) {
	for _, stmt := range block.Stmts {
		tc.checkStmt(stmt, retTy)
	}
}

func (tc *typeChecker) checkStmt(stmt ast.Stmt, retTy types.TypeId) {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		if s.Value == nil {
			if retTy != types.Unit {
				tc.out = append(tc.out, diag.New(diag.CodeTypeMismatch, s.Span, "expected a return value"))
			}
			return
		}
		valTy := tc.exprType(s.Value)
		if !tc.resolver.Table.AreCompatible(retTy, valTy) {
			tc.out = append(tc.out, diag.New(diag.CodeTypeMismatch, s.Span, "return type mismatch"))
		}
	case *ast.LetStmt:
		valTy := tc.exprType(s.Value)
		if s.Type != nil {
			declTy := tc.resolver.ResolveAstType(s.Type)
			if !tc.resolver.Table.AreCompatible(declTy, valTy) {
				tc.out = append(tc.out, diag.New(diag.CodeTypeMismatch, s.Span, "let binding type mismatch"))
			}
		}
	case *ast.IfStmt:
		tc.checkBlock(s.Then, retTy)
		if s.Else != nil {
			tc.checkBlock(s.Else, retTy)
		}
	case *ast.WhileStmt:
		tc.checkBlock(s.Body, retTy)
	case *ast.LoopStmt:
		tc.checkBlock(s.Body, retTy)
	case *ast.ExprStmt:
		if s.Value != nil {
			tc.exprType(s.Value)
		}
	}
}

// exprType computes a best-effort type for expr, emitting diagnostics for
// mismatches it finds along the way. Identifiers always return UnknownType
// (their definitions are not looked up), as do calls to unknown functions
// and the expression kinds not listed below; UnknownType is compatible with
// every type, so no mismatch is reported against such an expression.
func (tc *typeChecker) exprType(expr ast.Expr) types.TypeId {
	switch e := expr.(type) {
	case *ast.NumberExpr:
		return types.Felt
	case *ast.BoolExpr:
		return types.Bool
	case *ast.IdentExpr:
		return types.UnknownType
	case *ast.BinaryExpr:
		lt := tc.exprType(e.Left)
		rt := tc.exprType(e.Right)
		if !tc.resolver.Table.AreCompatible(lt, rt) {
			tc.out = append(tc.out, diag.New(diag.CodeTypeMismatch, e.Span, "operand type mismatch"))
		}
		switch e.Op {
		case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
			return types.Bool
		default:
			return lt
		}
	case *ast.UnaryExpr:
		return tc.exprType(e.Operand)
	case *ast.CallExpr:
		sig, ok := tc.funcSigs[e.Callee]
		if !ok {
			return types.UnknownType
		}
		fnTy := tc.resolver.Table.Get(sig)
		if len(e.Args) != len(fnTy.Params) {
			tc.out = append(tc.out, diag.New(diag.CodeWrongArgumentCount, e.Span, "wrong number of arguments"))
		}
		for i, arg := range e.Args {
			argTy := tc.exprType(arg)
			if i < len(fnTy.Params) && !tc.resolver.Table.AreCompatible(fnTy.Params[i], argTy) {
				tc.out = append(tc.out, diag.New(diag.CodeTypeMismatch, e.Span, "argument type mismatch"))
			}
		}
		return fnTy.Returns
	default:
		return types.UnknownType
	}
}
