package types

import (
	"github.com/cairo-m/cairom/internal/cairom/ast"
	"github.com/cairo-m/cairom/internal/cairom/diag"
)

// Resolver resolves ast.TypeExpr syntax and expression nodes to interned
// TypeIds, given a module's struct definitions (spec §4.4).
type Resolver struct {
	Table       *Table
	structs     map[string]TypeId
	Diagnostics []diag.Diagnostic
}

// NewResolver builds a Resolver, pre-interning every struct declared in mod
// so field types and function signatures can reference them in any order.
func NewResolver(mod *ast.Module) *Resolver {
	r := &Resolver{Table: NewTable(), structs: make(map[string]TypeId)}
	for _, item := range mod.Items {
		if st, ok := item.(*ast.StructDecl); ok {
			r.structs[st.Name] = r.Table.Intern(MirType{Kind: KindStruct, StructName: st.Name})
		}
	}
	for _, item := range mod.Items {
		if st, ok := item.(*ast.StructDecl); ok {
			r.finishStruct(st)
		}
	}
	return r
}

func (r *Resolver) finishStruct(st *ast.StructDecl) {
	var fields []StructField
	for _, f := range st.Fields {
		fields = append(fields, StructField{Name: f.Name, Type: r.ResolveAstType(f.Type)})
	}
	id := r.structs[st.Name]
	ty := r.Table.Get(id)
	ty.Fields = fields
	r.Table.types[id] = ty
}

// ResolveAstType maps surface type syntax to an interned TypeId.
func (r *Resolver) ResolveAstType(te *ast.TypeExpr) TypeId {
	if te == nil {
		return Unit
	}
	switch {
	case te.Pointee != nil:
		return r.Table.Intern(MirType{Kind: KindPointer, Pointee: r.ResolveAstType(te.Pointee)})
	case te.Elem != nil:
		return r.Table.Intern(MirType{Kind: KindFixedArray, ElemType: r.ResolveAstType(te.Elem), Length: te.Length})
	case te.Tuple != nil:
		var elems []TypeId
		for _, t := range te.Tuple {
			elems = append(elems, r.ResolveAstType(t))
		}
		return r.Table.Intern(MirType{Kind: KindTuple, Elements: elems})
	default:
		switch te.Name {
		case "felt":
			return Felt
		case "bool":
			return Bool
		case "u32":
			return U32
		case "":
			return Unit
		default:
			if id, ok := r.structs[te.Name]; ok {
				return id
			}
			r.Diagnostics = append(r.Diagnostics, diag.New(diag.CodeUndefinedName, te.Span, "undefined type '"+te.Name+"'"))
			return UnknownType
		}
	}
}

// StructType looks up the TypeId pre-interned for a struct declared in the
// module NewResolver was built from.
func (r *Resolver) StructType(name string) (TypeId, bool) {
	id, ok := r.structs[name]
	return id, ok
}

// FunctionType resolves a FuncDecl's signature to a Function TypeId.
func (r *Resolver) FunctionType(fn *ast.FuncDecl) TypeId {
	var params []TypeId
	for _, p := range fn.Params {
		params = append(params, r.ResolveAstType(p.Type))
	}
	return r.Table.Intern(MirType{Kind: KindFunction, Params: params, Returns: r.ResolveAstType(fn.ReturnType)})
}
