package mir

import (
	"github.com/cairo-m/cairom/internal/cairom/ast"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// Builder lowers a parsed, type-resolved module to MIR in two passes: the
// first pass assigns every function a stable FunctionId and signature so
// calls can resolve forward and cross-module references (spec §4.6); the
// second pass lowers each body against that complete signature table.
type Builder struct {
	resolver *types.Resolver
	sigs     map[string]FunctionId
	funcs    []*ast.FuncDecl
	module   *Module
}

// NewBuilder starts a builder for mod using resolver's already-interned
// struct/type information.
func NewBuilder(resolver *types.Resolver) *Builder {
	return &Builder{resolver: resolver, sigs: make(map[string]FunctionId), module: &Module{Types: resolver.Table}}
}

// Build runs both passes and returns the finished Module.
func Build(mod *ast.Module, resolver *types.Resolver) *Module {
	b := NewBuilder(resolver)
	b.collectSignatures(mod)
	for _, fn := range b.funcs {
		b.module.Functions = append(b.module.Functions, b.lowerFunction(fn))
	}
	return b.module
}

func (b *Builder) collectSignatures(mod *ast.Module) {
	for _, item := range mod.Items {
		if fn, ok := item.(*ast.FuncDecl); ok {
			id := FunctionId(len(b.funcs))
			b.funcs = append(b.funcs, fn)
			b.sigs[fn.Name] = id
		}
	}
}

// fnBuilder lowers one function body. env tracks each local/parameter
// name's current SSA value within the block currently being built.
type fnBuilder struct {
	b       *Builder
	fn      *Function
	cur     *Block
	curID   BlockId
	env     map[string]ValueId
	valType map[ValueId]types.TypeId
}

func (b *Builder) lowerFunction(decl *ast.FuncDecl) *Function {
	fn := &Function{ID: b.sigs[decl.Name], Name: decl.Name, RetType: b.resolver.ResolveAstType(decl.ReturnType)}
	fb := &fnBuilder{b: b, fn: fn, env: map[string]ValueId{}, valType: map[ValueId]types.TypeId{}}
	fb.startBlock()

	for _, p := range decl.Params {
		v := fb.newValue()
		pty := b.resolver.ResolveAstType(p.Type)
		fb.emit(Instr{Result: v, Op: OpParam, Type: pty})
		fb.env[p.Name] = v
		fb.valType[v] = pty
		fn.Params = append(fn.Params, v)
	}

	fb.lowerBlock(decl.Body)
	fb.ensureTerminated(fn.RetType)
	return fn
}

func (fb *fnBuilder) newValue() ValueId {
	v := fb.fn.nextVal
	fb.fn.nextVal++
	return v
}

func (fb *fnBuilder) startBlock() BlockId {
	blk := &Block{}
	fb.fn.Blocks = append(fb.fn.Blocks, blk)
	id := BlockId(len(fb.fn.Blocks) - 1)
	fb.cur = blk
	fb.curID = id
	return id
}

func (fb *fnBuilder) switchTo(id BlockId) {
	fb.cur = fb.fn.Blocks[id]
	fb.curID = id
}

func (fb *fnBuilder) emit(i Instr) {
	fb.cur.Instrs = append(fb.cur.Instrs, i)
}

func (fb *fnBuilder) terminated() bool {
	return fb.cur.Terminator.Kind == TermReturn || fb.cur.Terminator.Kind == TermJump || fb.cur.Terminator.Kind == TermBranch && fb.cur.Terminator.Then != 0
}

func (fb *fnBuilder) ensureTerminated(retType types.TypeId) {
	if fb.cur.Terminator == (Terminator{}) {
		fb.cur.Terminator = Terminator{Kind: TermReturn}
	}
}

func (fb *fnBuilder) lowerBlock(block *ast.Block) {
	for _, stmt := range block.Stmts {
		fb.lowerStmt(stmt)
	}
}

func (fb *fnBuilder) lowerStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.LetStmt:
		v, ty := fb.lowerExpr(s.Value)
		fb.env[s.Name] = v
		fb.valType[v] = ty
	case *ast.AssignStmt:
		if target, ok := s.Target.(*ast.IdentExpr); ok {
			v, ty := fb.lowerExpr(s.Value)
			fb.env[target.Name] = v
			fb.valType[v] = ty
		}
	case *ast.ReturnStmt:
		if s.Value == nil {
			fb.cur.Terminator = Terminator{Kind: TermReturn}
			return
		}
		v, _ := fb.lowerExpr(s.Value)
		fb.cur.Terminator = Terminator{Kind: TermReturn, Value: v, HasValue: true}
	case *ast.ExprStmt:
		if s.Value != nil {
			fb.lowerExpr(s.Value)
		}
	case *ast.IfStmt:
		fb.lowerIf(s)
	case *ast.WhileStmt:
		fb.lowerWhile(s)
	case *ast.LoopStmt:
		fb.lowerLoop(s)
	}
}

// lowerIf lowers to three blocks (then, else, merge), inserting a Phi in
// merge for every variable whose value diverges between the two
// predecessors — the minimal SSA reconciliation this control construct
// needs.
func (fb *fnBuilder) lowerIf(s *ast.IfStmt) {
	cond, _ := fb.lowerExpr(s.Cond)
	entryEnv := cloneEnv(fb.env)
	entryBlock := fb.curID

	thenID := fb.startBlock()
	fb.lowerBlock(s.Then)
	thenEnv := cloneEnv(fb.env)
	thenEnd := fb.curID
	thenFallsThrough := !fb.cur.terminatorSet()

	fb.env = cloneEnv(entryEnv)
	elseID := fb.startBlock()
	if s.Else != nil {
		fb.lowerBlock(s.Else)
	}
	elseEnv := cloneEnv(fb.env)
	elseEnd := fb.curID
	elseFallsThrough := !fb.cur.terminatorSet()

	fb.switchTo(entryBlock)
	fb.fn.Blocks[entryBlock].Terminator = Terminator{Kind: TermBranch, Cond: cond, Then: thenID, Else: elseID}

	mergeID := fb.startBlock()
	if thenFallsThrough {
		fb.fn.Blocks[thenEnd].Terminator = Terminator{Kind: TermJump, Target: mergeID}
	}
	if elseFallsThrough {
		fb.fn.Blocks[elseEnd].Terminator = Terminator{Kind: TermJump, Target: mergeID}
	}

	merged := map[string]ValueId{}
	for name, tv := range thenEnv {
		ev, ok := elseEnv[name]
		if ok && ev == tv {
			merged[name] = tv
			continue
		}
		if !thenFallsThrough && elseFallsThrough {
			merged[name] = ev
			continue
		}
		if thenFallsThrough && !elseFallsThrough {
			merged[name] = tv
			continue
		}
		if !thenFallsThrough && !elseFallsThrough {
			continue
		}
		phi := fb.newValue()
		fb.valType[phi] = fb.valType[tv]
		fb.emit(Instr{Result: phi, Op: OpPhi, Type: fb.valType[tv], PhiEdges: []PhiEdge{
			{Block: thenEnd, Value: tv},
			{Block: elseEnd, Value: ev},
		}})
		merged[name] = phi
	}
	fb.env = merged
}

func (b *Block) terminatorSet() bool {
	return b.Terminator != Terminator{}
}

// lowerWhile lowers a pre-tested loop to header/body/exit blocks. Variables
// assigned in the body get a loop-header Phi whose two incoming edges are
// the pre-loop value and the value at the end of the body (the back edge).
func (fb *fnBuilder) lowerWhile(s *ast.WhileStmt) {
	preHeaderEnv := cloneEnv(fb.env)
	preHeaderID := fb.curID

	headerID := fb.startBlock()
	fb.fn.Blocks[preHeaderID].Terminator = Terminator{Kind: TermJump, Target: headerID}

	assigned := assignedNames(s.Body)
	headerPhis := map[string]ValueId{}
	headerPhiIdx := map[string]int{}
	for _, name := range assigned {
		prev, ok := preHeaderEnv[name]
		if !ok {
			continue
		}
		phi := fb.newValue()
		fb.valType[phi] = fb.valType[prev]
		headerPhis[name] = phi
		headerPhiIdx[name] = len(fb.cur.Instrs)
		fb.emit(Instr{Result: phi, Op: OpPhi, Type: fb.valType[prev], PhiEdges: []PhiEdge{
			{Block: preHeaderID, Value: prev},
		}})
		fb.env[name] = phi
	}

	cond, _ := fb.lowerExpr(s.Cond)
	bodyID := fb.startBlock()
	fb.fn.Blocks[headerID].Terminator = Terminator{Kind: TermBranch, Cond: cond}

	fb.lowerBlock(s.Body)
	bodyEnd := fb.curID
	if !fb.cur.terminatorSet() {
		fb.fn.Blocks[bodyEnd].Terminator = Terminator{Kind: TermJump, Target: headerID}
	}

	exitID := fb.startBlock()
	fb.fn.Blocks[headerID].Terminator.Then = bodyID
	fb.fn.Blocks[headerID].Terminator.Else = exitID

	header := fb.fn.Blocks[headerID]
	for name, phi := range headerPhis {
		idx := headerPhiIdx[name]
		header.Instrs[idx].PhiEdges = append(header.Instrs[idx].PhiEdges, PhiEdge{Block: bodyEnd, Value: fb.env[name]})
		_ = phi
	}
}

// lowerLoop lowers an unconditional loop, exited only via break (handled by
// the as-yet-unresolved break target list, a simplification: nested break
// targets are resolved to the loop's exit block once it's created).
func (fb *fnBuilder) lowerLoop(s *ast.LoopStmt) {
	preID := fb.curID
	headerID := fb.startBlock()
	fb.fn.Blocks[preID].Terminator = Terminator{Kind: TermJump, Target: headerID}
	fb.lowerBlock(s.Body)
	if !fb.cur.terminatorSet() {
		fb.cur.Terminator = Terminator{Kind: TermJump, Target: headerID}
	}
	fb.startBlock()
}

func (fb *fnBuilder) lowerExpr(expr ast.Expr) (ValueId, types.TypeId) {
	switch e := expr.(type) {
	case *ast.NumberExpr:
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpConstFelt, Type: types.Felt, Const: e.Value})
		fb.valType[v] = types.Felt
		return v, types.Felt
	case *ast.BoolExpr:
		v := fb.newValue()
		c := int64(0)
		if e.Value {
			c = 1
		}
		fb.emit(Instr{Result: v, Op: OpConstBool, Type: types.Bool, Const: c})
		fb.valType[v] = types.Bool
		return v, types.Bool
	case *ast.IdentExpr:
		v := fb.env[e.Name]
		return v, fb.valType[v]
	case *ast.BinaryExpr:
		l, lt := fb.lowerExpr(e.Left)
		r, _ := fb.lowerExpr(e.Right)
		v := fb.newValue()
		resTy := lt
		switch e.Op {
		case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
			resTy = types.Bool
		}
		fb.emit(Instr{Result: v, Op: OpBinary, Type: resTy, BinOp: e.Op, Operands: []ValueId{l, r}})
		fb.valType[v] = resTy
		return v, resTy
	case *ast.UnaryExpr:
		operand, ty := fb.lowerExpr(e.Operand)
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpUnary, Type: ty, BinOp: e.Op, Operands: []ValueId{operand}})
		fb.valType[v] = ty
		return v, ty
	case *ast.CallExpr:
		var args []ValueId
		for _, a := range e.Args {
			av, _ := fb.lowerExpr(a)
			args = append(args, av)
		}
		callee, known := fb.b.sigs[e.Callee]
		retTy := types.UnknownType
		if known {
			fnDecl := fb.b.funcs[callee]
			retTy = fb.b.resolver.ResolveAstType(fnDecl.ReturnType)
		}
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpCall, Type: retTy, Operands: args, Callee: callee})
		fb.valType[v] = retTy
		return v, retTy
	case *ast.TupleExpr:
		var elems []ValueId
		var elemTypes []types.TypeId
		for _, el := range e.Elements {
			ev, ety := fb.lowerExpr(el)
			elems = append(elems, ev)
			elemTypes = append(elemTypes, ety)
		}
		ty := fb.b.resolver.Table.Intern(types.MirType{Kind: types.KindTuple, Elements: elemTypes})
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpMakeTuple, Type: ty, Operands: elems})
		fb.valType[v] = ty
		return v, ty
	case *ast.TupleIndexExpr:
		base, baseTy := fb.lowerExpr(e.Base)
		v := fb.newValue()
		elemTy := types.UnknownType
		bt := fb.b.resolver.Table.Get(baseTy)
		if e.Index >= 0 && e.Index < len(bt.Elements) {
			elemTy = bt.Elements[e.Index]
		}
		fb.emit(Instr{Result: v, Op: OpExtractTupleElement, Type: elemTy, Operands: []ValueId{base}, Const: int64(e.Index)})
		fb.valType[v] = elemTy
		return v, elemTy
	case *ast.FieldExpr:
		base, baseTy := fb.lowerExpr(e.Base)
		bt := fb.b.resolver.Table.Get(baseTy)
		fieldTy := types.UnknownType
		for _, f := range bt.Fields {
			if f.Name == e.Field {
				fieldTy = f.Type
			}
		}
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpExtractStructField, Type: fieldTy, Operands: []ValueId{base}, Field: e.Field})
		fb.valType[v] = fieldTy
		return v, fieldTy
	case *ast.StructLitExpr:
		byName := make(map[string]ValueId, len(e.Fields))
		for _, f := range e.Fields {
			fv, _ := fb.lowerExpr(f.Value)
			byName[f.Name] = fv
		}
		ty := types.UnknownType
		var elems []ValueId
		if id, ok := fb.b.resolver.StructType(e.Name); ok {
			ty = id
			// OpMakeStruct's Operands must line up positionally with the
			// struct's declared field order (codegen copies aggregate
			// members by offset, not by name), regardless of the order
			// fields were written in the literal.
			for _, f := range fb.b.resolver.Table.Get(id).Fields {
				elems = append(elems, byName[f.Name])
			}
		} else {
			for _, f := range e.Fields {
				elems = append(elems, byName[f.Name])
			}
		}
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpMakeStruct, Type: ty, Operands: elems, Field: e.Name})
		fb.valType[v] = ty
		return v, ty
	case *ast.ArrayExpr:
		var elems []ValueId
		var elemTy types.TypeId = types.UnknownType
		for _, el := range e.Elements {
			ev, ety := fb.lowerExpr(el)
			elems = append(elems, ev)
			elemTy = ety
		}
		ty := fb.b.resolver.Table.Intern(types.MirType{Kind: types.KindFixedArray, ElemType: elemTy, Length: len(elems)})
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpMakeArray, Type: ty, Operands: elems})
		fb.valType[v] = ty
		return v, ty
	case *ast.IndexExpr:
		base, baseTy := fb.lowerExpr(e.Base)
		idx, _ := fb.lowerExpr(e.Index)
		bt := fb.b.resolver.Table.Get(baseTy)
		v := fb.newValue()
		fb.emit(Instr{Result: v, Op: OpArrayIndex, Type: bt.ElemType, Operands: []ValueId{base, idx}})
		fb.valType[v] = bt.ElemType
		return v, bt.ElemType
	default:
		v := fb.newValue()
		fb.valType[v] = types.UnknownType
		return v, types.UnknownType
	}
}

func cloneEnv(env map[string]ValueId) map[string]ValueId {
	out := make(map[string]ValueId, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// assignedNames returns every local name (re-)assigned anywhere in block,
// directly or via a nested if/while/loop, used to decide which names need
// a loop-header Phi.
func assignedNames(block *ast.Block) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(b *ast.Block)
	walk = func(b *ast.Block) {
		for _, stmt := range b.Stmts {
			switch s := stmt.(type) {
			case *ast.LetStmt:
				if !seen[s.Name] {
					seen[s.Name] = true
					out = append(out, s.Name)
				}
			case *ast.AssignStmt:
				if id, ok := s.Target.(*ast.IdentExpr); ok && !seen[id.Name] {
					seen[id.Name] = true
					out = append(out, id.Name)
				}
			case *ast.IfStmt:
				walk(s.Then)
				if s.Else != nil {
					walk(s.Else)
				}
			case *ast.WhileStmt:
				walk(s.Body)
			case *ast.LoopStmt:
				walk(s.Body)
			}
		}
	}
	walk(block)
	return out
}
