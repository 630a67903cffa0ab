package ast

import (
	"fmt"
	"strconv"

	"github.com/cairo-m/cairom/internal/cairom/diag"
)

// Parser is a hand-written recursive-descent parser with Pratt-style
// binding-power expression parsing (spec §4.2).
type Parser struct {
	toks []Token
	pos  int
	diag []diag.Diagnostic

	// noStructLit suppresses `Name { ... }` struct-literal parsing while
	// parsing an if/while condition, the same ambiguity Rust resolves the
	// same way: `if x { ... }` must parse `x` as the condition, not as the
	// start of a struct literal whose body is the if's block.
	noStructLit bool
}

// Parse lexes and parses src into a Module. Malformed input never aborts
// parsing: a diagnostic is recorded and parsing resumes. A malformed
// expression is replaced with an ErrorExpr placeholder; a malformed
// top-level item is skipped up to the next item boundary and left out of
// Items. No statement-level placeholder is produced: a malformed statement
// surfaces as an ExprStmt wrapping an ErrorExpr.
func Parse(src string) *Module {
	p := &Parser{toks: Lex(src)}
	var items []Item
	for p.cur().Kind != TokEOF {
		item := p.parseItem()
		if item != nil {
			items = append(items, item)
		}
	}
	return &Module{Items: items, Diagnostics: p.diag}
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(kind TokenKind, text string) bool {
	t := p.cur()
	return t.Kind == kind && t.Text == text
}

func (p *Parser) atSymbol(s string) bool  { return p.at(TokSymbol, s) }
func (p *Parser) atKeyword(k string) bool { return p.at(TokKeyword, k) }

func (p *Parser) expectSymbol(s string) diag.Span {
	if p.atSymbol(s) {
		return p.advance().Span
	}
	return p.errorf(diag.CodeUnexpectedToken, "expected '%s', found '%s'", s, p.cur().Text)
}

func (p *Parser) errorf(code diag.Code, format string, args ...any) diag.Span {
	span := p.cur().Span
	p.diag = append(p.diag, diag.New(code, span, fmt.Sprintf(format, args...)))
	return span
}

// synchronize skips tokens until a likely statement/item boundary, the
// usual panic-mode error recovery for a recursive-descent parser.
func (p *Parser) synchronize() {
	for p.cur().Kind != TokEOF {
		if p.atSymbol(";") {
			p.advance()
			return
		}
		if p.atKeyword("fn") || p.atKeyword("struct") || p.atSymbol("}") {
			return
		}
		p.advance()
	}
}

func (p *Parser) parseItem() Item {
	switch {
	case p.atKeyword("fn"):
		return p.parseFunc()
	case p.atKeyword("struct"):
		return p.parseStruct()
	default:
		p.errorf(diag.CodeExpectedItem, "expected 'fn' or 'struct', found '%s'", p.cur().Text)
		p.synchronize()
		return nil
	}
}

func (p *Parser) parseFunc() *FuncDecl {
	start := p.advance().Span // 'fn'
	name := p.expectIdent()
	p.expectSymbol("(")
	var params []Param
	for !p.atSymbol(")") && p.cur().Kind != TokEOF {
		before := p.pos
		pname := p.expectIdent()
		p.expectSymbol(":")
		ptype := p.parseType()
		params = append(params, Param{Name: pname, Type: ptype})
		if p.atSymbol(",") {
			p.advance()
		}
		if p.pos == before {
			break
		}
	}
	p.expectSymbol(")")
	var ret *TypeExpr
	if p.atSymbol("->") {
		p.advance()
		ret = p.parseType()
	}
	body := p.parseBlock()
	return &FuncDecl{Name: name, Params: params, ReturnType: ret, Body: body,
		Span: diag.Span{Start: start.Start, End: body.Span.End}}
}

func (p *Parser) parseStruct() *StructDecl {
	start := p.advance().Span // 'struct'
	name := p.expectIdent()
	p.expectSymbol("{")
	var fields []FieldDecl
	for !p.atSymbol("}") && p.cur().Kind != TokEOF {
		before := p.pos
		fname := p.expectIdent()
		p.expectSymbol(":")
		ftype := p.parseType()
		fields = append(fields, FieldDecl{Name: fname, Type: ftype})
		if p.atSymbol(",") {
			p.advance()
		}
		if p.pos == before {
			break
		}
	}
	end := p.expectSymbol("}")
	return &StructDecl{Name: name, Fields: fields, Span: diag.Span{Start: start.Start, End: end.End}}
}

func (p *Parser) expectIdent() string {
	if p.cur().Kind == TokIdent {
		return p.advance().Text
	}
	p.errorf(diag.CodeUnexpectedToken, "expected identifier, found '%s'", p.cur().Text)
	return "<error>"
}

func (p *Parser) parseType() *TypeExpr {
	start := p.cur().Span
	switch {
	case p.atSymbol("*"):
		p.advance()
		return &TypeExpr{Pointee: p.parseType(), Span: start}
	case p.atSymbol("["):
		p.advance()
		elem := p.parseType()
		p.expectSymbol(";")
		lenTok := p.cur()
		length := 0
		if lenTok.Kind == TokNumber {
			length = parseIntLiteral(lenTok.Text)
			p.advance()
		} else {
			p.errorf(diag.CodeUnexpectedToken, "expected array length, found '%s'", lenTok.Text)
		}
		end := p.expectSymbol("]")
		return &TypeExpr{Elem: elem, Length: length, Span: diag.Span{Start: start.Start, End: end.End}}
	case p.atSymbol("("):
		p.advance()
		var elems []*TypeExpr
		for !p.atSymbol(")") && p.cur().Kind != TokEOF {
			before := p.pos
			elems = append(elems, p.parseType())
			if p.atSymbol(",") {
				p.advance()
			}
			if p.pos == before {
				break
			}
		}
		end := p.expectSymbol(")")
		return &TypeExpr{Tuple: elems, Span: diag.Span{Start: start.Start, End: end.End}}
	default:
		name := p.expectIdent()
		return &TypeExpr{Name: name, Span: start}
	}
}

func parseIntLiteral(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (p *Parser) parseBlock() *Block {
	start := p.expectSymbol("{")
	var stmts []Stmt
	for !p.atSymbol("}") && p.cur().Kind != TokEOF {
		stmts = append(stmts, p.parseStmt())
	}
	end := p.expectSymbol("}")
	return &Block{Stmts: stmts, Span: diag.Span{Start: start.Start, End: end.End}}
}

func (p *Parser) parseStmt() Stmt {
	switch {
	case p.atKeyword("let"):
		return p.parseLet()
	case p.atKeyword("return"):
		return p.parseReturn()
	case p.atKeyword("if"):
		return p.parseIf()
	case p.atKeyword("while"):
		return p.parseWhile()
	case p.atKeyword("loop"):
		return p.parseLoop()
	case p.atKeyword("break"):
		span := p.advance().Span
		p.expectSymbol(";")
		return &BreakStmt{Span: span}
	case p.atKeyword("continue"):
		span := p.advance().Span
		p.expectSymbol(";")
		return &ContinueStmt{Span: span}
	case p.atSymbol("{"):
		block := p.parseBlock()
		return &ExprStmt{Span: block.Span}
	default:
		start := p.cur().Span
		expr := p.parseExpr()
		if p.atSymbol("=") {
			p.advance()
			value := p.parseExpr()
			p.expectSymbol(";")
			return &AssignStmt{Target: expr, Value: value, Span: start}
		}
		p.expectSymbol(";")
		return &ExprStmt{Value: expr, Span: start}
	}
}

func (p *Parser) parseLet() Stmt {
	start := p.advance().Span // 'let'
	mut := false
	if p.atKeyword("mut") {
		p.advance()
		mut = true
	}
	name := p.expectIdent()
	var ty *TypeExpr
	if p.atSymbol(":") {
		p.advance()
		ty = p.parseType()
	}
	p.expectSymbol("=")
	value := p.parseExpr()
	p.expectSymbol(";")
	return &LetStmt{Name: name, Mut: mut, Type: ty, Value: value, Span: start}
}

func (p *Parser) parseReturn() Stmt {
	start := p.advance().Span // 'return'
	var value Expr
	if !p.atSymbol(";") {
		value = p.parseExpr()
	}
	p.expectSymbol(";")
	return &ReturnStmt{Value: value, Span: start}
}

func (p *Parser) parseCondition() Expr {
	p.noStructLit = true
	cond := p.parseExpr()
	p.noStructLit = false
	return cond
}

func (p *Parser) parseIf() Stmt {
	start := p.advance().Span // 'if'
	cond := p.parseCondition()
	then := p.parseBlock()
	var elseBlock *Block
	if p.atKeyword("else") {
		p.advance()
		if p.atKeyword("if") {
			inner := p.parseIf().(*IfStmt)
			elseBlock = &Block{Stmts: []Stmt{inner}, Span: inner.Span}
		} else {
			elseBlock = p.parseBlock()
		}
	}
	return &IfStmt{Cond: cond, Then: then, Else: elseBlock, Span: start}
}

func (p *Parser) parseWhile() Stmt {
	start := p.advance().Span // 'while'
	cond := p.parseCondition()
	body := p.parseBlock()
	return &WhileStmt{Cond: cond, Body: body, Span: start}
}

func (p *Parser) parseLoop() Stmt {
	start := p.advance().Span // 'loop'
	body := p.parseBlock()
	return &LoopStmt{Body: body, Span: start}
}

// Binding powers for the Pratt expression parser, lowest to highest.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *Parser) parseExpr() Expr {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		op := p.cur().Text
		prec, ok := binaryPrec[op]
		if !ok || p.cur().Kind != TokSymbol || prec < minPrec {
			return left
		}
		opSpan := p.advance().Span
		right := p.parseBinary(prec + 1)
		left = &BinaryExpr{Op: op, Left: left, Right: right, Span: opSpan}
	}
}

func (p *Parser) parseUnary() Expr {
	if p.atSymbol("-") || p.atSymbol("!") || p.atSymbol("&") {
		op := p.advance()
		operand := p.parseUnary()
		return &UnaryExpr{Op: op.Text, Operand: operand, Span: op.Span}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for {
		switch {
		case p.atSymbol("."):
			dotSpan := p.advance().Span
			if p.cur().Kind == TokNumber {
				idx := parseIntLiteral(p.advance().Text)
				expr = &TupleIndexExpr{Base: expr, Index: idx, Span: dotSpan}
			} else {
				field := p.expectIdent()
				expr = &FieldExpr{Base: expr, Field: field, Span: dotSpan}
			}
		case p.atSymbol("["):
			p.advance()
			idx := p.parseExpr()
			end := p.expectSymbol("]")
			expr = &IndexExpr{Base: expr, Index: idx, Span: diag.Span{Start: end.Start, End: end.End}}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() Expr {
	tok := p.cur()
	switch {
	case tok.Kind == TokNumber:
		p.advance()
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			p.diag = append(p.diag, diag.New(diag.CodeInvalidNumberLiteral, tok.Span, "invalid number literal: "+tok.Text))
		}
		return &NumberExpr{Value: n, Span: tok.Span}
	case tok.Kind == TokKeyword && tok.Text == "true":
		p.advance()
		return &BoolExpr{Value: true, Span: tok.Span}
	case tok.Kind == TokKeyword && tok.Text == "false":
		p.advance()
		return &BoolExpr{Value: false, Span: tok.Span}
	case tok.Kind == TokIdent:
		p.advance()
		if p.atSymbol("(") {
			return p.parseCall(tok)
		}
		if p.atSymbol("{") && p.looksLikeStructLit() {
			return p.parseStructLit(tok)
		}
		return &IdentExpr{Name: tok.Text, Span: tok.Span}
	case p.atSymbol("("):
		p.advance()
		var elems []Expr
		first := p.parseExpr()
		elems = append(elems, first)
		isTuple := false
		for p.atSymbol(",") {
			isTuple = true
			p.advance()
			if p.atSymbol(")") {
				break
			}
			elems = append(elems, p.parseExpr())
		}
		end := p.expectSymbol(")")
		if isTuple {
			return &TupleExpr{Elements: elems, Span: diag.Span{Start: end.Start, End: end.End}}
		}
		return first
	case p.atSymbol("["):
		start := p.advance().Span
		var elems []Expr
		for !p.atSymbol("]") && p.cur().Kind != TokEOF {
			elems = append(elems, p.parseExpr())
			if p.atSymbol(",") {
				p.advance()
			}
		}
		p.expectSymbol("]")
		return &ArrayExpr{Elements: elems, Span: start}
	default:
		span := p.errorf(diag.CodeUnexpectedToken, "expected expression, found '%s'", tok.Text)
		p.advance()
		return &ErrorExpr{Span: span}
	}
}

// looksLikeStructLit disambiguates `Name { ... }` struct literals from a
// bare identifier that happens to precede a block, which only arises when
// that identifier is an if/while condition (see parseCondition).
func (p *Parser) looksLikeStructLit() bool {
	return !p.noStructLit
}

func (p *Parser) parseCall(name Token) Expr {
	p.advance() // '('
	var args []Expr
	for !p.atSymbol(")") && p.cur().Kind != TokEOF {
		args = append(args, p.parseExpr())
		if p.atSymbol(",") {
			p.advance()
		}
	}
	end := p.expectSymbol(")")
	return &CallExpr{Callee: name.Text, Args: args, Span: diag.Span{Start: name.Span.Start, End: end.End}}
}

func (p *Parser) parseStructLit(name Token) Expr {
	p.advance() // '{'
	var fields []StructLitField
	for !p.atSymbol("}") && p.cur().Kind != TokEOF {
		fname := p.expectIdent()
		p.expectSymbol(":")
		fval := p.parseExpr()
		fields = append(fields, StructLitField{Name: fname, Value: fval})
		if p.atSymbol(",") {
			p.advance()
		}
	}
	end := p.expectSymbol("}")
	return &StructLitExpr{Name: name.Text, Fields: fields, Span: diag.Span{Start: name.Span.Start, End: end.End}}
}
