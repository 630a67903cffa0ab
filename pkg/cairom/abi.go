package cairom

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCLIArg parses a CLI argument string into an InputValue, a direct
// port of the hand-rolled recursive-descent grammar in
// original_source/crates/common/src/abi_codec.rs's parse_cli_arg:
//
//	Value  := Number | Bool | Array | Tuple | Struct
//	Array  := '[' (Value (',' Value)*)? ']'
//	Tuple  := '(' (Value (',' Value)*)? ')'
//	Struct := '{' (Value (',' Value)*)? '}'
func ParseCLIArg(s string) (InputValue, error) {
	p := &abiParser{src: s}
	v, err := p.parseValue()
	if err != nil {
		return InputValue{}, err
	}
	p.skipWS()
	if !p.eof() {
		return InputValue{}, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf("unexpected trailing characters at position %d", p.i)}
	}
	return v, nil
}

type abiParser struct {
	src string
	i   int
}

func (p *abiParser) eof() bool { return p.i >= len(p.src) }

func (p *abiParser) peek() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	return p.src[p.i], true
}

func (p *abiParser) advance() (byte, bool) {
	c, ok := p.peek()
	if ok {
		p.i++
	}
	return c, ok
}

func (p *abiParser) skipWS() {
	for {
		c, ok := p.peek()
		if !ok || (c != ' ' && c != '\t' && c != '\n' && c != '\r') {
			return
		}
		p.i++
	}
}

func (p *abiParser) parseValue() (InputValue, error) {
	p.skipWS()
	c, ok := p.peek()
	if !ok {
		return InputValue{}, &VMError{Code: ErrInvalidInput, Message: "expected a value, got end of input"}
	}
	switch {
	case c == '[':
		items, err := p.parseDelimitedList('[', ']', "array")
		return InputValue{Kind: InputList, List: items}, err
	case c == '(':
		items, err := p.parseDelimitedList('(', ')', "tuple")
		return InputValue{Kind: InputList, List: items}, err
	case c == '{':
		items, err := p.parseDelimitedList('{', '}', "struct")
		return InputValue{Kind: InputStruct, Struct: items}, err
	case c == 't' || c == 'f':
		return p.parseBool()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return InputValue{}, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf(
			"unexpected character '%c' at position %d: expected number, boolean, tuple '(' or array '[', or struct '{'", c, p.i)}
	}
}

func (p *abiParser) parseDelimitedList(open, close byte, context string) ([]InputValue, error) {
	p.advance() // open
	p.skipWS()
	var items []InputValue
	if c, ok := p.peek(); ok && c == close {
		p.advance()
		return items, nil
	}
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipWS()
		c, ok := p.peek()
		switch {
		case ok && c == ',':
			p.advance()
			p.skipWS()
		case ok && c == close:
			p.advance()
			return items, nil
		default:
			return nil, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf(
				"expected ',' or '%c' at position %d in %s", close, p.i, context)}
		}
	}
}

func (p *abiParser) parseBool() (InputValue, error) {
	if strings.HasPrefix(p.src[p.i:], "true") {
		p.i += 4
		return InputValue{Kind: InputBool, Bool: true}, nil
	}
	if strings.HasPrefix(p.src[p.i:], "false") {
		p.i += 5
		return InputValue{Kind: InputBool, Bool: false}, nil
	}
	return InputValue{}, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf("invalid boolean at position %d: expected 'true' or 'false'", p.i)}
}

func (p *abiParser) parseNumber() (InputValue, error) {
	start := p.i
	if c, ok := p.peek(); ok && c == '-' {
		p.i++
	}
	seenDigit := false
	for {
		c, ok := p.peek()
		if !ok || c < '0' || c > '9' {
			break
		}
		seenDigit = true
		p.i++
	}
	if !seenDigit {
		return InputValue{}, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf("invalid number starting at position %d", start)}
	}
	n, err := strconv.ParseInt(p.src[start:p.i], 10, 64)
	if err != nil {
		return InputValue{}, &VMError{Code: ErrInvalidInput, Message: fmt.Sprintf("failed to parse number %q: %v", p.src[start:p.i], err)}
	}
	return InputValue{Kind: InputNumber, Number: n}, nil
}

// FeltFromI64 reduces an arbitrary i64 into the Mersenne-31 field,
// grounded on abi_codec.rs's m31_from_i64: centered modular reduction
// that handles the full i64 range including large-magnitude negatives.
func FeltFromI64(n int64) uint32 {
	const p = int64(1)<<31 - 1
	m := n % p
	if m < 0 {
		m += p
	}
	return uint32(m)
}
