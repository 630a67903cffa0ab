// Package diag implements the compiler's diagnostic taxonomy and a plain
// ariadne-style span-underline renderer (spec §7).
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "hint"
	}
}

// Code is a closed diagnostic code, numbered by phase: 1-999 parse errors,
// 1000-1999 scope/name resolution, 2000-2999 type errors, 3000-3999
// control-flow errors (spec §6).
type Code int

const (
	CodeUnexpectedToken      Code = 101
	CodeUnterminatedString   Code = 102
	CodeInvalidNumberLiteral Code = 103
	CodeExpectedItem         Code = 104
	CodeUndefinedName        Code = 1001
	CodeDuplicateDefinition  Code = 1002
	CodeUnusedVariable       Code = 1003
	CodeTypeMismatch         Code = 2001
	CodeWrongArgumentCount   Code = 2002
	CodeNotCallable          Code = 2003
	CodeMissingReturn        Code = 3001
	CodeUnreachableCode      Code = 3002
	CodeBreakOutsideLoop     Code = 3003
)

// Span is a [Start, End) half-open byte range into a module's source text.
type Span struct {
	Start, End int
}

// Spanned pairs a node with the source span it was parsed from.
type Spanned[T any] struct {
	Node T
	Span Span
}

// Diagnostic is a single user-facing compiler message. Diagnostics never
// abort the pipeline (spec §7): every phase collects them and keeps going.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Span     Span
	Labels   []Label
}

// Label attaches a secondary note to a different span within the same
// diagnostic, e.g. "previous definition here".
type Label struct {
	Span    Span
	Message string
}

// New builds an error-severity diagnostic.
func New(code Code, span Span, message string) Diagnostic {
	return Diagnostic{Severity: Error, Code: code, Message: message, Span: span}
}

// Warningf builds a warning-severity diagnostic.
func Warningf(code Code, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, Code: code, Message: fmt.Sprintf(format, args...), Span: span}
}

// WithLabel returns a copy of d with an additional secondary label.
func (d Diagnostic) WithLabel(span Span, message string) Diagnostic {
	d.Labels = append(d.Labels, Label{Span: span, Message: message})
	return d
}

// Render produces a plain-text, ariadne-style rendering of d against
// source, underlining the offending span. No ANSI color is used (the pack
// carries no ariadne-equivalent crate; see DESIGN.md).
func Render(source string, d Diagnostic) string {
	line, col, lineText := locate(source, d.Span.Start)
	underlineLen := d.Span.End - d.Span.Start
	if underlineLen < 1 {
		underlineLen = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s[E%04d]: %s\n", d.Severity, int(d.Code), d.Message)
	fmt.Fprintf(&b, "  --> line %d, column %d\n", line, col)
	fmt.Fprintf(&b, "   | %s\n", lineText)
	fmt.Fprintf(&b, "   | %s%s\n", strings.Repeat(" ", col-1), strings.Repeat("^", underlineLen))
	for _, l := range d.Labels {
		lLine, lCol, _ := locate(source, l.Span.Start)
		fmt.Fprintf(&b, "   note: %s (line %d, column %d)\n", l.Message, lLine, lCol)
	}
	return b.String()
}

func locate(source string, offset int) (line, col int, lineText string) {
	if offset > len(source) {
		offset = len(source)
	}
	line = 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	col = offset - lineStart + 1
	end := strings.IndexByte(source[lineStart:], '\n')
	if end == -1 {
		lineText = source[lineStart:]
	} else {
		lineText = source[lineStart : lineStart+end]
	}
	return
}

// SortBySpan orders diagnostics by source position, a stable presentation
// order for callers (e.g. the CLI or the diagnostics controller).
func SortBySpan(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		return ds[i].Span.Start < ds[j].Span.Start
	})
}
