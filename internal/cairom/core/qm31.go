package core

import "fmt"

// QM31 is the degree-4 extension of Felt used as the natural memory-cell
// type (spec §3): every VM memory cell and instruction word is a QM31, even
// though the Cairo-M language itself only ever produces Felt/U32/Bool/Pointer
// scalars — those are stored as QM31 values with the extension components
// zeroed. This mirrors the real prover's memory argument, which operates
// over the extension field for soundness, while the VM's own arithmetic
// never leaves the base field.
type QM31 struct {
	V0, V1, V2, V3 Felt
}

// QM31Zero is the zero extension element.
var QM31Zero = QM31{}

// FromFelt embeds a base-field element as a QM31 with zeroed extension
// components.
func FromFelt(f Felt) QM31 { return QM31{V0: f} }

// AsFelt returns the base-field component, discarding the extension part.
// Callers that know a cell holds a plain scalar use this; it does not check
// that the extension components are actually zero (the VM never writes a
// genuine extension value to a cell Cairo-M code can observe).
func (q QM31) AsFelt() Felt { return q.V0 }

// IsBaseField reports whether the extension components are all zero, i.e.
// the value is representable as a plain Felt.
func (q QM31) IsBaseField() bool {
	return q.V1.IsZero() && q.V2.IsZero() && q.V3.IsZero()
}

// Add adds two QM31 values componentwise (the extension ring's addition is
// componentwise regardless of the multiplication rule).
func (q QM31) Add(o QM31) QM31 {
	return QM31{
		V0: q.V0.Add(o.V0),
		V1: q.V1.Add(o.V1),
		V2: q.V2.Add(o.V2),
		V3: q.V3.Add(o.V3),
	}
}

// Equal reports componentwise equality.
func (q QM31) Equal(o QM31) bool {
	return q.V0.Equal(o.V0) && q.V1.Equal(o.V1) && q.V2.Equal(o.V2) && q.V3.Equal(o.V3)
}

// IsZero reports whether every component is zero.
func (q QM31) IsZero() bool { return q.Equal(QM31Zero) }

// String renders the four components in `[v0, v1, v2, v3]` form.
func (q QM31) String() string {
	return fmt.Sprintf("[%s, %s, %s, %s]", q.V0, q.V1, q.V2, q.V3)
}

// FromComponents builds a QM31 from four raw field components, used when
// decoding an instruction word `(opcode, off0, off1, off2)` stored packed
// into one memory cell (spec §3).
func FromComponents(v0, v1, v2, v3 Felt) QM31 {
	return QM31{V0: v0, V1: v1, V2: v2, V3: v3}
}
