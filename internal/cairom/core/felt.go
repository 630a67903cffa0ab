// Package core implements the Mersenne-31 prime field and its degree-4
// extension, the scalar types the rest of the compiler and VM are built on.
package core

import (
	"fmt"
)

// P is the Mersenne-31 prime, 2^31 - 1.
const P uint32 = (1 << 31) - 1

// Felt is an element of the Mersenne-31 field. The zero value is the field's
// zero element. Values are always kept fully reduced in [0, P).
type Felt struct {
	v uint32
}

// FeltZero is the additive identity.
var FeltZero = Felt{0}

// FeltOne is the multiplicative identity.
var FeltOne = Felt{1}

func reduce(x uint64) uint32 {
	// Mersenne reduction: x mod (2^31 - 1). Fold the high bits back in twice;
	// two folds suffice because the input never exceeds ~2^62.
	x = (x & uint64(P)) + (x >> 31)
	x = (x & uint64(P)) + (x >> 31)
	if x >= uint64(P) {
		x -= uint64(P)
	}
	return uint32(x)
}

// NewFelt reduces a uint32 modulo P.
func NewFelt(v uint32) Felt {
	return Felt{v % P}
}

// FeltFromInt64 reduces an i64 modulo P, handling negative values correctly.
// Boundary behaviors (per spec §8): FeltFromInt64(math.MinInt64) and
// FeltFromInt64(math.MaxInt64) are both < P; FeltFromInt64(-P) == 0.
func FeltFromInt64(n int64) Felt {
	p := int64(P)
	m := n % p
	if m < 0 {
		m += p
	}
	return Felt{uint32(m)}
}

// Value returns the canonical uint32 representative in [0, P).
func (a Felt) Value() uint32 { return a.v }

// Add returns a+b mod P.
func (a Felt) Add(b Felt) Felt { return Felt{reduce(uint64(a.v) + uint64(b.v))} }

// Sub returns a-b mod P.
func (a Felt) Sub(b Felt) Felt {
	if a.v >= b.v {
		return Felt{a.v - b.v}
	}
	return Felt{P - (b.v - a.v)}
}

// Neg returns -a mod P.
func (a Felt) Neg() Felt {
	if a.v == 0 {
		return a
	}
	return Felt{P - a.v}
}

// Mul returns a*b mod P.
func (a Felt) Mul(b Felt) Felt { return Felt{reduce(uint64(a.v) * uint64(b.v))} }

// Inv returns the multiplicative inverse of a via Fermat's little theorem:
// a^(P-2) == a^-1 (mod P). Returns an error if a is zero.
func (a Felt) Inv() (Felt, error) {
	if a.IsZero() {
		return Felt{}, fmt.Errorf("cairom/core: cannot invert zero")
	}
	return a.Exp(uint64(P - 2)), nil
}

// Div returns a/b, i.e. a * b^-1. Division by zero is a hard runtime error
// (spec §9 open question: this spec adopts the "hard error" interpretation).
func (a Felt) Div(b Felt) (Felt, error) {
	inv, err := b.Inv()
	if err != nil {
		return Felt{}, fmt.Errorf("cairom/core: division by zero")
	}
	return a.Mul(inv), nil
}

// Exp computes a^n mod P by square-and-multiply.
func (a Felt) Exp(n uint64) Felt {
	result := FeltOne
	base := a
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		n >>= 1
	}
	return result
}

// IsZero reports whether a is the additive identity.
func (a Felt) IsZero() bool { return a.v == 0 }

// IsOne reports whether a is the multiplicative identity.
func (a Felt) IsOne() bool { return a.v == 1 }

// Equal reports field equality.
func (a Felt) Equal(b Felt) bool { return a.v == b.v }

// String renders the canonical decimal representative.
func (a Felt) String() string { return fmt.Sprintf("%d", a.v) }

// Bytes returns the little-endian 4-byte representation.
func (a Felt) Bytes() []byte {
	return []byte{byte(a.v), byte(a.v >> 8), byte(a.v >> 16), byte(a.v >> 24)}
}

// IsValid reports whether v is a canonical field representative.
func IsValid(v uint32) bool { return v < P }

// FeltFromSignedOffset encodes a small signed frame offset as a field
// element, centered representation: non-negative offsets map directly,
// negative offsets wrap from P (spec §4.8: frame slots below fp use
// negative offsets).
func FeltFromSignedOffset(off int32) Felt {
	if off >= 0 {
		return NewFelt(uint32(off))
	}
	return NewFelt(P - uint32(-off))
}

// SignedOffset decodes a field element produced by FeltFromSignedOffset
// back into a signed offset, treating representatives past the field's
// midpoint as negative.
func (a Felt) SignedOffset() int32 {
	if a.v <= P/2 {
		return int32(a.v)
	}
	return -int32(P - a.v)
}
