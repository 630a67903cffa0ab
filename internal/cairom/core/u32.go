package core

// U32 values live in memory as two consecutive Felt cells, low limb first
// (spec §3). These helpers recompose/decompose between that two-cell form
// and a native uint32 for arithmetic, matching what the VM's U32
// coprocessor instructions do on every op.

// U32Limbs splits a native uint32 into (low16, high16) packed as Felts.
func U32Limbs(v uint32) (lo, hi Felt) {
	return NewFelt(v & 0xFFFF), NewFelt(v >> 16)
}

// U32Recompose reassembles a native uint32 from its two limb cells.
func U32Recompose(lo, hi Felt) uint32 {
	return lo.Value() | (hi.Value() << 16)
}

// U32Add performs wrapping 32-bit addition (spec §8 boundary:
// U32Add(MaxUint32, 1) == 0).
func U32Add(a, b uint32) uint32 { return a + b }

// U32Sub performs wrapping 32-bit subtraction.
func U32Sub(a, b uint32) uint32 { return a - b }

// U32Mul performs wrapping 32-bit multiplication.
func U32Mul(a, b uint32) uint32 { return a * b }

// U32DivMod performs unsigned 32-bit division. Division by zero is a
// runtime error (spec §9: "the code uses wrapping_div against a guard on
// zero; zero divisor is a hard error" — this spec adopts that).
func U32DivMod(a, b uint32) (quot, rem uint32, zeroDivisor bool) {
	if b == 0 {
		return 0, 0, true
	}
	return a / b, a % b, false
}

// U32Less reports whether a < b as unsigned 32-bit integers.
func U32Less(a, b uint32) bool { return a < b }

// U32Eq reports unsigned 32-bit equality.
func U32Eq(a, b uint32) bool { return a == b }

// U32And/Or/Xor operate on the reconstructed value then the caller
// re-decomposes into limbs (spec §4.9: "Bit ops operate on reconstructed
// values then decompose").
func U32And(a, b uint32) uint32 { return a & b }
func U32Or(a, b uint32) uint32  { return a | b }
func U32Xor(a, b uint32) uint32 { return a ^ b }
