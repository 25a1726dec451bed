// Package safeparams centralises the bounds checks and defensive numeric
// parsing spec §4.7/§6/§9 (C9) call for, so every component enforces the
// same ceilings instead of re-deriving them.
package safeparams

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
)

// MaxParamSize is the shared input-size ceiling for encrypted amounts and
// settlement proofs (spec §4.5 step 2, §6).
const MaxParamSize = 32 * 1024

// DefaultMaxOrderSize clamps a single order's estimated volume before it
// can overflow downstream fixed-point math (spec §4.7 "Failure
// semantics").
const DefaultMaxOrderSize = 1_000_000_000

// ClampOrderSize clamps v to [0, max].
func ClampOrderSize(v, max uint64) uint64 {
	if v > max {
		return max
	}
	return v
}

// ParseUint256 safely parses a base-10 string into a bounded unsigned
// 256-bit integer, using uint256.Int's own decimal parser to get the 256-bit
// overflow check for free rather than a manual big.Int bit-length
// comparison. Returns (nil, false) on malformed or oversized input instead
// of panicking (spec §7 InvalidInput policy).
func ParseUint256(s string) (*big.Int, bool) {
	if s == "" || len(s) > 80 {
		return nil, false
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, false
	}
	return v.ToBig(), true
}

// ParseDurationSeconds safely parses an environment-style integer seconds
// string, clamped to [min, max]. On malformed input, returns the supplied
// fallback (the teacher's params.LoadFromEnv "bad input keeps default"
// idiom).
func ParseDurationSeconds(s string, min, max, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// WithinParamSizeCeiling reports whether b does not exceed MaxParamSize
// (spec §6: "Proofs: opaque byte strings ≤ 32 KiB").
func WithinParamSizeCeiling(b []byte) bool {
	return len(b) <= MaxParamSize
}
