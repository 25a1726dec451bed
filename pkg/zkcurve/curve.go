// Package zkcurve implements the Baby Jubjub curve and scalar field
// arithmetic the solver's ZK utilities are built on (spec §4.1): point
// addition, scalar multiplication, and the finite scalar field orders are
// reduced into before touching the curve.
package zkcurve

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
)

// CurveError reports malformed curve input: a non-finite field element or
// an encoding that does not land on the curve. Well-formed (Point, scalar)
// pairs never return CurveError from Add/ScalarMul.
type CurveError struct {
	Op  string
	Msg string
}

func (e *CurveError) Error() string {
	return fmt.Sprintf("zkcurve: %s: %s", e.Op, e.Msg)
}

// curveParams caches the Baby Jubjub (bn254's embedded Edwards curve)
// parameters: base point, subgroup order, and twisted-Edwards coefficients.
var curveParams = twistededwards.GetEdwardsCurve()

// Order is the Baby Jubjub subgroup order q (spec §3: "Integers modulo the
// Baby Jubjub prime order q ≈ 2^253"). It is exposed as *big.Int because
// gnark-crypto represents it as a constant rather than a codegen'd prime
// field element — see DESIGN.md C1.
func Order() *big.Int {
	o := curveParams.Order
	return new(big.Int).Set(&o)
}

// Point is a Baby Jubjub curve point in affine coordinates.
type Point struct {
	inner twistededwards.PointAffine
}

// BasePoint returns the canonical generator G (spec §3).
func BasePoint() Point {
	return Point{inner: curveParams.Base}
}

// Identity returns the curve's neutral element (0, 1) in twisted-Edwards
// affine coordinates.
func Identity() Point {
	var p twistededwards.PointAffine
	p.X.SetZero()
	p.Y.SetOne()
	return Point{inner: p}
}

// Add returns p + q.
func Add(p, q Point) Point {
	var out twistededwards.PointAffine
	out.Add(&p.inner, &q.inner)
	return Point{inner: out}
}

// Neg returns -p.
func Neg(p Point) Point {
	var out twistededwards.PointAffine
	out.Neg(&p.inner)
	return Point{inner: out}
}

// ScalarMul returns p scaled by k, after reducing k mod the subgroup
// order (spec §3: "All scalar inputs are reduced mod q before curve
// operations").
func ScalarMul(p Point, k *big.Int) Point {
	kk := Reduce(k)
	var out twistededwards.PointAffine
	out.ScalarMultiplication(&p.inner, kk)
	return Point{inner: out}
}

// Equal reports whether p and q are the same curve point.
func Equal(p, q Point) bool {
	return p.inner.X.Equal(&q.inner.X) && p.inner.Y.Equal(&q.inner.Y)
}

// IsOnCurve reports whether p satisfies the twisted-Edwards curve equation.
func (p Point) IsOnCurve() bool {
	return p.inner.IsOnCurve()
}

// Bytes encodes p as two 32-byte big-endian field elements, X then Y
// (spec §4.4's per-coordinate encoding).
func (p Point) Bytes() [64]byte {
	var out [64]byte
	xb := p.inner.X.Bytes()
	yb := p.inner.Y.Bytes()
	copy(out[0:32], xb[:])
	copy(out[32:64], yb[:])
	return out
}

// PointFromBytes decodes a 64-byte (X‖Y) encoding produced by Bytes.
// Returns CurveError if the resulting point is not on the curve.
func PointFromBytes(b []byte) (Point, error) {
	if len(b) != 64 {
		return Point{}, &CurveError{Op: "PointFromBytes", Msg: "expected 64 bytes"}
	}
	var x, y fr.Element
	x.SetBytes(b[0:32])
	y.SetBytes(b[32:64])
	p := Point{inner: twistededwards.PointAffine{X: x, Y: y}}
	if !p.IsOnCurve() {
		return Point{}, &CurveError{Op: "PointFromBytes", Msg: "point not on curve"}
	}
	return p, nil
}

// X returns the point's affine X coordinate as a big.Int.
func (p Point) X() *big.Int {
	var x big.Int
	p.inner.X.BigInt(&x)
	return &x
}

// Y returns the point's affine Y coordinate as a big.Int.
func (p Point) Y() *big.Int {
	var y big.Int
	p.inner.Y.BigInt(&y)
	return &y
}
