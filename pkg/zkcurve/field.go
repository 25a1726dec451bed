package zkcurve

import (
	"crypto/rand"
	"math/big"
)

// Reduce reduces k modulo the Baby Jubjub subgroup order, per spec §3.
func Reduce(k *big.Int) *big.Int {
	q := Order()
	out := new(big.Int).Mod(k, q)
	if out.Sign() < 0 {
		out.Add(out, q)
	}
	return out
}

// FieldAdd returns (a + b) mod q.
func FieldAdd(a, b *big.Int) *big.Int {
	return Reduce(new(big.Int).Add(Reduce(a), Reduce(b)))
}

// FieldMul returns (a * b) mod q.
func FieldMul(a, b *big.Int) *big.Int {
	return Reduce(new(big.Int).Mul(Reduce(a), Reduce(b)))
}

// FieldNeg returns (-a) mod q.
func FieldNeg(a *big.Int) *big.Int {
	return Reduce(new(big.Int).Neg(Reduce(a)))
}

// FieldInv returns the multiplicative inverse of a mod q. Fails with
// CurveError if a ≡ 0 (mod q), which has no inverse.
func FieldInv(a *big.Int) (*big.Int, error) {
	q := Order()
	aa := Reduce(a)
	if aa.Sign() == 0 {
		return nil, &CurveError{Op: "FieldInv", Msg: "zero has no inverse"}
	}
	return new(big.Int).ModInverse(aa, q), nil
}

// RandomScalar draws a uniform nonzero scalar from F \ {0}, the randomness
// domain ElGamal encryption draws r from (spec §4.2) when the caller does
// not supply one.
func RandomScalar() (*big.Int, error) {
	q := Order()
	for {
		k, err := rand.Int(rand.Reader, q)
		if err != nil {
			return nil, err
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}
