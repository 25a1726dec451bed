package zkcurve

import (
	"fmt"
	"math/big"
)

// KeyPair is a Baby Jubjub ElGamal key pair (spec §3).
type KeyPair struct {
	Private *big.Int
	Public  Point
}

// DerivePublic computes Y = G·private (spec §4.2). private is reduced mod
// q first; the derivation is rejected only if the reduced value is zero.
func DerivePublic(private *big.Int) (Point, error) {
	p := Reduce(private)
	if p.Sign() == 0 {
		return Point{}, &CurveError{Op: "DerivePublic", Msg: "private key reduces to zero"}
	}
	return ScalarMul(BasePoint(), p), nil
}

// GenerateKeyPair draws a fresh nonzero private scalar and derives its
// public key.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := RandomScalar()
	if err != nil {
		return KeyPair{}, err
	}
	pub, err := DerivePublic(priv)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// Ciphertext is a two-point Baby Jubjub ElGamal ciphertext (spec §3):
// c1 = G·r, c2 = (G·m) + (Y·r).
type Ciphertext struct {
	C1 Point
	C2 Point
}

// Encrypt encrypts scalar m under recipient public key Y with randomness
// r. r must be nonzero; callers without their own randomness should draw
// r via RandomScalar first (spec §4.2).
func Encrypt(Y Point, m *big.Int, r *big.Int) (Ciphertext, error) {
	if r == nil || Reduce(r).Sign() == 0 {
		return Ciphertext{}, &CurveError{Op: "Encrypt", Msg: "randomness r must be nonzero"}
	}
	c1 := ScalarMul(BasePoint(), r)
	gm := ScalarMul(BasePoint(), m)
	yr := ScalarMul(Y, r)
	c2 := Add(gm, yr)
	return Ciphertext{C1: c1, C2: c2}, nil
}

// EncryptRandom encrypts m under Y, drawing r uniformly from F \ {0}.
func EncryptRandom(Y Point, m *big.Int) (Ciphertext, error) {
	r, err := RandomScalar()
	if err != nil {
		return Ciphertext{}, err
	}
	return Encrypt(Y, m, r)
}

// DecryptError is returned when bounded discrete-log search fails to find
// a plaintext within [0, bound).
type DecryptError struct {
	Bound *big.Int
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("zkcurve: decrypt: no plaintext < %s found", e.Bound.String())
}

// Decrypt recovers the scalar m encrypted in ct under private, searching
// the discrete log M = G·m over [0, bound) (spec §4.2). The amounts this
// solver deals with are small relative to q, so a baby-step table rebuilt
// on every call is an acceptable cost for the rare trader-side decrypt.
func Decrypt(private *big.Int, ct Ciphertext, bound *big.Int) (*big.Int, error) {
	priv := Reduce(private)
	crp := ScalarMul(ct.C1, priv)
	m := Add(ct.C2, Neg(crp))

	if bound.Sign() <= 0 {
		return nil, &CurveError{Op: "Decrypt", Msg: "bound must be positive"}
	}

	table := make(map[string]int64, 1<<16)
	acc := Identity()
	g := BasePoint()
	const step = 1 << 16
	limit := bound.Int64()
	if !bound.IsInt64() || limit > (1<<40) {
		limit = 1 << 40
	}
	for i := int64(0); i < step && i < limit; i++ {
		table[pointKey(acc)] = i
		acc = Add(acc, g)
	}
	giant := ScalarMul(g, big.NewInt(step))
	cursor := Identity()
	for j := int64(0); j*step < limit; j++ {
		target := Add(m, Neg(cursor))
		if i, ok := table[pointKey(target)]; ok && j*step+i < limit {
			return big.NewInt(j*step + i), nil
		}
		cursor = Add(cursor, giant)
	}
	return nil, &DecryptError{Bound: bound}
}

func pointKey(p Point) string {
	b := p.Bytes()
	return string(b[:])
}
