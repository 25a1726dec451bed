package zkcurve

import (
	"math/big"
	"testing"
)

func TestDerivePublicDeterministic(t *testing.T) {
	priv := big.NewInt(424242)

	tests := []struct {
		name string
		priv *big.Int
	}{
		{"small scalar", priv},
		{"scalar above order wraps", new(big.Int).Add(Order(), priv)},
	}

	var first Point
	for i, tt := range tests {
		got, err := DerivePublic(tt.priv)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if i == 0 {
			first = got
			continue
		}
		if !Equal(got, first) {
			t.Errorf("%s: derive_public(x) != derive_public(x mod q)", tt.name)
		}
	}
}

func TestDerivePublicRejectsZero(t *testing.T) {
	if _, err := DerivePublic(Order()); err == nil {
		t.Fatal("expected error deriving public key from a scalar that reduces to zero")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	bound := big.NewInt(1 << 20)
	cases := []int64{0, 1, 42, 1000, 999999}

	for _, m := range cases {
		msg := big.NewInt(m)
		r, err := RandomScalar()
		if err != nil {
			t.Fatalf("RandomScalar: %v", err)
		}
		ct, err := Encrypt(kp.Public, msg, r)
		if err != nil {
			t.Fatalf("Encrypt(%d): %v", m, err)
		}
		got, err := Decrypt(kp.Private, ct, bound)
		if err != nil {
			t.Fatalf("Decrypt(%d): %v", m, err)
		}
		if got.Cmp(msg) != 0 {
			t.Errorf("Decrypt round-trip: want %d, got %s", m, got.String())
		}
	}
}

func TestDecryptOutOfRange(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	ct, err := EncryptRandom(kp.Public, big.NewInt(1<<21))
	if err != nil {
		t.Fatalf("EncryptRandom: %v", err)
	}
	if _, err := Decrypt(kp.Private, ct, big.NewInt(1<<10)); err == nil {
		t.Fatal("expected DecryptError for plaintext outside search bound")
	}
}

func TestEncryptRejectsZeroRandomness(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if _, err := Encrypt(kp.Public, big.NewInt(5), big.NewInt(0)); err == nil {
		t.Fatal("expected error for r = 0")
	}
}

func TestCiphertextSerializeRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	ct, err := EncryptRandom(kp.Public, big.NewInt(777))
	if err != nil {
		t.Fatalf("EncryptRandom: %v", err)
	}

	b := SerializeCiphertext(ct)
	if len(b) != CiphertextLayoutSize {
		t.Fatalf("serialized length = %d, want %d", len(b), CiphertextLayoutSize)
	}
	got, meta, err := DeserializeCiphertext(b)
	if err != nil {
		t.Fatalf("DeserializeCiphertext: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected no metadata for 128-byte layout")
	}
	if !Equal(got.C1, ct.C1) || !Equal(got.C2, ct.C2) {
		t.Fatal("serialize/deserialize round trip did not preserve ciphertext")
	}

	withMeta := SerializeCiphertextWithMeta(ct, Metadata{Version: 1, Flags: 3})
	if len(withMeta) != CiphertextLayoutSizeWithMeta {
		t.Fatalf("serialized-with-meta length = %d, want %d", len(withMeta), CiphertextLayoutSizeWithMeta)
	}
	got2, meta2, err := DeserializeCiphertext(withMeta)
	if err != nil {
		t.Fatalf("DeserializeCiphertext with meta: %v", err)
	}
	if meta2 == nil || meta2.Version != 1 || meta2.Flags != 3 {
		t.Fatalf("metadata round trip mismatch: %+v", meta2)
	}
	if !Equal(got2.C1, ct.C1) || !Equal(got2.C2, ct.C2) {
		t.Fatal("serialize/deserialize with-meta round trip did not preserve ciphertext")
	}
}

func TestDeserializeRejectsUnknownLength(t *testing.T) {
	if _, _, err := DeserializeCiphertext(make([]byte, 100)); err == nil {
		t.Fatal("expected error for unknown ciphertext length")
	}
}

func TestAddAndScalarMulTotalOverValidInputs(t *testing.T) {
	g := BasePoint()
	p := ScalarMul(g, big.NewInt(7))
	q := ScalarMul(g, big.NewInt(13))
	sum := Add(p, q)
	expect := ScalarMul(g, big.NewInt(20))
	if !Equal(sum, expect) {
		t.Fatal("point_add/scalar_mul inconsistent with scalar addition")
	}
}
