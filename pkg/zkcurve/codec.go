package zkcurve

import "encoding/binary"

// Canonical ciphertext wire layout (spec §4.4):
//   C1.X ‖ C1.Y ‖ C2.X ‖ C2.Y            (128 bytes, each field 32B big-endian)
// optionally followed by a 4-byte {version, flags} metadata tag (132 bytes).
const (
	CiphertextLayoutSize         = 128
	CiphertextLayoutSizeWithMeta = 132
)

// Metadata is the optional trailing {version, flags} wire tag.
type Metadata struct {
	Version uint16
	Flags   uint16
}

// SerializeCiphertext encodes ct into the canonical 128-byte layout.
func SerializeCiphertext(ct Ciphertext) []byte {
	out := make([]byte, CiphertextLayoutSize)
	c1 := ct.C1.Bytes()
	c2 := ct.C2.Bytes()
	copy(out[0:32], c1[0:32])
	copy(out[32:64], c1[32:64])
	copy(out[64:96], c2[0:32])
	copy(out[96:128], c2[32:64])
	return out
}

// SerializeCiphertextWithMeta encodes ct plus a trailing 4-byte metadata
// tag, producing the 132-byte wire format.
func SerializeCiphertextWithMeta(ct Ciphertext, meta Metadata) []byte {
	out := make([]byte, 0, CiphertextLayoutSizeWithMeta)
	out = append(out, SerializeCiphertext(ct)...)
	var tag [4]byte
	binary.BigEndian.PutUint16(tag[0:2], meta.Version)
	binary.BigEndian.PutUint16(tag[2:4], meta.Flags)
	return append(out, tag[:]...)
}

// DeserializeCiphertext decodes a 128- or 132-byte ciphertext. Any other
// length is rejected (spec §4.4: "deserialize rejects any length not
// matching a known layout").
func DeserializeCiphertext(b []byte) (Ciphertext, *Metadata, error) {
	switch len(b) {
	case CiphertextLayoutSize, CiphertextLayoutSizeWithMeta:
	default:
		return Ciphertext{}, nil, &CurveError{Op: "DeserializeCiphertext", Msg: "unknown ciphertext length"}
	}

	c1, err := PointFromBytes(b[0:64])
	if err != nil {
		return Ciphertext{}, nil, err
	}
	c2, err := PointFromBytes(b[64:128])
	if err != nil {
		return Ciphertext{}, nil, err
	}
	ct := Ciphertext{C1: c1, C2: c2}

	if len(b) == CiphertextLayoutSizeWithMeta {
		meta := &Metadata{
			Version: binary.BigEndian.Uint16(b[128:130]),
			Flags:   binary.BigEndian.Uint16(b[130:132]),
		}
		return ct, meta, nil
	}
	return ct, nil, nil
}
