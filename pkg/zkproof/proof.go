// Package zkproof produces the solver's placeholder "proofs" (spec §4.3):
// deterministic byte strings bound to a statement's public inputs by
// hashing a canonical encoding. They preserve binding, not soundness — a
// real zk-SNARK backend is the documented production substitute
// (spec §9, Open Question 2).
package zkproof

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/veilswap/batchsolver/pkg/zkcurve"
)

// ProofSize is the fixed length of order/balance/transfer proofs.
const ProofSize = 32

// Side mirrors the order side encoded into order proofs.
type Side uint8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func keccak(chunks ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// GenerateOrderProof binds an order's private key, encrypted amount,
// cleartext amount, price, side, and trader address into a deterministic
// 32-byte proof (spec §4.3).
func GenerateOrderProof(private *big.Int, encryptedAmount []byte, amount *big.Int, price *big.Int, side Side, trader common.Address) [32]byte {
	return keccak(
		[]byte("order-proof"),
		zkcurve.Reduce(private).Bytes(),
		encryptedAmount,
		amount.Bytes(),
		price.Bytes(),
		[]byte{byte(side)},
		trader.Bytes(),
	)
}

// GenerateBalanceProof binds a private key, encrypted amount, cleartext
// amount, and user address (spec §4.3).
func GenerateBalanceProof(private *big.Int, encryptedAmount []byte, amount *big.Int, user common.Address) [32]byte {
	return keccak(
		[]byte("balance-proof"),
		zkcurve.Reduce(private).Bytes(),
		encryptedAmount,
		amount.Bytes(),
		user.Bytes(),
	)
}

// GenerateTransferProof binds a private key, encrypted amount, cleartext
// amount, sender, and recipient (spec §4.3).
func GenerateTransferProof(private *big.Int, encryptedAmount []byte, amount *big.Int, sender, recipient common.Address) [32]byte {
	return keccak(
		[]byte("transfer-proof"),
		zkcurve.Reduce(private).Bytes(),
		encryptedAmount,
		amount.Bytes(),
		sender.Bytes(),
		recipient.Bytes(),
	)
}

// SettlementInput is one matched order's contribution to a settlement
// proof's public inputs.
type SettlementInput struct {
	OrderID           [32]byte
	EncryptedFillAmt  []byte
}

// GenerateSettlementProof binds the matched order set, their encrypted
// fill amounts, and the clearing price into a deterministic proof. Unlike
// the fixed-size order/balance/transfer proofs, this one is a hash over a
// variably-sized input and is itself returned as a 32-byte digest (spec
// §4.3 allows a variable-length Bytes; we keep it digest-sized since
// nothing downstream needs more than binding).
func GenerateSettlementProof(inputs []SettlementInput, clearingPrice *big.Int) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("settlement-proof"))
	h.Write(u64Bytes(uint64(len(inputs))))
	for _, in := range inputs {
		h.Write(in.OrderID[:])
		h.Write(in.EncryptedFillAmt)
	}
	h.Write(clearingPrice.Bytes())
	return h.Sum(nil)
}

// VerifyOrderProof checks shape only — length and non-zero content — per
// spec §4.3: "full cryptographic soundness delegated" to a real backend.
func VerifyOrderProof(proof []byte, encryptedAmount []byte, trader common.Address) bool {
	if len(proof) != ProofSize {
		return false
	}
	allZero := true
	for _, b := range proof {
		if b != 0 {
			allZero = false
			break
		}
	}
	return !allZero
}
