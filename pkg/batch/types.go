// Package batch holds the solver's core data model (spec §3): orders,
// batch state, and settlements. BatchState is owned exclusively by the
// solver driver (pkg/solver); everything else reads snapshots of it.
package batch

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veilswap/batchsolver/pkg/market"
)

// Side is an order's declared direction (spec §3 order_type).
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Status is an order's lifecycle state (spec §3).
type Status uint8

const (
	Pending Status = iota
	Filled
	Cancelled
	PartiallyFilled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	default:
		return "UNKNOWN"
	}
}

// OrderID is the opaque 32-byte order identifier (spec §3).
type OrderID [32]byte

// Order is one trader's batch-auction order (spec §3).
type Order struct {
	ID              OrderID
	Trader          common.Address
	PairID          market.PairID
	OrderType       Side
	PublicPrice     *big.Int // unsigned 256-bit integer
	EncryptedAmount []byte   // serialized zkcurve.Ciphertext, canonical layout
	Status          Status
	Timestamp       time.Time
}

// Settlement is the output of matching one pair for one batch (spec §3).
// Produced once per pair per batch; consumed by submission and discarded.
type Settlement struct {
	PairID               market.PairID
	ClearingPrice        *big.Int
	MatchedOrderIDs      []OrderID
	EncryptedFillAmounts [][]byte
	SettlementProof      []byte

	// FillVolumes and OrderVolumes are parallel to MatchedOrderIDs:
	// FillVolumes[i] is the volume actually allocated to
	// MatchedOrderIDs[i] by pro-rata allocation, OrderVolumes[i] is that
	// order's own total estimated volume. Submit compares the two to
	// decide FILLED vs PARTIALLY_FILLED (spec §3 lifecycle, §8 S2/S3).
	FillVolumes  []uint64
	OrderVolumes []uint64
}
