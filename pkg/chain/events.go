package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/market"
)

// EventKind distinguishes the four contract events the solver reacts to
// (spec §6 Events table).
type EventKind uint8

const (
	EventOrderPlaced EventKind = iota
	EventOrderCancelled
	EventBatchStarted
	EventBatchSettled
)

// Event is a decoded contract log entry. Only the fields relevant to its
// Kind are populated.
type Event struct {
	Kind EventKind

	// OrderPlaced / OrderCancelled
	OrderID   batch.OrderID
	Trader    common.Address
	PairID    market.PairID
	OrderType batch.Side
	PublicPrice *big.Int

	// BatchStarted
	NewBatchID    uint64
	NewDeadline   int64

	// BatchSettled
	SettledBatchID uint64
}
