// Package chain defines the solver's view of the external DEX contract
// (spec §6): the read calls it polls and the one write call it submits.
// Grounded in the teacher's Application interface (pkg/abci/bridge.go),
// which gives the consensus engine a narrow dynamic-dispatch surface over
// an external system; here the "external system" is the on-chain DEX
// contract rather than the consensus app.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/market"
)

// BatchInfo is the contract's batch_info() result (spec §6).
type BatchInfo struct {
	BatchID  uint64
	Deadline int64 // unix seconds
	Duration int64 // seconds
}

// PairInfoResult is the contract's token_pairs(pair_id) result (spec §6).
type PairInfoResult struct {
	Exists    bool
	TokenA    common.Address
	TokenB    common.Address
	IsEERC20A bool
	IsEERC20B bool
}

// SettleBatchInput is the arguments to the contract's settle_batch write
// call (spec §6).
type SettleBatchInput struct {
	PairID               market.PairID
	ClearingPrice        *big.Int
	MatchedOrderIDs      []batch.OrderID
	EncryptedFillAmounts [][]byte
	SettlementProof      []byte

	// OperatorSignature is the solver operator's EIP-712 signature over
	// this settlement (pkg/crypto/eip712.go), binding it to the solver
	// instance that computed it. May be nil if no operator key is
	// configured.
	OperatorSignature []byte
}

// Client is the solver's narrow view of the external DEX contract: four
// read calls plus one write call (spec §6). Implementations are expected
// to retry bounded numbers of times on transient RPC failure and
// translate contract reverts into error values — the driver never blocks
// on chain I/O indefinitely (spec §7, kind ChainIO).
type Client interface {
	BatchInfo(ctx context.Context) (BatchInfo, error)
	Order(ctx context.Context, id batch.OrderID) (batch.Order, error)
	TokenPair(ctx context.Context, pairID market.PairID) (PairInfoResult, error)
	ActiveOrderIDs(ctx context.Context, pairID market.PairID) ([]batch.OrderID, error)
	SettleBatch(ctx context.Context, input SettleBatchInput) (common.Hash, error)
}
