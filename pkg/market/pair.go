// Package market tracks the token pairs the solver clears batches for
// (spec §3 PairInfo, §6 token_pairs read call). It is the batch-auction
// analogue of the teacher repo's perpetual-futures market registry, with
// every leverage/margin/funding field dropped — a spot batch auction has
// no position risk to parameterise (see DESIGN.md).
package market

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// PairID is the 32-byte digest identifying a token pair (spec §3, §6):
// keccak256(encode(tokenA_address, tokenB_address)), addresses packed in
// the declared order.
type PairID [32]byte

// DerivePairID computes pair_id = keccak256(tokenA ‖ tokenB) with
// addresses packed in the order given (spec §6). Callers are responsible
// for the canonical ordering convention their DEX contract uses; this
// function does not reorder tokenA/tokenB.
func DerivePairID(tokenA, tokenB common.Address) PairID {
	h := sha3.NewLegacyKeccak256()
	h.Write(tokenA.Bytes())
	h.Write(tokenB.Bytes())
	var out PairID
	copy(out[:], h.Sum(nil))
	return out
}

func (p PairID) String() string {
	return fmt.Sprintf("0x%x", p[:])
}

// PairInfo is the spec §3 token-pair record returned by the DEX contract's
// token_pairs read call (spec §6).
type PairInfo struct {
	ID        PairID
	TokenA    common.Address
	TokenB    common.Address
	IsEERC20A bool
	IsEERC20B bool

	// MinLiquidity is the per-pair override of the global minLiquidity
	// config option (spec §6): a price level whose estimated volume falls
	// below this is ignored by order-book construction.
	MinLiquidity uint64
}

// Registry tracks all known token pairs, keyed by PairID. Single writer
// (the solver driver, per spec §5), many concurrent readers (matching
// runs pairs in parallel against a frozen snapshot).
type Registry struct {
	mu    sync.RWMutex
	pairs map[PairID]*PairInfo
}

// NewRegistry returns an empty pair registry.
func NewRegistry() *Registry {
	return &Registry{pairs: make(map[PairID]*PairInfo)}
}

// Register adds or replaces a pair's info. Returns an error if info is nil.
func (r *Registry) Register(info *PairInfo) error {
	if info == nil {
		return fmt.Errorf("market: cannot register nil pair info")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[info.ID] = info
	return nil
}

// Get retrieves a pair's info. The second return value reports existence,
// matching the DEX contract's token_pairs(pair_id) -> (exists, ...) shape
// (spec §6).
func (r *Registry) Get(id PairID) (PairInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.pairs[id]
	if !ok {
		return PairInfo{}, false
	}
	return *info, true
}

// List returns a snapshot of all registered pairs.
func (r *Registry) List() []PairInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PairInfo, 0, len(r.pairs))
	for _, info := range r.pairs {
		out = append(out, *info)
	}
	return out
}
