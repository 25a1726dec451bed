// Package orderbook builds, for one trading pair and one batch snapshot,
// sorted bid/ask price levels with per-level estimated volume (spec
// §4.6, C6). Unlike the teacher's continuous limit order book
// (pkg/app/core/orderbook), this book is rebuilt once per batch from a
// frozen PENDING-order snapshot and never mutated in place — cancellation
// happens against batch.State before the snapshot is taken (spec §5).
package orderbook

import (
	"container/heap"
	"math/big"
	"sort"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/estimator"
	"github.com/veilswap/batchsolver/pkg/safeparams"
)

// Entry is one order's contribution to a price level: its id and
// estimated volume, preserving ingest order for within-level tie-breaks
// (spec §4.6).
type Entry struct {
	OrderID        batch.OrderID
	EstimatedVolume uint64
}

// Level is one price level: a price and the orders resting there,
// aggregated from individual Entry.EstimatedVolume (spec §4.6: "Orders at
// equal price collapse into a price level whose total_volume is the sum
// of per-order estimated volumes").
type Level struct {
	Price       *big.Int
	TotalVolume uint64
	Entries     []Entry
}

// Book is the pair's bid/ask price levels for one batch snapshot.
type Book struct {
	Bids []Level // sorted descending by price
	Asks []Level // sorted ascending by price
}

// AgeMinutesFunc computes an order's age in minutes at snapshot time, used
// by the volume estimator's recency factor (spec §4.5 step 5).
type AgeMinutesFunc func(o batch.Order) int64

// Limits bounds what Build returns (spec §6): MaxPriceLevels caps the
// price-level search matching has to do per side, MinLiquidity drops
// levels whose estimated volume can't plausibly clear.
type Limits struct {
	// MaxPriceLevels caps the number of levels kept per side, best prices
	// first. <= 0 means unbounded.
	MaxPriceLevels int

	// MinLiquidity is the per-level estimated-volume floor; levels below
	// it are dropped before MaxPriceLevels truncation.
	MinLiquidity uint64
}

// Build groups PENDING orders for one pair into a Book. Orders from other
// pairs are ignored. Invalid or empty input yields an empty Book, never a
// panic (spec §4.7 "Failure semantics" applies uniformly across C6/C7).
// est computes each order's estimated volume; a nil est falls back to the
// package-level, uncached estimator.Estimate.
func Build(orders []batch.Order, ageFn AgeMinutesFunc, est *estimator.Estimator, limits Limits) Book {
	bidLevels := make(map[string]*Level)
	askLevels := make(map[string]*Level)
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	for _, o := range orders {
		if o.Status != batch.Pending || o.PublicPrice == nil {
			continue
		}
		age := int64(0)
		if ageFn != nil {
			age = ageFn(o)
		}
		input := estimator.Input{
			EncryptedAmount: o.EncryptedAmount,
			PairID:          o.PairID,
			Side:            estimator.Side(o.OrderType),
			Price:           priceScale(o.PublicPrice),
			AgeMinutes:      age,
		}
		var vol uint64
		if est != nil {
			vol = est.Estimate(input)
		} else {
			vol = estimator.Estimate(input)
		}
		// Guard against downstream fixed-point overflow in matching's
		// pro-rata ratios (spec §4.7 "Failure semantics").
		vol = safeparams.ClampOrderSize(vol, safeparams.DefaultMaxOrderSize)

		key := o.PublicPrice.String()
		var levels map[string]*Level
		var h heap.Interface
		if o.OrderType == batch.Buy {
			levels = bidLevels
			h = bidHeap
		} else {
			levels = askLevels
			h = askHeap
		}

		lvl, exists := levels[key]
		if !exists {
			lvl = &Level{Price: new(big.Int).Set(o.PublicPrice)}
			levels[key] = lvl
			heap.Push(h, lvl.Price)
		}
		lvl.Entries = append(lvl.Entries, Entry{OrderID: o.ID, EstimatedVolume: vol})
		lvl.TotalVolume += vol
	}

	return Book{
		Bids: applyLimits(drainSorted(bidHeap, bidLevels), limits),
		Asks: applyLimits(drainSorted(askHeap, askLevels), limits),
	}
}

// applyLimits drops levels below limits.MinLiquidity, then truncates to
// limits.MaxPriceLevels keeping the best prices (levels arrives sorted
// best-first, so truncating the tail keeps the best N).
func applyLimits(levels []Level, limits Limits) []Level {
	out := levels[:0]
	for _, lvl := range levels {
		if lvl.TotalVolume < limits.MinLiquidity {
			continue
		}
		out = append(out, lvl)
	}
	if limits.MaxPriceLevels > 0 && len(out) > limits.MaxPriceLevels {
		out = out[:limits.MaxPriceLevels]
	}
	return out
}

func drainSorted(h heap.Interface, levels map[string]*Level) []Level {
	out := make([]Level, 0, len(levels))
	for h.Len() > 0 {
		p := heap.Pop(h).(*big.Int)
		out = append(out, *levels[p.String()])
	}
	return out
}

// priceScale reduces a uint256 public price into the small integer scale
// the volume estimator's price_factor expects (spec §4.5 step 5:
// "price_factor: min(price*10, 1000)" implies price itself is already a
// small unit; on-chain prices are ticks, so we take price modulo a
// reasonable display scale instead of overflowing).
func priceScale(price *big.Int) uint64 {
	scaled := new(big.Int).Mod(price, big.NewInt(100))
	return scaled.Uint64()
}

// SortLevelsForTest exposes level sorting for tests that build Level
// slices directly rather than through Build.
func SortLevelsForTest(levels []Level, descending bool) {
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.Cmp(levels[j].Price) > 0
		}
		return levels[i].Price.Cmp(levels[j].Price) < 0
	})
}
