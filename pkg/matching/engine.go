// Package matching implements uniform-price batch-auction clearing (spec
// §4.7, C7): clearing-price discovery over an order book's price levels,
// followed by pro-rata fill allocation at that price. Grounded in the
// teacher's price-time matching loop (pkg/app/core/orderbook/orderbook.go)
// but replaced end to end: the teacher matches incoming orders against a
// resting book one at a time, while a batch auction clears the whole book
// at a single discovered price, so only the price-level iteration idiom
// survives.
package matching

import (
	"math/big"
	"sort"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/orderbook"
)

// Fill is one matched order's allocation at the clearing price.
type Fill struct {
	OrderID       batch.OrderID
	FillVolume    uint64 // <= OrderVolume
	OrderVolume   uint64 // the order's total estimated volume
	ClearingPrice *big.Int
}

// Result is the outcome of clearing one pair's order book for one batch.
// HasMatch == false means no trade occurs this batch (spec §4.7 edge
// cases: empty book, crossed-out book, or M(p*) == 0).
type Result struct {
	HasMatch      bool
	ClearingPrice *big.Int
	Fills         []Fill
}

// Clear runs uniform-price discovery and pro-rata allocation over book
// (spec §4.7):
//
//  1. B(p) = cumulative bid volume at prices >= p.
//  2. S(p) = cumulative ask volume at prices <= p.
//  3. M(p) = min(B(p), S(p)).
//  4. clearing price p* = argmax M(p), ties broken by the lowest such p.
//  5. If the book is empty, the best bid is below the best ask (no
//     crossing), or M(p*) == 0, there is no match.
//  6. At p*, each side fills pro-rata: rB = M(p*)/B(p*), rS = M(p*)/S(p*);
//     each order's fill is min(volume*ratio, volume), floor-rounded.
func Clear(book orderbook.Book) Result {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return Result{HasMatch: false}
	}
	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price
	if bestBid.Cmp(bestAsk) < 0 {
		return Result{HasMatch: false}
	}

	best, bestVol := findClearingPrice(book)
	if best == nil || bestVol == 0 {
		return Result{HasMatch: false}
	}

	bVolAtStar := cumulativeBid(book, best)
	sVolAtStar := cumulativeAsk(book, best)
	fills := allocateProRata(book, best, bestVol, bVolAtStar, sVolAtStar)

	return Result{HasMatch: true, ClearingPrice: best, Fills: fills}
}

// findClearingPrice evaluates M(p) at every price appearing in the book
// (the maximizer of M is always attained at one of these, since B and S
// are step functions that only change value at order prices) and returns
// the argmax, ties broken by the lowest price (spec §4.7 step 4).
func findClearingPrice(book orderbook.Book) (*big.Int, uint64) {
	candidates := candidatePrices(book)

	var best *big.Int
	var bestVol uint64
	for _, p := range candidates {
		bVol := cumulativeBid(book, p)
		sVol := cumulativeAsk(book, p)
		m := bVol
		if sVol < m {
			m = sVol
		}
		switch {
		case best == nil:
			best, bestVol = p, m
		case m > bestVol:
			best, bestVol = p, m
		case m == bestVol && p.Cmp(best) < 0:
			best = p
		}
	}
	return best, bestVol
}

// candidatePrices returns every distinct price across bids and asks,
// ascending.
func candidatePrices(book orderbook.Book) []*big.Int {
	seen := make(map[string]*big.Int)
	for _, lvl := range book.Bids {
		seen[lvl.Price.String()] = lvl.Price
	}
	for _, lvl := range book.Asks {
		seen[lvl.Price.String()] = lvl.Price
	}
	out := make([]*big.Int, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// cumulativeBid is B(p): total bid volume at prices >= p (book.Bids is
// already sorted descending, so this is a prefix sum).
func cumulativeBid(book orderbook.Book, p *big.Int) uint64 {
	var total uint64
	for _, lvl := range book.Bids {
		if lvl.Price.Cmp(p) >= 0 {
			total += lvl.TotalVolume
		}
	}
	return total
}

// cumulativeAsk is S(p): total ask volume at prices <= p.
func cumulativeAsk(book orderbook.Book, p *big.Int) uint64 {
	var total uint64
	for _, lvl := range book.Asks {
		if lvl.Price.Cmp(p) <= 0 {
			total += lvl.TotalVolume
		}
	}
	return total
}

// allocateProRata distributes matchedVolume across every resting order on
// both sides of the book that participates at the clearing price, each
// filled in proportion to its share of its side's total volume at that
// price (spec §4.7 step 6). Orders priced away from the clearing side
// (bids below p*, asks above p*) receive no fill.
func allocateProRata(book orderbook.Book, clearingPrice *big.Int, matchedVolume, bidVolAtStar, askVolAtStar uint64) []Fill {
	var fills []Fill

	for _, lvl := range book.Bids {
		if lvl.Price.Cmp(clearingPrice) < 0 {
			continue
		}
		fills = append(fills, proRataForLevel(lvl, matchedVolume, bidVolAtStar, clearingPrice)...)
	}
	for _, lvl := range book.Asks {
		if lvl.Price.Cmp(clearingPrice) > 0 {
			continue
		}
		fills = append(fills, proRataForLevel(lvl, matchedVolume, askVolAtStar, clearingPrice)...)
	}
	return fills
}

// proRataForLevel fills every entry in lvl at ratio matchedVolume/sideTotal,
// floor-rounded and capped at the entry's own estimated volume.
func proRataForLevel(lvl orderbook.Level, matchedVolume, sideTotal uint64, clearingPrice *big.Int) []Fill {
	if sideTotal == 0 {
		return nil
	}
	out := make([]Fill, 0, len(lvl.Entries))
	for _, e := range lvl.Entries {
		fill := (e.EstimatedVolume * matchedVolume) / sideTotal
		if fill > e.EstimatedVolume {
			fill = e.EstimatedVolume
		}
		out = append(out, Fill{
			OrderID:       e.OrderID,
			FillVolume:    fill,
			OrderVolume:   e.EstimatedVolume,
			ClearingPrice: clearingPrice,
		})
	}
	return out
}
