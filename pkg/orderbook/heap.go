package orderbook

import "math/big"

// maxPriceHeap and minPriceHeap order big.Int price levels. Adapted from
// the teacher's int64 price heaps (pkg/app/core/orderbook/heap.go); prices
// here are unsigned 256-bit integers (spec §3), so the heap holds *big.Int
// and compares with Cmp instead of plain operators.

type maxPriceHeap []*big.Int

func (h maxPriceHeap) Len() int            { return len(h) }
func (h maxPriceHeap) Less(i, j int) bool  { return h[i].Cmp(h[j]) > 0 } // highest first
func (h maxPriceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxPriceHeap) Push(x interface{}) { *h = append(*h, x.(*big.Int)) }
func (h *maxPriceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

type minPriceHeap []*big.Int

func (h minPriceHeap) Len() int            { return len(h) }
func (h minPriceHeap) Less(i, j int) bool  { return h[i].Cmp(h[j]) < 0 } // lowest first
func (h minPriceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minPriceHeap) Push(x interface{}) { *h = append(*h, x.(*big.Int)) }
func (h *minPriceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
