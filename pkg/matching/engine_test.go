package matching

import (
	"math/big"
	"testing"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/orderbook"
)

func mkLevel(price int64, volumes ...uint64) orderbook.Level {
	lvl := orderbook.Level{Price: big.NewInt(price)}
	for i, v := range volumes {
		var oid batch.OrderID
		oid[0] = byte(i + 1)
		lvl.Entries = append(lvl.Entries, orderbook.Entry{OrderID: oid, EstimatedVolume: v})
		lvl.TotalVolume += v
	}
	return lvl
}

func TestClear_NoMatchOnEmptyBook(t *testing.T) {
	res := Clear(orderbook.Book{})
	if res.HasMatch {
		t.Fatalf("expected no match on empty book")
	}
}

func TestClear_NoMatchWhenNotCrossed(t *testing.T) {
	book := orderbook.Book{
		Bids: []orderbook.Level{mkLevel(90, 10)},
		Asks: []orderbook.Level{mkLevel(100, 10)},
	}
	res := Clear(book)
	if res.HasMatch {
		t.Fatalf("expected no match when best bid < best ask")
	}
}

func TestClear_SimpleCross(t *testing.T) {
	book := orderbook.Book{
		Bids: []orderbook.Level{mkLevel(110, 10), mkLevel(100, 5)},
		Asks: []orderbook.Level{mkLevel(90, 8), mkLevel(105, 4)},
	}
	res := Clear(book)
	if !res.HasMatch {
		t.Fatalf("expected a match")
	}
	if res.ClearingPrice == nil {
		t.Fatalf("expected non-nil clearing price")
	}
	var totalFill uint64
	for _, f := range res.Fills {
		totalFill += f.FillVolume
	}
	if totalFill == 0 {
		t.Fatalf("expected nonzero total fill volume")
	}
}

func TestClear_TieBreaksToLowestPrice(t *testing.T) {
	// Two adjacent prices both yield M(p) = 5; expect the lower one.
	book := orderbook.Book{
		Bids: []orderbook.Level{mkLevel(102, 5), mkLevel(101, 5)},
		Asks: []orderbook.Level{mkLevel(101, 5), mkLevel(102, 5)},
	}
	res := Clear(book)
	if !res.HasMatch {
		t.Fatalf("expected a match")
	}
	if res.ClearingPrice.Cmp(big.NewInt(101)) != 0 {
		t.Fatalf("expected tie-break to lowest price 101, got %s", res.ClearingPrice.String())
	}
}

func TestClear_ProRataAllocationRespectsCaps(t *testing.T) {
	book := orderbook.Book{
		Bids: []orderbook.Level{mkLevel(100, 10, 30)}, // two bidders at same level, total 40
		Asks: []orderbook.Level{mkLevel(100, 20)},      // only 20 units offered
	}
	res := Clear(book)
	if !res.HasMatch {
		t.Fatalf("expected a match")
	}
	var bidFillTotal uint64
	for _, f := range res.Fills {
		if f.FillVolume > f.OrderVolume {
			t.Fatalf("fill %d exceeds order volume %d", f.FillVolume, f.OrderVolume)
		}
		if f.FillVolume > 30 {
			t.Fatalf("fill %d exceeds any single order's volume cap", f.FillVolume)
		}
	}
	for _, f := range res.Fills {
		bidFillTotal += f.FillVolume
	}
	if bidFillTotal == 0 {
		t.Fatalf("expected some fill volume")
	}
}

func TestClear_NoMatchWhenMatchedVolumeZero(t *testing.T) {
	book := orderbook.Book{
		Bids: []orderbook.Level{mkLevel(100, 0)},
		Asks: []orderbook.Level{mkLevel(100, 0)},
	}
	res := Clear(book)
	if res.HasMatch {
		t.Fatalf("expected no match when matched volume is zero")
	}
}
