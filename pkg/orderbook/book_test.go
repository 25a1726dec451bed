package orderbook

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/market"
)

func mkOrder(id byte, side batch.Side, price int64, status batch.Status) batch.Order {
	var oid batch.OrderID
	oid[0] = id
	return batch.Order{
		ID:              oid,
		Trader:          common.HexToAddress("0x1"),
		PairID:          market.PairID{},
		OrderType:       side,
		PublicPrice:     big.NewInt(price),
		EncryptedAmount: []byte("0123456789012345678901234567890123456789012345678901234567890123456789012345678901234567890123456789"),
		Status:          status,
		Timestamp:       time.Unix(0, 0),
	}
}

func TestBuild_SortsBidsDescendingAsksAscending(t *testing.T) {
	orders := []batch.Order{
		mkOrder(1, batch.Buy, 100, batch.Pending),
		mkOrder(2, batch.Buy, 300, batch.Pending),
		mkOrder(3, batch.Buy, 200, batch.Pending),
		mkOrder(4, batch.Sell, 150, batch.Pending),
		mkOrder(5, batch.Sell, 50, batch.Pending),
		mkOrder(6, batch.Sell, 250, batch.Pending),
	}
	book := Build(orders, nil, nil, Limits{})

	if len(book.Bids) != 3 || len(book.Asks) != 3 {
		t.Fatalf("expected 3 bid and 3 ask levels, got %d/%d", len(book.Bids), len(book.Asks))
	}
	for i := 0; i < len(book.Bids)-1; i++ {
		if book.Bids[i].Price.Cmp(book.Bids[i+1].Price) <= 0 {
			t.Fatalf("bids not descending: %v", book.Bids)
		}
	}
	for i := 0; i < len(book.Asks)-1; i++ {
		if book.Asks[i].Price.Cmp(book.Asks[i+1].Price) >= 0 {
			t.Fatalf("asks not ascending: %v", book.Asks)
		}
	}
}

func TestBuild_CollapsesEqualPricesAndSumsVolume(t *testing.T) {
	orders := []batch.Order{
		mkOrder(1, batch.Buy, 100, batch.Pending),
		mkOrder(2, batch.Buy, 100, batch.Pending),
	}
	book := Build(orders, nil, nil, Limits{})
	if len(book.Bids) != 1 {
		t.Fatalf("expected orders at equal price to collapse into one level, got %d", len(book.Bids))
	}
	lvl := book.Bids[0]
	if len(lvl.Entries) != 2 {
		t.Fatalf("expected 2 entries in collapsed level, got %d", len(lvl.Entries))
	}
	var sum uint64
	for _, e := range lvl.Entries {
		sum += e.EstimatedVolume
	}
	if lvl.TotalVolume != sum {
		t.Fatalf("total_volume %d does not equal sum of entries %d", lvl.TotalVolume, sum)
	}
}

func TestBuild_IgnoresNonPendingOrders(t *testing.T) {
	orders := []batch.Order{
		mkOrder(1, batch.Buy, 100, batch.Filled),
		mkOrder(2, batch.Buy, 200, batch.Cancelled),
	}
	book := Build(orders, nil, nil, Limits{})
	if len(book.Bids) != 0 {
		t.Fatalf("expected no bid levels from non-pending orders, got %d", len(book.Bids))
	}
}

func TestBuild_EmptyInputYieldsEmptyBook(t *testing.T) {
	book := Build(nil, nil, nil, Limits{})
	if len(book.Bids) != 0 || len(book.Asks) != 0 {
		t.Fatalf("expected empty book, got %+v", book)
	}
}

func TestBuild_PreservesInsertionOrderWithinLevel(t *testing.T) {
	orders := []batch.Order{
		mkOrder(3, batch.Buy, 100, batch.Pending),
		mkOrder(1, batch.Buy, 100, batch.Pending),
		mkOrder(2, batch.Buy, 100, batch.Pending),
	}
	book := Build(orders, nil, nil, Limits{})
	lvl := book.Bids[0]
	want := []byte{3, 1, 2}
	for i, e := range lvl.Entries {
		if e.OrderID[0] != want[i] {
			t.Fatalf("entry %d: expected order id %d, got %d", i, want[i], e.OrderID[0])
		}
	}
}
