package solver

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/chain"
	"github.com/veilswap/batchsolver/pkg/crypto"
	"github.com/veilswap/batchsolver/params"
	"github.com/veilswap/batchsolver/pkg/market"
)

// fakeClock lets tests control "now" deterministically.
type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time                       { return f.now }
func (f *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func testOrder(idByte byte, side batch.Side, price int64, pairID market.PairID, encAmt []byte) batch.Order {
	var id batch.OrderID
	id[0] = idByte
	return batch.Order{
		ID:              id,
		Trader:          common.HexToAddress("0x1"),
		PairID:          pairID,
		OrderType:       side,
		PublicPrice:     big.NewInt(price),
		EncryptedAmount: encAmt,
		Status:          batch.Pending,
		Timestamp:       time.Unix(0, 0),
	}
}

// amountPlaceholder returns a 99+ byte slice so the volume estimator
// parses it instead of short-circuiting to zero (spec §4.5 step 1).
func amountPlaceholder(tag byte) []byte {
	b := make([]byte, 132)
	b[0] = tag
	return b
}

func testOperator(t *testing.T) *crypto.Signer {
	t.Helper()
	op, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate test operator key: %v", err)
	}
	return op
}

func newTestDriver(t *testing.T, client chain.Client, pairs *market.Registry) *Driver {
	t.Helper()
	cfg := params.Default()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := New(cfg, client, pairs, clock, zap.NewNop(), nil, testOperator(t))
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return d
}

func TestDriver_S1_SimpleMatch(t *testing.T) {
	pairID := market.PairID{1}
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	d := newTestDriver(t, client, pairs)

	buy := testOrder(1, batch.Buy, 1050, pairID, amountPlaceholder(1))
	sell := testOrder(2, batch.Sell, 990, pairID, amountPlaceholder(2))
	d.state.AddOrder(&buy)
	d.state.AddOrder(&sell)

	settlements := d.Process()
	if len(settlements) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(settlements))
	}
	s := settlements[0]
	if s.ClearingPrice.Cmp(big.NewInt(990)) < 0 || s.ClearingPrice.Cmp(big.NewInt(1050)) > 0 {
		t.Fatalf("clearing price %s not within [990,1050]", s.ClearingPrice)
	}
	if len(s.MatchedOrderIDs) != 2 {
		t.Fatalf("expected both orders matched, got %d", len(s.MatchedOrderIDs))
	}
}

func TestDriver_S5_NoIntersection(t *testing.T) {
	pairID := market.PairID{1}
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	d := newTestDriver(t, client, pairs)

	buy := testOrder(1, batch.Buy, 980, pairID, amountPlaceholder(1))
	sell := testOrder(2, batch.Sell, 990, pairID, amountPlaceholder(2))
	d.state.AddOrder(&buy)
	d.state.AddOrder(&sell)

	settlements := d.Process()
	if len(settlements) != 0 {
		t.Fatalf("expected no settlement, got %d", len(settlements))
	}

	o1, _ := d.state.Get(buy.ID)
	o2, _ := d.state.Get(sell.ID)
	if o1.Status != batch.Pending || o2.Status != batch.Pending {
		t.Fatalf("expected both orders to remain PENDING")
	}
}

func TestDriver_S6_CancellationDuringBatch(t *testing.T) {
	pairID := market.PairID{1}
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	d := newTestDriver(t, client, pairs)

	buy := testOrder(1, batch.Buy, 1050, pairID, amountPlaceholder(1))
	sell := testOrder(2, batch.Sell, 990, pairID, amountPlaceholder(2))
	d.state.AddOrder(&buy)
	d.state.AddOrder(&sell)

	if !d.state.Cancel(buy.ID) {
		t.Fatalf("expected cancel to succeed")
	}

	settlements := d.Process()
	if len(settlements) != 0 {
		t.Fatalf("expected no settlement after cancelling one side, got %d", len(settlements))
	}

	o1, _ := d.state.Get(buy.ID)
	o2, _ := d.state.Get(sell.ID)
	if o1.Status != batch.Cancelled {
		t.Fatalf("expected BUY to remain CANCELLED")
	}
	if o2.Status != batch.Pending {
		t.Fatalf("expected SELL to remain PENDING")
	}
}

func TestDriver_OnOrderCancelled_UnknownOrderIgnored(t *testing.T) {
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	d := newTestDriver(t, client, pairs)

	var unknown batch.OrderID
	unknown[0] = 99
	d.onOrderCancelled(chain.Event{Kind: chain.EventOrderCancelled, OrderID: unknown})
	// no panic, no-op: success.
}

func TestDriver_MaxOrdersPerBatchTruncates(t *testing.T) {
	pairID := market.PairID{1}
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	cfg := params.Default()
	cfg.MaxOrdersPerBatch = 2
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := New(cfg, client, pairs, clock, zap.NewNop(), nil, testOperator(t))
	_ = d.Init(context.Background())

	for i := byte(1); i <= 5; i++ {
		o := testOrder(i, batch.Buy, 100, pairID, amountPlaceholder(i))
		client.SeedOrder(o)
		d.onOrderPlaced(context.Background(), chain.Event{Kind: chain.EventOrderPlaced, OrderID: o.ID})
	}
	if d.state.Len() != 2 {
		t.Fatalf("expected batch truncated to 2 orders, got %d", d.state.Len())
	}
}

func TestDriver_SubmitMarksOrdersFilled(t *testing.T) {
	pairID := market.PairID{1}
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	d := newTestDriver(t, client, pairs)

	buy := testOrder(1, batch.Buy, 1050, pairID, amountPlaceholder(1))
	sell := testOrder(2, batch.Sell, 990, pairID, amountPlaceholder(2))
	d.state.AddOrder(&buy)
	d.state.AddOrder(&sell)

	settlements := d.Process()
	d.Submit(context.Background(), settlements)

	// Which side clears fully vs. pro-rata depends on the two orders'
	// estimator-derived volumes, which aren't hand-computable here; either
	// terminal status is a valid outcome of a successful submission
	// (TestDriver_SubmitSetsFilledOrPartiallyFilledByVolume below asserts
	// the exact branch logic against hand-built volumes instead).
	o1, _ := d.state.Get(buy.ID)
	if o1.Status != batch.Filled && o1.Status != batch.PartiallyFilled {
		t.Fatalf("expected BUY to be FILLED or PARTIALLY_FILLED after submission, got %s", o1.Status)
	}
	if len(client.Settlements()) != 1 {
		t.Fatalf("expected 1 settlement recorded on chain client")
	}
}

func TestDriver_SubmitSetsFilledOrPartiallyFilledByVolume(t *testing.T) {
	pairID := market.PairID{1}
	client := chain.NewMockClient(1, 1000, 60)
	pairs := market.NewRegistry()
	d := newTestDriver(t, client, pairs)

	full := testOrder(1, batch.Buy, 1000, pairID, amountPlaceholder(1))
	partial := testOrder(2, batch.Sell, 1000, pairID, amountPlaceholder(2))
	d.state.AddOrder(&full)
	d.state.AddOrder(&partial)

	s := batch.Settlement{
		PairID:               pairID,
		ClearingPrice:        big.NewInt(1000),
		MatchedOrderIDs:      []batch.OrderID{full.ID, partial.ID},
		EncryptedFillAmounts: [][]byte{full.EncryptedAmount, partial.EncryptedAmount},
		FillVolumes:          []uint64{10, 5},
		OrderVolumes:         []uint64{10, 15},
	}

	d.Submit(context.Background(), []batch.Settlement{s})

	o1, _ := d.state.Get(full.ID)
	if o1.Status != batch.Filled {
		t.Fatalf("expected fully-filled order to be FILLED, got %s", o1.Status)
	}
	o2, _ := d.state.Get(partial.ID)
	if o2.Status != batch.PartiallyFilled {
		t.Fatalf("expected pro-rata-capped order to be PARTIALLY_FILLED, got %s", o2.Status)
	}
}
