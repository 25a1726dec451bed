package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/market"
)

func TestMockClient_BatchInfoRoundTrip(t *testing.T) {
	c := NewMockClient(1, 1000, 60)
	info, err := c.BatchInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.BatchID != 1 || info.Deadline != 1000 || info.Duration != 60 {
		t.Fatalf("unexpected batch info: %+v", info)
	}
}

func TestMockClient_UnknownOrderErrors(t *testing.T) {
	c := NewMockClient(1, 1000, 60)
	_, err := c.Order(context.Background(), batch.OrderID{1})
	if err == nil {
		t.Fatalf("expected error for unknown order")
	}
}

func TestMockClient_UnknownPairReturnsNotExists(t *testing.T) {
	c := NewMockClient(1, 1000, 60)
	info, err := c.TokenPair(context.Background(), market.PairID{9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Exists {
		t.Fatalf("expected Exists=false for unknown pair")
	}
}

func TestMockClient_SettleBatchRecordsAndReturnsHash(t *testing.T) {
	c := NewMockClient(1, 1000, 60)
	input := SettleBatchInput{
		PairID:          market.PairID{1},
		ClearingPrice:   big.NewInt(100),
		MatchedOrderIDs: []batch.OrderID{{1}, {2}},
	}
	hash, err := c.SettleBatch(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var zero [32]byte
	if hash == zero {
		t.Fatalf("expected nonzero settlement hash")
	}
	if len(c.Settlements()) != 1 {
		t.Fatalf("expected 1 recorded settlement")
	}
}

func TestMockClient_SettleBatchPropagatesInjectedError(t *testing.T) {
	c := NewMockClient(1, 1000, 60)
	wantErr := errors.New("rpc timeout")
	c.FailSettlement(wantErr)
	_, err := c.SettleBatch(context.Background(), SettleBatchInput{
		PairID:        market.PairID{1},
		ClearingPrice: big.NewInt(1),
	})
	if err != wantErr {
		t.Fatalf("expected injected error, got %v", err)
	}
}
