package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/market"
)

// MockClient is an in-memory Client for tests, mirroring the shape of the
// teacher's MockApp (pkg/abci/bridge.go): it holds the same state a real
// contract would and answers read calls against it directly, with no
// network round trip.
type MockClient struct {
	mu sync.Mutex

	batchID  uint64
	deadline int64
	duration int64

	pairs  map[market.PairID]PairInfoResult
	orders map[batch.OrderID]batch.Order

	settlements []SettleBatchInput
	settleErr   error
}

// NewMockClient returns a mock chain client seeded with an initial batch.
func NewMockClient(batchID uint64, deadline, duration int64) *MockClient {
	return &MockClient{
		batchID:  batchID,
		deadline: deadline,
		duration: duration,
		pairs:    make(map[market.PairID]PairInfoResult),
		orders:   make(map[batch.OrderID]batch.Order),
	}
}

// SeedPair registers a token pair as if returned by token_pairs.
func (m *MockClient) SeedPair(id market.PairID, info PairInfoResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[id] = info
}

// SeedOrder registers an order as if placed on-chain.
func (m *MockClient) SeedOrder(o batch.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

// AdvanceBatch simulates a BatchStarted event.
func (m *MockClient) AdvanceBatch(newBatchID uint64, newDeadline int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchID = newBatchID
	m.deadline = newDeadline
}

// FailSettlement makes the next SettleBatch call return err, simulating
// an RPC timeout or contract revert (spec §7, kind ChainIO).
func (m *MockClient) FailSettlement(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settleErr = err
}

func (m *MockClient) BatchInfo(_ context.Context) (BatchInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return BatchInfo{BatchID: m.batchID, Deadline: m.deadline, Duration: m.duration}, nil
}

func (m *MockClient) Order(_ context.Context, id batch.OrderID) (batch.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return batch.Order{}, fmt.Errorf("chain: unknown order %x", id)
	}
	return o, nil
}

func (m *MockClient) TokenPair(_ context.Context, pairID market.PairID) (PairInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.pairs[pairID]
	if !ok {
		return PairInfoResult{}, nil
	}
	return info, nil
}

func (m *MockClient) ActiveOrderIDs(_ context.Context, pairID market.PairID) ([]batch.OrderID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []batch.OrderID
	for id, o := range m.orders {
		if o.PairID == pairID && o.Status == batch.Pending {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MockClient) SettleBatch(_ context.Context, input SettleBatchInput) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleErr != nil {
		err := m.settleErr
		m.settleErr = nil
		return common.Hash{}, err
	}
	m.settlements = append(m.settlements, input)

	h := sha3.NewLegacyKeccak256()
	h.Write(input.PairID[:])
	h.Write(input.ClearingPrice.Bytes())
	for _, id := range input.MatchedOrderIDs {
		h.Write(id[:])
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Settlements returns every settlement submitted so far, for test
// assertions.
func (m *MockClient) Settlements() []SettleBatchInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SettleBatchInput, len(m.settlements))
	copy(out, m.settlements)
	return out
}
