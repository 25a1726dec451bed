// Package solver implements the batch solver's state machine (spec §4.8,
// C8): order ingestion, deadline-driven batch processing, settlement
// submission, and reset. Grounded in the teacher's consensus engine
// (pkg/consensus/engine.go) for the single-owner event-loop shape — a
// dedicated goroutine serialises all state mutation and every external
// call is wrapped with a bounded deadline — but the phases themselves
// (AWAITING_ORDERS/PROCESSING/SUBMITTING/WAITING_NEW_BATCH) replace the
// teacher's Hotstuff-style view/round progression entirely; there is no
// BFT voting here.
package solver

import (
	"context"
	"encoding/hex"
	"math/big"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veilswap/batchsolver/pkg/batch"
	"github.com/veilswap/batchsolver/pkg/chain"
	"github.com/veilswap/batchsolver/pkg/crypto"
	"github.com/veilswap/batchsolver/pkg/estimator"
	"github.com/veilswap/batchsolver/pkg/market"
	"github.com/veilswap/batchsolver/pkg/matching"
	"github.com/veilswap/batchsolver/pkg/orderbook"
	"github.com/veilswap/batchsolver/params"
	"github.com/veilswap/batchsolver/pkg/safeparams"
	"github.com/veilswap/batchsolver/pkg/storage"
	"github.com/veilswap/batchsolver/pkg/util"
	"github.com/veilswap/batchsolver/pkg/zkproof"
)

// Observer receives batch/settlement lifecycle notifications from a
// Driver. api.Server implements this structurally; Driver references
// only this interface (and SettlementEvent below) rather than the api
// package directly, since pkg/api already imports pkg/solver and a
// direct reference back would cycle.
type Observer interface {
	BroadcastBatch()
	BroadcastSettlement(SettlementEvent)
}

// SettlementEvent is the wire-agnostic summary of one submitted
// settlement, handed to Observer.BroadcastSettlement.
type SettlementEvent struct {
	PairID        string
	ClearingPrice string
	MatchedOrders []string
	ProofBytes    int
}

// Phase is one state of the driver's state machine (spec §4.8).
type Phase int

const (
	PhaseInit Phase = iota
	PhaseAwaitingOrders
	PhaseProcessing
	PhaseSubmitting
	PhaseWaitingNewBatch
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseAwaitingOrders:
		return "AWAITING_ORDERS"
	case PhaseProcessing:
		return "PROCESSING"
	case PhaseSubmitting:
		return "SUBMITTING"
	case PhaseWaitingNewBatch:
		return "WAITING_NEW_BATCH"
	default:
		return "UNKNOWN"
	}
}

// pollInterval is the default periodic deadline check (spec §4.8: "poll
// interval = 15 s by default... to tolerate missed events").
const pollInterval = 15 * time.Second

// Driver is the batch solver's single-owner coordinator. All BatchState
// mutation happens on the goroutine running Run; event handlers invoked
// from other goroutines only enqueue work (spec §5: "single-owner
// coordinator... serialises all mutations to BatchState").
type Driver struct {
	cfg      params.Config
	client   chain.Client
	pairs    *market.Registry
	state    *batch.State
	clock    util.Clock
	log      *zap.Logger
	submitFn func(context.Context, chain.SettleBatchInput) error

	cache     *storage.Cache
	estimator *estimator.Estimator
	operator  *crypto.Signer
	eip712    *crypto.EIP712Signer
	observer  Observer

	events chan chain.Event
	phase  Phase

	mu              sync.RWMutex
	lastSettlements []batch.Settlement
}

// New constructs a Driver. client is the DEX contract's read/write
// surface; pairs is the token-pair registry; clock abstracts time so
// tests can inject a fake one (spec §5, dynamic dispatch over the chain
// client and event source). cache may be nil, in which case the volume
// estimator and settlement-proof lookups recompute on every call instead
// of consulting Pebble (spec §5 "Shared-resource policy"). operator may
// be nil, in which case submitted settlements carry no accountability
// signature.
func New(cfg params.Config, client chain.Client, pairs *market.Registry, clock util.Clock, log *zap.Logger, cache *storage.Cache, operator *crypto.Signer) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		client:    client,
		pairs:     pairs,
		state:     batch.New(0, time.Time{}),
		clock:     clock,
		log:       log,
		cache:     cache,
		estimator: estimator.New(cache),
		operator:  operator,
		eip712:    crypto.NewEIP712Signer(crypto.DefaultDomain()),
		events:    make(chan chain.Event, 256),
	}
}

// SetObserver registers o to receive batch/settlement lifecycle
// notifications. Not safe for concurrent use with Run; call before
// starting the event loop.
func (d *Driver) SetObserver(o Observer) {
	d.observer = o
}

func (d *Driver) notifyBatch() {
	if d.observer != nil {
		d.observer.BroadcastBatch()
	}
}

func (d *Driver) notifySettlement(s batch.Settlement) {
	if d.observer == nil {
		return
	}
	ids := make([]string, len(s.MatchedOrderIDs))
	for i, id := range s.MatchedOrderIDs {
		ids[i] = "0x" + hex.EncodeToString(id[:])
	}
	price := "0"
	if s.ClearingPrice != nil {
		price = s.ClearingPrice.String()
	}
	d.observer.BroadcastSettlement(SettlementEvent{
		PairID:        s.PairID.String(),
		ClearingPrice: price,
		MatchedOrders: ids,
		ProofBytes:    len(s.SettlementProof),
	})
}

// Enqueue injects a chain event into the driver's event loop. Safe to
// call from any goroutine.
func (d *Driver) Enqueue(ev chain.Event) {
	d.events <- ev
}

// State exposes the driver's BatchState for read-only inspection (tests,
// the monitoring API).
func (d *Driver) State() *batch.State {
	return d.state
}

// Phase reports the driver's current state machine phase.
func (d *Driver) Phase() Phase {
	return d.phase
}

// LastSettlements returns the settlements produced by the most recently
// completed PROCESSING phase, for the monitoring API.
func (d *Driver) LastSettlements() []batch.Settlement {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]batch.Settlement, len(d.lastSettlements))
	copy(out, d.lastSettlements)
	return out
}

// Init transitions INIT -> AWAITING_ORDERS by reading the chain's current
// batch info (spec §4.8: "INIT --initialise--> AWAITING_ORDERS").
func (d *Driver) Init(ctx context.Context) error {
	info, err := d.client.BatchInfo(ctx)
	if err != nil {
		d.log.Warn("batch_info failed during init", zap.Error(err))
		d.phase = PhaseAwaitingOrders
		return err
	}
	d.state = batch.New(info.BatchID, time.Unix(info.Deadline, 0))
	d.phase = PhaseAwaitingOrders
	d.log.Info("driver initialised", zap.Uint64("batch_id", info.BatchID), zap.Int64("deadline", info.Deadline))
	return nil
}

// Run drives the event loop until ctx is cancelled (spec §5: "runs on a
// cooperative single-threaded event loop"). It reacts to enqueued chain
// events and to a periodic deadline poll.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.handleEvent(ctx, ev)
		case <-ticker.C:
			d.pollDeadline(ctx)
		}
	}
}

func (d *Driver) pollDeadline(ctx context.Context) {
	if d.phase != PhaseAwaitingOrders {
		return
	}
	if d.state.DeadlinePassed(d.clock.Now()) {
		d.processAndSubmit(ctx)
	}
}

func (d *Driver) handleEvent(ctx context.Context, ev chain.Event) {
	switch ev.Kind {
	case chain.EventOrderPlaced:
		d.onOrderPlaced(ctx, ev)
	case chain.EventOrderCancelled:
		d.onOrderCancelled(ev)
	case chain.EventBatchStarted:
		d.onBatchStarted(ev)
	case chain.EventBatchSettled:
		// No driver-side action required: settlement acceptance is
		// confirmed by the submit call's own response.
	}
}

// onOrderPlaced fetches the full order record and appends it to
// BatchState, enforcing the per-batch size cap (spec §4.8 "Ingest", spec
// §8 "maxOrdersPerBatch exceeded -> truncate deterministically").
func (d *Driver) onOrderPlaced(ctx context.Context, ev chain.Event) {
	if d.phase != PhaseAwaitingOrders {
		return
	}
	if d.state.Len() >= d.cfg.MaxOrdersPerBatch {
		d.log.Warn("order rejected: batch full", zap.Int("max", d.cfg.MaxOrdersPerBatch))
		return
	}
	o, err := d.client.Order(ctx, ev.OrderID)
	if err != nil {
		d.log.Warn("failed to fetch order record", zap.Error(err))
		return
	}
	d.state.AddOrder(&o)
}

// onOrderCancelled marks an order CANCELLED; unknown orders are ignored
// (spec §4.8 "Cancel").
func (d *Driver) onOrderCancelled(ev chain.Event) {
	if d.phase != PhaseAwaitingOrders {
		return
	}
	d.state.Cancel(ev.OrderID)
}

// onBatchStarted resets BatchState for a new batch (spec §4.8 "Reset").
func (d *Driver) onBatchStarted(ev chain.Event) {
	d.state.Reset(ev.NewBatchID, time.Unix(ev.NewDeadline, 0))
	d.phase = PhaseAwaitingOrders
	d.notifyBatch()
}

// processAndSubmit runs PROCESSING then SUBMITTING synchronously (spec
// §4.8: "PROCESSING -- all pairs matched --> SUBMITTING", "SUBMITTING --
// all settlements submitted --> WAITING_NEW_BATCH").
func (d *Driver) processAndSubmit(ctx context.Context) {
	d.phase = PhaseProcessing
	d.notifyBatch()
	settlements := d.Process()

	d.mu.Lock()
	d.lastSettlements = settlements
	d.mu.Unlock()

	d.phase = PhaseSubmitting
	d.notifyBatch()
	d.Submit(ctx, settlements)

	d.phase = PhaseWaitingNewBatch
	d.notifyBatch()
}

// orderbookLimits resolves the order-book construction limits for pairID:
// the pair's own MinLiquidity override (pkg/market.PairInfo) if
// registered and nonzero, else the global config floor (spec §6).
func (d *Driver) orderbookLimits(pairID market.PairID) orderbook.Limits {
	limits := orderbook.Limits{
		MaxPriceLevels: d.cfg.MaxPriceLevels,
		MinLiquidity:   d.cfg.MinLiquidity,
	}
	if d.pairs == nil {
		return limits
	}
	if info, ok := d.pairs.Get(pairID); ok && info.MinLiquidity > 0 {
		limits.MinLiquidity = info.MinLiquidity
	}
	return limits
}

// Process groups the current PENDING snapshot by pair and runs the
// matching engine over each (spec §4.8 "Process", spec §5 "snapshot
// reads taken at entry to PROCESSING"). Settlements are returned sorted
// by pair_id for deterministic submission order (spec §5 "Ordering
// guarantees"). When cfg.UseParallelProcessing is set, pairs are matched
// concurrently (spec §6): matching is read-only over the frozen
// snapshot, so no pair's result depends on another's.
func (d *Driver) Process() []batch.Settlement {
	snapshot := d.state.PendingSnapshot(d.cfg.MaxOrdersPerBatch)

	byPair := make(map[market.PairID][]batch.Order)
	for _, o := range snapshot {
		byPair[o.PairID] = append(byPair[o.PairID], o)
	}

	var settlements []batch.Settlement
	if d.cfg.UseParallelProcessing {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for pairID, orders := range byPair {
			wg.Add(1)
			go func(pairID market.PairID, orders []batch.Order) {
				defer wg.Done()
				s, ok := d.processPair(pairID, orders)
				if !ok {
					return
				}
				mu.Lock()
				settlements = append(settlements, s)
				mu.Unlock()
			}(pairID, orders)
		}
		wg.Wait()
	} else {
		for pairID, orders := range byPair {
			if s, ok := d.processPair(pairID, orders); ok {
				settlements = append(settlements, s)
			}
		}
	}

	sort.Slice(settlements, func(i, j int) bool {
		return compareBytes(settlements[i].PairID[:], settlements[j].PairID[:]) < 0
	})
	return settlements
}

// processPair matches one pair's orders and builds its settlement, if
// any. Split out of Process so both the sequential and
// UseParallelProcessing paths share the same per-pair logic.
func (d *Driver) processPair(pairID market.PairID, orders []batch.Order) (batch.Settlement, bool) {
	book := orderbook.Build(orders, nil, d.estimator, d.orderbookLimits(pairID))
	res := matching.Clear(book)
	if !res.HasMatch {
		return batch.Settlement{}, false
	}
	return d.buildSettlement(pairID, orders, res), true
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (d *Driver) buildSettlement(pairID market.PairID, orders []batch.Order, res matching.Result) batch.Settlement {
	byID := make(map[batch.OrderID]batch.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	var matchedIDs []batch.OrderID
	var fills [][]byte
	var fillVolumes, orderVolumes []uint64
	var settlementInputs []zkproof.SettlementInput

	for _, f := range res.Fills {
		if f.FillVolume == 0 {
			continue
		}
		o, ok := byID[f.OrderID]
		if !ok {
			continue
		}
		matchedIDs = append(matchedIDs, f.OrderID)
		fills = append(fills, o.EncryptedAmount)
		fillVolumes = append(fillVolumes, f.FillVolume)
		orderVolumes = append(orderVolumes, f.OrderVolume)
		settlementInputs = append(settlementInputs, zkproof.SettlementInput{
			OrderID:          f.OrderID,
			EncryptedFillAmt: o.EncryptedAmount,
		})
	}

	batchID := d.state.BatchID
	proof := d.settlementProof(pairID, batchID, res.ClearingPrice, settlementInputs)

	return batch.Settlement{
		PairID:               pairID,
		ClearingPrice:        res.ClearingPrice,
		MatchedOrderIDs:      matchedIDs,
		EncryptedFillAmounts: fills,
		SettlementProof:      proof,
		FillVolumes:          fillVolumes,
		OrderVolumes:         orderVolumes,
	}
}

// settlementProof returns the settlement proof for (pairID, batchID),
// reusing a previously cached proof if one exists (spec §5 "write-once,
// read-many") instead of recomputing zkproof.GenerateSettlementProof
// every time the same pair/batch is revisited.
func (d *Driver) settlementProof(pairID market.PairID, batchID uint64, clearingPrice *big.Int, inputs []zkproof.SettlementInput) []byte {
	if d.cache != nil {
		if _, proof, ok, err := d.cache.GetSettlementProof(pairID, batchID); err == nil && ok {
			return proof
		}
	}

	proof := zkproof.GenerateSettlementProof(inputs, clearingPrice)
	if !safeparams.WithinParamSizeCeiling(proof) {
		d.log.Warn("settlement proof oversize, substituting empty proof", zap.String("pair", pairID.String()))
		proof = nil
	}

	if d.cache != nil {
		if err := d.cache.SaveSettlementProof(pairID, batchID, clearingPrice.Bytes(), proof); err != nil {
			d.log.Warn("failed to cache settlement proof", zap.String("pair", pairID.String()), zap.Error(err))
		}
	}
	return proof
}

// Submit sends every settlement to the chain client, marking matched
// orders FILLED or PARTIALLY_FILLED on success and logging (but not
// aborting the driver) on failure (spec §4.8 "Submit", spec §7 kind
// ChainIO: "degrade to next batch; never abort driver"). When
// cfg.UseFastSettlement is set, settlements are submitted concurrently
// instead of one at a time (spec §6); each settlement is independent, so
// this only affects latency, never ordering guarantees within a single
// settlement.
func (d *Driver) Submit(ctx context.Context, settlements []batch.Settlement) {
	if d.cfg.UseFastSettlement {
		var wg sync.WaitGroup
		for _, s := range settlements {
			wg.Add(1)
			go func(s batch.Settlement) {
				defer wg.Done()
				d.submitOne(ctx, s)
			}(s)
		}
		wg.Wait()
		return
	}
	for _, s := range settlements {
		d.submitOne(ctx, s)
	}
}

// submitOne signs and submits a single settlement, then updates the
// matched orders' statuses on success.
func (d *Driver) submitOne(ctx context.Context, s batch.Settlement) {
	sig := d.signSettlement(s)

	input := chain.SettleBatchInput{
		PairID:               s.PairID,
		ClearingPrice:        s.ClearingPrice,
		MatchedOrderIDs:      s.MatchedOrderIDs,
		EncryptedFillAmounts: s.EncryptedFillAmounts,
		SettlementProof:      s.SettlementProof,
		OperatorSignature:    sig,
	}

	var err error
	if d.submitFn != nil {
		err = d.submitFn(ctx, input)
	} else {
		_, err = d.client.SettleBatch(ctx, input)
	}
	if err != nil {
		d.log.Error("settlement submission failed", zap.String("pair", s.PairID.String()), zap.Error(err))
		return
	}

	for i, id := range s.MatchedOrderIDs {
		status := batch.PartiallyFilled
		if i < len(s.FillVolumes) && i < len(s.OrderVolumes) && s.FillVolumes[i] >= s.OrderVolumes[i] {
			status = batch.Filled
		}
		d.state.SetStatus(id, status)
	}
	d.log.Info("settlement submitted", zap.String("pair", s.PairID.String()), zap.Int("fills", len(s.MatchedOrderIDs)))
	d.notifySettlement(s)
}

// signSettlement signs s's EIP-712 digest with the operator key, for
// accountability alongside the (binding-but-not-sound) settlement proof
// (spec §4.3). Returns nil if no operator key is configured, or if
// signing or the immediate self-verification fails — a settlement is
// still submitted without a signature rather than dropped (spec §7 kind
// ChainIO degrades; it never blocks submission on this secondary check).
func (d *Driver) signSettlement(s batch.Settlement) []byte {
	if d.operator == nil {
		return nil
	}
	orderIDs := make([][32]byte, len(s.MatchedOrderIDs))
	for i, id := range s.MatchedOrderIDs {
		orderIDs[i] = [32]byte(id)
	}
	typed := &crypto.SettlementEIP712{
		PairID:          [32]byte(s.PairID),
		ClearingPrice:   s.ClearingPrice,
		MatchedOrderIDs: orderIDs,
		BatchID:         d.state.BatchID,
	}
	sig, err := d.eip712.SignSettlement(d.operator, typed)
	if err != nil {
		d.log.Warn("failed to sign settlement", zap.String("pair", s.PairID.String()), zap.Error(err))
		return nil
	}
	ok, err := d.eip712.VerifySettlementSignature(typed, sig, d.operator.Address())
	if err != nil || !ok {
		d.log.Warn("settlement signature failed self-verification", zap.String("pair", s.PairID.String()), zap.Error(err))
		return nil
	}
	return sig
}
