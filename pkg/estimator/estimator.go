// Package estimator derives a privacy-preserving magnitude estimate for an
// order's encrypted amount, without recovering the plaintext (spec §4.5).
// It is the sole source of per-order "volume" the order book (pkg/orderbook)
// and matching engine (pkg/matching) ever see.
package estimator

import (
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/veilswap/batchsolver/pkg/storage"
)

// MaxParamSize is the input-size ceiling shared across the solver (spec
// §4.5 step 2, §6 proof ceiling, §9 C9).
const MaxParamSize = 32 * 1024

// NumBuckets is the fixed number of magnitude reference buckets (spec
// §4.5 step 4: "k = 6").
const NumBuckets = 6

// Side is the order side, matching spec §3 order_type.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// Input bundles everything the estimator's market-adjustment step needs
// (spec §4.5 steps 5-6).
type Input struct {
	EncryptedAmount []byte
	PairID          [32]byte
	Side            Side
	Price           uint64 // price normalised to a small integer scale for the price_factor
	AgeMinutes      int64
}

// Estimator computes volume estimates, optionally consulting a Cache for
// each pair's reference thresholds instead of rederiving them on every
// call (spec §5 "Shared-resource policy": reference thresholds are a
// write-once, read-many cache keyed by pair_id).
type Estimator struct {
	cache *storage.Cache
}

// New returns an Estimator backed by cache. cache may be nil, in which
// case thresholds are recomputed on every call (used by tests and by the
// package-level Estimate helper below).
func New(cache *storage.Cache) *Estimator {
	return &Estimator{cache: cache}
}

// defaultEstimator backs the package-level Estimate function with no
// cache, preserving a simple call shape for callers (and tests) that
// don't need the cache.
var defaultEstimator = &Estimator{}

// Estimate computes the estimated order volume per spec §4.5, with no
// reference-threshold caching. Equivalent to New(nil).Estimate(in).
func Estimate(in Input) uint64 {
	return defaultEstimator.Estimate(in)
}

// Estimate computes the estimated order volume per spec §4.5. Invalid or
// oversized input returns 0, never an error (spec §7: InvalidInput returns
// a neutral value).
func (e *Estimator) Estimate(in Input) uint64 {
	if len(in.EncryptedAmount) > MaxParamSize {
		return 0
	}
	if len(in.EncryptedAmount) < 99 {
		return 0
	}

	r := in.EncryptedAmount[0:33]
	c1 := in.EncryptedAmount[33:66]
	c2 := in.EncryptedAmount[66:99]

	fp := fingerprint(r, c1, c2)
	refs := e.referenceThresholds(in.PairID)

	bucket := bucketExponent(fp, refs)
	magnitude := pow10(bucket)

	adjusted := applyMarketAdjustment(magnitude, in.Side, in.Price, in.AgeMinutes)
	return roundPrivately(adjusted, fp)
}

// referenceThresholds returns pair_id's NumBuckets reference digests,
// consulting the cache first and computing (then saving) them on a miss.
func (e *Estimator) referenceThresholds(pairID [32]byte) [NumBuckets]*big.Int {
	if e.cache != nil {
		if raw, ok, err := e.cache.GetReferenceThresholds(pairID); err == nil && ok && len(raw) == NumBuckets {
			var out [NumBuckets]*big.Int
			for i, b := range raw {
				out[i] = new(big.Int).SetBytes(b)
			}
			return out
		}
	}

	out := computeReferenceThresholds(pairID)

	if e.cache != nil {
		raw := make([][]byte, NumBuckets)
		for i, v := range out {
			raw[i] = v.Bytes()
		}
		_ = e.cache.SaveReferenceThresholds(pairID, raw)
	}
	return out
}

// fingerprint computes fp = H(r ‖ C1 ‖ C2) with Keccak-256 (spec §4.5
// step 3), returned as a big.Int for top-bits comparison.
func fingerprint(r, c1, c2 []byte) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(r)
	h.Write(c1)
	h.Write(c2)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// computeReferenceThresholds derives NumBuckets deterministic reference
// digests from pair_id (spec §4.5 step 4). Thresholds increase with i so
// that "largest power-of-ten threshold 10^i such that fp ≥ reference[i]"
// is well-defined: reference[0] is the lowest bar to clear, reference[5]
// the highest.
func computeReferenceThresholds(pairID [32]byte) [NumBuckets]*big.Int {
	var out [NumBuckets]*big.Int
	maxVal := new(big.Int).Lsh(big.NewInt(1), 256)
	for i := 0; i < NumBuckets; i++ {
		h := sha3.NewLegacyKeccak256()
		h.Write(pairID[:])
		h.Write([]byte{byte(i)})
		digest := new(big.Int).SetBytes(h.Sum(nil))

		// divisor grows with i so scaled shrinks with i, and reference[i]
		// lands in the disjoint range [maxVal - scaled, maxVal - scaled/2),
		// pushing it closer to maxVal (harder to clear) as i increases:
		// reference[0] in [maxVal/2, 3*maxVal/4), reference[5] in
		// [maxVal - maxVal/64, maxVal - maxVal/128).
		divisor := new(big.Int).Lsh(big.NewInt(1), uint(i+1))
		scaled := new(big.Int).Div(maxVal, divisor)
		threshold := new(big.Int).Mod(digest, new(big.Int).Rsh(scaled, 1))
		threshold.Add(threshold, new(big.Int).Sub(maxVal, scaled))
		out[i] = threshold
	}
	return out
}

// bucketExponent returns the largest power-of-ten exponent i such that
// fp >= reference[i], comparing only the most-significant bits (spec
// §4.5 step 4). Returns 0 if fp clears no reference.
func bucketExponent(fp *big.Int, refs [NumBuckets]*big.Int) int {
	const topBits = 32
	shift := uint(256 - topBits)
	fpTop := new(big.Int).Rsh(fp, shift)

	best := 0
	for i := 0; i < NumBuckets; i++ {
		refTop := new(big.Int).Rsh(refs[i], shift)
		if fpTop.Cmp(refTop) >= 0 {
			best = i
		}
	}
	return best
}

func pow10(exp int) uint64 {
	v := uint64(1)
	for i := 0; i < exp; i++ {
		v *= 10
	}
	return v
}

func applyMarketAdjustment(magnitude uint64, side Side, price uint64, ageMinutes int64) uint64 {
	sideFactorNum, sideFactorDen := int64(85), int64(100) // 0.85
	if side == Sell {
		sideFactorNum, sideFactorDen = 115, 100 // 1.15
	}

	priceFactor := price * 10
	if priceFactor > 1000 {
		priceFactor = 1000
	}
	if priceFactor == 0 {
		priceFactor = 1
	}

	recency := 100 - ageMinutes
	if recency < 80 {
		recency = 80
	}

	adjusted := int64(magnitude) * sideFactorNum * int64(priceFactor) * recency
	adjusted /= sideFactorDen
	adjusted /= 1_000_000
	if adjusted < 0 {
		return 0
	}
	return uint64(adjusted)
}

// roundPrivately snaps v to the nearest multiple of max(1, magnitude/10)
// and adds bounded pseudorandom noise in [-v/10, +v/10], deterministic in
// fp (spec §4.5 step 6).
func roundPrivately(v uint64, fp *big.Int) uint64 {
	if v == 0 {
		return 0
	}
	mag := decimalMagnitude(v)
	step := mag / 10
	if step < 1 {
		step = 1
	}
	rounded := ((v + step/2) / step) * step

	noiseBound := rounded / 10
	if noiseBound == 0 {
		return rounded
	}
	noiseSeed := new(big.Int).Mod(fp, big.NewInt(int64(2*noiseBound+1)))
	noise := noiseSeed.Int64() - int64(noiseBound)

	result := int64(rounded) + noise
	if result < 0 {
		return 0
	}
	return uint64(result)
}

func decimalMagnitude(v uint64) uint64 {
	mag := uint64(1)
	for mag*10 <= v {
		mag *= 10
	}
	return mag
}
