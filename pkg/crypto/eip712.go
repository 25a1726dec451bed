package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain separates settlement digests across deployments (different
// chain, different solver instance) so a digest signed for one deployment
// can never be replayed against another.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DefaultDomain is the solver's default signing domain.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "VeilSwapBatchSolver",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

// SettlementEIP712 is the typed-data representation of one Settlement
// (spec §3), used to produce an operator-accountability digest: the
// solver's own key may sign this digest alongside a submission so
// observers can attribute a settlement to the solver instance that
// computed it, independent of the placeholder settlement proof (spec §4.3
// documents that proof as binding-but-not-sound).
type SettlementEIP712 struct {
	PairID          [32]byte
	ClearingPrice   *big.Int
	MatchedOrderIDs [][32]byte
	BatchID         uint64
}

// EIP712Signer computes and signs settlement digests within one domain.
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer returns a signer bound to domain.
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// HashSettlement computes the EIP-712 digest for a settlement.
func (e *EIP712Signer) HashSettlement(s *SettlementEIP712) ([]byte, error) {
	orderIDsHex := make([]string, len(s.MatchedOrderIDs))
	for i, id := range s.MatchedOrderIDs {
		orderIDsHex[i] = fmt.Sprintf("0x%x", id)
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Settlement": []apitypes.Type{
				{Name: "pairId", Type: "bytes32"},
				{Name: "clearingPrice", Type: "uint256"},
				{Name: "matchedOrderIds", Type: "string[]"},
				{Name: "batchId", Type: "uint256"},
			},
		},
		PrimaryType: "Settlement",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"pairId":          fmt.Sprintf("0x%x", s.PairID),
			"clearingPrice":   s.ClearingPrice.String(),
			"matchedOrderIds": orderIDsHex,
			"batchId":         fmt.Sprintf("%d", s.BatchID),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	digest := crypto.Keccak256Hash(rawData)
	return digest.Bytes(), nil
}

// SignSettlement signs a settlement digest with signer.
func (e *EIP712Signer) SignSettlement(signer *Signer, s *SettlementEIP712) ([]byte, error) {
	hash, err := e.HashSettlement(s)
	if err != nil {
		return nil, fmt.Errorf("failed to hash settlement: %w", err)
	}
	return signer.Sign(hash)
}

// VerifySettlementSignature reports whether signature was produced by
// expectedSigner over s's digest.
func (e *EIP712Signer) VerifySettlementSignature(s *SettlementEIP712, signature []byte, expectedSigner common.Address) (bool, error) {
	hash, err := e.HashSettlement(s)
	if err != nil {
		return false, fmt.Errorf("failed to hash settlement: %w", err)
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}
	return recovered == expectedSigner, nil
}
