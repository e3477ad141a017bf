package sweep

import (
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidAddress is returned for malformed input addresses, before any
// ledger query is made.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress parses a base58 account address.
func ParseAddress(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, ErrInvalidAddress
	}
	return pk, nil
}

// Classify assigns a semantic type to an account record. Rules are evaluated
// in priority order, first match wins; the NFT rule outranks the generic
// empty-token rule so a zero-decimal empty account is always tagged nft no
// matter which discovery pass found it first.
//
// Executable accounts are never reclaimable and must be excluded upstream.
func Classify(rec AccountRecord, known ProgramIDs) Classification {
	switch {
	case rec.OwningProgram.Equals(known.Token) && rec.HasTokenData && isZeroAmount(rec.TokenAmount) && rec.Decimals == 0:
		return ClassificationNFT
	case rec.OwningProgram.Equals(known.Token) && rec.HasTokenData && isZeroAmount(rec.TokenAmount):
		return ClassificationToken
	case rec.OwningProgram.Equals(known.AssociatedToken) && rec.Lamports > 0:
		return ClassificationAssociatedToken
	case rec.OwningProgram.Equals(known.Metadata):
		return ClassificationMetadata
	default:
		return ClassificationUnknown
	}
}

// isZeroAmount reports whether an arbitrary-precision decimal amount string
// equals zero. The comparison is lexical after normalization; amounts are
// never run through floating point. At most one decimal point is accepted,
// with digits on both sides; anything else is malformed, not zero.
func isZeroAmount(amount string) bool {
	intPart, fracPart, hasPoint := strings.Cut(strings.TrimSpace(amount), ".")
	if intPart == "" || (hasPoint && fracPart == "") {
		return false
	}
	return allZeros(intPart) && allZeros(fracPart)
}

func allZeros(s string) bool {
	for _, r := range s {
		if r != '0' {
			return false
		}
	}
	return true
}
