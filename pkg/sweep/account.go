package sweep

import (
	"github.com/gagliardetto/solana-go"
)

// Classification is the semantic type assigned to a discovered account.
type Classification int

const (
	ClassificationUnknown Classification = iota
	ClassificationToken
	ClassificationNFT
	ClassificationAssociatedToken
	ClassificationMetadata
	ClassificationOther
)

func (c Classification) String() string {
	switch c {
	case ClassificationToken:
		return "token"
	case ClassificationNFT:
		return "nft"
	case ClassificationAssociatedToken:
		return "associated-token"
	case ClassificationMetadata:
		return "metadata"
	case ClassificationOther:
		return "other"
	case ClassificationUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

func (c Classification) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// ProgramIDs holds the known program identifiers used during classification.
type ProgramIDs struct {
	Token           solana.PublicKey
	AssociatedToken solana.PublicKey
	Metadata        solana.PublicKey
}

// DefaultProgramIDs returns the mainnet program set.
func DefaultProgramIDs() ProgramIDs {
	return ProgramIDs{
		Token:           solana.TokenProgramID,
		AssociatedToken: solana.SPLAssociatedTokenAccountProgramID,
		Metadata:        solana.TokenMetadataProgramID,
	}
}

// AccountRecord is the raw ledger view of one account considered for reclaim.
// Token fields are populated only when the account carries parsed token data.
type AccountRecord struct {
	Address       solana.PublicKey
	Lamports      uint64
	OwningProgram solana.PublicKey
	Executable    bool
	RentEpoch     uint64

	// TokenAmount is the raw amount string from the parsed token account.
	// It is kept as a string to avoid precision loss on large supplies.
	TokenAmount  string
	Decimals     uint8
	HasTokenData bool
}

// ReclaimableAccount is one discovered sub-account holding reclaimable rent.
// Instances are created fresh on every scan and never mutated afterwards.
// Address is the dedup key: at most one ReclaimableAccount per address
// survives aggregation.
type ReclaimableAccount struct {
	Address         solana.PublicKey `json:"address"`
	Lamports        uint64           `json:"lamports"`
	OwningProgram   solana.PublicKey `json:"owningProgram"`
	Executable      bool             `json:"executable"`
	RentEpoch       uint64           `json:"rentEpoch"`
	Classification  Classification   `json:"classification"`
	SourceProgramID string           `json:"sourceProgramId,omitempty"`
}

func newReclaimableAccount(rec AccountRecord, class Classification) ReclaimableAccount {
	acc := ReclaimableAccount{
		Address:        rec.Address,
		Lamports:       rec.Lamports,
		OwningProgram:  rec.OwningProgram,
		Executable:     rec.Executable,
		RentEpoch:      rec.RentEpoch,
		Classification: class,
	}
	if class == ClassificationUnknown {
		acc.SourceProgramID = rec.OwningProgram.String()
	}
	return acc
}
