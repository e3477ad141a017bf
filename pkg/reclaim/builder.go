package reclaim

import (
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/sweeplabs/rentsweep/pkg/sweep"
)

var (
	// ErrEmptySelection is returned when a reclaim transaction is requested
	// with no accounts selected.
	ErrEmptySelection = errors.New("empty selection")

	// ErrInvalidRecipient is returned when the fee recipient cannot be
	// parsed.
	ErrInvalidRecipient = errors.New("invalid fee recipient")
)

// FeeRateDenominator is the fixed denominator of the skim fee fraction.
const FeeRateDenominator uint64 = 100

// FeePlan is derived from the current selection at the moment of transaction
// assembly; it is recomputed whenever the selection changes and never cached
// across a submission attempt.
type FeePlan struct {
	SelectedTotal uint64 `json:"selectedTotal"`
	FeeLamports   uint64 `json:"feeLamports"`
	NetLamports   uint64 `json:"netLamports"`
}

// PlanFee computes the fee split for the selected accounts using integer
// arithmetic only. The fee rounds down, so the net recipient is favored by
// at most one lamport.
func PlanFee(selected []sweep.ReclaimableAccount, feeRateNumerator uint64) FeePlan {
	var total uint64
	for _, acc := range selected {
		total += acc.Lamports
	}
	fee := total * feeRateNumerator / FeeRateDenominator
	return FeePlan{
		SelectedTotal: total,
		FeeLamports:   fee,
		NetLamports:   total - fee,
	}
}

// ParseRecipient parses a base58 fee recipient address.
func ParseRecipient(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, ErrInvalidRecipient
	}
	return pk, nil
}

// Build assembles the ordered instruction sequence for one reclaim
// transaction: a close instruction per selected account, in selection order,
// with the freed balance paid to the owner, followed by exactly one native
// transfer of the fee from the owner to the fee recipient.
//
// Instructions are never reordered after this point; their order determines
// which failure aborts the atomic transaction. Build is all-or-nothing:
// either the full sequence and its fee plan are returned or nothing is.
func Build(selected []sweep.ReclaimableAccount, owner, feeRecipient solana.PublicKey, feeRateNumerator uint64) ([]solana.Instruction, FeePlan, error) {
	if len(selected) == 0 {
		return nil, FeePlan{}, ErrEmptySelection
	}
	if feeRecipient.IsZero() {
		return nil, FeePlan{}, ErrInvalidRecipient
	}

	plan := PlanFee(selected, feeRateNumerator)

	instructions := make([]solana.Instruction, 0, len(selected)+1)
	for _, acc := range selected {
		instructions = append(instructions, token.NewCloseAccountInstruction(
			acc.Address,
			owner,
			owner,
			nil,
		).Build())
	}
	instructions = append(instructions, system.NewTransferInstruction(
		plan.FeeLamports,
		owner,
		feeRecipient,
	).Build())

	return instructions, plan, nil
}
