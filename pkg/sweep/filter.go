package sweep

import (
	"github.com/gagliardetto/solana-go"
)

// DefaultMinLamports is the default significance threshold. Accounts below
// it are dust not worth a closing transaction's own fee cost.
const DefaultMinLamports uint64 = 2000

// FilterSignificant drops accounts whose lamport balance is below
// minLamports, preserving order. Raising the threshold never grows the
// result.
func FilterSignificant(accounts []ReclaimableAccount, minLamports uint64) []ReclaimableAccount {
	var out []ReclaimableAccount
	for _, acc := range accounts {
		if acc.Lamports >= minLamports {
			out = append(out, acc)
		}
	}
	return out
}

// Totals holds the summed reclaimable value of a set of accounts.
// TotalSOL is derived by floating-point division for display only; fee math
// never touches it.
type Totals struct {
	TotalLamports uint64  `json:"totalLamports"`
	TotalSOL      float64 `json:"totalSol"`
}

// Totalize sums lamport balances with exact integer arithmetic.
func Totalize(accounts []ReclaimableAccount) Totals {
	var total uint64
	for _, acc := range accounts {
		total += acc.Lamports
	}
	return Totals{
		TotalLamports: total,
		TotalSOL:      float64(total) / float64(solana.LAMPORTS_PER_SOL),
	}
}
