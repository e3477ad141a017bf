package sweep

import (
	"github.com/gagliardetto/solana-go"
)

// Aggregate merges candidate lists in canonical strategy order using a
// first-writer-wins policy: the first list to claim an address keeps it,
// later occurrences are skipped silently. Insertion order is preserved, so
// iteration order equals discovery order and re-running on the same input is
// deterministic and idempotent.
func Aggregate(lists ...[]ReclaimableAccount) []ReclaimableAccount {
	seen := make(map[solana.PublicKey]struct{})
	var out []ReclaimableAccount
	for _, list := range lists {
		for _, acc := range list {
			if _, ok := seen[acc.Address]; ok {
				continue
			}
			seen[acc.Address] = struct{}{}
			out = append(out, acc)
		}
	}
	return out
}
