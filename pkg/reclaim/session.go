package reclaim

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/sweeplabs/rentsweep/pkg/sweep"
)

// Session holds the user's chosen subset of account addresses for one
// reclaim operation. It is owned by a single scan/reclaim invocation and
// cleared after a successful or attempted submission; nothing here is shared
// across concurrent reclaim attempts.
type Session struct {
	mu       sync.Mutex
	selected map[solana.PublicKey]struct{}
	order    []solana.PublicKey
}

func NewSession() *Session {
	return &Session{selected: make(map[solana.PublicKey]struct{})}
}

// Select adds an address to the selection, preserving selection order.
func (s *Session) Select(addr solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[addr]; ok {
		return
	}
	s.selected[addr] = struct{}{}
	s.order = append(s.order, addr)
}

// Deselect removes an address from the selection.
func (s *Session) Deselect(addr solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[addr]; !ok {
		return
	}
	delete(s.selected, addr)
	for i, a := range s.order {
		if a.Equals(addr) {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear empties the selection. Callers invoke it after every submission
// attempt, successful or not.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[solana.PublicKey]struct{})
	s.order = nil
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Resolve maps the selection onto the scanned accounts, returning the
// selected accounts in selection order. Addresses that are no longer present
// in the scan are dropped.
func (s *Session) Resolve(accounts []sweep.ReclaimableAccount) []sweep.ReclaimableAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAddr := make(map[solana.PublicKey]sweep.ReclaimableAccount, len(accounts))
	for _, acc := range accounts {
		byAddr[acc.Address] = acc
	}

	var out []sweep.ReclaimableAccount
	for _, addr := range s.order {
		if acc, ok := byAddr[addr]; ok {
			out = append(out, acc)
		}
	}
	return out
}
