package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/sweeplabs/rentsweep/pkg/metrics"
)

// ataOwnerOffset is the byte offset of the owner key within the
// associated-token account layout, used for server-side memcmp filtering.
const ataOwnerOffset = 32

// Strategy identifies one discovery strategy. The declared order is the
// canonical aggregation order: earlier strategies win ties on address.
type Strategy int

const (
	StrategyTokenAccounts Strategy = iota
	StrategyNFTTokenAccounts
	StrategyAssociatedTokenAccounts
	StrategyCatchAll
)

func (s Strategy) String() string {
	switch s {
	case StrategyTokenAccounts:
		return "token-accounts"
	case StrategyNFTTokenAccounts:
		return "nft-token-accounts"
	case StrategyAssociatedTokenAccounts:
		return "associated-token-accounts"
	case StrategyCatchAll:
		return "catch-all"
	default:
		return "unknown"
	}
}

// Warning reports a partial discovery failure: one strategy failed but the
// other strategies' results are still usable.
type Warning struct {
	Strategy Strategy `json:"strategy"`
	Message  string   `json:"message"`
}

// RPC is the subset of the Solana RPC surface the scanner needs.
type RPC interface {
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error)
}

type ScannerConfig struct {
	Logger   *slog.Logger
	RPC      RPC
	Programs ProgramIDs

	// Cooperative backoff: every upstream query and every accumulated
	// candidate draws from one token bucket with burst ThrottleBatch,
	// refilled over ThrottlePause, so large result sets and back-to-back
	// strategies don't overwhelm the RPC provider's rate limits.
	ThrottleBatch int
	ThrottlePause time.Duration

	Commitment solanarpc.CommitmentType
}

func (cfg *ScannerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Programs == (ProgramIDs{}) {
		cfg.Programs = DefaultProgramIDs()
	}
	if cfg.ThrottleBatch <= 0 {
		cfg.ThrottleBatch = 100
	}
	if cfg.ThrottlePause <= 0 {
		cfg.ThrottlePause = 250 * time.Millisecond
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solanarpc.CommitmentConfirmed
	}
	return nil
}

// Scanner discovers an owner's reclaimable sub-accounts. Every scan is a
// fresh query; no state is carried between runs.
type Scanner struct {
	log *slog.Logger
	cfg ScannerConfig
}

func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{log: cfg.Logger, cfg: cfg}, nil
}

// ScanResult is the ordered, address-unique output of a full scan.
type ScanResult struct {
	Accounts []ReclaimableAccount `json:"accounts"`
	Warnings []Warning            `json:"warnings,omitempty"`
}

// Scan runs all discovery strategies in canonical order, classifies every
// candidate, and aggregates the results first-writer-wins. A failure in one
// strategy is reported as a warning and does not abort the others.
func (s *Scanner) Scan(ctx context.Context, owner solana.PublicKey) (*ScanResult, error) {
	start := time.Now()
	limiter := rate.NewLimiter(
		rate.Limit(float64(s.cfg.ThrottleBatch)/s.cfg.ThrottlePause.Seconds()),
		s.cfg.ThrottleBatch,
	)

	var (
		lists    [][]ReclaimableAccount
		warnings []Warning
	)
	run := func(strategy Strategy, fn func() ([]ReclaimableAccount, error)) {
		accounts, err := fn()
		if err != nil {
			s.log.Warn("sweep: discovery strategy failed", "strategy", strategy.String(), "error", err)
			metrics.ScanStrategyTotal.WithLabelValues(strategy.String(), "failure").Inc()
			warnings = append(warnings, Warning{Strategy: strategy, Message: err.Error()})
			return
		}
		metrics.ScanStrategyTotal.WithLabelValues(strategy.String(), "success").Inc()
		metrics.ScanAccountsFound.WithLabelValues(strategy.String()).Add(float64(len(accounts)))
		lists = append(lists, accounts)
	}

	// Strategies A and B share one token-account enumeration; B re-walks the
	// same records restricted to zero decimals so the canonical ordering
	// stays observable even though the classifier already applies the NFT
	// rule with priority.
	tokenRecs, tokenErr := s.fetchTokenAccounts(ctx, limiter, owner)
	run(StrategyTokenAccounts, func() ([]ReclaimableAccount, error) {
		if tokenErr != nil {
			return nil, tokenErr
		}
		return s.collectEmptyTokenAccounts(ctx, limiter, tokenRecs, false)
	})
	run(StrategyNFTTokenAccounts, func() ([]ReclaimableAccount, error) {
		if tokenErr != nil {
			return nil, tokenErr
		}
		return s.collectEmptyTokenAccounts(ctx, limiter, tokenRecs, true)
	})
	run(StrategyAssociatedTokenAccounts, func() ([]ReclaimableAccount, error) {
		return s.discoverAssociatedTokenAccounts(ctx, limiter, owner)
	})
	run(StrategyCatchAll, func() ([]ReclaimableAccount, error) {
		return s.discoverOwnedAccounts(ctx, limiter, owner)
	})

	if len(lists) == 0 {
		return nil, fmt.Errorf("all discovery strategies failed: %s", warnings[0].Message)
	}

	accounts := Aggregate(lists...)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	s.log.Debug("sweep: scan complete",
		"owner", owner.String(),
		"accounts", len(accounts),
		"warnings", len(warnings),
		"duration", time.Since(start))

	return &ScanResult{Accounts: accounts, Warnings: warnings}, nil
}

// rentEpochOf normalizes the rent epoch, which the RPC layer reports as a
// big integer because closed-out accounts carry u64-max sentinel epochs.
func rentEpochOf(acc *solanarpc.Account) uint64 {
	if acc.RentEpoch == nil {
		return 0
	}
	return acc.RentEpoch.Uint64()
}

// fetchTokenAccounts enumerates the owner's token-program accounts with
// parsed token data in one round trip. Shared by the token and NFT strategies.
func (s *Scanner) fetchTokenAccounts(ctx context.Context, limiter *rate.Limiter, owner solana.PublicKey) ([]AccountRecord, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	programID := s.cfg.Programs.Token
	res, err := s.cfg.RPC.GetTokenAccountsByOwner(ctx, owner,
		&solanarpc.GetTokenAccountsConfig{ProgramId: &programID},
		&solanarpc.GetTokenAccountsOpts{
			Commitment: s.cfg.Commitment,
			Encoding:   solana.EncodingJSONParsed,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts by owner: %w", err)
	}

	recs := make([]AccountRecord, 0, len(res.Value))
	for _, keyed := range res.Value {
		if keyed.Account.Executable {
			continue
		}
		rec := AccountRecord{
			Address:       keyed.Pubkey,
			Lamports:      keyed.Account.Lamports,
			OwningProgram: keyed.Account.Owner,
			RentEpoch:     rentEpochOf(&keyed.Account),
		}
		if keyed.Account.Data == nil {
			recs = append(recs, rec)
			continue
		}
		if raw := keyed.Account.Data.GetRawJSON(); raw != nil {
			parsed := gjson.ParseBytes(raw)
			if amount := parsed.Get("parsed.info.tokenAmount.amount"); amount.Exists() {
				rec.TokenAmount = amount.String()
				rec.Decimals = uint8(parsed.Get("parsed.info.tokenAmount.decimals").Uint())
				rec.HasTokenData = true
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// collectEmptyTokenAccounts walks already-fetched token records and keeps the
// zero-amount ones; with nftOnly set it additionally requires zero decimals.
func (s *Scanner) collectEmptyTokenAccounts(ctx context.Context, limiter *rate.Limiter, recs []AccountRecord, nftOnly bool) ([]ReclaimableAccount, error) {
	var out []ReclaimableAccount
	for _, rec := range recs {
		if !rec.HasTokenData || !isZeroAmount(rec.TokenAmount) {
			continue
		}
		if nftOnly && rec.Decimals != 0 {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out = append(out, newReclaimableAccount(rec, Classify(rec, s.cfg.Programs)))
	}
	return out, nil
}

// discoverAssociatedTokenAccounts finds accounts under the associated-token
// program whose payload embeds the owner key at the known byte offset.
func (s *Scanner) discoverAssociatedTokenAccounts(ctx context.Context, limiter *rate.Limiter, owner solana.PublicKey) ([]ReclaimableAccount, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := s.cfg.RPC.GetProgramAccountsWithOpts(ctx, s.cfg.Programs.AssociatedToken,
		&solanarpc.GetProgramAccountsOpts{
			Commitment: s.cfg.Commitment,
			Filters: []solanarpc.RPCFilter{
				{Memcmp: &solanarpc.RPCFilterMemcmp{
					Offset: ataOwnerOffset,
					Bytes:  solana.Base58(owner.Bytes()),
				}},
			},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get associated-token program accounts: %w", err)
	}

	var out []ReclaimableAccount
	for _, keyed := range res {
		if keyed.Account == nil || keyed.Account.Executable || keyed.Account.Lamports == 0 {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		rec := AccountRecord{
			Address:       keyed.Pubkey,
			Lamports:      keyed.Account.Lamports,
			OwningProgram: keyed.Account.Owner,
			RentEpoch:     rentEpochOf(keyed.Account),
		}
		out = append(out, newReclaimableAccount(rec, Classify(rec, s.cfg.Programs)))
	}
	return out, nil
}

// discoverOwnedAccounts is the catch-all pass over every account whose owner
// field is the target address, regardless of program.
func (s *Scanner) discoverOwnedAccounts(ctx context.Context, limiter *rate.Limiter, owner solana.PublicKey) ([]ReclaimableAccount, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := s.cfg.RPC.GetProgramAccountsWithOpts(ctx, owner,
		&solanarpc.GetProgramAccountsOpts{Commitment: s.cfg.Commitment})
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts owned by address: %w", err)
	}

	var out []ReclaimableAccount
	for _, keyed := range res {
		if keyed.Account == nil || keyed.Account.Executable || keyed.Account.Lamports == 0 {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		rec := AccountRecord{
			Address:       keyed.Pubkey,
			Lamports:      keyed.Account.Lamports,
			OwningProgram: keyed.Account.Owner,
			RentEpoch:     rentEpochOf(keyed.Account),
		}
		out = append(out, newReclaimableAccount(rec, Classify(rec, s.cfg.Programs)))
	}
	return out, nil
}
