package reclaim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"

	"github.com/sweeplabs/rentsweep/pkg/metrics"
	"github.com/sweeplabs/rentsweep/pkg/retry"
)

// State is the submission state machine position:
// Built → Signed → Submitted → {Confirmed | TimedOut | Failed}.
type State int

const (
	StateBuilt State = iota
	StateSigned
	StateSubmitted
	StateConfirmed
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateTimedOut:
		return "timed-out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrSigningCancelled is returned by a Signer when the user declines to
	// sign. The machine returns to Built with no side effects performed.
	ErrSigningCancelled = errors.New("signing cancelled")

	// ErrSubmissionFailed wraps transport-level submission failures after
	// the bounded internal retry budget is exhausted.
	ErrSubmissionFailed = errors.New("submission failed")
)

// Signer signs an assembled transaction. Signing blocks on an external,
// human-paced event and has no timeout of its own; implementations must
// honor ctx for abort and return ErrSigningCancelled when the user declines.
type Signer interface {
	Sign(ctx context.Context, tx *solana.Transaction) error
}

// KeypairSigner signs with a local keypair.
type KeypairSigner struct {
	key solana.PrivateKey
}

func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

func NewKeypairSignerFromFile(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair: %w", err)
	}
	return &KeypairSigner{key: key}, nil
}

func (k *KeypairSigner) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

func (k *KeypairSigner) Sign(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return ErrSigningCancelled
	}
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if k.key.PublicKey().Equals(pk) {
			return &k.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SubmitRPC is the subset of the Solana RPC surface the submitter needs.
type SubmitRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

type SubmitterConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	RPC    SubmitRPC
	Signer Signer

	// Confirmation polling: PollInterval between status checks, up to
	// MaxPollAttempts before the submission is reported as pending.
	PollInterval    time.Duration
	MaxPollAttempts int

	// SendRetry bounds the internal retry of transient transport failures
	// during submission. Ledger rejections are never retried.
	SendRetry retry.Config
}

func (cfg *SubmitterConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Signer == nil {
		return errors.New("signer is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 60
	}
	if cfg.SendRetry.MaxAttempts <= 0 {
		cfg.SendRetry = retry.DefaultConfig()
	}
	return nil
}

// Submitter signs, submits, and confirms one reclaim transaction.
type Submitter struct {
	log *slog.Logger
	cfg SubmitterConfig
}

func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Submitter{log: cfg.Logger, cfg: cfg}, nil
}

// Outcome is the terminal report of one submission attempt. A TimedOut state
// is pending rather than failed: the transaction may still land, and the
// signature is returned for manual follow-up.
type Outcome struct {
	State     State            `json:"state"`
	Signature solana.Signature `json:"signature,omitempty"`
	Err       error            `json:"-"`
}

// SubmitAndConfirm drives the state machine to a terminal state. The
// returned error is non-nil only for pre-submission infrastructure failures
// (blockhash fetch, signing machinery); every post-signing result, including
// ledger rejection, is encoded in the Outcome and surfaced verbatim in
// Outcome.Err, never retried automatically.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, payer solana.PublicKey, instructions []solana.Instruction) (Outcome, error) {
	recent, err := s.cfg.RPC.GetLatestBlockhash(ctx, solanarpc.CommitmentConfirmed)
	if err != nil {
		return Outcome{State: StateBuilt}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return Outcome{State: StateBuilt}, fmt.Errorf("failed to assemble transaction: %w", err)
	}

	if err := s.cfg.Signer.Sign(ctx, tx); err != nil {
		if errors.Is(err, ErrSigningCancelled) {
			s.log.Info("reclaim: signing cancelled by user")
			return Outcome{State: StateBuilt, Err: ErrSigningCancelled}, nil
		}
		return Outcome{State: StateBuilt}, err
	}
	s.log.Debug("reclaim: transaction signed", "payer", payer.String())

	var sig solana.Signature
	sendErr := retry.Do(ctx, s.cfg.SendRetry, func() error {
		var err error
		sig, err = s.cfg.RPC.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			PreflightCommitment: solanarpc.CommitmentConfirmed,
		})
		return err
	})
	if sendErr != nil {
		metrics.SubmissionTotal.WithLabelValues(StateSigned.String()).Inc()
		return Outcome{State: StateSigned, Err: fmt.Errorf("%w: %v", ErrSubmissionFailed, sendErr)}, nil
	}
	s.log.Info("reclaim: transaction submitted", "signature", sig.String())

	outcome := s.confirm(ctx, sig)
	metrics.SubmissionTotal.WithLabelValues(outcome.State.String()).Inc()
	return outcome, nil
}

// confirm polls the transaction status at a fixed interval up to the attempt
// budget. It stops as soon as the reported status reaches at least confirmed
// commitment, the ledger reports a rejection, the budget runs out, or the
// caller abandons the wait via ctx.
func (s *Submitter) confirm(ctx context.Context, sig solana.Signature) Outcome {
	for attempt := 1; attempt <= s.cfg.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Outcome{State: StateSubmitted, Signature: sig, Err: ctx.Err()}
		case <-s.cfg.Clock.After(s.cfg.PollInterval):
		}

		res, err := s.cfg.RPC.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			s.log.Warn("reclaim: status poll failed", "attempt", attempt, "error", err)
			continue
		}
		if len(res.Value) == 0 || res.Value[0] == nil {
			continue
		}
		status := res.Value[0]

		if status.Err != nil {
			metrics.ConfirmationAttempts.Observe(float64(attempt))
			return Outcome{
				State:     StateFailed,
				Signature: sig,
				Err:       fmt.Errorf("transaction rejected: %v", status.Err),
			}
		}
		switch status.ConfirmationStatus {
		case solanarpc.ConfirmationStatusConfirmed, solanarpc.ConfirmationStatusFinalized:
			metrics.ConfirmationAttempts.Observe(float64(attempt))
			s.log.Info("reclaim: transaction confirmed", "signature", sig.String(), "attempts", attempt)
			return Outcome{State: StateConfirmed, Signature: sig}
		}
	}

	metrics.ConfirmationAttempts.Observe(float64(s.cfg.MaxPollAttempts))
	s.log.Warn("reclaim: confirmation budget exhausted, transaction still pending", "signature", sig.String())
	return Outcome{State: StateTimedOut, Signature: sig}
}
