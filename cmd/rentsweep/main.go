package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/sweeplabs/rentsweep/pkg/api"
	"github.com/sweeplabs/rentsweep/pkg/logger"
	"github.com/sweeplabs/rentsweep/pkg/reclaim"
	"github.com/sweeplabs/rentsweep/pkg/sweep"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	rpcURLFlag := flag.String("rpc-url", solanarpc.MainNetBeta_RPC, "Solana RPC endpoint (or set SOLANA_RPC_URL env var)")
	ownerFlag := flag.String("owner", "", "owner address to scan (or set RENTSWEEP_OWNER env var; derived from --keypair when omitted)")
	minLamportsFlag := flag.Uint64("min-lamports", sweep.DefaultMinLamports, "significance threshold in lamports")

	reclaimFlag := flag.Bool("reclaim", false, "build, sign, submit, and confirm a reclaim transaction for the selected accounts")
	keypairFlag := flag.String("keypair", "", "path to the owner keypair file, required for --reclaim (or set RENTSWEEP_KEYPAIR env var)")
	selectFlag := flag.StringSlice("select", nil, "addresses to reclaim (default: all significant accounts)")
	feeRecipientFlag := flag.String("fee-recipient", "", "fee recipient address, required for --reclaim (or set RENTSWEEP_FEE_RECIPIENT env var)")
	feeRateFlag := flag.Uint64("fee-rate-numerator", 15, "skim fee numerator over a fixed denominator of 100")

	serveFlag := flag.Bool("serve", false, "run the read-only scan HTTP API instead of a one-shot scan")
	listenAddrFlag := flag.String("listen-addr", ":8080", "HTTP listen address for --serve")

	flag.Parse()

	log := logger.New(*verboseFlag)

	if env := os.Getenv("SOLANA_RPC_URL"); env != "" {
		*rpcURLFlag = env
	}
	if env := os.Getenv("RENTSWEEP_OWNER"); env != "" {
		*ownerFlag = env
	}
	if env := os.Getenv("RENTSWEEP_KEYPAIR"); env != "" {
		*keypairFlag = env
	}
	if env := os.Getenv("RENTSWEEP_FEE_RECIPIENT"); env != "" {
		*feeRecipientFlag = env
	}

	rpcClient := solanarpc.New(*rpcURLFlag)

	scanner, err := sweep.NewScanner(sweep.ScannerConfig{
		Logger: log,
		RPC:    rpcClient,
	})
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serveFlag {
		server, err := api.New(api.Config{
			Logger:      log,
			ListenAddr:  *listenAddrFlag,
			Scanner:     scanner,
			MinLamports: *minLamportsFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create api server: %w", err)
		}
		return server.Run(ctx)
	}

	var signer *reclaim.KeypairSigner
	if *keypairFlag != "" {
		signer, err = reclaim.NewKeypairSignerFromFile(*keypairFlag)
		if err != nil {
			return err
		}
	}

	if *ownerFlag == "" && signer != nil {
		*ownerFlag = signer.PublicKey().String()
	}
	if *ownerFlag == "" {
		return fmt.Errorf("--owner or --keypair is required")
	}
	owner, err := sweep.ParseAddress(*ownerFlag)
	if err != nil {
		return fmt.Errorf("invalid --owner %q: %w", *ownerFlag, err)
	}

	result, err := scanner.Scan(ctx, owner)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	for _, w := range result.Warnings {
		log.Warn("partial discovery failure", "strategy", w.Strategy.String(), "error", w.Message)
	}

	significant := sweep.FilterSignificant(result.Accounts, *minLamportsFlag)
	totals := sweep.Totalize(significant)

	fmt.Printf("Found %d reclaimable accounts (%d above %d lamports):\n",
		len(result.Accounts), len(significant), *minLamportsFlag)
	for _, acc := range significant {
		fmt.Printf("  %-44s  %-16s  %d lamports\n", acc.Address.String(), acc.Classification.String(), acc.Lamports)
		if acc.Classification == sweep.ClassificationUnknown {
			fmt.Printf("    owning program: %s\n", acc.SourceProgramID)
		}
	}
	fmt.Printf("Total reclaimable: %d lamports (%.9f SOL)\n", totals.TotalLamports, totals.TotalSOL)

	if !*reclaimFlag {
		return nil
	}

	if signer == nil {
		return fmt.Errorf("--keypair is required for --reclaim")
	}
	if !signer.PublicKey().Equals(owner) {
		return fmt.Errorf("keypair %s does not match owner %s", signer.PublicKey(), owner)
	}
	feeRecipient, err := reclaim.ParseRecipient(*feeRecipientFlag)
	if err != nil {
		return fmt.Errorf("invalid --fee-recipient %q: %w", *feeRecipientFlag, err)
	}

	session := reclaim.NewSession()
	if len(*selectFlag) > 0 {
		for _, raw := range *selectFlag {
			addr, err := sweep.ParseAddress(raw)
			if err != nil {
				return fmt.Errorf("invalid --select address %q: %w", raw, err)
			}
			session.Select(addr)
		}
	} else {
		for _, acc := range significant {
			session.Select(acc.Address)
		}
	}
	defer session.Clear()

	selected := session.Resolve(significant)
	instructions, plan, err := reclaim.Build(selected, owner, feeRecipient, *feeRateFlag)
	if err != nil {
		return fmt.Errorf("failed to build reclaim transaction: %w", err)
	}
	fmt.Printf("Closing %d accounts: %d lamports total, %d fee, %d net to owner\n",
		len(selected), plan.SelectedTotal, plan.FeeLamports, plan.NetLamports)

	submitter, err := reclaim.NewSubmitter(reclaim.SubmitterConfig{
		Logger: log,
		Clock:  clockwork.NewRealClock(),
		RPC:    rpcClient,
		Signer: signer,
	})
	if err != nil {
		return fmt.Errorf("failed to create submitter: %w", err)
	}

	outcome, err := submitter.SubmitAndConfirm(ctx, owner, instructions)
	if err != nil {
		return err
	}

	switch outcome.State {
	case reclaim.StateConfirmed:
		fmt.Printf("Confirmed: %s\n", outcome.Signature)
	case reclaim.StateTimedOut:
		fmt.Printf("Pending (confirmation budget exhausted), check manually: %s\n", outcome.Signature)
	case reclaim.StateBuilt:
		fmt.Println("Signing cancelled, nothing submitted.")
	default:
		return fmt.Errorf("reclaim %s: %w", outcome.State, outcome.Err)
	}
	return nil
}
