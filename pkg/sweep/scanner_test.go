package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/sweeplabs/rentsweep/pkg/logger"
)

type mockScanRPC struct {
	getTokenAccountsByOwnerFunc    func(context.Context, solana.PublicKey, *solanarpc.GetTokenAccountsConfig, *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error)
	getProgramAccountsWithOptsFunc func(context.Context, solana.PublicKey, *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error)
}

func (m *mockScanRPC) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error) {
	if m.getTokenAccountsByOwnerFunc != nil {
		return m.getTokenAccountsByOwnerFunc(ctx, owner, conf, opts)
	}
	return &solanarpc.GetTokenAccountsResult{}, nil
}

func (m *mockScanRPC) GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
	if m.getProgramAccountsWithOptsFunc != nil {
		return m.getProgramAccountsWithOptsFunc(ctx, program, opts)
	}
	return solanarpc.GetProgramAccountsResult{}, nil
}

func tokenAccountData(t *testing.T, amount string, decimals uint8) *solanarpc.DataBytesOrJSON {
	t.Helper()
	payload := fmt.Sprintf(`{"program":"spl-token","parsed":{"type":"account","info":{"tokenAmount":{"amount":%q,"decimals":%d}}},"space":165}`, amount, decimals)
	var data solanarpc.DataBytesOrJSON
	require.NoError(t, json.Unmarshal([]byte(payload), &data))
	return &data
}

func newTestScanner(t *testing.T, rpc RPC) *Scanner {
	t.Helper()
	scanner, err := NewScanner(ScannerConfig{
		Logger: logger.NewTest(),
		RPC:    rpc,
	})
	require.NoError(t, err)
	return scanner
}

func TestRentsweep_Sweep_Scanner_Scan(t *testing.T) {
	t.Parallel()

	programs := DefaultProgramIDs()
	owner := solana.NewWallet().PublicKey()

	tokenAddr := solana.NewWallet().PublicKey()
	nftAddr := solana.NewWallet().PublicKey()
	fundedAddr := solana.NewWallet().PublicKey()
	execAddr := solana.NewWallet().PublicKey()
	ataAddr := solana.NewWallet().PublicKey()
	otherAddr := solana.NewWallet().PublicKey()

	tokenAccounts := func(t *testing.T) *solanarpc.GetTokenAccountsResult {
		return &solanarpc.GetTokenAccountsResult{
			Value: []*solanarpc.TokenAccount{
				{Pubkey: tokenAddr, Account: solanarpc.Account{
					Lamports:  2039280,
					Owner:     programs.Token,
					RentEpoch: big.NewInt(361),
					Data:      tokenAccountData(t, "0", 6),
				}},
				{Pubkey: nftAddr, Account: solanarpc.Account{
					Lamports:  2039280,
					Owner:     programs.Token,
					RentEpoch: big.NewInt(361),
					Data:      tokenAccountData(t, "0", 0),
				}},
				{Pubkey: fundedAddr, Account: solanarpc.Account{
					Lamports:  2039280,
					Owner:     programs.Token,
					RentEpoch: big.NewInt(361),
					Data:      tokenAccountData(t, "42", 6),
				}},
				{Pubkey: execAddr, Account: solanarpc.Account{
					Lamports:   1141440,
					Owner:      programs.Token,
					Executable: true,
					Data:       tokenAccountData(t, "0", 0),
				}},
			},
		}
	}

	t.Run("aggregates and dedups across strategies", func(t *testing.T) {
		t.Parallel()

		rpc := &mockScanRPC{
			getTokenAccountsByOwnerFunc: func(ctx context.Context, got solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error) {
				require.True(t, got.Equals(owner))
				require.Equal(t, solana.EncodingJSONParsed, opts.Encoding)
				return tokenAccounts(t), nil
			},
			getProgramAccountsWithOptsFunc: func(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
				switch {
				case program.Equals(programs.AssociatedToken):
					require.Len(t, opts.Filters, 1)
					require.Equal(t, uint64(32), opts.Filters[0].Memcmp.Offset)
					return solanarpc.GetProgramAccountsResult{
						{Pubkey: ataAddr, Account: &solanarpc.Account{
							Lamports:  2039,
							Owner:     programs.AssociatedToken,
							RentEpoch: big.NewInt(361),
						}},
						// already claimed by the token strategies
						{Pubkey: nftAddr, Account: &solanarpc.Account{
							Lamports: 2039280,
							Owner:    programs.AssociatedToken,
						}},
					}, nil
				case program.Equals(owner):
					return solanarpc.GetProgramAccountsResult{
						{Pubkey: otherAddr, Account: &solanarpc.Account{
							Lamports:  890880,
							Owner:     owner,
							RentEpoch: big.NewInt(361),
						}},
						{Pubkey: solana.NewWallet().PublicKey(), Account: &solanarpc.Account{
							Lamports: 0,
							Owner:    owner,
						}},
					}, nil
				default:
					return nil, fmt.Errorf("unexpected program %s", program)
				}
			},
		}

		result, err := newTestScanner(t, rpc).Scan(context.Background(), owner)
		require.NoError(t, err)
		require.Empty(t, result.Warnings)
		require.Len(t, result.Accounts, 4)

		require.True(t, result.Accounts[0].Address.Equals(tokenAddr))
		require.Equal(t, ClassificationToken, result.Accounts[0].Classification)
		require.Equal(t, uint64(361), result.Accounts[0].RentEpoch)

		require.True(t, result.Accounts[1].Address.Equals(nftAddr))
		require.Equal(t, ClassificationNFT, result.Accounts[1].Classification, "nft rule outranks the generic token rule")

		require.True(t, result.Accounts[2].Address.Equals(ataAddr))
		require.Equal(t, ClassificationAssociatedToken, result.Accounts[2].Classification)

		require.True(t, result.Accounts[3].Address.Equals(otherAddr))
		require.Equal(t, ClassificationUnknown, result.Accounts[3].Classification)
		require.Equal(t, owner.String(), result.Accounts[3].SourceProgramID)
	})

	t.Run("one failing strategy becomes a warning", func(t *testing.T) {
		t.Parallel()

		rpc := &mockScanRPC{
			getTokenAccountsByOwnerFunc: func(ctx context.Context, got solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error) {
				return tokenAccounts(t), nil
			},
			getProgramAccountsWithOptsFunc: func(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
				if program.Equals(programs.AssociatedToken) {
					return nil, errors.New("rate limit exceeded")
				}
				return solanarpc.GetProgramAccountsResult{}, nil
			},
		}

		result, err := newTestScanner(t, rpc).Scan(context.Background(), owner)
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)
		require.Equal(t, StrategyAssociatedTokenAccounts, result.Warnings[0].Strategy)
		require.Contains(t, result.Warnings[0].Message, "rate limit")
		require.Len(t, result.Accounts, 2, "surviving strategies still contribute")
	})

	t.Run("all strategies failing is an error", func(t *testing.T) {
		t.Parallel()

		rpc := &mockScanRPC{
			getTokenAccountsByOwnerFunc: func(ctx context.Context, got solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error) {
				return nil, errors.New("connection refused")
			},
			getProgramAccountsWithOptsFunc: func(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
				return nil, errors.New("connection refused")
			},
		}

		_, err := newTestScanner(t, rpc).Scan(context.Background(), owner)
		require.Error(t, err)
		require.Contains(t, err.Error(), "all discovery strategies failed")
	})

	t.Run("cancelled context stops before any upstream query", func(t *testing.T) {
		t.Parallel()

		queried := false
		rpc := &mockScanRPC{
			getTokenAccountsByOwnerFunc: func(ctx context.Context, got solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error) {
				queried = true
				return &solanarpc.GetTokenAccountsResult{}, nil
			},
			getProgramAccountsWithOptsFunc: func(ctx context.Context, program solana.PublicKey, opts *solanarpc.GetProgramAccountsOpts) (solanarpc.GetProgramAccountsResult, error) {
				queried = true
				return solanarpc.GetProgramAccountsResult{}, nil
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestScanner(t, rpc).Scan(ctx, owner)
		require.Error(t, err)
		require.Contains(t, err.Error(), "all discovery strategies failed")
		require.False(t, queried, "throttle gates every round trip")
	})

	t.Run("accounts without parsed token data are not empty-token candidates", func(t *testing.T) {
		t.Parallel()

		rpc := &mockScanRPC{
			getTokenAccountsByOwnerFunc: func(ctx context.Context, got solana.PublicKey, conf *solanarpc.GetTokenAccountsConfig, opts *solanarpc.GetTokenAccountsOpts) (*solanarpc.GetTokenAccountsResult, error) {
				return &solanarpc.GetTokenAccountsResult{
					Value: []*solanarpc.TokenAccount{
						{Pubkey: solana.NewWallet().PublicKey(), Account: solanarpc.Account{
							Lamports: 2039280,
							Owner:    programs.Token,
						}},
					},
				}, nil
			},
		}

		result, err := newTestScanner(t, rpc).Scan(context.Background(), owner)
		require.NoError(t, err)
		require.Empty(t, result.Accounts)
	})
}

func TestRentsweep_Sweep_ScannerConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("requires logger and rpc", func(t *testing.T) {
		t.Parallel()

		_, err := NewScanner(ScannerConfig{})
		require.Error(t, err)

		_, err = NewScanner(ScannerConfig{Logger: logger.NewTest()})
		require.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Parallel()

		cfg := ScannerConfig{Logger: logger.NewTest(), RPC: &mockScanRPC{}}
		require.NoError(t, cfg.Validate())
		require.Equal(t, DefaultProgramIDs(), cfg.Programs)
		require.Equal(t, 100, cfg.ThrottleBatch)
		require.Equal(t, solanarpc.CommitmentConfirmed, cfg.Commitment)
	})
}
