/*
Package store implements a JSON-on-chain store.

Store composes RPC client primitives into a "store text on chain, read it
back" workflow: it funds the payer via airdrop, deploys the store program
with a fixed-capacity data account owned by it, writes padded payloads into
that account via program instruction and reads them back.

Store keeps no state besides its configuration, the connection is passed to
New explicitly. Every call creates new transactions and accounts, nothing is
retried or rolled back on failures.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nspcc-dev/chainjson/pkg/layout"
	"github.com/nspcc-dev/chainjson/pkg/loader"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/actor"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"go.uber.org/zap"
)

var (
	// ErrConnection is returned when the RPC node can't be reached.
	ErrConnection = errors.New("connection failure")
	// ErrFundingTimeout is returned when airdropped funds don't arrive in time.
	ErrFundingTimeout = errors.New("funding timeout")
	// ErrDeployment is returned when program or data account can't be deployed.
	ErrDeployment = errors.New("deployment failure")
	// ErrWrite is returned when payload write transaction fails.
	ErrWrite = errors.New("write failure")
	// ErrRead is returned when data account is missing or malformed.
	ErrRead = errors.New("read failure")
)

// RPC is the set of RPC client methods used by Store, it's implemented by
// *rpc.Client.
type RPC interface {
	actor.RPCActor
	loader.RPC
	rpcclient.VersionGetter

	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// Options are Store parameters.
type Options struct {
	// Layout is the data blob layout, layout.DefaultCapacity is used if
	// it's not set.
	Layout layout.Blob
	// Commitment is used for all requests and transaction awaiting,
	// rpc.CommitmentConfirmed by default.
	Commitment rpc.CommitmentType
	// SkipPreflight disables transaction simulation.
	SkipPreflight bool
	// Poll configures transaction awaiting.
	Poll waiter.PollConfig
	// Events enables transaction awaiting via signature notifications.
	Events waiter.RPCEventBased
	// AccountLamports is the data account balance, rent-exempt minimum is
	// used if zero.
	AccountLamports uint64
	// ChunkSize is the program loader chunk size.
	ChunkSize int
}

// Deployment is a deployed program with its data account.
type Deployment struct {
	Program     solana.PublicKey
	DataAccount solana.PublicKey
	Capacity    int
}

// Store is a JSON-on-chain store.
type Store struct {
	rpc  RPC
	log  *zap.Logger
	opts Options
}

// Connect creates an RPC client for the endpoint and checks that the node
// responds.
func Connect(ctx context.Context, endpoint string, opts rpcclient.Options) (*rpc.Client, error) {
	c, err := rpcclient.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if _, err := rpcclient.Init(ctx, c); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, endpoint, err)
	}
	return c, nil
}

// New creates a Store using the given RPC connection.
func New(r RPC, log *zap.Logger, opts Options) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Layout.Capacity() == 0 {
		opts.Layout = layout.MustNew(layout.DefaultCapacity)
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	return &Store{rpc: r, log: log, opts: opts}
}

// Layout returns data blob layout used by the Store.
func (s *Store) Layout() layout.Blob {
	return s.opts.Layout
}

func (s *Store) newActor(payer *wallet.Identity) (*actor.Actor, error) {
	return actor.New(s.rpc, payer, actor.Options{
		Commitment:    s.opts.Commitment,
		SkipPreflight: s.opts.SkipPreflight,
		Poll:          s.opts.Poll,
		Events:        s.opts.Events,
	})
}

// Balance returns account balance in lamports.
func (s *Store) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := s.rpc.GetBalance(ctx, account, s.opts.Commitment)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// Fund requests an airdrop of the given amount to the payer and polls its
// balance until it's positive. The requested amount is not verified. It
// returns ErrFundingTimeout if balance is still zero after poll.MaxAttempts
// checks.
func (s *Store) Fund(ctx context.Context, payer *wallet.Identity, lamports uint64, poll waiter.PollConfig) (err error) {
	defer observe(opFund, time.Now(), &err)

	log := s.log.With(zap.Stringer("account", payer.PublicKey()))
	sig, err := s.rpc.RequestAirdrop(ctx, payer.PublicKey(), lamports, s.opts.Commitment)
	if err != nil {
		return fmt.Errorf("airdrop request failed: %w", err)
	}
	log.Info("airdrop requested", zap.Uint64("lamports", lamports), zap.Stringer("signature", sig))

	var balance uint64
	err = waiter.Poll(ctx, poll, func(ctx context.Context) (bool, error) {
		b, err := s.Balance(ctx, payer.PublicKey())
		if err != nil {
			log.Debug("balance request failed", zap.Error(err))
			return false, err
		}
		balance = b
		return b > 0, nil
	})
	if err != nil {
		if errors.Is(err, waiter.ErrTimeout) {
			return fmt.Errorf("%w: %w", ErrFundingTimeout, err)
		}
		return err
	}
	log.Info("account funded", zap.Uint64("balance", balance))
	return nil
}

// DeployProgram reads the program binary from binaryPath and deploys it
// along with a new data account, see Deploy.
func (s *Store) DeployProgram(ctx context.Context, binaryPath string, payer *wallet.Identity) (*Deployment, error) {
	program, err := os.ReadFile(binaryPath)
	if err != nil {
		observeFailure(opDeploy)
		return nil, fmt.Errorf("%w: %w", ErrDeployment, err)
	}
	return s.Deploy(ctx, program, payer)
}

// Deploy loads the program into a new program account and creates a data
// account of the layout capacity owned by the program. Data account is funded
// with configured amount or rent-exempt minimum. Every call creates new
// accounts.
func (s *Store) Deploy(ctx context.Context, program []byte, payer *wallet.Identity) (_ *Deployment, err error) {
	defer observe(opDeploy, time.Now(), &err)

	act, err := s.newActor(payer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeployment, err)
	}
	l := loader.New(s.rpc, act, s.log, loader.Options{
		ChunkSize:  s.opts.ChunkSize,
		Commitment: s.opts.Commitment,
	})
	progID, err := l.Deploy(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeployment, err)
	}

	dataAcc, err := wallet.NewIdentity()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeployment, err)
	}
	capacity := uint64(s.opts.Layout.Capacity())
	lamports := s.opts.AccountLamports
	if lamports == 0 {
		lamports, err = s.rpc.GetMinimumBalanceForRentExemption(ctx, capacity, s.opts.Commitment)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to get rent: %w", ErrDeployment, err)
		}
	}
	create := system.NewCreateAccountInstruction(lamports, capacity, progID, payer.PublicKey(), dataAcc.PublicKey()).Build()
	if _, err := act.SendAndWait(ctx, []solana.Instruction{create}, dataAcc); err != nil {
		return nil, fmt.Errorf("%w: failed to create data account: %w", ErrDeployment, err)
	}
	s.log.Info("data account created",
		zap.Stringer("program", progID),
		zap.Stringer("account", dataAcc.PublicKey()),
		zap.Uint64("capacity", capacity),
		zap.Uint64("lamports", lamports))

	return &Deployment{
		Program:     progID,
		DataAccount: dataAcc.PublicKey(),
		Capacity:    int(capacity),
	}, nil
}

// WritePayload pads text to the layout capacity and sends it to the program
// with the data account as the only instruction account. Payloads longer than
// the layout allows are rejected with layout.ErrPayloadTooLarge without any
// network requests.
func (s *Store) WritePayload(ctx context.Context, program, dataAccount solana.PublicKey, payer *wallet.Identity, text string) (_ *actor.Receipt, err error) {
	defer observe(opWrite, time.Now(), &err)

	data, err := s.opts.Layout.Pad(text)
	if err != nil {
		return nil, err
	}
	act, err := s.newActor(payer)
	if err != nil {
		return nil, err
	}
	inst := solana.NewInstruction(program, solana.AccountMetaSlice{
		solana.NewAccountMeta(dataAccount, true, false),
	}, data)
	rcpt, err := act.SendAndWait(ctx, []solana.Instruction{inst})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	payloadSize.Observe(float64(len(text)))
	s.log.Info("payload written",
		zap.Stringer("account", dataAccount),
		zap.Int("size", len(text)),
		zap.Stringer("signature", rcpt.Signature),
		zap.Uint64("slot", rcpt.Slot))
	return rcpt, nil
}

// ReadPayload fetches data account contents and extracts the text stored
// there.
func (s *Store) ReadPayload(ctx context.Context, dataAccount solana.PublicKey) (_ string, err error) {
	defer observe(opRead, time.Now(), &err)

	res, err := s.rpc.GetAccountInfoWithOpts(ctx, dataAccount, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: s.opts.Commitment,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return "", fmt.Errorf("%w: account %s not found", ErrRead, dataAccount)
		}
		return "", fmt.Errorf("%w: %w", ErrRead, err)
	}
	if res == nil || res.Value == nil {
		return "", fmt.Errorf("%w: account %s not found", ErrRead, dataAccount)
	}
	var raw []byte
	if res.Value.Data != nil {
		raw = res.Value.Data.GetBinary()
	}
	text, err := s.opts.Layout.Unpad(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRead, err)
	}
	s.log.Debug("payload read", zap.Stringer("account", dataAccount), zap.Int("size", len(text)))
	return text, nil
}
