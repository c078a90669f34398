/*
Package actor provides a way to change chain state via RPC client.

This layer builds on top of the basic RPC client, it simplifies creating,
signing and sending transactions to the network (since that's the only way
chain state is changed). "Make" prefix is used for methods that create
transactions, while "Send" prefix is used by methods that directly transmit
created transactions to the RPC server.

Actor also provides a Waiter interface to wait until transaction will be
accepted to the chain with the configured commitment level.
*/
package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
)

// RPCActor is an interface required from the RPC client to successfully
// create and send transactions.
type RPCActor interface {
	waiter.RPCPollingBased

	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// Receipt is an acknowledgment of the transaction acceptance.
type Receipt struct {
	Signature          solana.Signature
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
}

// Options are used to create Actor with non-standard commitment or sending
// policy.
type Options struct {
	// Commitment is used for blockhash requests and awaiting,
	// rpc.CommitmentConfirmed by default.
	Commitment rpc.CommitmentType
	// SkipPreflight disables transaction simulation before sending.
	SkipPreflight bool
	// Poll configures transaction awaiting.
	Poll waiter.PollConfig
	// Events enables notification-based awaiting if set, polling is used
	// otherwise.
	Events waiter.RPCEventBased
}

// Actor keeps a connection to the RPC endpoint and allows to perform
// state-changing actions on behalf of the payer. Payer is the fee payer and
// the first signer of every transaction, additional signers can be provided
// per transaction (like newly created accounts).
type Actor struct {
	waiter.Waiter

	client RPCActor
	payer  *wallet.Identity
	opts   Options
}

// New creates an Actor instance using the specified RPC interface and payer.
func New(ra RPCActor, payer *wallet.Identity, opts Options) (*Actor, error) {
	if payer == nil {
		return nil, errors.New("payer is required")
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	return &Actor{
		Waiter: waiter.New(ra, opts.Events, opts.Commitment, opts.Poll),
		client: ra,
		payer:  payer,
		opts:   opts,
	}, nil
}

// Sender returns the payer address.
func (a *Actor) Sender() solana.PublicKey {
	return a.payer.PublicKey()
}

// MakeTx creates a transaction with the given instructions signed by the
// payer and all extra signers. It returns the transaction and the last block
// height its blockhash is valid for.
func (a *Actor) MakeTx(ctx context.Context, instrs []solana.Instruction, extra ...*wallet.Identity) (*solana.Transaction, uint64, error) {
	bh, err := a.client.GetLatestBlockhash(ctx, a.opts.Commitment)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get blockhash: %w", err)
	}
	if bh == nil || bh.Value == nil {
		return nil, 0, errors.New("empty blockhash response")
	}
	tx, err := solana.NewTransaction(instrs, bh.Value.Blockhash, solana.TransactionPayer(a.payer.PublicKey()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build transaction: %w", err)
	}
	signers := append([]*wallet.Identity{a.payer}, extra...)
	if _, err := tx.Sign(wallet.Signer(signers...)); err != nil {
		return nil, 0, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, bh.Value.LastValidBlockHeight, nil
}

// Send sends the transaction to the network.
func (a *Actor) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return a.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       a.opts.SkipPreflight,
		PreflightCommitment: a.opts.Commitment,
	})
}

// SendAndWait creates, signs and sends a transaction with the given
// instructions and waits for it to be accepted.
func (a *Actor) SendAndWait(ctx context.Context, instrs []solana.Instruction, extra ...*wallet.Identity) (*Receipt, error) {
	tx, lastValid, err := a.MakeTx(ctx, instrs, extra...)
	if err != nil {
		return nil, err
	}
	sig, err := a.Send(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	st, err := a.Wait(ctx, sig, lastValid, nil)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		Signature:          sig,
		Slot:               st.Slot,
		ConfirmationStatus: st.ConfirmationStatus,
	}, nil
}
