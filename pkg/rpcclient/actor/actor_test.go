package actor

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nspcc-dev/chainjson/internal/fakechain"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func newTestActor(t *testing.T, opts Options) (*fakechain.Chain, *wallet.Identity, *Actor) {
	chain := fakechain.New()
	payer, err := wallet.NewIdentity()
	require.NoError(t, err)
	chain.SetBalance(payer.PublicKey(), solana.LAMPORTS_PER_SOL)
	opts.Poll = waiter.PollConfig{Interval: time.Millisecond}
	a, err := New(chain, payer, opts)
	require.NoError(t, err)
	return chain, payer, a
}

func TestNew(t *testing.T) {
	_, err := New(fakechain.New(), nil, Options{})
	require.Error(t, err)

	_, payer, a := newTestActor(t, Options{})
	require.Equal(t, payer.PublicKey(), a.Sender())
	require.Equal(t, rpc.CommitmentConfirmed, a.opts.Commitment)
}

func TestMakeTx(t *testing.T) {
	_, payer, a := newTestActor(t, Options{})
	other, err := wallet.NewIdentity()
	require.NoError(t, err)

	inst := system.NewTransferInstruction(1, payer.PublicKey(), other.PublicKey()).Build()
	tx, lastValid, err := a.MakeTx(context.Background(), []solana.Instruction{inst})
	require.NoError(t, err)
	require.NotZero(t, lastValid)
	require.Len(t, tx.Signatures, 1)
	require.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])

	// Unknown signer.
	create := system.NewCreateAccountInstruction(1, 0, solana.SystemProgramID, payer.PublicKey(), other.PublicKey()).Build()
	_, _, err = a.MakeTx(context.Background(), []solana.Instruction{create})
	require.Error(t, err)

	tx, _, err = a.MakeTx(context.Background(), []solana.Instruction{create}, other)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 2)
}

func TestSendAndWait(t *testing.T) {
	chain, payer, a := newTestActor(t, Options{})
	other, err := wallet.NewIdentity()
	require.NoError(t, err)

	inst := system.NewTransferInstruction(1000, payer.PublicKey(), other.PublicKey()).Build()
	rcpt, err := a.SendAndWait(context.Background(), []solana.Instruction{inst})
	require.NoError(t, err)
	require.NotEqual(t, solana.Signature{}, rcpt.Signature)
	require.NotZero(t, rcpt.Slot)
	require.Equal(t, rpc.ConfirmationStatusFinalized, rcpt.ConfirmationStatus)
	require.Equal(t, uint64(1000), chain.Balance(other.PublicKey()))
	require.Equal(t, solana.LAMPORTS_PER_SOL-1000-fakechain.LamportsPerSignature, chain.Balance(payer.PublicKey()))

	t.Run("rejected", func(t *testing.T) {
		inst := system.NewTransferInstruction(10*solana.LAMPORTS_PER_SOL, payer.PublicKey(), other.PublicKey()).Build()
		_, err := a.SendAndWait(context.Background(), []solana.Instruction{inst})
		require.Error(t, err)
	})
	t.Run("failed on chain", func(t *testing.T) {
		_, _, a := newTestActor(t, Options{SkipPreflight: true})
		inst := system.NewTransferInstruction(10*solana.LAMPORTS_PER_SOL, a.Sender(), other.PublicKey()).Build()
		_, err := a.SendAndWait(context.Background(), []solana.Instruction{inst})
		require.ErrorIs(t, err, waiter.ErrTxFailed)
	})
	t.Run("unavailable", func(t *testing.T) {
		chain, _, a := newTestActor(t, Options{})
		chain.Unavailable = true
		_, err := a.SendAndWait(context.Background(), []solana.Instruction{inst})
		require.ErrorIs(t, err, fakechain.ErrNotAvailable)
	})
}
