/*
Package loader deploys program binaries using the BPF loader (v2) protocol.

Deployment creates a new program account owned by the loader, writes the
binary into it chunk by chunk and finalizes it, making the account
executable. Every step is a separate transaction that is awaited before the
next one is sent.
*/
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/actor"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"go.uber.org/zap"
)

// DefaultChunkSize is the default size of binary part written by a single
// transaction. It leaves enough space for transaction overhead within the
// packet size limit (1232 bytes).
const DefaultChunkSize = 1232 - 300

const (
	instructionWrite    uint32 = 0
	instructionFinalize uint32 = 1
)

var (
	// ProgramID is the BPF loader (v2) address.
	ProgramID = solana.MustPublicKeyFromBase58("BPFLoader2111111111111111111111111111111111")
	// rentSysvar is required by Finalize.
	rentSysvar = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// ErrEmptyProgram is returned on attempt to deploy an empty binary.
var ErrEmptyProgram = errors.New("empty program binary")

// RPC is a part of the RPC client required by Loader.
type RPC interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
}

// Actor sends transactions and waits for them, it's implemented by
// actor.Actor.
type Actor interface {
	Sender() solana.PublicKey
	SendAndWait(ctx context.Context, instrs []solana.Instruction, extra ...*wallet.Identity) (*actor.Receipt, error)
}

// Options are optional Loader parameters.
type Options struct {
	// ChunkSize is the number of program bytes written per transaction,
	// DefaultChunkSize if not set.
	ChunkSize int
	// Commitment is used for rent requests.
	Commitment rpc.CommitmentType
}

// Loader deploys programs.
type Loader struct {
	rpc  RPC
	act  Actor
	log  *zap.Logger
	opts Options
}

// New creates a Loader using the given RPC client and actor paying for
// deployments.
func New(r RPC, a Actor, log *zap.Logger, opts Options) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	return &Loader{rpc: r, act: a, log: log, opts: opts}
}

// Deploy loads the program into a newly created account and returns the
// program id. Every call creates a new program account even if the same
// binary is deployed.
func (l *Loader) Deploy(ctx context.Context, program []byte) (solana.PublicKey, error) {
	if len(program) == 0 {
		return solana.PublicKey{}, ErrEmptyProgram
	}
	progAcc, err := wallet.NewIdentity()
	if err != nil {
		return solana.PublicKey{}, err
	}
	progID := progAcc.PublicKey()
	log := l.log.With(zap.Stringer("program", progID))

	rent, err := l.rpc.GetMinimumBalanceForRentExemption(ctx, uint64(len(program)), l.opts.Commitment)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to get rent: %w", err)
	}
	create := system.NewCreateAccountInstruction(rent, uint64(len(program)), ProgramID, l.act.Sender(), progID).Build()
	if _, err := l.act.SendAndWait(ctx, []solana.Instruction{create}, progAcc); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to create program account: %w", err)
	}
	log.Debug("program account created", zap.Uint64("lamports", rent), zap.Int("size", len(program)))

	for offset := 0; offset < len(program); offset += l.opts.ChunkSize {
		end := min(offset+l.opts.ChunkSize, len(program))
		w, err := WriteInstruction(progID, uint32(offset), program[offset:end])
		if err != nil {
			return solana.PublicKey{}, err
		}
		if _, err := l.act.SendAndWait(ctx, []solana.Instruction{w}, progAcc); err != nil {
			return solana.PublicKey{}, fmt.Errorf("failed to write program at offset %d: %w", offset, err)
		}
		log.Debug("program chunk written", zap.Int("offset", offset), zap.Int("size", end-offset))
	}

	fin, err := FinalizeInstruction(progID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, err := l.act.SendAndWait(ctx, []solana.Instruction{fin}, progAcc); err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to finalize program: %w", err)
	}
	log.Info("program deployed", zap.Int("size", len(program)))
	return progID, nil
}

// WriteInstruction creates loader instruction writing data to the program
// account at the given offset.
func WriteInstruction(program solana.PublicKey, offset uint32, data []byte) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionWrite, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(offset, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(uint64(len(data)), bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(data, false); err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(program, true, true),
	}, buf.Bytes()), nil
}

// FinalizeInstruction creates loader instruction making the program
// executable.
func FinalizeInstruction(program solana.PublicKey) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionFinalize, bin.LE); err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(program, true, true),
		solana.NewAccountMeta(rentSysvar, false, false),
	}, buf.Bytes()), nil
}
