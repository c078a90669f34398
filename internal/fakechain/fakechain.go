package fakechain

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	// LamportsPerSignature is the fee charged for every transaction signature.
	LamportsPerSignature = 5000
	// BlockhashValidity is the number of blocks a blockhash can be used for.
	BlockhashValidity = 150
	// MaxTxSize is the maximum serialized transaction size.
	MaxTxSize = 1232

	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThreshold     = 2
)

// BPFLoaderID is the deprecated (non-upgradeable) BPF loader that finalizes
// programs written to accounts owned by it.
var BPFLoaderID = solana.MustPublicKeyFromBase58("BPFLoader2111111111111111111111111111111111")

var (
	// ErrInsufficientFunds is returned when fee payer can't pay for a transaction.
	ErrInsufficientFunds = errors.New("insufficient funds for fee")
	// ErrAlreadyInUse is returned when account to be created already exists.
	ErrAlreadyInUse = errors.New("account already in use")
	// ErrUnknownProgram is returned for instructions invoking non-executable accounts.
	ErrUnknownProgram = errors.New("program not found")
	// ErrBlockhashNotFound is returned for transactions with unknown blockhash.
	ErrBlockhashNotFound = errors.New("blockhash not found")
	// ErrTooLarge is returned for transactions exceeding MaxTxSize.
	ErrTooLarge = errors.New("transaction too large")
	// ErrNotAvailable is returned by all methods when Unavailable is set.
	ErrNotAvailable = errors.New("connection refused")
)

type account struct {
	lamports   uint64
	owner      solana.PublicKey
	data       []byte
	executable bool
}

// Chain is an in-memory model of a Solana cluster serving a subset of RPC API
// used by this module. It executes system program CreateAccount/Transfer,
// BPF loader Write/Finalize and programs deployed via the loader. Every
// deployed program behaves like the store program: it saves instruction data
// into its first account prefixed with 4-byte little-endian data length
// (truncated to the account size). Transactions are finalized immediately.
type Chain struct {
	lock sync.Mutex

	accounts   map[solana.PublicKey]*account
	statuses   map[solana.Signature]*rpc.SignatureStatusesResult
	blockhashs map[solana.Hash]uint64
	blockhash  solana.Hash
	height     uint64
	pending    map[solana.PublicKey]uint64
	balanceReq int
	airdrops   int

	sent int

	// AirdropDelay is the number of balance requests made before a requested
	// airdrop is credited.
	AirdropDelay int
	// AirdropNeverLands makes airdrops accepted, but never credited.
	AirdropNeverLands bool
	// Unavailable makes every method fail with ErrNotAvailable.
	Unavailable bool
}

// New creates an empty Chain.
func New() *Chain {
	c := &Chain{
		accounts:   make(map[solana.PublicKey]*account),
		statuses:   make(map[solana.Signature]*rpc.SignatureStatusesResult),
		blockhashs: make(map[solana.Hash]uint64),
		pending:    make(map[solana.PublicKey]uint64),
	}
	c.nextBlock()
	return c
}

func (c *Chain) nextBlock() {
	c.height++
	var h solana.Hash
	_, _ = rand.Read(h[:])
	c.blockhash = h
	c.blockhashs[h] = c.height
}

// Rent returns the rent-exempt minimum for the account of the given size.
func Rent(size uint64) uint64 {
	return (accountStorageOverhead + size) * lamportsPerByteYear * exemptionThreshold
}

// SetBalance sets account balance creating a system-owned account if needed.
func (c *Chain) SetBalance(pub solana.PublicKey, lamports uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	acc, ok := c.accounts[pub]
	if !ok {
		acc = &account{owner: solana.SystemProgramID}
		c.accounts[pub] = acc
	}
	acc.lamports = lamports
}

// Balance returns account balance.
func (c *Chain) Balance(pub solana.PublicKey) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	if acc, ok := c.accounts[pub]; ok {
		return acc.lamports
	}
	return 0
}

// AccountData returns account owner, a copy of its data and whether it's
// executable. ok is false for non-existent accounts.
func (c *Chain) AccountData(pub solana.PublicKey) (owner solana.PublicKey, data []byte, executable bool, ok bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	acc, ok := c.accounts[pub]
	if !ok {
		return solana.PublicKey{}, nil, false, false
	}
	return acc.owner, append([]byte{}, acc.data...), acc.executable, true
}

// SetAccountData creates or replaces account with the given owner and data.
func (c *Chain) SetAccountData(pub solana.PublicKey, owner solana.PublicKey, data []byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.accounts[pub] = &account{lamports: Rent(uint64(len(data))), owner: owner, data: append([]byte{}, data...)}
}

// SetStatus makes a new block with the signature status in it as if the
// transaction was processed. Slot is set to the block height if it's zero.
func (c *Chain) SetStatus(sig solana.Signature, st rpc.SignatureStatusesResult) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.nextBlock()
	if st.Slot == 0 {
		st.Slot = c.height
	}
	c.statuses[sig] = &st
}

// Sent returns the number of transactions submitted to the chain (including
// rejected ones).
func (c *Chain) Sent() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.sent
}

// Airdrops returns the number of accepted airdrop requests.
func (c *Chain) Airdrops() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.airdrops
}

// GetVersion implements RPC API.
func (c *Chain) GetVersion(ctx context.Context) (*rpc.GetVersionResult, error) {
	if c.Unavailable {
		return nil, ErrNotAvailable
	}
	return &rpc.GetVersionResult{SolanaCore: "fakechain"}, nil
}

// GetBalance implements RPC API.
func (c *Chain) GetBalance(ctx context.Context, pub solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if c.Unavailable {
		return nil, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.balanceReq++
	if c.balanceReq > c.AirdropDelay && !c.AirdropNeverLands {
		for p, amount := range c.pending {
			acc, ok := c.accounts[p]
			if !ok {
				acc = &account{owner: solana.SystemProgramID}
				c.accounts[p] = acc
			}
			acc.lamports += amount
			delete(c.pending, p)
		}
	}
	var res = new(rpc.GetBalanceResult)
	if acc, ok := c.accounts[pub]; ok {
		res.Value = acc.lamports
	}
	return res, nil
}

// RequestAirdrop implements RPC API.
func (c *Chain) RequestAirdrop(ctx context.Context, pub solana.PublicKey, lamports uint64, _ rpc.CommitmentType) (solana.Signature, error) {
	if c.Unavailable {
		return solana.Signature{}, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pending[pub] += lamports
	c.balanceReq = 0
	c.airdrops++
	var sig solana.Signature
	_, _ = rand.Read(sig[:])
	return sig, nil
}

// GetLatestBlockhash implements RPC API.
func (c *Chain) GetLatestBlockhash(ctx context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if c.Unavailable {
		return nil, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{
		Blockhash:            c.blockhash,
		LastValidBlockHeight: c.height + BlockhashValidity,
	}}, nil
}

// GetBlockHeight implements RPC API.
func (c *Chain) GetBlockHeight(ctx context.Context, _ rpc.CommitmentType) (uint64, error) {
	if c.Unavailable {
		return 0, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.height, nil
}

// GetMinimumBalanceForRentExemption implements RPC API.
func (c *Chain) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, _ rpc.CommitmentType) (uint64, error) {
	if c.Unavailable {
		return 0, ErrNotAvailable
	}
	return Rent(dataSize), nil
}

// GetSignatureStatuses implements RPC API.
func (c *Chain) GetSignatureStatuses(ctx context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if c.Unavailable {
		return nil, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	res := &rpc.GetSignatureStatusesResult{Value: make([]*rpc.SignatureStatusesResult, len(sigs))}
	for i, s := range sigs {
		res.Value[i] = c.statuses[s]
	}
	return res, nil
}

// GetAccountInfoWithOpts implements RPC API. Like the real client it returns
// rpc.ErrNotFound for missing accounts.
func (c *Chain) GetAccountInfoWithOpts(ctx context.Context, pub solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if c.Unavailable {
		return nil, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	acc, ok := c.accounts[pub]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{
		Lamports:   acc.lamports,
		Owner:      acc.owner,
		Data:       rpc.DataBytesOrJSONFromBytes(append([]byte{}, acc.data...)),
		Executable: acc.executable,
	}}, nil
}

// SendTransactionWithOpts implements RPC API. Transaction is verified and
// executed immediately. Execution errors are returned directly unless
// preflight is skipped, then they're only visible via signature status.
func (c *Chain) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	if c.Unavailable {
		return solana.Signature{}, ErrNotAvailable
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.sent++

	if err := c.verify(tx); err != nil {
		return solana.Signature{}, err
	}
	sig := tx.Signatures[0]
	if _, ok := c.statuses[sig]; ok {
		return sig, errors.New("transaction has already been processed")
	}
	execErr := c.execute(tx)
	if execErr != nil && !opts.SkipPreflight {
		return solana.Signature{}, fmt.Errorf("transaction simulation failed: %w", execErr)
	}
	c.nextBlock()
	st := &rpc.SignatureStatusesResult{
		Slot:               c.height,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}
	if execErr != nil {
		st.Err = execErr.Error()
	}
	c.statuses[sig] = st
	return sig, nil
}

func (c *Chain) verify(tx *solana.Transaction) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return err
	}
	if len(raw) > MaxTxSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))
	}
	if _, ok := c.blockhashs[tx.Message.RecentBlockhash]; !ok {
		return ErrBlockhashNotFound
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	need := int(tx.Message.Header.NumRequiredSignatures)
	if need == 0 || len(tx.Signatures) != need || len(tx.Message.AccountKeys) < need {
		return errors.New("wrong number of signatures")
	}
	for i := 0; i < need; i++ {
		pub := tx.Message.AccountKeys[i]
		if !ed25519.Verify(ed25519.PublicKey(pub[:]), msg, tx.Signatures[i][:]) {
			return fmt.Errorf("invalid signature for %s", pub)
		}
	}
	return nil
}

// execute applies transaction to a copy of state and commits it on success.
func (c *Chain) execute(tx *solana.Transaction) error {
	state := make(map[solana.PublicKey]*account, len(c.accounts))
	for k, v := range c.accounts {
		cp := *v
		cp.data = append([]byte{}, v.data...)
		state[k] = &cp
	}
	payer, ok := state[tx.Message.AccountKeys[0]]
	fee := uint64(len(tx.Signatures)) * LamportsPerSignature
	if !ok || payer.lamports < fee {
		return ErrInsufficientFunds
	}
	payer.lamports -= fee

	keys := tx.Message.AccountKeys
	for i, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			return fmt.Errorf("instruction %d: bad program index", i)
		}
		accs := make([]solana.PublicKey, len(inst.Accounts))
		for j, idx := range inst.Accounts {
			if int(idx) >= len(keys) {
				return fmt.Errorf("instruction %d: bad account index", i)
			}
			accs[j] = keys[idx]
		}
		if err := runInstruction(state, keys[inst.ProgramIDIndex], accs, inst.Data); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	c.accounts = state
	return nil
}

func runInstruction(state map[solana.PublicKey]*account, program solana.PublicKey, accs []solana.PublicKey, data []byte) error {
	switch {
	case program.Equals(solana.SystemProgramID):
		return runSystem(state, accs, data)
	case program.Equals(BPFLoaderID):
		return runLoader(state, accs, data)
	}
	prog, ok := state[program]
	if !ok || !prog.executable || !prog.owner.Equals(BPFLoaderID) {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, program)
	}
	return runStore(state, program, accs, data)
}

func runSystem(state map[solana.PublicKey]*account, accs []solana.PublicKey, data []byte) error {
	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	switch tag {
	case 0: // CreateAccount
		lamports, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		space, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		owner, err := dec.ReadNBytes(32)
		if err != nil {
			return err
		}
		if len(accs) < 2 {
			return errors.New("not enough accounts")
		}
		from, ok := state[accs[0]]
		if !ok || from.lamports < lamports {
			return fmt.Errorf("insufficient lamports for %s", accs[0])
		}
		if _, ok := state[accs[1]]; ok {
			return fmt.Errorf("%w: %s", ErrAlreadyInUse, accs[1])
		}
		from.lamports -= lamports
		state[accs[1]] = &account{
			lamports: lamports,
			owner:    solana.PublicKeyFromBytes(owner),
			data:     make([]byte, space),
		}
		return nil
	case 2: // Transfer
		lamports, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		if len(accs) < 2 {
			return errors.New("not enough accounts")
		}
		from, ok := state[accs[0]]
		if !ok || from.lamports < lamports {
			return fmt.Errorf("insufficient lamports for %s", accs[0])
		}
		to, ok := state[accs[1]]
		if !ok {
			to = &account{owner: solana.SystemProgramID}
			state[accs[1]] = to
		}
		from.lamports -= lamports
		to.lamports += lamports
		return nil
	}
	return fmt.Errorf("unsupported system instruction %d", tag)
}

func runLoader(state map[solana.PublicKey]*account, accs []solana.PublicKey, data []byte) error {
	if len(accs) < 1 {
		return errors.New("not enough accounts")
	}
	prog, ok := state[accs[0]]
	if !ok || !prog.owner.Equals(BPFLoaderID) {
		return fmt.Errorf("account %s is not owned by the loader", accs[0])
	}
	if prog.executable {
		return errors.New("program is already finalized")
	}
	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	switch tag {
	case 0: // Write
		offset, err := dec.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		l, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		chunk, err := dec.ReadNBytes(int(l))
		if err != nil {
			return err
		}
		if uint64(offset)+l > uint64(len(prog.data)) {
			return errors.New("write out of account bounds")
		}
		copy(prog.data[offset:], chunk)
		return nil
	case 1: // Finalize
		prog.executable = true
		return nil
	}
	return fmt.Errorf("unsupported loader instruction %d", tag)
}

func runStore(state map[solana.PublicKey]*account, program solana.PublicKey, accs []solana.PublicKey, data []byte) error {
	if len(accs) < 1 {
		return errors.New("not enough accounts")
	}
	acc, ok := state[accs[0]]
	if !ok || !acc.owner.Equals(program) {
		return fmt.Errorf("account %s is not owned by the program", accs[0])
	}
	if len(acc.data) < 4 {
		return errors.New("account data too small")
	}
	binary.LittleEndian.PutUint32(acc.data, uint32(len(data)))
	n := copy(acc.data[4:], data)
	for i := 4 + n; i < len(acc.data); i++ {
		acc.data[i] = 0
	}
	return nil
}
