/*
Package wallet provides signing identities (ed25519 keypairs) used to pay for
and sign transactions.

Identities are kept in memory. They can be created randomly, restored from raw
64-byte secrets, base58 strings or solana-keygen compatible JSON files, and
saved to such files.
*/
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// SecretSize is the length of serialized secret key (seed followed by the
// public key).
const SecretSize = ed25519.PrivateKeySize

// ErrMalformedKey is returned for secrets that can't be parsed into a keypair.
var ErrMalformedKey = errors.New("malformed secret key")

// Identity is a keypair that owns funds and signs transactions.
type Identity struct {
	key solana.PrivateKey
}

// NewIdentity creates a new Identity with a randomly generated key.
func NewIdentity() (*Identity, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return &Identity{key: key}, nil
}

// IdentityFromBytes restores an Identity from the 64-byte secret. The public
// half of the secret must match the one derived from the seed.
func IdentityFromBytes(secret []byte) (*Identity, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedKey, SecretSize, len(secret))
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], secret[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("%w: public key doesn't match the seed", ErrMalformedKey)
	}
	key := make(solana.PrivateKey, SecretSize)
	copy(key, secret)
	return &Identity{key: key}, nil
}

// IdentityFromBase58 restores an Identity from the base58-encoded secret.
func IdentityFromBase58(s string) (*Identity, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	return IdentityFromBytes(b)
}

// IdentityFromFile reads a keypair from the solana-keygen JSON file (an array
// of 64 numbers).
func IdentityFromFile(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKey, err)
	}
	raw := make([]byte, len(nums))
	for j, n := range nums {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("%w: byte %d is out of range", ErrMalformedKey, j)
		}
		raw[j] = byte(n)
	}
	return IdentityFromBytes(raw)
}

// Save writes the keypair to the solana-keygen compatible JSON file creating
// parent directories if needed. The file is readable by owner only.
func (i *Identity) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("could not create dir for keypair: %w", err)
		}
	}
	nums := make([]int, len(i.key))
	for j, b := range i.key {
		nums[j] = int(b)
	}
	data, err := json.Marshal(nums)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// PublicKey returns the public key (address) of the identity.
func (i *Identity) PublicKey() solana.PublicKey {
	return i.key.PublicKey()
}

// PrivateKey returns the private key usable for transaction signing.
func (i *Identity) PrivateKey() *solana.PrivateKey {
	return &i.key
}

// Secret returns a copy of the 64-byte secret.
func (i *Identity) Secret() []byte {
	return bytes.Clone(i.key)
}

// Base58 returns base58-encoded secret.
func (i *Identity) Base58() string {
	return base58.Encode(i.key)
}

// String implements the fmt.Stringer interface, it never prints the secret.
func (i *Identity) String() string {
	return i.PublicKey().String()
}

// Signer returns a key getter for solana.Transaction.Sign that knows about
// all given identities.
func Signer(ids ...*Identity) func(solana.PublicKey) *solana.PrivateKey {
	return func(pub solana.PublicKey) *solana.PrivateKey {
		for _, id := range ids {
			if id.PublicKey().Equals(pub) {
				return id.PrivateKey()
			}
		}
		return nil
	}
}
