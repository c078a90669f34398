package flags

import (
	"flag"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli"
)

// PublicKey is a wrapper for a solana.PublicKey with flag.Value methods.
type PublicKey struct {
	IsSet bool
	Value solana.PublicKey
}

// PublicKeyFlag is a flag with type solana.PublicKey (base58-encoded).
type PublicKeyFlag struct {
	Name  string
	Usage string
	Value PublicKey
}

var (
	_ flag.Value = (*PublicKey)(nil)
	_ cli.Flag   = PublicKeyFlag{}
)

// String implements the fmt.Stringer interface.
func (p PublicKey) String() string {
	if !p.IsSet {
		return ""
	}
	return p.Value.String()
}

// Set implements the flag.Value interface.
func (p *PublicKey) Set(s string) error {
	pub, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid public key %q: %w", s, err), 1)
	}
	p.IsSet = true
	p.Value = pub
	return nil
}

// PublicKey returns the flag value, it panics if the flag is not set.
func (p *PublicKey) PublicKey() solana.PublicKey {
	if !p.IsSet {
		// It is a programmer error to call this method without
		// checking if the value was provided.
		panic("public key was not set")
	}
	return p.Value
}

// IsSet checks if flag was set to a non-default value.
func (f PublicKeyFlag) IsSet() bool {
	return f.Value.IsSet
}

// String returns a readable representation of this value
// (for usage defaults).
func (f PublicKeyFlag) String() string {
	var names []string
	eachName(f.Name, func(name string) {
		names = append(names, getNameHelp(name))
	})

	return strings.Join(names, ", ") + "\t" + f.Usage
}

func getNameHelp(name string) string {
	if len(name) == 1 {
		return fmt.Sprintf("-%s value", name)
	}
	return fmt.Sprintf("--%s value", name)
}

// GetName returns the name of the flag.
func (f PublicKeyFlag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f PublicKeyFlag) Apply(set *flag.FlagSet) {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
}

// GetPublicKey returns the value of the flag with the given name from the
// context.
func GetPublicKey(ctx *cli.Context, name string) (solana.PublicKey, bool) {
	p, ok := ctx.Generic(name).(*PublicKey)
	if !ok || !p.IsSet {
		return solana.PublicKey{}, false
	}
	return p.Value, true
}
