package wallet

import (
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/chainjson/cli/input"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/urfave/cli"
)

var (
	errNoPath    = errors.New("target path where the keypair should be stored is mandatory and should be passed using (--out, -o) flags")
	errNoKeypair = errors.New("keypair path is mandatory and should be passed using (--keypair, -k) flags")
	errCancelled = errors.New("cancelled by user")
)

var (
	outFlag = cli.StringFlag{
		Name:  "out, o",
		Usage: "Target location of the keypair file",
	}
	forceFlag = cli.BoolFlag{
		Name:  "force",
		Usage: "Do not ask for a confirmation",
	}
)

// NewCommands returns 'wallet' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "wallet",
		Usage: "create and manage payer keypairs",
		Subcommands: []cli.Command{
			{
				Name:      "create",
				Usage:     "create a new keypair",
				UsageText: "chainjson wallet create --out <file> [--force]",
				Action:    createKeypair,
				Flags:     []cli.Flag{outFlag, forceFlag},
			},
			{
				Name:      "import",
				Usage:     "import base58-encoded secret key into a keypair file",
				UsageText: "chainjson wallet import --out <file> [--force]",
				Description: `Reads base58-encoded 64-byte secret key (as printed by 'wallet dump --secret'
   or exported from other wallets) from the terminal and saves it into the
   keypair file compatible with solana-keygen.`,
				Action: importKeypair,
				Flags:  []cli.Flag{outFlag, forceFlag},
			},
			{
				Name:      "dump",
				Usage:     "check and dump an existing keypair",
				UsageText: "chainjson wallet dump --keypair <file> [--secret [--force]]",
				Action:    dumpKeypair,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "keypair, k",
						Usage: "Keypair file to dump",
					},
					cli.BoolFlag{
						Name:  "secret",
						Usage: "Print base58-encoded secret key",
					},
					forceFlag,
				},
			},
		},
	}}
}

func createKeypair(ctx *cli.Context) error {
	path := ctx.String("out")
	if len(path) == 0 {
		return cli.NewExitError(errNoPath, 1)
	}
	if err := checkOverwrite(ctx, path); err != nil {
		return cli.NewExitError(err, 1)
	}
	id, err := wallet.NewIdentity()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := id.Save(path); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Public key: %s\n", id.PublicKey())
	fmt.Fprintf(ctx.App.Writer, "keypair successfully created, file location is %s\n", path)
	return nil
}

func importKeypair(ctx *cli.Context) error {
	path := ctx.String("out")
	if len(path) == 0 {
		return cli.NewExitError(errNoPath, 1)
	}
	if err := checkOverwrite(ctx, path); err != nil {
		return cli.NewExitError(err, 1)
	}
	secret, err := input.ReadPassword(ctx.App.Writer, "Enter secret key > ")
	if err != nil {
		return cli.NewExitError(fmt.Errorf("error reading secret key: %w", err), 1)
	}
	id, err := wallet.IdentityFromBase58(secret)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := id.Save(path); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Public key: %s\n", id.PublicKey())
	return nil
}

func dumpKeypair(ctx *cli.Context) error {
	path := ctx.String("keypair")
	if len(path) == 0 {
		return cli.NewExitError(errNoKeypair, 1)
	}
	id, err := wallet.IdentityFromFile(path)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Public key: %s\n", id.PublicKey())
	if ctx.Bool("secret") {
		if !ctx.Bool("force") {
			ok, err := input.Confirm(ctx.App.Writer, "Secret key will be printed in plain text, continue?")
			if err != nil {
				return cli.NewExitError(err, 1)
			}
			if !ok {
				return cli.NewExitError(errCancelled, 1)
			}
		}
		fmt.Fprintf(ctx.App.Writer, "Secret key: %s\n", id.Base58())
	}
	return nil
}

func checkOverwrite(ctx *cli.Context, path string) error {
	if _, err := os.Stat(path); err != nil || ctx.Bool("force") {
		return nil
	}
	ok, err := input.Confirm(ctx.App.Writer, fmt.Sprintf("File %s already exists, overwrite?", path))
	if err != nil {
		return err
	}
	if !ok {
		return errCancelled
	}
	return nil
}
