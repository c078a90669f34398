package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/chainjson/cli/store"
	"github.com/nspcc-dev/chainjson/cli/wallet"
	"github.com/nspcc-dev/chainjson/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "ChainJSON\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a ChainJSON instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "chainjson"
	ctl.Version = config.Version
	ctl.Usage = "Store JSON documents in on-chain program accounts"
	ctl.ErrWriter = os.Stderr

	ctl.Commands = append(ctl.Commands, wallet.NewCommands()...)
	ctl.Commands = append(ctl.Commands, store.NewCommands()...)
	return ctl
}
