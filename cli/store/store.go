package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nspcc-dev/chainjson/cli/flags"
	"github.com/nspcc-dev/chainjson/cli/input"
	"github.com/nspcc-dev/chainjson/cli/options"
	"github.com/nspcc-dev/chainjson/pkg/config"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/chainjson/pkg/services/metrics"
	"github.com/nspcc-dev/chainjson/pkg/store"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// DefaultPayload is written by 'store run' if no data is given.
const DefaultPayload = `{"abc":123}`

var (
	errNoProgram  = errors.New("program id is mandatory and should be passed using (--program, -p) flags")
	errNoAccount  = errors.New("data account is mandatory and should be passed using (--account, -a) flags")
	errNoBinary   = errors.New("no program binary specified, use --binary flag or Store.ProgramPath setting")
	errNotJSON    = errors.New("payload is not a valid JSON")
	errEmptyInput = errors.New("empty payload")
)

var (
	programFlag = flags.PublicKeyFlag{
		Name:  "program, p",
		Usage: "Deployed program id",
	}
	accountFlag = flags.PublicKeyFlag{
		Name:  "account, a",
		Usage: "Data account owned by the program",
	}
	dataFlag = cli.StringFlag{
		Name:  "data",
		Usage: "JSON payload to write (read from the terminal if not set)",
	}
	binaryFlag = cli.StringFlag{
		Name:  "binary, b",
		Usage: "Program binary to deploy (overrides Store.ProgramPath setting)",
	}
	amountFlag = cli.Uint64Flag{
		Name:  "amount",
		Usage: "Amount of lamports to request (overrides Store.Funding.Lamports setting)",
	}
)

func commonFlags(rpcFlags []cli.Flag, extra ...cli.Flag) []cli.Flag {
	fs := []cli.Flag{options.Config, options.ConfigFile, options.Debug}
	fs = append(fs, options.Network...)
	fs = append(fs, rpcFlags...)
	return append(fs, extra...)
}

// NewCommands returns 'store' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "store",
		Usage: "store JSON payloads on chain",
		Subcommands: []cli.Command{
			{
				Name:      "fund",
				Usage:     "request an airdrop for the payer and wait for it",
				UsageText: "chainjson store fund [--keypair <file>] [--amount <lamports>]",
				Action:    fund,
				Flags:     commonFlags(options.AwaitableRPC, options.Keypair, options.EnvFile, amountFlag),
			},
			{
				Name:      "deploy",
				Usage:     "deploy the store program along with a new data account",
				UsageText: "chainjson store deploy [--keypair <file>] [--binary <file.so>]",
				Description: `Deploys the program binary and creates a data account owned by it. Every
   invocation creates new program and data accounts.`,
				Action: deploy,
				Flags:  commonFlags(options.AwaitableRPC, options.Keypair, options.EnvFile, binaryFlag),
			},
			{
				Name:      "write",
				Usage:     "write JSON payload into the data account",
				UsageText: "chainjson store write --program <id> --account <address> [--data <json>]",
				Action:    write,
				Flags:     commonFlags(options.AwaitableRPC, options.Keypair, options.EnvFile, programFlag, accountFlag, dataFlag),
			},
			{
				Name:      "read",
				Usage:     "read JSON payload from the data account",
				UsageText: "chainjson store read --account <address>",
				Action:    read,
				Flags:     commonFlags(options.RPC, accountFlag),
			},
			{
				Name:      "run",
				Usage:     "fund, deploy, write and read back a payload",
				UsageText: "chainjson store run [--keypair <file>] [--binary <file.so>] [--data <json>]",
				Description: `Performs the whole scenario: funds the payer (a new one is generated if no
   keypair is given), deploys the program with a new data account, writes the
   payload there and reads it back. Payload defaults to ` + DefaultPayload + `.`,
				Action: run,
				Flags:  commonFlags(options.AwaitableRPC, options.Keypair, options.EnvFile, binaryFlag, dataFlag),
			},
		},
	}}
}

// env is the state shared by store commands.
type env struct {
	cfg        config.Config
	log        *zap.Logger
	store      *store.Store
	conn       *options.Conn
	prometheus *metrics.Service
}

func (e *env) Close() {
	if e.prometheus != nil {
		e.prometheus.ShutDown()
	}
	if e.conn != nil {
		e.conn.Close()
	}
	_ = e.log.Sync()
}

// newEnv reads configuration and connects to the node. Logger fields are
// attached to every log entry including the ones made by the store.
func newEnv(gctx context.Context, ctx *cli.Context, fields ...zap.Field) (*env, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log = log.With(fields...)
	s, c, prom, err := initStoreWithMetrics(gctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, cli.NewExitError(err, 1)
	}
	return &env{cfg: cfg, log: log, store: s, conn: c, prometheus: prom}, nil
}

func initStoreWithMetrics(gctx context.Context, cfg config.Config, log *zap.Logger) (*store.Store, *options.Conn, *metrics.Service, error) {
	s, c, ec := options.GetStore(gctx, cfg, log)
	if ec != nil {
		return nil, nil, nil, ec
	}
	prom := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, nil, log)
	if err := prom.Start(); err != nil {
		c.Close()
		return nil, nil, nil, fmt.Errorf("failed to start Prometheus service: %w", err)
	}
	return s, c, prom, nil
}

func fundingPoll(cfg config.Config) waiter.PollConfig {
	return waiter.PollConfig{
		Interval:    cfg.Store.Funding.PollInterval,
		MaxAttempts: cfg.Store.Funding.MaxPolls,
	}
}

func fund(ctx *cli.Context) error {
	payer, err := options.GetPayer(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	e, err := newEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	lamports := e.cfg.Store.Funding.Lamports
	if ctx.IsSet("amount") {
		lamports = ctx.Uint64("amount")
	}
	if err := e.store.Fund(gctx, payer, lamports, fundingPoll(e.cfg)); err != nil {
		return cli.NewExitError(err, 1)
	}
	balance, err := e.store.Balance(gctx, payer.PublicKey())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Balance: %d\n", balance)
	return nil
}

func programPath(ctx *cli.Context, cfg config.Config) (string, error) {
	path := ctx.String("binary")
	if path == "" {
		path = cfg.Store.ProgramPath
	}
	if path == "" {
		return "", errNoBinary
	}
	return path, nil
}

func deploy(ctx *cli.Context) error {
	payer, err := options.GetPayer(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	e, err := newEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	path, err := programPath(ctx, e.cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	d, err := e.store.DeployProgram(gctx, path, payer)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printDeployment(ctx, d)
	return nil
}

func printDeployment(ctx *cli.Context, d *store.Deployment) {
	fmt.Fprintf(ctx.App.Writer, "Program: %s\n", d.Program)
	fmt.Fprintf(ctx.App.Writer, "Data account: %s\n", d.DataAccount)
}

// getPayload returns JSON payload from --data flag or the terminal.
func getPayload(ctx *cli.Context, def string) (string, error) {
	var payload string
	switch {
	case ctx.IsSet("data"):
		payload = ctx.String("data")
	case def != "":
		payload = def
	default:
		line, err := input.ReadLine(ctx.App.Writer, "Enter JSON payload > ")
		if err != nil {
			return "", fmt.Errorf("failed to read payload: %w", err)
		}
		payload = strings.TrimSpace(line)
		if payload == "" {
			return "", errEmptyInput
		}
	}
	if !json.Valid([]byte(payload)) {
		return "", errNotJSON
	}
	return payload, nil
}

func write(ctx *cli.Context) error {
	program, ok := flags.GetPublicKey(ctx, "program")
	if !ok {
		return cli.NewExitError(errNoProgram, 1)
	}
	account, ok := flags.GetPublicKey(ctx, "account")
	if !ok {
		return cli.NewExitError(errNoAccount, 1)
	}
	payload, err := getPayload(ctx, "")
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	payer, err := options.GetPayer(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	e, err := newEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	rcpt, err := e.store.WritePayload(gctx, program, account, payer, payload)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Signature: %s\n", rcpt.Signature)
	return nil
}

func read(ctx *cli.Context) error {
	account, ok := flags.GetPublicKey(ctx, "account")
	if !ok {
		return cli.NewExitError(errNoAccount, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	e, err := newEnv(gctx, ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	payload, err := e.store.ReadPayload(gctx, account)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, payload)
	return nil
}

func run(ctx *cli.Context) error {
	payload, err := getPayload(ctx, DefaultPayload)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	payer, err := options.GetPayer(ctx)
	if errors.Is(err, options.ErrNoPayer) {
		payer, err = wallet.NewIdentity()
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	e, err := newEnv(gctx, ctx, zap.Stringer("run", uuid.New()), zap.Stringer("payer", payer.PublicKey()))
	if err != nil {
		return err
	}
	defer e.Close()

	// Funding and deployment are useless if the payload can't be written.
	if _, err := e.store.Layout().Pad(payload); err != nil {
		return cli.NewExitError(err, 1)
	}
	path, err := programPath(ctx, e.cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	e.log.Info("starting run", zap.String("endpoint", e.cfg.Network.Endpoint))

	if err := e.store.Fund(gctx, payer, e.cfg.Store.Funding.Lamports, fundingPoll(e.cfg)); err != nil {
		return cli.NewExitError(err, 1)
	}
	d, err := e.store.DeployProgram(gctx, path, payer)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	printDeployment(ctx, d)
	e.log.Info("deployed", zap.Stringer("program", d.Program), zap.Stringer("account", d.DataAccount))

	rcpt, err := e.store.WritePayload(gctx, d.Program, d.DataAccount, payer, payload)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Signature: %s\n", rcpt.Signature)

	got, err := e.store.ReadPayload(gctx, d.DataAccount)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Payload: %s\n", got)
	e.log.Info("run completed", zap.Bool("match", got == payload))
	return nil
}
