/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/joho/godotenv"
	"github.com/nspcc-dev/chainjson/pkg/config"
	"github.com/nspcc-dev/chainjson/pkg/config/netmode"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient"
	"github.com/nspcc-dev/chainjson/pkg/rpcclient/waiter"
	"github.com/nspcc-dev/chainjson/pkg/store"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultTimeout is the default timeout used for RPC requests.
	DefaultTimeout = 10 * time.Second
	// DefaultAwaitableTimeout is the default timeout used for commands that
	// send transactions and wait for them. Program deployment takes a number
	// of transactions.
	DefaultAwaitableTimeout = 3 * time.Minute
)

// PayerEnv is the environment variable holding base58-encoded payer secret
// key. It can also be set in the .env file.
const PayerEnv = "CHAINJSON_PAYER"

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// Keypair is a flag for commands that sign transactions.
var Keypair = cli.StringFlag{
	Name:  "keypair, k",
	Usage: "path to the payer keypair file (" + PayerEnv + " environment variable is used if not set)",
}

// EnvFile is a flag pointing to the file with environment variables.
var EnvFile = cli.StringFlag{
	Name:  "env-file",
	Value: ".env",
	Usage: "file with environment variables (ignored if missing)",
}

// Network is a set of flags for choosing the cluster to operate on.
var Network = []cli.Flag{
	cli.BoolFlag{Name: "localnet, l", Usage: "use local validator configuration (if --config-file option is not specified)"},
	cli.BoolFlag{Name: "devnet", Usage: "use devnet configuration (if --config-file option is not specified)"},
	cli.BoolFlag{Name: "testnet, t", Usage: "use testnet configuration (if --config-file option is not specified)"},
}

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node address (overrides configuration)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// AwaitableRPC is the same as RPC, but with the timeout suitable for
// commands sending transactions.
var AwaitableRPC = []cli.Flag{
	RPC[0],
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultAwaitableTimeout,
		Usage: "Timeout for the operation (including transaction awaiting)",
	},
}

// Config is a flag for commands that use configuration.
var Config = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with per-cluster configuration files (may be overridden by --config-file option for the configuration file)",
}

// ConfigFile is a flag for commands that use configuration and provide
// path to the specific config file instead of config path.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the configuration file (overrides --config-path option)",
}

// Debug is a flag for commands that allow debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (overrides configuration)",
}

// ErrNoPayer is returned when neither keypair file nor payer variable is set.
var ErrNoPayer = errors.New("no payer keypair specified, use option '--keypair' or '-k' or set " + PayerEnv)

// GetCluster examines Context's flags and returns the appropriate cluster. It
// defaults to LocalNet if no flags are given.
func GetCluster(ctx *cli.Context) netmode.Cluster {
	var c = netmode.LocalNet
	if ctx.Bool("testnet") {
		c = netmode.TestNet
	}
	if ctx.Bool("devnet") {
		c = netmode.DevNet
	}
	return c
}

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext looks at the path and the cluster flags in the given
// context and returns an appropriate config. RPC endpoint flag overrides the
// configured one.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		cfg, err = config.LoadFile(configFile)
	} else {
		var configPath = config.DefaultConfigPath
		if argCp := ctx.String("config-path"); argCp != "" {
			configPath = argCp
		}
		cfg, err = config.Load(configPath, GetCluster(ctx))
	}
	if err != nil {
		return config.Config{}, err
	}
	if endpoint := ctx.String(RPCEndpointFlag); endpoint != "" {
		cfg.Network.Endpoint = endpoint
	}
	return cfg, nil
}

// LoadEnvFile loads environment variables from the file specified by
// --env-file, missing file is not an error. Variables that are already set
// are not overridden.
func LoadEnvFile(ctx *cli.Context) error {
	envFile := ctx.String("env-file")
	if envFile == "" {
		return nil
	}
	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}

// GetPayer returns the payer identity from the keypair file given with
// --keypair or from the base58 secret in PayerEnv variable.
func GetPayer(ctx *cli.Context) (*wallet.Identity, error) {
	if path := ctx.String("keypair"); path != "" {
		return wallet.IdentityFromFile(path)
	}
	if err := LoadEnvFile(ctx); err != nil {
		return nil, err
	}
	if secret := os.Getenv(PayerEnv); secret != "" {
		id, err := wallet.IdentityFromBase58(secret)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", PayerEnv, err)
		}
		return id, nil
	}
	return nil, ErrNoPayer
}

// Conn is a set of node connections used by Store.
type Conn struct {
	RPC *rpc.Client
	// WS is nil unless websocket endpoint is configured.
	WS *ws.Client
}

// Close closes all connections.
func (c *Conn) Close() {
	if c.WS != nil {
		c.WS.Close()
	}
	_ = c.RPC.Close()
}

// GetStore connects to the configured RPC node and returns a Store using it.
// Transactions are awaited via websocket notifications if WSEndpoint is set.
func GetStore(gctx context.Context, cfg config.Config, log *zap.Logger) (*store.Store, *Conn, cli.ExitCoder) {
	c, err := store.Connect(gctx, cfg.Network.Endpoint, rpcclient.Options{
		RateLimit: cfg.Network.RateLimit,
		Burst:     cfg.Network.RateBurst,
	})
	if err != nil {
		return nil, nil, cli.NewExitError(err, 1)
	}
	conn := &Conn{RPC: c}
	l, err := cfg.Store.Layout()
	if err != nil {
		conn.Close()
		return nil, nil, cli.NewExitError(err, 1)
	}
	opts := store.Options{
		Layout:          l,
		Commitment:      cfg.Network.Commitment,
		SkipPreflight:   cfg.Network.SkipPreflight,
		Poll:            waiter.PollConfig{Interval: cfg.Network.PollInterval},
		AccountLamports: cfg.Store.AccountLamports,
		ChunkSize:       cfg.Store.ChunkSize,
	}
	if cfg.Network.WSEndpoint != "" {
		conn.WS, err = ws.Connect(gctx, cfg.Network.WSEndpoint)
		if err != nil {
			conn.Close()
			return nil, nil, cli.NewExitError(fmt.Errorf("%w: %w", store.ErrConnection, err), 1)
		}
		opts.Events = conn.WS
	}
	return store.New(c, log, opts), conn, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	// Command results go to stdout, logs shouldn't mix with them.
	cc.OutputPaths = []string{"stderr"}

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}
