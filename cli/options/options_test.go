package options

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nspcc-dev/chainjson/internal/fakechain"
	"github.com/nspcc-dev/chainjson/pkg/config"
	"github.com/nspcc-dev/chainjson/pkg/config/netmode"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"
)

func TestGetCluster(t *testing.T) {
	t.Run("localnet", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		require.Equal(t, netmode.LocalNet, GetCluster(ctx))
	})

	t.Run("testnet", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Bool("testnet", true, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		require.Equal(t, netmode.TestNet, GetCluster(ctx))
	})

	t.Run("devnet", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Bool("devnet", true, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		require.Equal(t, netmode.DevNet, GetCluster(ctx))
	})
}

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, _ := GetTimeoutContext(ctx)
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(DefaultTimeout)))
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Duration("timeout", time.Duration(20), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, _ := GetTimeoutContext(ctx)
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("config path", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", filepath.Join("..", "..", "config"), "")
		set.Bool("devnet", true, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		cfg, err := GetConfigFromContext(ctx)
		require.NoError(t, err)
		require.Equal(t, netmode.DevNet, cfg.Network.Cluster)
		require.Equal(t, netmode.DevNet.Endpoint(), cfg.Network.Endpoint)
	})
	t.Run("config file with endpoint", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-file", filepath.Join("..", "..", "config", "chainjson.localnet.yml"), "")
		set.String(RPCEndpointFlag, "http://127.0.0.1:18899", "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		cfg, err := GetConfigFromContext(ctx)
		require.NoError(t, err)
		require.Equal(t, "http://127.0.0.1:18899", cfg.Network.Endpoint)
	})
	t.Run("missing", func(t *testing.T) {
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("config-path", t.TempDir(), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		_, err := GetConfigFromContext(ctx)
		require.Error(t, err)
	})
}

func TestGetPayer(t *testing.T) {
	id, err := wallet.NewIdentity()
	require.NoError(t, err)

	t.Run("keypair file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "payer.json")
		require.NoError(t, id.Save(path))

		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("keypair", path, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		payer, err := GetPayer(ctx)
		require.NoError(t, err)
		require.Equal(t, id.PublicKey(), payer.PublicKey())
	})
	t.Run("environment", func(t *testing.T) {
		t.Setenv(PayerEnv, id.Base58())
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		payer, err := GetPayer(ctx)
		require.NoError(t, err)
		require.Equal(t, id.PublicKey(), payer.PublicKey())
	})
	t.Run("env file", func(t *testing.T) {
		t.Setenv(PayerEnv, "")
		require.NoError(t, os.Unsetenv(PayerEnv))
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte(PayerEnv+"="+id.Base58()+"\n"), 0o600))

		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("env-file", envFile, "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		payer, err := GetPayer(ctx)
		require.NoError(t, err)
		require.Equal(t, id.PublicKey(), payer.PublicKey())
	})
	t.Run("malformed", func(t *testing.T) {
		t.Setenv(PayerEnv, "notakey")
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		_, err := GetPayer(ctx)
		require.Error(t, err)
	})
	t.Run("none", func(t *testing.T) {
		t.Setenv(PayerEnv, "")
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.String("env-file", filepath.Join(t.TempDir(), "nope.env"), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		_, err := GetPayer(ctx)
		require.ErrorIs(t, err, ErrNoPayer)
	})
}

func TestGetStore(t *testing.T) {
	// need test server for proper getVersion handling
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		response := `{"id":1,"jsonrpc":"2.0","result":{"solana-core":"1.18.26","feature-set":3469865029}}`

		_, err := w.Write([]byte(response))
		if err != nil {
			t.Fatalf("Error writing response: %s", err.Error())
		}
	}))
	defer srv.Close()

	cfg := config.Default(netmode.LocalNet)
	cfg.Store.Capacity = 128
	t.Run("success", func(t *testing.T) {
		cfg := cfg
		cfg.Network.Endpoint = srv.URL
		s, c, ec := GetStore(context.Background(), cfg, nil)
		require.Nil(t, ec)
		require.Equal(t, 128, s.Layout().Capacity())
		require.Nil(t, c.WS)
		c.Close()
	})
	t.Run("websocket", func(t *testing.T) {
		wsSrv := httptest.NewServer(fakechain.New().WSHandler())
		defer wsSrv.Close()
		cfg := cfg
		cfg.Network.Endpoint = srv.URL
		cfg.Network.WSEndpoint = "ws" + strings.TrimPrefix(wsSrv.URL, "http")
		s, c, ec := GetStore(context.Background(), cfg, nil)
		require.Nil(t, ec)
		require.NotNil(t, s)
		require.NotNil(t, c.WS)
		c.Close()
	})
	t.Run("websocket unavailable", func(t *testing.T) {
		cfg := cfg
		cfg.Network.Endpoint = srv.URL
		cfg.Network.WSEndpoint = "ws://127.0.0.1:1"
		_, _, ec := GetStore(context.Background(), cfg, nil)
		require.Equal(t, 1, ec.ExitCode())
		require.ErrorContains(t, ec, "connection failure")
	})
	t.Run("bad endpoint", func(t *testing.T) {
		cfg := cfg
		cfg.Network.Endpoint = "://nope"
		_, _, ec := GetStore(context.Background(), cfg, nil)
		require.Equal(t, 1, ec.ExitCode())
	})
}

func TestHandleLoggingParams(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		log, lvl, err := HandleLoggingParams(false, config.ApplicationConfiguration{})
		require.NoError(t, err)
		require.NotNil(t, log)
		require.Equal(t, zapcore.InfoLevel, lvl.Level())
	})
	t.Run("debug overrides", func(t *testing.T) {
		_, lvl, err := HandleLoggingParams(true, config.ApplicationConfiguration{LogLevel: "warn"})
		require.NoError(t, err)
		require.Equal(t, zapcore.DebugLevel, lvl.Level())
	})
	t.Run("bad level", func(t *testing.T) {
		_, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogLevel: "loud"})
		require.Error(t, err)
	})
	t.Run("log path", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "sub", "chainjson.log")
		log, _, err := HandleLoggingParams(false, config.ApplicationConfiguration{LogPath: logPath})
		require.NoError(t, err)
		log.Info("hello")
		_ = log.Sync()
		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		require.Contains(t, string(data), "hello")
	})
}
