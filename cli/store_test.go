package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/nspcc-dev/chainjson/cli/options"
	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func newPayerFile(t *testing.T) (*wallet.Identity, string) {
	id, err := wallet.NewIdentity()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "payer.json")
	require.NoError(t, id.Save(path))
	return id, path
}

func TestStoreRun(t *testing.T) {
	t.Setenv(options.PayerEnv, "")
	e := newExecutor(t, true)
	cfg := e.writeConfig(t, 1000, "")

	e.Run(t, "chainjson", "store", "run", "--config-file", cfg, "--env-file", "")
	program := e.getNextValue(t, "Program: ")
	account := e.getNextValue(t, "Data account: ")
	e.checkNextLine(t, "^Signature: ")
	e.checkNextLine(t, `^Payload: \{"abc":123\}$`)
	e.checkEOF(t)

	owner, data, _, ok := e.Chain.AccountData(solana.MustPublicKeyFromBase58(account))
	require.True(t, ok)
	require.Equal(t, program, owner.String())
	require.Len(t, data, 1000)

	t.Run("custom payload with metrics", func(t *testing.T) {
		_, keyPath := newPayerFile(t)
		cfg := e.writeConfig(t, 64, `  Prometheus:
    Enabled: true
    Addresses:
      - "localhost:0"
`)
		e.Run(t, "chainjson", "store", "run", "--config-file", cfg, "-k", keyPath, "--data", `{"k":[1,2]}`)
		e.getNextValue(t, "Program: ")
		e.getNextValue(t, "Data account: ")
		e.checkNextLine(t, "^Signature: ")
		e.checkNextLine(t, `^Payload: \{"k":\[1,2\]\}$`)
	})
	t.Run("too large", func(t *testing.T) {
		_, keyPath := newPayerFile(t)
		cfg := e.writeConfig(t, 64, "")
		airdrops, sent := e.Chain.Airdrops(), e.Chain.Sent()
		e.RunWithErrorCheck(t, "payload too large", "chainjson", "store", "run", "--config-file", cfg, "-k", keyPath,
			"--data", `{"k":"`+strings.Repeat("a", 60)+`"}`)
		// Rejected before funding and deployment.
		require.Equal(t, airdrops, e.Chain.Airdrops())
		require.Equal(t, sent, e.Chain.Sent())
	})
	t.Run("not JSON", func(t *testing.T) {
		e.RunWithErrorCheck(t, "not a valid JSON", "chainjson", "store", "run", "--config-file", cfg, "--env-file", "", "--data", "{abc")
	})
	t.Run("funding timeout", func(t *testing.T) {
		e.Chain.AirdropNeverLands = true
		defer func() { e.Chain.AirdropNeverLands = false }()
		e.RunWithErrorCheck(t, "funding timeout", "chainjson", "store", "run", "--config-file", cfg, "--env-file", "")
	})
	t.Run("run id in logs", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "run.log")
		cfg := e.writeConfig(t, 64, "  LogPath: "+logPath+"\n")
		e.Run(t, "chainjson", "store", "run", "--config-file", cfg, "--env-file", "", "--debug")

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		logs := string(data)
		require.Contains(t, logs, "airdrop requested")
		require.Contains(t, logs, "data account created")
		require.Contains(t, logs, "payload written")

		runID := regexp.MustCompile(`"run": "([0-9a-f-]{36})"`)
		ids := make(map[string]struct{})
		for _, line := range strings.Split(strings.TrimSpace(logs), "\n") {
			m := runID.FindStringSubmatch(line)
			require.NotNil(t, m, line)
			ids[m[1]] = struct{}{}
		}
		require.Len(t, ids, 1)
	})
}

func TestStoreCommands(t *testing.T) {
	e := newExecutor(t, true)
	cfg := e.writeConfig(t, 128, "")
	payer, keyPath := newPayerFile(t)

	e.Run(t, "chainjson", "store", "fund", "--config-file", cfg, "-k", keyPath)
	e.checkNextLine(t, "^Balance: 1000000000$")
	require.Equal(t, uint64(1000000000), e.Chain.Balance(payer.PublicKey()))

	e.Run(t, "chainjson", "store", "deploy", "--config-file", cfg, "-k", keyPath)
	program := e.getNextValue(t, "Program: ")
	account := e.getNextValue(t, "Data account: ")

	t.Run("read empty", func(t *testing.T) {
		e.Run(t, "chainjson", "store", "read", "--config-file", cfg, "--account", account)
		e.checkNextLine(t, "^$")
	})

	e.Run(t, "chainjson", "store", "write", "--config-file", cfg, "-k", keyPath,
		"--program", program, "--account", account, "--data", `{"x":1}`)
	e.checkNextLine(t, "^Signature: ")

	e.Run(t, "chainjson", "store", "read", "--config-file", cfg, "--account", account)
	e.checkNextLine(t, `^\{"x":1\}$`)
	e.checkEOF(t)

	t.Run("write from terminal", func(t *testing.T) {
		e.In.WriteString(`{"y": [true, null]}` + "\r")
		e.Run(t, "chainjson", "store", "write", "--config-file", cfg, "-k", keyPath,
			"-p", program, "-a", account)
		e.checkNextLine(t, "^Signature: ")

		e.Run(t, "chainjson", "store", "read", "--config-file", cfg, "-a", account)
		e.checkNextLine(t, `^\{"y": \[true, null\]\}$`)
	})
	t.Run("write too large", func(t *testing.T) {
		e.RunWithErrorCheck(t, "payload too large", "chainjson", "store", "write", "--config-file", cfg, "-k", keyPath,
			"-p", program, "-a", account, "--data", `"`+strings.Repeat("z", 124)+`"`)
	})
	t.Run("write without program", func(t *testing.T) {
		e.RunWithErrorCheck(t, "program id is mandatory", "chainjson", "store", "write", "--config-file", cfg, "-k", keyPath,
			"-a", account, "--data", `{}`)
	})
	t.Run("read without account", func(t *testing.T) {
		e.RunWithErrorCheck(t, "data account is mandatory", "chainjson", "store", "read", "--config-file", cfg)
	})
	t.Run("read missing account", func(t *testing.T) {
		other, err := wallet.NewIdentity()
		require.NoError(t, err)
		e.RunWithErrorCheck(t, "read failure", "chainjson", "store", "read", "--config-file", cfg, "-a", other.PublicKey().String())
	})
	t.Run("deploy without payer", func(t *testing.T) {
		t.Setenv(options.PayerEnv, "")
		e.RunWithErrorCheck(t, "no payer keypair specified", "chainjson", "store", "deploy", "--config-file", cfg, "--env-file", "")
	})
	t.Run("deploy missing binary", func(t *testing.T) {
		e.RunWithErrorCheck(t, "deployment failure", "chainjson", "store", "deploy", "--config-file", cfg, "-k", keyPath,
			"--binary", filepath.Join(t.TempDir(), "nope.so"))
	})
	t.Run("unreachable node", func(t *testing.T) {
		e.RunWithErrorCheck(t, "connection failure", "chainjson", "store", "read", "--config-file", cfg, "-a", account,
			"--rpc-endpoint", "http://127.0.0.1:1")
	})
}
