package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/chainjson/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func TestWalletCreate(t *testing.T) {
	e := newExecutor(t, false)
	keyPath := filepath.Join(t.TempDir(), "payer.json")

	e.Run(t, "chainjson", "wallet", "create", "--out", keyPath)
	pub := e.getNextValue(t, "Public key: ")
	e.checkNextLine(t, "^keypair successfully created")
	e.checkEOF(t)

	id, err := wallet.IdentityFromFile(keyPath)
	require.NoError(t, err)
	require.Equal(t, id.PublicKey().String(), pub)

	t.Run("no path", func(t *testing.T) {
		e.RunWithError(t, "chainjson", "wallet", "create")
	})
	t.Run("exists, refuse", func(t *testing.T) {
		e.In.WriteString("n\r")
		e.RunWithError(t, "chainjson", "wallet", "create", "--out", keyPath)
		same, err := wallet.IdentityFromFile(keyPath)
		require.NoError(t, err)
		require.Equal(t, id.PublicKey(), same.PublicKey())
	})
	t.Run("exists, confirm", func(t *testing.T) {
		e.In.WriteString("y\r")
		e.Run(t, "chainjson", "wallet", "create", "--out", keyPath)
		other, err := wallet.IdentityFromFile(keyPath)
		require.NoError(t, err)
		require.NotEqual(t, id.PublicKey(), other.PublicKey())
	})
	t.Run("exists, force", func(t *testing.T) {
		e.Run(t, "chainjson", "wallet", "create", "--out", keyPath, "--force")
		require.Equal(t, "Public key: ", e.getNextLine(t)[:len("Public key: ")])
	})
}

func TestWalletDump(t *testing.T) {
	e := newExecutor(t, false)
	id, err := wallet.NewIdentity()
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "payer.json")
	require.NoError(t, id.Save(keyPath))

	e.Run(t, "chainjson", "wallet", "dump", "--keypair", keyPath)
	e.checkNextLine(t, "^Public key: "+id.PublicKey().String()+"$")
	e.checkEOF(t)

	t.Run("secret", func(t *testing.T) {
		e.In.WriteString("y\r")
		e.Run(t, "chainjson", "wallet", "dump", "-k", keyPath, "--secret")
		e.checkNextLine(t, "^Public key: ")
		e.checkNextLine(t, "^Secret key: "+id.Base58()+"$")
	})
	t.Run("secret, force", func(t *testing.T) {
		e.Run(t, "chainjson", "wallet", "dump", "-k", keyPath, "--secret", "--force")
		e.checkNextLine(t, "^Public key: ")
		e.checkNextLine(t, "^Secret key: "+id.Base58()+"$")
	})
	t.Run("secret, refuse", func(t *testing.T) {
		e.In.WriteString("n\r")
		e.RunWithError(t, "chainjson", "wallet", "dump", "-k", keyPath, "--secret")
	})
	t.Run("missing flag", func(t *testing.T) {
		e.RunWithError(t, "chainjson", "wallet", "dump")
	})
	t.Run("bad file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("[1,2,3]"), 0o600))
		e.RunWithError(t, "chainjson", "wallet", "dump", "-k", bad)
	})
}

func TestWalletImport(t *testing.T) {
	e := newExecutor(t, false)
	id, err := wallet.NewIdentity()
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "imported.json")

	e.In.WriteString(id.Base58() + "\r")
	e.Run(t, "chainjson", "wallet", "import", "--out", keyPath)
	e.checkNextLine(t, "^Public key: "+id.PublicKey().String()+"$")

	got, err := wallet.IdentityFromFile(keyPath)
	require.NoError(t, err)
	require.Equal(t, id.Secret(), got.Secret())

	t.Run("malformed", func(t *testing.T) {
		e.In.WriteString("notakey\r")
		e.RunWithError(t, "chainjson", "wallet", "import", "--out", filepath.Join(t.TempDir(), "x.json"))
	})
}
