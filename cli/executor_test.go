package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/chainjson/cli/app"
	"github.com/nspcc-dev/chainjson/cli/input"
	"github.com/nspcc-dev/chainjson/internal/fakechain"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

// testProgram is deployed by store commands, fakechain treats every deployed
// program as the store program.
var testProgram = []byte("\x7fELF test store program")

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// Chain is an in-memory chain (can be empty).
	Chain *fakechain.Chain
	// RPC is an RPC server serving Chain (can be empty).
	RPC *httptest.Server
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
	// In contains command input.
	In *bytes.Buffer
}

func newExecutor(t *testing.T, needChain bool) *executor {
	e := &executor{
		CLI: app.New(),
		Out: bytes.NewBuffer(nil),
		Err: bytes.NewBuffer(nil),
		In:  bytes.NewBuffer(nil),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	if needChain {
		e.Chain = fakechain.New()
		e.RPC = httptest.NewServer(e.Chain.Handler())
	}
	t.Cleanup(func() {
		e.Close(t)
	})
	return e
}

func (e *executor) Close(t *testing.T) {
	input.Terminal = nil
	if e.RPC != nil {
		e.RPC.Close()
		e.RPC = nil
	}
}

// writeConfig creates a config file pointing to the executor's RPC server
// with short polling intervals. extra is appended to the ApplicationConfiguration
// section.
func (e *executor) writeConfig(t *testing.T, capacity int, extra string) string {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "store.so")
	require.NoError(t, os.WriteFile(binPath, testProgram, 0o644))

	endpoint := "http://127.0.0.1:1"
	if e.RPC != nil {
		endpoint = e.RPC.URL
	}
	cfg := fmt.Sprintf(`Network:
  Endpoint: %s
  PollInterval: 1ms
Store:
  ProgramPath: %s
  Capacity: %d
  Funding:
    Lamports: 1000000000
    MaxPolls: 10
    PollInterval: 1ms
ApplicationConfiguration:
  LogLevel: error
%s`, endpoint, binPath, capacity, extra)
	cfgPath := filepath.Join(dir, "chainjson.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	e.checkLine(t, line, expected)
}

func (e *executor) checkLine(t *testing.T, line, expected string) {
	require.Regexp(t, expected, line)
}

// getNextValue reads the next line and returns it without the given prefix.
func (e *executor) getNextValue(t *testing.T, prefix string) string {
	line := e.getNextLine(t)
	require.True(t, strings.HasPrefix(line, prefix), "expected %q prefix: %s", prefix, line)
	return strings.TrimPrefix(line, prefix)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// RunWithErrorCheck runs command and checks that it exits with an error
// containing msg.
func (e *executor) RunWithErrorCheck(t *testing.T, msg string, args ...string) {
	ch := setExitFunc()
	err := e.run(args...)
	require.Error(t, err)
	require.ErrorContains(t, err, msg)
	checkExit(t, ch, 1)
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	input.Terminal = term.NewTerminal(input.ReadWriter{
		Reader: e.In,
		Writer: io.Discard,
	}, "")
	err := e.CLI.Run(args)
	input.Terminal = nil
	e.In.Reset()
	return err
}
