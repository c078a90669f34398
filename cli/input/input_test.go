package input

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func withTerminal(t *testing.T, in string) *bytes.Buffer {
	out := new(bytes.Buffer)
	Terminal = term.NewTerminal(ReadWriter{Reader: bytes.NewBufferString(in), Writer: out}, "")
	t.Cleanup(func() { Terminal = nil })
	return out
}

func TestReadLine(t *testing.T) {
	out := withTerminal(t, "hello\r")
	line, err := ReadLine(io.Discard, "Say > ")
	require.NoError(t, err)
	require.Equal(t, "hello", line)
	require.Contains(t, out.String(), "Say > ")
}

func TestReadPassword(t *testing.T) {
	out := withTerminal(t, "s3cret\r")
	pass, err := ReadPassword(io.Discard, "Secret > ")
	require.NoError(t, err)
	require.Equal(t, "s3cret", pass)
	require.NotContains(t, out.String(), "s3cret")
}

func TestConfirm(t *testing.T) {
	for in, expected := range map[string]bool{
		"y\r":   true,
		"YES\r": true,
		"n\r":   false,
		"\r":    false,
	} {
		withTerminal(t, in)
		ok, err := Confirm(io.Discard, "Sure?")
		require.NoError(t, err)
		require.Equal(t, expected, ok, in)
	}
}
