package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadWriter combines reader and writer into a terminal stream.
type ReadWriter struct {
	io.Reader
	io.Writer
}

// Terminal is a terminal used for input. If `nil`, stdin is used.
var Terminal *term.Terminal

// ReadLine reads line from the input without trailing '\n'.
func ReadLine(w io.Writer, prompt string) (string, error) {
	if Terminal != nil {
		_, err := Terminal.Write([]byte(prompt))
		if err != nil {
			return "", err
		}
		raw, err := Terminal.ReadLine()
		return strings.TrimRight(raw, "\r\n"), err
	}
	fmt.Fprint(w, prompt)
	buf := bufio.NewReader(os.Stdin)
	line, err := buf.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword reads a secret with prompt, the input isn't echoed if stdin is
// a terminal.
func ReadPassword(w io.Writer, prompt string) (string, error) {
	if Terminal != nil {
		return Terminal.ReadPassword(prompt)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ReadLine(w, prompt)
	}
	fmt.Fprint(w, prompt)
	rawPass, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	return strings.TrimRight(string(rawPass), "\r\n"), nil
}

// Confirm asks for a confirmation, anything except "y" or "yes" is treated
// as refusal.
func Confirm(w io.Writer, prompt string) (bool, error) {
	line, err := ReadLine(w, prompt+" [y/N] > ")
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}
