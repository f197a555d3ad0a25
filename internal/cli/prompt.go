package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNoTerminal = errors.New("no terminal available for interactive password prompt")

// PromptForPassword asks for the user's password on stderr and reads it
// from the terminal with echo disabled.
func PromptForPassword(user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	return promptPassword(os.Stderr, user, func() ([]byte, error) {
		return term.ReadPassword(fd)
	})
}

func promptPassword(w io.Writer, user string, read func() ([]byte, error)) (string, error) {
	fmt.Fprintf(w, "Password for %s: ", user)
	pw, err := read()
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(string(pw), "\r\n"), nil
}
