// Package prompt asks the user to confirm destructive CLI actions.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotInteractive is returned when confirmation is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation required: stdin is not a terminal (use -y to skip)")

var isTerminal = term.IsTerminal

// Confirmer reads a yes/no answer.
type Confirmer struct {
	In  io.Reader
	Out io.Writer
	// Interactive reports whether In is attached to a terminal.
	Interactive func() bool
}

// NewConfirmer returns a Confirmer on stdin and stderr.
func NewConfirmer() *Confirmer {
	return &Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		Interactive: func() bool {
			return isTerminal(int(os.Stdin.Fd()))
		},
	}
}

// Confirm prints question and returns true only for an explicit yes.
func (c *Confirmer) Confirm(question string) (bool, error) {
	if c.Interactive != nil && !c.Interactive() {
		return false, ErrNotInteractive
	}
	if _, err := fmt.Fprintf(c.Out, "%s [y/N]: ", question); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
