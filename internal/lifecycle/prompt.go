package lifecycle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Prompter asks the operator a yes/no question.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
}

// StdinPrompter asks on a terminal. Zero values use os.Stdin and os.Stderr.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

func (s StdinPrompter) Confirm(question string, def bool) (bool, error) {
	in, out := s.In, s.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s ", question, hint)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return def, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return def, nil
}

// FixedPrompter answers every question with Answer. Used for unattended
// batches.
type FixedPrompter struct{ Answer bool }

func (f FixedPrompter) Confirm(string, bool) (bool, error) { return f.Answer, nil }

// NotifyInterrupts relays SIGINT and SIGTERM sent to the supervisor. Call
// stop to restore default handling.
func NotifyInterrupts() (ch <-chan os.Signal, stop func()) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	return c, func() { signal.Stop(c) }
}
