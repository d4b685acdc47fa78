package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func isattyTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// prompter reads answers line by line from the command's input. Prompts are
// only printed when that input is a terminal, so piped input stays quiet.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{
		in:          bufio.NewReader(in),
		out:         cmd.ErrOrStderr(),
		interactive: isTerminal(in),
	}
}

// ask returns the next input line, trimmed. End of input yields "".
func (p *prompter) ask(label string) (string, error) {
	if p.interactive {
		fmt.Fprint(p.out, label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimSpace(line), nil
}

// fill asks for each empty value in order.
func (p *prompter) fill(fields ...promptField) error {
	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		v, err := p.ask(f.label)
		if err != nil {
			return err
		}
		*f.value = v
	}
	return nil
}

type promptField struct {
	label string
	value *string
}

// confirm asks a yes/no question. Without a terminal it answers no.
func (p *prompter) confirm(question string) (bool, error) {
	if !p.interactive {
		return false, nil
	}
	answer, err := p.ask(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
