package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// Prompter reads one line of operator input
type Prompter interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// ReadlinePrompter reads answers from the terminal with line editing
type ReadlinePrompter struct {
	rl *readline.Instance
}

// NewReadlinePrompter opens a readline instance on the process terminal
func NewReadlinePrompter() (*ReadlinePrompter, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt:   "^C",
		EOFPrompt:         "n",
		HistoryLimit:      -1,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &ReadlinePrompter{rl: rl}, nil
}

func (p *ReadlinePrompter) Prompt(prompt string) (string, error) {
	p.rl.SetPrompt(prompt)
	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", fmt.Errorf("interrupted")
	}
	return line, err
}

func (p *ReadlinePrompter) Close() error { return p.rl.Close() }

// LinePrompter reads answers from any reader, one per line. Used when stdin is
// not a terminal and in tests.
type LinePrompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewLinePrompter creates a prompter over in, echoing prompts to out
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{out: out, scanner: bufio.NewScanner(in)}
}

func (p *LinePrompter) Prompt(prompt string) (string, error) {
	if p.out != nil {
		fmt.Fprint(p.out, prompt)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(p.scanner.Text(), "\r"), nil
}

func (p *LinePrompter) Close() error { return nil }

// IsInteractiveTerminal reports whether both stdin and stdout are terminals
func IsInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// DefaultPrompter picks readline on a terminal and a plain line reader otherwise
func DefaultPrompter() (Prompter, error) {
	if IsInteractiveTerminal() {
		return NewReadlinePrompter()
	}
	return NewLinePrompter(os.Stdin, os.Stdout), nil
}

// Confirm asks a yes/no question, defaulting to no on empty input
func Confirm(p Prompter, question string) (bool, error) {
	answer, err := p.Prompt(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(strings.ToLower(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
