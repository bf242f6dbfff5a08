package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter asks line-based questions. It is the non-TUI fallback used when
// flags leave something unanswered.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// StdPrompter prompts on the terminal.
func StdPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stdout)
}

func (p *Prompter) readLine() string {
	line, _ := p.in.ReadString('\n')
	return strings.TrimSpace(line)
}

// Confirm prompts the user with a yes/no question. Returns true for yes.
func (p *Prompter) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", StyleWarning.Render(prompt))
	return isYes(p.readLine())
}

// ConfirmDanger is like Confirm but styled with the error color (for
// transfers that cannot be undone).
func (p *Prompter) ConfirmDanger(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", StyleError.Render("⚠ "+prompt))
	return isYes(p.readLine())
}

// Input asks for a value, returning def on an empty answer.
func (p *Prompter) Input(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s %s: ", StyleValue.Render(label), StyleMeta.Render("["+def+"]"))
	} else {
		fmt.Fprintf(p.out, "%s: ", StyleValue.Render(label))
	}
	if v := p.readLine(); v != "" {
		return v
	}
	return def
}

// InputValid repeats Input until check returns an empty message or the
// input is exhausted.
func (p *Prompter) InputValid(label, def string, check func(string) string) string {
	for {
		v := p.Input(label, def)
		msg := check(v)
		if msg == "" {
			return v
		}
		fmt.Fprintln(p.out, Err(msg))
		if _, err := p.in.Peek(1); err != nil {
			return v
		}
	}
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "yes"
}
