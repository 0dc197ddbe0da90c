package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for missing inputs. Secrets are read without
// echo when In is a terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

func (p *Prompter) line() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	s, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// Ask prints label and returns the answer.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprintf(p.Out, "%s: ", label)
	s, err := p.line()
	return strings.TrimSpace(s), err
}

// AskSecret is Ask without echo.
func (p *Prompter) AskSecret(label string) (string, error) {
	fmt.Fprintf(p.Out, "%s: ", label)
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.Out)
		return string(b), err
	}
	return p.line()
}

// Fill prompts for *v when it is empty.
func (p *Prompter) Fill(v *string, label string) error {
	if *v != "" {
		return nil
	}
	s, err := p.Ask(label)
	if err != nil {
		return fmt.Errorf("no answer for %s: %w", label, err)
	}
	*v = s
	return nil
}

// FillSecret prompts for s when no source provides it.
func (p *Prompter) FillSecret(s *Secret, label string) error {
	if s.IsSet() {
		return nil
	}
	v, err := p.AskSecret(label)
	if err != nil {
		return fmt.Errorf("no answer for %s: %w", label, err)
	}
	s.Set(v)
	return nil
}
