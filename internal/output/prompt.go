package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrNoInput is returned when the input stream ends before an answer
var ErrNoInput = errors.New("no input available")

// ConsolePrompter asks questions on a terminal and reads answers line by line
type ConsolePrompter struct {
	mu      sync.Mutex
	reader  *bufio.Reader
	console *ConsoleOutput
}

// NewConsolePrompter reads answers from r (default: os.Stdin) and writes
// questions through console
func NewConsolePrompter(r io.Reader, console *ConsoleOutput) *ConsolePrompter {
	if r == nil {
		r = os.Stdin
	}
	if console == nil {
		console = DefaultConsoleOutput()
	}
	return &ConsolePrompter{
		reader:  bufio.NewReader(r),
		console: console,
	}
}

// Message shows msg and waits for Enter
func (p *ConsolePrompter) Message(msg string) error {
	_, err := p.ask(msg + " [press enter]")
	return err
}

// Confirm asks a yes/no question. Anything other than y or yes is a no.
func (p *ConsolePrompter) Confirm(question string) (bool, error) {
	answer, err := p.ask(question + " [y/n]")
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

// Input asks for a line of text
func (p *ConsolePrompter) Input(prompt string) (string, error) {
	return p.ask(prompt)
}

func (p *ConsolePrompter) ask(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.console.Write(prompt); err != nil {
		return "", err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
