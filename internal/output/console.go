package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emmett/pingpong/internal/game"
)

// ConsoleOutput prints game progress and the scoreboard to a terminal
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	errWriter     io.Writer
	showTimestamp bool
	lastSeq       uint64
}

// ConsoleConfig configures console output behavior
type ConsoleConfig struct {
	// ShowTimestamp prefixes each line with a timestamp
	ShowTimestamp bool

	// Writer is the output destination (default: os.Stdout)
	Writer io.Writer

	// ErrWriter receives errors (default: os.Stderr)
	ErrWriter io.Writer
}

// NewConsoleOutput creates a new console output handler
func NewConsoleOutput(config ConsoleConfig) *ConsoleOutput {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	errWriter := config.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}

	return &ConsoleOutput{
		writer:        writer,
		errWriter:     errWriter,
		showTimestamp: config.ShowTimestamp,
	}
}

// DefaultConsoleOutput creates a console output with default settings
func DefaultConsoleOutput() *ConsoleOutput {
	return NewConsoleOutput(ConsoleConfig{ShowTimestamp: true})
}

// Write writes a line to the console
func (c *ConsoleOutput) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writeLocked(text)
}

func (c *ConsoleOutput) writeLocked(text string) error {
	var err error
	if c.showTimestamp {
		_, err = fmt.Fprintf(c.writer, "[%s] %s\n", time.Now().Format("15:04:05"), text)
	} else {
		_, err = fmt.Fprintf(c.writer, "%s\n", text)
	}
	return err
}

// WriteSnapshot renders a scoreboard snapshot. Snapshots older than the last
// one written are dropped.
func (c *ConsoleOutput) WriteSnapshot(s game.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Seq != 0 && s.Seq <= c.lastSeq {
		return nil
	}
	c.lastSeq = s.Seq
	return c.writeLocked(FormatSnapshot(s))
}

// FormatSnapshot renders a snapshot as a single scoreboard line
func FormatSnapshot(s game.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %d - %d %s", scoreName(s.Player1, s.Serving), s.Player1.Score, s.Player2.Score, scoreName(s.Player2, s.Serving))
	if s.Paused {
		b.WriteString(" | paused")
	} else if s.Detail != "" {
		fmt.Fprintf(&b, " | %s", s.Detail)
	}
	return b.String()
}

func scoreName(p game.PlayerScore, serving int) string {
	name := p.Name
	if p.Side != "" && p.Side != "unset" {
		name = fmt.Sprintf("%s (%s)", name, p.Side)
	}
	if p.ID == serving {
		name = "*" + name
	}
	return name
}

// Info writes an informational message
func (c *ConsoleOutput) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "[INFO] %s\n", msg)
}

// Error writes an error message
func (c *ConsoleOutput) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.errWriter, "[ERROR] %s\n", msg)
}

// Status writes a status message (typically overwritten)
func (c *ConsoleOutput) Status(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "\r[*] %s", msg)
}

// Clear clears the current line
func (c *ConsoleOutput) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.writer, "\r%80s\r", " ")
	return err
}
