package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/emmett/pingpong/internal/game"
)

// Event represents a system event
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Formatter is the interface for event log formatters
type Formatter interface {
	// WriteSnapshot writes a scoreboard snapshot
	WriteSnapshot(s game.Snapshot) error

	// WriteEvent writes a system event (e.g. calibration, pause)
	WriteEvent(eventType, message string) error

	// Close closes the formatter and releases resources
	Close() error
}

// JSONFormatter writes one JSON document per line
type JSONFormatter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closer  io.Closer
}

// NewJSONFormatter creates a new JSON lines formatter
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	return &JSONFormatter{encoder: json.NewEncoder(writer)}
}

// OpenEventLog creates path and returns a JSON formatter that closes it
func OpenEventLog(path string) (*JSONFormatter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	j := NewJSONFormatter(f)
	j.closer = f
	return j, nil
}

// WriteSnapshot writes a snapshot line
func (j *JSONFormatter) WriteSnapshot(s game.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.encoder.Encode(s)
}

// WriteEvent writes a system event
func (j *JSONFormatter) WriteEvent(eventType, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.encoder.Encode(Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// Close closes the underlying file, if the formatter owns one
func (j *JSONFormatter) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}

// PlainTextFormatter writes human-readable lines
type PlainTextFormatter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter(writer io.Writer) *PlainTextFormatter {
	return &PlainTextFormatter{writer: writer}
}

// WriteSnapshot writes a snapshot as a scoreboard line
func (p *PlainTextFormatter) WriteSnapshot(s game.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintf(p.writer, "[%s] %s\n", s.Time.Format("15:04:05"), FormatSnapshot(s))
	return err
}

// WriteEvent writes a system event
func (p *PlainTextFormatter) WriteEvent(eventType, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintf(p.writer, "[%s] [%s] %s\n", time.Now().Format("15:04:05"), eventType, message)
	return err
}

// Close is a no-op
func (p *PlainTextFormatter) Close() error {
	return nil
}
