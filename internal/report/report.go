// Package report is the single "show message to user" sink used for both
// errors and confirmations.
package report

import (
	"fmt"
	"sync"

	"github.com/lawnchairsociety/levelforge/internal/logger"
)

// Severity of a user-facing message.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Message is one entry shown to the user.
type Message struct {
	Severity Severity `json:"-"`
	Level    string   `json:"level"`
	Text     string   `json:"text"`
}

// Sink shows messages to the user.
type Sink interface {
	Show(msg Message)
}

// Infof shows an informational message.
func Infof(s Sink, format string, args ...any) {
	show(s, Info, format, args...)
}

// Warnf shows a warning.
func Warnf(s Sink, format string, args ...any) {
	show(s, Warning, format, args...)
}

// Errorf shows an error.
func Errorf(s Sink, format string, args ...any) {
	show(s, Error, format, args...)
}

func show(s Sink, sev Severity, format string, args ...any) {
	if s == nil {
		return
	}
	s.Show(Message{Severity: sev, Level: sev.String(), Text: fmt.Sprintf(format, args...)})
}

// LogSink writes messages to the process logger.
type LogSink struct{}

// Show logs msg at the level matching its severity.
func (LogSink) Show(msg Message) {
	switch msg.Severity {
	case Error:
		logger.Error(msg.Text)
	case Warning:
		logger.Warning(msg.Text)
	default:
		logger.Info(msg.Text)
	}
}

// Recorder keeps every message it is shown.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Show records msg.
func (r *Recorder) Show(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Count returns how many recorded messages have severity sev.
func (r *Recorder) Count(sev Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Severity == sev {
			n++
		}
	}
	return n
}

// Drain returns the recorded messages and forgets them.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}

// Multi fans a message out to several sinks.
type Multi []Sink

// Show forwards msg to every sink.
func (m Multi) Show(msg Message) {
	for _, s := range m {
		if s != nil {
			s.Show(msg)
		}
	}
}
