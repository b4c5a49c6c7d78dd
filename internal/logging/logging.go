// Package logging is the small message-collector esbuild's own
// internal/logger exposes (Msg/Log, AddError/AddWarning, HasErrors),
// rebuilt on top of github.com/sirupsen/logrus instead of esbuild's
// bespoke formatter — see SPEC_FULL.md §1 and DESIGN.md for why.
package logging

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Msg is one collected diagnostic, spec.md §7's error/warning shape:
// enough context (a location string, usually a referring file) to be
// human-formatted.
type Msg struct {
	Level   Level
	Text    string
	Context string // usually a file or directory path
}

// Log collects messages for one bundler run and mirrors them to logrus
// as they arrive, tagged with a per-run correlation id so interleaved
// watch-mode rebuilds can be told apart in the terminal.
type Log struct {
	RunID string

	mu       sync.Mutex
	messages []Msg
	entry    *logrus.Entry
}

// New creates a Log for one bundle/re-bundle run.
func New() *Log {
	runID := uuid.NewString()
	return &Log{
		RunID: runID,
		entry: logrus.WithField("run", runID),
	}
}

func (l *Log) AddError(context, format string, args ...interface{}) {
	l.add(Msg{Level: LevelError, Text: fmt.Sprintf(format, args...), Context: context})
}

func (l *Log) AddWarning(context, format string, args ...interface{}) {
	l.add(Msg{Level: LevelWarning, Text: fmt.Sprintf(format, args...), Context: context})
}

func (l *Log) AddInfo(context, format string, args ...interface{}) {
	l.add(Msg{Level: LevelInfo, Text: fmt.Sprintf(format, args...), Context: context})
}

func (l *Log) add(msg Msg) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()

	fields := logrus.Fields{}
	if msg.Context != "" {
		fields["context"] = msg.Context
	}
	entry := l.entry.WithFields(fields)
	switch msg.Level {
	case LevelError:
		entry.Error(msg.Text)
	case LevelWarning:
		entry.Warn(msg.Text)
	default:
		entry.Info(msg.Text)
	}
}

// HasErrors reports whether any LevelError message has been recorded.
func (l *Log) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m.Level == LevelError {
			return true
		}
	}
	return false
}

// Messages returns a snapshot of everything recorded so far.
func (l *Log) Messages() []Msg {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Msg(nil), l.messages...)
}
