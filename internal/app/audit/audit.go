// Package audit keeps a bounded in-process record of administrative
// actions and failed side effects, optionally mirrored to a JSONL file.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Entry is one audited event.
type Entry struct {
	Time    time.Time `json:"time"`
	Actor   string    `json:"actor,omitempty"`
	Action  string    `json:"action"`
	Subject string    `json:"subject,omitempty"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
}

// Sink receives entries as they are recorded.
type Sink interface {
	Write(entry Entry) error
}

// Log is a bounded ring of recent entries.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	sink    Sink
}

// NewLog creates a log retaining at most max entries in memory.
func NewLog(max int, sink Sink) *Log {
	if max <= 0 {
		max = 200
	}
	return &Log{max: max, sink: sink}
}

// Record appends an entry, stamping the time when unset.
func (l *Log) Record(entry Entry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; ignore errors to avoid impacting the
		// recording path.
		_ = l.sink.Write(entry)
	}
}

// List returns up to limit most recent entries, newest last.
func (l *Log) List(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]Entry, limit)
	copy(out, l.entries[len(l.entries)-limit:])
	return out
}

// FileSink appends entries as JSONL.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the JSONL file at path.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Write(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
