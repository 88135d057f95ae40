package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLogBoundsEntries(t *testing.T) {
	l := NewLog(3, nil)
	for i := 0; i < 5; i++ {
		l.Record(Entry{Action: fmt.Sprintf("action-%d", i), Outcome: "ok"})
	}

	entries := l.List(0)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Action != "action-2" || entries[2].Action != "action-4" {
		t.Fatalf("wrong window: %+v", entries)
	}
	if entries[0].Time.IsZero() {
		t.Fatalf("time not stamped")
	}
}

func TestListLimit(t *testing.T) {
	l := NewLog(10, nil)
	for i := 0; i < 5; i++ {
		l.Record(Entry{Action: fmt.Sprintf("action-%d", i), Outcome: "ok"})
	}

	got := l.List(2)
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[1].Action != "action-4" {
		t.Fatalf("newest entry = %s", got[1].Action)
	}
	if len(l.List(100)) != 5 {
		t.Fatalf("oversized limit should return all entries")
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer sink.Close()

	l := NewLog(10, sink)
	l.Record(Entry{Actor: "admin-1", Action: "asset.approve", Subject: "a1", Outcome: "ok"})
	l.Record(Entry{Actor: "admin-1", Action: "email.send", Subject: "a1", Outcome: "failed", Detail: "smtp down"})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, e)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[1].Detail != "smtp down" {
		t.Fatalf("detail = %q", lines[1].Detail)
	}
}

func TestNilFileSinkPath(t *testing.T) {
	sink, err := NewFileSink("")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if sink != nil {
		t.Fatalf("expected nil sink for empty path")
	}
}
