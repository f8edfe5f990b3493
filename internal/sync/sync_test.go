package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/popkit/popkit/internal/model"
	"github.com/popkit/popkit/internal/store"
)

// eventLogStore stubs store.Store with a fixed event log.
type eventLogStore struct {
	store.Store // panic on anything not overridden

	events []*model.Event
	err    error
}

func (s *eventLogStore) AllEvents(_ context.Context) ([]*model.Event, error) {
	return s.events, s.err
}

// captureDestination records every payload written to it.
type captureDestination struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (d *captureDestination) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.writes = append(d.writes, data)
	return nil
}

func (d *captureDestination) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func testEvents() []*model.Event {
	return []*model.Event{
		{ID: "ev-1", SiteID: "site-1", EventType: "signup", CreatedAt: time.Unix(100, 0).UTC()},
		{ID: "ev-2", SiteID: "site-1", EventType: "purchase", CreatedAt: time.Unix(200, 0).UTC()},
	}
}

func TestExportJSONL(t *testing.T) {
	var buf bytes.Buffer
	s := &eventLogStore{events: testEvents()}

	if err := ExportJSONL(context.Background(), s, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	scanner := bufio.NewScanner(&buf)

	if !scanner.Scan() {
		t.Fatal("missing header line")
	}
	var hdr header
	if err := json.Unmarshal(scanner.Bytes(), &hdr); err != nil {
		t.Fatalf("decoding header: %v", err)
	}
	if hdr.Type != "header" || hdr.Version != "1" {
		t.Fatalf("unexpected header: %+v", hdr)
	}
	if hdr.EventCount != 2 {
		t.Fatalf("expected event_count=2, got %d", hdr.EventCount)
	}

	var ids []string
	for scanner.Scan() {
		var rec struct {
			Type string      `json:"type"`
			Data model.Event `json:"data"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decoding record: %v", err)
		}
		if rec.Type != "event" {
			t.Fatalf("unexpected record type %q", rec.Type)
		}
		ids = append(ids, rec.Data.ID)
	}
	if len(ids) != 2 || ids[0] != "ev-1" || ids[1] != "ev-2" {
		t.Fatalf("unexpected event order: %v", ids)
	}
}

func TestExportJSONL_EmptyLog(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), &eventLogStore{}, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	if lines != 1 {
		t.Fatalf("expected header only, got %d lines", lines)
	}
}

func TestExportJSONL_StoreError(t *testing.T) {
	s := &eventLogStore{err: errors.New("db down")}
	if err := ExportJSONL(context.Background(), s, io.Discard); err == nil {
		t.Fatal("expected error")
	}
}

func TestScheduler_ExportsImmediately(t *testing.T) {
	dest := &captureDestination{}
	sched := NewScheduler(
		&eventLogStore{events: testEvents()},
		[]Destination{dest},
		time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for dest.writeCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no export before first tick")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScheduler_DestinationFailureIsNonFatal(t *testing.T) {
	failing := &captureDestination{err: errors.New("bucket gone")}
	working := &captureDestination{}
	sched := NewScheduler(
		&eventLogStore{events: testEvents()},
		[]Destination{failing, working},
		time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for working.writeCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("working destination never written")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
