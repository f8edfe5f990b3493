package widget

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/popkit/popkit/internal/model"
)

func newTestCache(t *testing.T) *CacheStore {
	t.Helper()
	cs, err := OpenCacheStore(filepath.Join(t.TempDir(), "widget.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func testSnapshot(fetchedAt time.Time) *FallbackCache {
	return &FallbackCache{
		SiteID: "site-1",
		Events: []*model.Event{
			{ID: "ev-1", SiteID: "site-1", EventType: "signup"},
			{ID: "ev-2", SiteID: "site-1", EventType: "purchase"},
		},
		FetchedAt:      fetchedAt,
		LastShownIndex: -1,
	}
}

func TestCacheStore_SaveAndLoad(t *testing.T) {
	cs := newTestCache(t)

	if err := cs.Save("sk-abc", testSnapshot(time.Now().UTC())); err != nil {
		t.Fatalf("saving: %v", err)
	}

	got, err := cs.Load("sk-abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got miss")
	}
	if got.SiteID != "site-1" || len(got.Events) != 2 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Events[0].ID != "ev-1" {
		t.Fatalf("expected event order preserved, got %q", got.Events[0].ID)
	}
	if got.LastShownIndex != -1 {
		t.Fatalf("expected last shown index -1, got %d", got.LastShownIndex)
	}
}

func TestCacheStore_MissForUnknownKey(t *testing.T) {
	cs := newTestCache(t)

	got, err := cs.Load("never-saved")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func TestCacheStore_PrefixedKeysShareRecord(t *testing.T) {
	cs := newTestCache(t)

	if err := cs.Save("site_sk-abc", testSnapshot(time.Now().UTC())); err != nil {
		t.Fatalf("saving: %v", err)
	}
	got, err := cs.Load("sk-abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got == nil {
		t.Fatal("expected bare key to find prefixed save")
	}
}

func TestCacheStore_Staleness(t *testing.T) {
	cs := newTestCache(t)

	fetchedAt := time.Now().UTC().Add(-time.Hour)
	if err := cs.Save("sk-abc", testSnapshot(fetchedAt)); err != nil {
		t.Fatalf("saving: %v", err)
	}

	// Just inside the retention window: hit.
	cs.now = func() time.Time { return fetchedAt.Add(cacheRetention - time.Millisecond) }
	got, err := cs.Load("sk-abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got == nil {
		t.Fatal("expected hit just inside retention")
	}

	// Exactly at the boundary: miss.
	cs.now = func() time.Time { return fetchedAt.Add(cacheRetention) }
	got, err = cs.Load("sk-abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got != nil {
		t.Fatal("expected miss at retention boundary")
	}
}

func TestCacheStore_SetLastShownIndex(t *testing.T) {
	cs := newTestCache(t)

	if err := cs.Save("sk-abc", testSnapshot(time.Now().UTC())); err != nil {
		t.Fatalf("saving: %v", err)
	}
	if err := cs.SetLastShownIndex("sk-abc", 1); err != nil {
		t.Fatalf("setting index: %v", err)
	}

	got, err := cs.Load("sk-abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got.LastShownIndex != 1 {
		t.Fatalf("expected index 1, got %d", got.LastShownIndex)
	}
	// Events untouched by the index write.
	if len(got.Events) != 2 {
		t.Fatalf("expected events preserved, got %d", len(got.Events))
	}
}

func TestCacheStore_SetLastShownIndexWithoutSnapshot(t *testing.T) {
	cs := newTestCache(t)

	if err := cs.SetLastShownIndex("sk-abc", 3); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestCacheStore_IndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "widget.db")

	cs, err := OpenCacheStore(path)
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	if err := cs.Save("sk-abc", testSnapshot(time.Now().UTC())); err != nil {
		t.Fatalf("saving: %v", err)
	}
	if err := cs.SetLastShownIndex("sk-abc", 0); err != nil {
		t.Fatalf("setting index: %v", err)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	reopened, err := OpenCacheStore(path)
	if err != nil {
		t.Fatalf("reopening cache: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load("sk-abc")
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if got == nil || got.LastShownIndex != 0 {
		t.Fatalf("expected index to survive reopen, got %+v", got)
	}
}
