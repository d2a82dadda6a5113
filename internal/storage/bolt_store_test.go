package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

func newTestStore(t *testing.T, opts Options) Store {
	t.Helper()
	store, err := openBolt(filepath.Join(t.TempDir(), "test.db"), opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleProspect(taskID string) *domain.Prospect {
	return &domain.Prospect{
		TaskID: taskID,
		Source: "twitter",
		Data: map[string]any{
			"basic_info": map[string]any{"username": "jane", "name": "Jane"},
		},
		Validation: domain.ValidationResult{IsValid: true},
		Score: domain.ProspectScoreResult{
			Composite: 0.42,
			Dimensions: domain.DimensionScores{
				AudienceQuality: 0.5,
			},
		},
		ScoredAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndLoadProspect(t *testing.T) {
	store := newTestStore(t, Options{TTL: time.Hour, CleanupInterval: time.Hour})

	want := sampleProspect("task-1")
	if err := store.SaveProspect(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Prospect("task-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("prospect not found")
	}
	if got.TaskID != want.TaskID || got.Source != want.Source {
		t.Fatalf("mismatched prospect: %+v", got)
	}
	if got.Score.Composite != want.Score.Composite {
		t.Fatalf("score lost: got %v, want %v", got.Score.Composite, want.Score.Composite)
	}
}

func TestProspectMissing(t *testing.T) {
	store := newTestStore(t, Options{TTL: time.Hour, CleanupInterval: time.Hour})

	_, ok, err := store.Prospect("nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expected missing prospect")
	}
}

func TestExpiredProspectIsDroppedOnRead(t *testing.T) {
	store := newTestStore(t, Options{TTL: -time.Hour, CleanupInterval: time.Hour})

	if err := store.SaveProspect(sampleProspect("task-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, ok, err := store.Prospect("task-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expired prospect should be gone")
	}
}

func TestSeenTargetLifecycle(t *testing.T) {
	store := newTestStore(t, Options{TTL: time.Hour, CleanupInterval: time.Hour})

	seen, err := store.SeenTarget("twitter", "jane")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatal("target should be unseen initially")
	}

	if err := store.MarkTarget("twitter", "jane"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err = store.SeenTarget("twitter", "jane")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen {
		t.Fatal("target should be seen after mark")
	}

	// Same handle on another platform is a different target.
	seen, err = store.SeenTarget("linkedin", "jane")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatal("platforms must not share dedup state")
	}
}

func TestExpiredTargetIsUnseen(t *testing.T) {
	store := newTestStore(t, Options{TTL: -time.Hour, CleanupInterval: time.Hour})

	if err := store.MarkTarget("twitter", "jane"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, err := store.SeenTarget("twitter", "jane")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatal("expired target should be unseen")
	}
}

func TestNewStoreNoneIsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.SaveProspect(sampleProspect("task-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := store.Prospect("task-1"); ok {
		t.Fatal("noop store should never find anything")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatal("expected error for unsupported storage type")
	}
}
