package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lasersoldier/Turtle-Soup/internal/logging"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// brokenSnapshots fails every write.
type brokenSnapshots struct {
	store.SnapshotStore
}

func (brokenSnapshots) Save(context.Context, string, models.Snapshot) error {
	return errors.New("disk full")
}

func newTestManager(t *testing.T, p models.Puzzle, o oracle.Oracle, snaps store.SnapshotStore) (*Manager, *store.Memory, *recordingPublisher) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.Upsert(context.Background(), p.Language, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if snaps == nil {
		snaps = mem
	}
	pub := &recordingPublisher{}
	m := NewManager(mem, snaps, o, logging.Discard(), WithPublisher(pub))
	return m, mem, pub
}

func TestManagerSavesAfterEveryChange(t *testing.T) {
	ctx := context.Background()
	p := challengePuzzle(3)
	m, mem, _ := newTestManager(t, p, &scriptedOracle{}, nil)
	key := models.SnapshotKey(p.Language, p.ID)

	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	snap, err := mem.Load(ctx, key)
	if err != nil {
		t.Fatalf("No snapshot after start: %v", err)
	}
	if snap.Status != models.StatusPlaying {
		t.Errorf("Expected PLAYING snapshot, got %s", snap.Status)
	}

	if _, err := m.Ask(ctx, p.Language, p.ID, "Is he alive?"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	snap, _ = mem.Load(ctx, key)
	if len(snap.Transcript) != 3 || *snap.QuestionsRemaining != 2 {
		t.Errorf("Snapshot not updated after ask: %d turns, %v remaining", len(snap.Transcript), snap.QuestionsRemaining)
	}
	if snap.QuestionsUsed != 1 {
		t.Errorf("Expected 1 question used, got %d", snap.QuestionsUsed)
	}

	if _, err := m.Restart(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if _, err := mem.Load(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected snapshot cleared after restart, got %v", err)
	}
}

func TestManagerResumesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	p := casualPuzzle(1)
	o := &scriptedOracle{replies: []oracle.Judgment{judgeCleared()}}
	m, mem, _ := newTestManager(t, p, o, nil)

	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.Ask(ctx, p.Language, p.ID, "Hiccups?"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	// A new manager over the same stores picks up where the old one stopped.
	resumed := NewManager(mem, mem, o, logging.Discard())
	snap, err := resumed.State(ctx, p.Language, p.ID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if snap.Status != models.StatusPlaying || snap.CurrentStageIndex != 1 {
		t.Errorf("Expected PLAYING at stage 1, got %s at %d", snap.Status, snap.CurrentStageIndex)
	}
}

func TestManagerToleratesSaveFailure(t *testing.T) {
	ctx := context.Background()
	p := casualPuzzle(0)
	m, _, _ := newTestManager(t, p, &scriptedOracle{}, brokenSnapshots{store.NewMemory()})

	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start should survive a failed save: %v", err)
	}
	if _, err := m.Ask(ctx, p.Language, p.ID, "Is it raining?"); err != nil {
		t.Fatalf("Ask should survive a failed save: %v", err)
	}
	snap, err := m.State(ctx, p.Language, p.ID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if len(snap.Transcript) != 3 {
		t.Errorf("In-memory session should stay authoritative, got %d turns", len(snap.Transcript))
	}
}

func TestManagerWinEventsAndPlayedCount(t *testing.T) {
	ctx := context.Background()
	p := casualPuzzle(1)
	o := &scriptedOracle{replies: []oracle.Judgment{judgeCleared(), judgeCleared()}}
	m, mem, pub := newTestManager(t, p, o, nil)

	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for range 2 {
		if _, err := m.Ask(ctx, p.Language, p.ID, "Guess"); err != nil {
			t.Fatalf("Ask failed: %v", err)
		}
	}

	want := []EventType{EventStarted, EventAnswered, EventStageUnlocked, EventAnswered, EventWon}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	stored, err := mem.Get(ctx, p.Language, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.PlayedCount != 1 {
		t.Errorf("Expected played count 1, got %d", stored.PlayedCount)
	}
}

func TestManagerOracleFailureIsSaved(t *testing.T) {
	ctx := context.Background()
	p := challengePuzzle(3)
	m, mem, pub := newTestManager(t, p, &scriptedOracle{err: errors.New("503")}, nil)

	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := m.Ask(ctx, p.Language, p.ID, "Is he alive?"); !errors.Is(err, ErrOracleFailure) {
		t.Fatalf("Expected ErrOracleFailure, got %v", err)
	}

	snap, err := mem.Load(ctx, models.SnapshotKey(p.Language, p.ID))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *snap.QuestionsRemaining != 2 {
		t.Errorf("Expected the spent question to be saved, got %d", *snap.QuestionsRemaining)
	}
	if got := pub.types(); len(got) != 1 {
		t.Errorf("Failed ask should not publish, got %v", got)
	}
}

func TestManagerSkipAndUnknownPuzzle(t *testing.T) {
	ctx := context.Background()
	p := casualPuzzle(2)
	m, _, pub := newTestManager(t, p, &scriptedOracle{}, nil)

	if _, err := m.Skip(ctx, p.Language, p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition before start, got %v", err)
	}
	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	snap, err := m.Skip(ctx, p.Language, p.ID)
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if snap.CurrentStageIndex != 1 {
		t.Errorf("Expected stage 1, got %d", snap.CurrentStageIndex)
	}
	if got := pub.types(); got[len(got)-1] != EventStageUnlocked {
		t.Errorf("Expected stage_unlocked event, got %v", got)
	}

	if _, err := m.State(ctx, models.LanguageZH, p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound in the other partition, got %v", err)
	}
}

func TestManagerDiscard(t *testing.T) {
	ctx := context.Background()
	p := casualPuzzle(0)
	m, mem, _ := newTestManager(t, p, &scriptedOracle{}, nil)

	if _, err := m.Start(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Discard(ctx, p.Language, p.ID); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	snap, err := m.State(ctx, p.Language, p.ID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if snap.Status != models.StatusIdle {
		t.Errorf("Expected a fresh IDLE session, got %s", snap.Status)
	}
	if _, err := mem.Load(ctx, models.SnapshotKey(p.Language, p.ID)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected snapshot removed, got %v", err)
	}
}
