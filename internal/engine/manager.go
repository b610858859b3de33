package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lasersoldier/Turtle-Soup/internal/metrics"
	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
	"github.com/lasersoldier/Turtle-Soup/internal/store"
)

// EventType names a change in a game.
type EventType string

const (
	EventStarted       EventType = "started"
	EventAnswered      EventType = "answered"
	EventStageUnlocked EventType = "stage_unlocked"
	EventWon           EventType = "won"
	EventLost          EventType = "lost"
	EventRestarted     EventType = "restarted"
)

// Event is published after a game changes.
type Event struct {
	Type       EventType       `json:"type"`
	Language   models.Language `json:"language"`
	PuzzleID   string          `json:"puzzleId"`
	StageIndex int             `json:"stageIndex"`
	Status     models.Status   `json:"status"`
}

// Key identifies the game the event belongs to.
func (e Event) Key() string {
	return models.SnapshotKey(e.Language, e.PuzzleID)
}

// Publisher receives game events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.pub = p }
}

// WithSessionOptions passes options to every session the manager creates.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.sessionOpts = append(m.sessionOpts, opts...) }
}

// Manager owns the live sessions, one per puzzle and language, and saves each
// session's snapshot after every change.
type Manager struct {
	puzzles     store.PuzzleStore
	snapshots   store.SnapshotStore
	oracle      oracle.Oracle
	logger      *slog.Logger
	pub         Publisher
	sessionOpts []Option

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(puzzles store.PuzzleStore, snapshots store.SnapshotStore, o oracle.Oracle, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		puzzles:   puzzles,
		snapshots: snapshots,
		oracle:    instrumented{Oracle: o},
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns the live session for a puzzle, restoring it from its snapshot
// on first use.
func (m *Manager) Open(ctx context.Context, lang models.Language, puzzleID string) (*Session, error) {
	key := models.SnapshotKey(lang, puzzleID)

	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if s, ok := m.sessions[key]; ok {
		return s, nil
	}

	p, err := m.puzzles.Get(ctx, lang, puzzleID)
	if err != nil {
		return nil, err
	}

	var restored *models.Snapshot
	snap, err := m.snapshots.Load(ctx, key)
	switch {
	case err == nil:
		restored = &snap
	case !errors.Is(err, store.ErrNotFound):
		m.logger.Warn("discarding unreadable snapshot", "key", key, "error", err)
	}

	s = NewSession(p, m.oracle, restored, m.sessionOpts...)
	m.sessions[key] = s
	return s, nil
}

// State returns the current snapshot of a game without changing it.
func (m *Manager) State(ctx context.Context, lang models.Language, puzzleID string) (models.Snapshot, error) {
	s, err := m.Open(ctx, lang, puzzleID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (m *Manager) Start(ctx context.Context, lang models.Language, puzzleID string) (models.Snapshot, error) {
	s, err := m.Open(ctx, lang, puzzleID)
	if err != nil {
		return models.Snapshot{}, err
	}
	if err := s.Start(ctx); err != nil {
		return s.Snapshot(), err
	}

	snap := m.save(ctx, s)
	m.publish(EventStarted, snap)
	m.logger.Info("game started", "key", models.SnapshotKey(lang, puzzleID))
	return snap, nil
}

// Ask forwards a question to the session and records the result. A failed
// oracle call is still saved, since the question was spent.
func (m *Manager) Ask(ctx context.Context, lang models.Language, puzzleID, question string) (Outcome, error) {
	s, err := m.Open(ctx, lang, puzzleID)
	if err != nil {
		return Outcome{}, err
	}

	out, err := s.Ask(ctx, question)
	if err != nil && !errors.Is(err, ErrOracleFailure) {
		return out, err
	}

	snap := m.save(ctx, s)
	if err != nil {
		m.logger.Warn("oracle call failed", "key", models.SnapshotKey(lang, puzzleID), "error", err)
		return out, err
	}

	m.publish(EventAnswered, snap)
	if out.Unlocked {
		metrics.StagesUnlocked.WithLabelValues(string(lang), "cleared").Inc()
		m.publish(EventStageUnlocked, snap)
	}

	if out.Ended {
		m.finish(snap)
		if out.Status == models.StatusWon {
			m.recordWin(ctx, lang, puzzleID)
		}
	}
	return out, nil
}

// Skip unlocks the next stage of a non-challenge game.
func (m *Manager) Skip(ctx context.Context, lang models.Language, puzzleID string) (models.Snapshot, error) {
	s, err := m.Open(ctx, lang, puzzleID)
	if err != nil {
		return models.Snapshot{}, err
	}
	if err := s.SkipToNextStage(); err != nil {
		return s.Snapshot(), err
	}

	snap := m.save(ctx, s)
	metrics.StagesUnlocked.WithLabelValues(string(lang), "skipped").Inc()
	m.publish(EventStageUnlocked, snap)
	return snap, nil
}

// Restart resets a game to IDLE and clears its saved snapshot.
func (m *Manager) Restart(ctx context.Context, lang models.Language, puzzleID string) (models.Snapshot, error) {
	s, err := m.Open(ctx, lang, puzzleID)
	if err != nil {
		return models.Snapshot{}, err
	}
	s.Restart()

	key := models.SnapshotKey(lang, puzzleID)
	if err := m.snapshots.Clear(context.WithoutCancel(ctx), key); err != nil {
		m.logger.Warn("clearing snapshot failed", "key", key, "error", err)
	}
	snap := s.Snapshot()
	m.publish(EventRestarted, snap)
	return snap, nil
}

// Discard drops the live session and its snapshot, for example after the
// puzzle was edited or deleted.
func (m *Manager) Discard(ctx context.Context, lang models.Language, puzzleID string) error {
	key := models.SnapshotKey(lang, puzzleID)

	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	return m.snapshots.Clear(ctx, key)
}

// save persists the session. Failures are logged and the in-memory session
// stays authoritative.
func (m *Manager) save(ctx context.Context, s *Session) models.Snapshot {
	snap := s.Snapshot()
	key := models.SnapshotKey(snap.Language, snap.PuzzleID)
	if err := m.snapshots.Save(context.WithoutCancel(ctx), key, snap); err != nil {
		m.logger.Warn("saving snapshot failed", "key", key, "error", err)
	}
	return snap
}

func (m *Manager) finish(snap models.Snapshot) {
	metrics.GamesFinished.WithLabelValues(string(snap.Language), string(snap.Status)).Inc()
	if snap.Status == models.StatusWon {
		m.publish(EventWon, snap)
	} else {
		m.publish(EventLost, snap)
	}
	m.logger.Info("game finished",
		"key", models.SnapshotKey(snap.Language, snap.PuzzleID),
		"status", snap.Status,
		"questions_used", snap.QuestionsUsed,
	)
}

func (m *Manager) recordWin(ctx context.Context, lang models.Language, puzzleID string) {
	ctx = context.WithoutCancel(ctx)
	p, err := m.puzzles.Get(ctx, lang, puzzleID)
	if err == nil {
		p.PlayedCount++
		err = m.puzzles.Upsert(ctx, lang, p)
	}
	if err != nil {
		m.logger.Warn("updating played count failed", "puzzle", puzzleID, "error", err)
	}
}

func (m *Manager) publish(t EventType, snap models.Snapshot) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(Event{
		Type:       t,
		Language:   snap.Language,
		PuzzleID:   snap.PuzzleID,
		StageIndex: snap.CurrentStageIndex,
		Status:     snap.Status,
	})
}

// instrumented records oracle traffic.
type instrumented struct {
	oracle.Oracle
}

func (o instrumented) Judge(ctx context.Context, req oracle.Request) (oracle.Judgment, error) {
	lang := string(req.Language)
	start := time.Now()
	j, err := o.Oracle.Judge(ctx, req)

	metrics.QuestionsAsked.WithLabelValues(lang).Inc()
	metrics.OracleDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OracleFailures.WithLabelValues(lang).Inc()
	}
	return j, err
}
