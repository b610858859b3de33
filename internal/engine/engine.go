// Package engine drives a single puzzle through its stages: it asks the oracle,
// spends the question budget, unlocks stages and decides win or loss.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
	"github.com/lasersoldier/Turtle-Soup/internal/oracle"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the
	// session's current status.
	ErrInvalidTransition = errors.New("invalid transition")
	ErrEmptyQuestion     = errors.New("question is empty")
	// ErrOracleFailure wraps a failed judge call. The player turn and any spent
	// question stay recorded.
	ErrOracleFailure = errors.New("oracle failure")
)

// Outcome describes what a single Ask did to the session.
type Outcome struct {
	Reply              string        `json:"reply"`
	Cleared            bool          `json:"cleared"`
	Unlocked           bool          `json:"unlocked"`
	BudgetExhausted    bool          `json:"budgetExhausted"`
	Ended              bool          `json:"ended"` // this call moved the game to WON or LOST
	Status             models.Status `json:"status"`
	StageIndex         int           `json:"stageIndex"`
	QuestionsRemaining *int          `json:"questionsRemaining"`
}

// Stats summarizes a session for display.
type Stats struct {
	Status             models.Status
	StageIndex         int
	TotalStages        int
	QuestionsUsed      int
	QuestionsRemaining *int
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the state machine for one player on one puzzle. All methods are
// safe for concurrent use. Mutations are serialized by opMu, which Ask holds
// across the oracle call; mu only guards state, so reads never wait on the oracle.
type Session struct {
	opMu   sync.Mutex
	mu     sync.Mutex
	puzzle models.Puzzle
	oracle oracle.Oracle
	now    func() time.Time
	state  models.Snapshot
}

// NewSession creates a session for p. A nil snapshot starts a fresh IDLE game;
// otherwise the snapshot is restored after being clamped to the puzzle's shape.
func NewSession(p models.Puzzle, o oracle.Oracle, snap *models.Snapshot, opts ...Option) *Session {
	s := &Session{puzzle: p, oracle: o, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if snap == nil {
		s.state = s.fresh()
	} else {
		s.state = s.restore(snap.Clone())
	}
	return s
}

func (s *Session) fresh() models.Snapshot {
	return models.Snapshot{
		PuzzleID:           s.puzzle.ID,
		Language:           s.puzzle.Language,
		Status:             models.StatusIdle,
		QuestionsRemaining: s.puzzle.BudgetAt(0),
		UpdatedAt:          s.now(),
	}
}

func (s *Session) restore(snap models.Snapshot) models.Snapshot {
	snap.PuzzleID = s.puzzle.ID
	snap.Language = s.puzzle.Language
	if !snap.Status.Valid() {
		snap.Status = models.StatusIdle
	}

	last := s.puzzle.TotalStages() - 1
	if snap.CurrentStageIndex < 0 {
		snap.CurrentStageIndex = 0
	}
	if snap.CurrentStageIndex > last || snap.Status == models.StatusWon {
		snap.CurrentStageIndex = last
	}

	switch {
	case !s.puzzle.IsChallenge:
		snap.QuestionsRemaining = nil
	case snap.Status == models.StatusIdle:
		snap.QuestionsRemaining = s.puzzle.BudgetAt(0)
	case snap.QuestionsRemaining == nil:
		// Older snapshots only stored questions used.
		if b := s.puzzle.EffectiveBudget(snap.CurrentStageIndex); b != nil {
			snap.QuestionsRemaining = models.Int(max(*b-snap.QuestionsUsed, 0))
		}
	}
	return snap
}

// Puzzle returns the puzzle this session plays.
func (s *Session) Puzzle() models.Puzzle {
	return s.puzzle
}

// Status returns the current lifecycle status.
func (s *Session) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// Start moves an IDLE session to PLAYING and greets the player with the base scenario.
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != models.StatusIdle {
		return fmt.Errorf("%w: cannot start a %s game", ErrInvalidTransition, s.state.Status)
	}
	if err := s.oracle.Ready(); err != nil {
		return err
	}

	if len(s.state.Transcript) == 0 {
		s.append(models.RoleOracle, s.puzzle.Scenario)
	}
	s.state.QuestionsRemaining = s.puzzle.BudgetAt(0)
	s.state.Status = models.StatusPlaying
	s.state.UpdatedAt = s.now()
	return nil
}

// Ask submits a question to the oracle and applies the result.
//
// A failed oracle call keeps the player turn and the spent question; the caller
// may retry. Running out of questions or clearing a stage is reported through
// the Outcome, not as an error. Asking again after the budget ran out hits the
// same gate and changes nothing.
func (s *Session) Ask(ctx context.Context, question string) (Outcome, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	req, out, done, err := s.prepareAsk(strings.TrimSpace(question))
	if done {
		return out, err
	}

	j, err := s.oracle.Judge(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state.UpdatedAt = s.now()
		return s.outcome(), fmt.Errorf("%w: %w", ErrOracleFailure, err)
	}

	s.append(models.RoleOracle, j.Reply)

	unlocked := false
	switch {
	case j.Cleared:
		unlocked = s.advance()
	case s.state.QuestionsRemaining != nil && *s.state.QuestionsRemaining <= 0:
		s.state.Status = models.StatusLost
	}
	s.state.UpdatedAt = s.now()

	out = s.outcome()
	out.Reply = j.Reply
	out.Cleared = j.Cleared
	out.Unlocked = unlocked
	out.BudgetExhausted = s.state.Status == models.StatusLost
	out.Ended = s.state.Status.Terminal()
	return out, nil
}

// prepareAsk runs the checks and the budget gate, then records the player turn
// and spends a question. done is true when Ask must return out and err without
// calling the oracle.
func (s *Session) prepareAsk(question string) (req oracle.Request, out Outcome, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status == models.StatusLost && s.budgetSpent() {
		out = s.outcome()
		out.BudgetExhausted = true
		return req, out, true, nil
	}
	if s.state.Status != models.StatusPlaying {
		return req, s.outcome(), true, fmt.Errorf("%w: cannot ask in a %s game", ErrInvalidTransition, s.state.Status)
	}
	if question == "" {
		return req, s.outcome(), true, ErrEmptyQuestion
	}
	if err := s.oracle.Ready(); err != nil {
		return req, s.outcome(), true, err
	}

	if s.budgetSpent() {
		s.state.Status = models.StatusLost
		s.state.UpdatedAt = s.now()
		out = s.outcome()
		out.BudgetExhausted = true
		out.Ended = true
		return req, out, true, nil
	}

	history := append([]models.Turn(nil), s.state.Transcript...)
	s.append(models.RolePlayer, question)
	if r := s.state.QuestionsRemaining; r != nil {
		*r--
	}

	idx := s.state.CurrentStageIndex
	scenario, truth := s.puzzle.StageAt(idx)
	return oracle.Request{
		Question:   question,
		History:    history,
		Scenario:   scenario,
		Truth:      truth,
		Persona:    s.puzzle.Persona,
		StageIndex: idx,
		FinalStage: idx == s.puzzle.TotalStages()-1,
		Language:   s.puzzle.Language,
	}, Outcome{}, false, nil
}

// SkipToNextStage unlocks the next stage without asking the oracle. Only
// non-challenge games with stages left may skip.
func (s *Session) SkipToNextStage() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Status != models.StatusPlaying {
		return fmt.Errorf("%w: cannot skip in a %s game", ErrInvalidTransition, s.state.Status)
	}
	if s.puzzle.IsChallenge {
		return fmt.Errorf("%w: challenge games cannot skip stages", ErrInvalidTransition)
	}
	if s.state.CurrentStageIndex >= s.puzzle.TotalStages()-1 {
		return fmt.Errorf("%w: no stage left to skip to", ErrInvalidTransition)
	}

	s.advance()
	s.state.UpdatedAt = s.now()
	return nil
}

// Restart discards all progress and returns the session to IDLE.
func (s *Session) Restart() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.fresh()
}

// Snapshot returns a copy of the session state suitable for persistence.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state.Clone()
	snap.QuestionsUsed = s.questionsUsed()
	return snap
}

// Stats returns display counters for the session.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var remaining *int
	if s.state.QuestionsRemaining != nil {
		remaining = models.Int(*s.state.QuestionsRemaining)
	}
	return Stats{
		Status:             s.state.Status,
		StageIndex:         s.state.CurrentStageIndex,
		TotalStages:        s.puzzle.TotalStages(),
		QuestionsUsed:      s.questionsUsed(),
		QuestionsRemaining: remaining,
	}
}

// advance unlocks the next stage, or wins the game from the last one. It reports
// whether a new stage was revealed.
func (s *Session) advance() bool {
	next := s.state.CurrentStageIndex + 1
	if next >= s.puzzle.TotalStages() {
		s.state.Status = models.StatusWon
		s.state.CurrentStageIndex = s.puzzle.TotalStages() - 1
		return false
	}

	s.state.CurrentStageIndex = next
	content, _ := s.puzzle.StageAt(next)
	s.append(models.RoleSystem, unlockText(s.puzzle.Language, next, content))

	// Only a stage with its own budget resets the counter.
	if b := s.puzzle.BudgetAt(next); b != nil {
		s.state.QuestionsRemaining = b
	}
	return true
}

func (s *Session) append(role models.Role, text string) {
	s.state.Transcript = append(s.state.Transcript, models.Turn{
		Role:      role,
		Text:      text,
		Timestamp: s.now(),
	})
}

func (s *Session) outcome() Outcome {
	var remaining *int
	if s.state.QuestionsRemaining != nil {
		remaining = models.Int(*s.state.QuestionsRemaining)
	}
	return Outcome{
		Status:             s.state.Status,
		StageIndex:         s.state.CurrentStageIndex,
		QuestionsRemaining: remaining,
	}
}

func (s *Session) budgetSpent() bool {
	r := s.state.QuestionsRemaining
	return r != nil && *r <= 0
}

func (s *Session) questionsUsed() int {
	if r := s.state.QuestionsRemaining; r != nil {
		if b := s.puzzle.EffectiveBudget(s.state.CurrentStageIndex); b != nil {
			return max(*b-*r, 0)
		}
	}
	n := 0
	for _, t := range s.state.Transcript {
		if t.Role == models.RolePlayer {
			n++
		}
	}
	return n
}

func unlockText(lang models.Language, index int, content string) string {
	if lang == models.LanguageZH {
		return fmt.Sprintf("🔓 第 %d 阶段已解锁\n%s", index+1, content)
	}
	return fmt.Sprintf("🔓 Stage %d unlocked\n%s", index+1, content)
}
