package models

import (
	"strings"
	"time"
)

// Language is the partition tag a puzzle belongs to.
type Language string

const (
	LanguageEN Language = "en"
	LanguageZH Language = "zh"
)

// ParseLanguage maps a locale tag onto a supported partition, defaulting to English.
func ParseLanguage(tag string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "en", "en-us", "en-gb", "":
		return LanguageEN, true
	case "zh", "zh-cn", "zh-hans":
		return LanguageZH, true
	}
	return LanguageEN, false
}

// Stage represents one unlockable part of a multi-stage puzzle.
type Stage struct {
	Content      string `yaml:"content" json:"content"`                                 // scenario revealed on unlock
	Truth        string `yaml:"truth" json:"truth"`                                     // what the oracle judges against
	MaxQuestions *int   `yaml:"max_questions,omitempty" json:"maxQuestions,omitempty"` // challenge-mode override
}

// Puzzle represents a riddle: the base scenario and truth plus any later stages.
type Puzzle struct {
	ID           string    `yaml:"id" json:"id"`
	Title        string    `yaml:"title" json:"title"`
	Scenario     string    `yaml:"scenario" json:"scenario"`
	Truth        string    `yaml:"truth" json:"truth"`
	IsChallenge  bool      `yaml:"is_challenge" json:"isChallenge"`
	MaxQuestions *int      `yaml:"max_questions,omitempty" json:"maxQuestions,omitempty"`
	Persona      string    `yaml:"persona,omitempty" json:"persona,omitempty"`
	Stages       []Stage   `yaml:"stages,omitempty" json:"stages,omitempty"`
	Language     Language  `yaml:"language" json:"language"`
	PlayedCount  int       `yaml:"played_count" json:"playedCount"`
	CreatedAt    time.Time `yaml:"created_at" json:"createdAt"`
}

// TotalStages counts the base puzzle as stage 0.
func (p Puzzle) TotalStages() int {
	return 1 + len(p.Stages)
}

// StageAt returns the scenario and truth for stage i. Index 0 is the base puzzle.
func (p Puzzle) StageAt(i int) (scenario, truth string) {
	if i <= 0 || i > len(p.Stages) {
		return p.Scenario, p.Truth
	}
	s := p.Stages[i-1]
	return s.Content, s.Truth
}

// BudgetAt returns the question budget stage i defines for itself, or nil.
// Budgets only exist in challenge mode.
func (p Puzzle) BudgetAt(i int) *int {
	if !p.IsChallenge {
		return nil
	}
	if i == 0 {
		return copyInt(p.MaxQuestions)
	}
	if i < 0 || i > len(p.Stages) {
		return nil
	}
	return copyInt(p.Stages[i-1].MaxQuestions)
}

// EffectiveBudget returns the budget in force at stage i. A stage without its own
// budget keeps counting against the most recent one.
func (p Puzzle) EffectiveBudget(i int) *int {
	for ; i >= 0; i-- {
		if b := p.BudgetAt(i); b != nil {
			return b
		}
	}
	return nil
}

// Role identifies who produced a transcript turn.
type Role string

const (
	RolePlayer Role = "player"
	RoleOracle Role = "oracle"
	RoleSystem Role = "system"
)

// Turn is a single entry in the game transcript.
type Turn struct {
	Role      Role      `yaml:"role" json:"role"`
	Text      string    `yaml:"text" json:"text"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// Status is the lifecycle state of a game session.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusPlaying Status = "PLAYING"
	StatusWon     Status = "WON"
	StatusLost    Status = "LOST"
)

// Terminal reports whether the status only changes on restart.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusPlaying, StatusWon, StatusLost:
		return true
	}
	return false
}

// Snapshot is the persisted form of a game session.
type Snapshot struct {
	PuzzleID           string    `yaml:"puzzle_id" json:"puzzleId"`
	Language           Language  `yaml:"language" json:"language"`
	Status             Status    `yaml:"status" json:"status"`
	CurrentStageIndex  int       `yaml:"current_stage_index" json:"currentStageIndex"`
	Transcript         []Turn    `yaml:"transcript" json:"transcript"`
	QuestionsRemaining *int      `yaml:"questions_remaining" json:"questionsRemaining"`
	QuestionsUsed      int       `yaml:"questions_used" json:"questionsUsed"` // derived, for stats only
	UpdatedAt          time.Time `yaml:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Transcript = append([]Turn(nil), s.Transcript...)
	c.QuestionsRemaining = copyInt(s.QuestionsRemaining)
	return c
}

// SnapshotKey identifies a session snapshot across language partitions.
func SnapshotKey(lang Language, puzzleID string) string {
	return string(lang) + ":" + puzzleID
}

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
