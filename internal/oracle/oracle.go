// Package oracle judges player questions against the truth of the current stage.
//
// Every strategy reports a cleared stage through the same in-band marker, which
// ParseReply strips before a reply reaches the transcript.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// StageClearedMarker is the token a host emits when the player has reconstructed
// the truth of the current stage.
const StageClearedMarker = "[[STAGE_CLEARED]]"

// ErrConfiguration marks an oracle that cannot be called at all, for example
// because its API key is missing. It is never a transient failure.
var ErrConfiguration = errors.New("oracle not configured")

// Request is everything an oracle needs to judge one question.
type Request struct {
	Question   string
	History    []models.Turn // transcript before Question was asked
	Scenario   string
	Truth      string
	Persona    string
	StageIndex int
	FinalStage bool
	Language   models.Language
}

// Judgment is a judged reply with the marker already removed.
type Judgment struct {
	Reply   string
	Cleared bool
}

// Oracle is the port the engine consults for every question.
type Oracle interface {
	// Ready returns an error wrapping ErrConfiguration when Judge cannot succeed.
	Ready() error
	Judge(ctx context.Context, req Request) (Judgment, error)
}

// Message is a role-mapped conversation entry as model APIs expect it.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation maps a transcript onto user/assistant messages and appends the
// new question once. System turns are never sent.
func Conversation(history []models.Turn, question string) []Message {
	msgs := make([]Message, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case models.RolePlayer:
			msgs = append(msgs, Message{Role: "user", Content: t.Text})
		case models.RoleOracle:
			msgs = append(msgs, Message{Role: "assistant", Content: t.Text})
		}
	}
	return append(msgs, Message{Role: "user", Content: question})
}

// ParseReply detects and strips the stage-cleared marker.
func ParseReply(raw string) Judgment {
	cleared := strings.Contains(raw, StageClearedMarker)
	reply := strings.ReplaceAll(raw, StageClearedMarker, "")
	return Judgment{Reply: strings.TrimSpace(reply), Cleared: cleared}
}

// Provider names a judging strategy.
type Provider string

const (
	ProviderOffline  Provider = "offline"
	ProviderGemini   Provider = "gemini"
	ProviderDeepSeek Provider = "deepseek"
)

// Config selects and configures a strategy.
type Config struct {
	Provider        Provider
	GeminiAPIKey    string
	GeminiModel     string
	DeepSeekAPIKey  string
	DeepSeekModel   string
	DeepSeekBaseURL string
	Timeout         time.Duration
	RatePerMinute   int
	RevealKeywords  []string
}

// New builds the oracle named by cfg.Provider. A missing credential does not fail
// here; the returned oracle reports it from Ready so the game can still be browsed.
func New(ctx context.Context, cfg Config) (Oracle, error) {
	var o Oracle
	switch cfg.Provider {
	case ProviderOffline, "":
		o = NewOffline(cfg.RevealKeywords...)
	case ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		o = g
	case ProviderDeepSeek:
		o = NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekBaseURL, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, cfg.Provider)
	}

	if cfg.RatePerMinute > 0 {
		limit := rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		o = RateLimited(o, rate.NewLimiter(limit, 1))
	}
	return o, nil
}

// Close releases resources held by o, if any.
func Close(o Oracle) error {
	if c, ok := o.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
