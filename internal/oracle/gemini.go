package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultTimeout     = 60 * time.Second
)

// Gemini judges questions with a Gemini model. Each call starts a fresh chat so
// the system instruction always matches the current stage.
type Gemini struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
	send      func(context.Context, *genai.ChatSession, string) (*genai.GenerateContentResponse, error)
}

func sendMessage(ctx context.Context, cs *genai.ChatSession, question string) (*genai.GenerateContentResponse, error) {
	return cs.SendMessage(ctx, genai.Text(question))
}

// NewGemini creates the Gemini oracle. An empty apiKey yields an oracle whose
// Ready reports ErrConfiguration.
func NewGemini(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*Gemini, error) {
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	g := &Gemini{modelName: modelName, timeout: timeout, send: sendMessage}
	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Ready() error {
	if g.client == nil {
		return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrConfiguration)
	}
	return nil
}

func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Gemini) Judge(ctx context.Context, req Request) (Judgment, error) {
	if err := g.Ready(); err != nil {
		return Judgment{}, err
	}

	instruction, err := SystemInstruction(req)
	if err != nil {
		return Judgment{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}
	model.SetTemperature(0.7)

	cs := model.StartChat()
	cs.History = geminiHistory(Conversation(req.History, req.Question))

	resp, err := g.send(ctx, cs, req.Question)
	if err != nil {
		return Judgment{}, err
	}

	text, err := responseText(resp)
	if err != nil {
		return Judgment{}, err
	}
	return ParseReply(text), nil
}

// geminiHistory converts everything but the trailing question into chat history.
// Gemini expects the history to open with a user turn, so a leading welcome turn
// is dropped; the system instruction already carries the scenario.
func geminiHistory(msgs []Message) []*genai.Content {
	msgs = msgs[:len(msgs)-1]
	for len(msgs) > 0 && msgs[0].Role != "user" {
		msgs = msgs[1:]
	}

	history := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return b.String(), nil
}
