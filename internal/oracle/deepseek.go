package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultDeepSeekModel   = "deepseek-chat"
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
)

// DeepSeek judges questions through an OpenAI-compatible chat completions API.
type DeepSeek struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

// NewDeepSeek returns the DeepSeek oracle. An empty model or base URL falls back
// to the public defaults.
func NewDeepSeek(apiKey, model, baseURL string, timeout time.Duration) *DeepSeek {
	if model == "" {
		model = defaultDeepSeekModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultDeepSeekBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &DeepSeek{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (d *DeepSeek) Ready() error {
	if d.APIKey == "" {
		return fmt.Errorf("%w: DEEPSEEK_API_KEY is not set", ErrConfiguration)
	}
	return nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (d *DeepSeek) Judge(ctx context.Context, req Request) (Judgment, error) {
	if err := d.Ready(); err != nil {
		return Judgment{}, err
	}

	instruction, err := SystemInstruction(req)
	if err != nil {
		return Judgment{}, err
	}

	body := chatRequest{
		Model:       d.Model,
		Messages:    append([]Message{{Role: "system", Content: instruction}}, Conversation(req.History, req.Question)...),
		Temperature: 0.7,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Judgment{}, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(d.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return Judgment{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTP.Do(httpReq)
	if err != nil {
		return Judgment{}, fmt.Errorf("deepseek request failed: %w", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Judgment{}, fmt.Errorf("read response: %w", err)
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(respRaw, &decoded)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && decoded.Error != nil {
			return Judgment{}, fmt.Errorf("deepseek http %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return Judgment{}, fmt.Errorf("deepseek http %d: %s", resp.StatusCode, string(respRaw))
	}
	if decodeErr != nil {
		return Judgment{}, fmt.Errorf("unmarshal response: %w", decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return Judgment{}, fmt.Errorf("deepseek response missing choices")
	}
	return ParseReply(decoded.Choices[0].Message.Content), nil
}
