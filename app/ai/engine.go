package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
)

const systemPrompt = "You are a news summarizer. Return ONLY valid JSON."

// Result is a successful enrichment: a one-paragraph summary and a keyword
// set, always produced together.
type Result struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Engine derives a summary and keyword set from article content through the
// external text-generation service. All calls, from the ingestion pipeline
// and the on-demand path alike, pass through one shared RateGate.
//
// Enrich never returns an error: a nil result means "no enrichment this
// time" and the caller carries on. Only a quota report from the service has
// a lasting effect (the gate latches shut).
type Engine struct {
	client           *Client
	gate             *RateGate
	minContentLength int
	maxPromptLength  int
}

func NewEngine(client *Client, gate *RateGate, minContentLength, maxPromptLength int) *Engine {
	return &Engine{
		client:           client,
		gate:             gate,
		minContentLength: minContentLength,
		maxPromptLength:  maxPromptLength,
	}
}

func (e *Engine) Enrich(ctx context.Context, content string) *Result {
	content = strings.TrimSpace(content)
	if len(content) < e.minContentLength {
		return nil
	}

	if err := e.gate.Acquire(); err != nil {
		slog.Debug("Enrichment refused", "reason", err)
		return nil
	}

	if len(content) > e.maxPromptLength {
		content = content[:e.maxPromptLength]
	}

	prompt := `Return ONLY valid JSON: {"summary":"one paragraph","keywords":["key1","key2"]}` +
		"\n\nContent: " + content

	reply, err := e.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			slog.Error("Quota exceeded, enrichment locked until restart")
			e.gate.Latch()
		} else {
			slog.Warn("Enrichment call failed", "error", err)
		}
		return nil
	}

	result, err := parseResult(reply)
	if err != nil {
		slog.Warn("Enrichment response unusable", "error", err)
		return nil
	}

	return result
}

// parseResult enforces the fixed response structure; any other shape is a
// parse failure for that call only.
func parseResult(reply string) (*Result, error) {
	// Models occasionally wrap JSON in markdown fences despite instructions
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	reply = strings.TrimSpace(reply)

	var result Result
	if err := json.Unmarshal([]byte(reply), &result); err != nil {
		return nil, err
	}

	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" {
		return nil, errors.New("response missing summary")
	}
	if result.Keywords == nil {
		result.Keywords = []string{}
	}

	return &result, nil
}
