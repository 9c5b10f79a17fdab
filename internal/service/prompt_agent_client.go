package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smallplates/internal/logger"
)

const maxAgentResponseBytes = 1 << 20

var (
	ErrAgentDisabled      = errors.New("prompt agent is not configured")
	ErrAgentMissingPrompt = errors.New("invalid response from agent: missing generated_prompt")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PromptRequest is the body sent to the agent's /generate-prompt endpoint.
type PromptRequest struct {
	DishName string `json:"dish_name"`
	Recipe   string `json:"recipe"`
	RecipeID string `json:"recipe_id,omitempty"`
}

// PrintReady is the cleaned text the agent returns alongside the prompt.
type PrintReady struct {
	RecipeNameClean   string          `json:"recipe_name_clean"`
	IngredientsClean  string          `json:"ingredients_clean"`
	InstructionsClean string          `json:"instructions_clean"`
	DetectedLanguage  string          `json:"detected_language"`
	CleaningVersion   json.RawMessage `json:"cleaning_version"`
}

// Version renders cleaning_version whether the agent sent a number or a string.
func (p PrintReady) Version() string {
	raw := strings.TrimSpace(string(p.CleaningVersion))
	if raw == "" || raw == "null" {
		return "1"
	}
	var s string
	if err := json.Unmarshal(p.CleaningVersion, &s); err == nil {
		return s
	}
	return raw
}

// PromptResult is the agent response after root/metadata fields are merged.
type PromptResult struct {
	GeneratedPrompt string
	AgentMetadata   json.RawMessage
	PrintReady      *PrintReady
	DishCategory    string
	Duration        time.Duration
}

type agentMetadata struct {
	PrintReady   *PrintReady `json:"print_ready"`
	DishCategory string      `json:"dish_category"`
}

type agentResponse struct {
	Success         *bool           `json:"success"`
	Error           string          `json:"error"`
	GeneratedPrompt string          `json:"generated_prompt"`
	AgentMetadata   json.RawMessage `json:"agent_metadata"`
	PrintReady      *PrintReady     `json:"print_ready"`
	DishCategory    string          `json:"dish_category"`
}

// PromptAgentClient calls the external prompt generation agent.
type PromptAgentClient struct {
	http    httpDoer
	baseURL string
	log     *slog.Logger
}

func NewPromptAgentClient(baseURL string, timeout time.Duration) *PromptAgentClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PromptAgentClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		log:     logger.WithComponent("prompt_agent"),
	}
}

func (c *PromptAgentClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
		return
	}
	c.http = client
}

func (c *PromptAgentClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *PromptAgentClient) BaseURL() string {
	return c.baseURL
}

// Generate posts one recipe to the agent. baseURL overrides the configured
// address when non-empty.
func (c *PromptAgentClient) Generate(ctx context.Context, baseURL string, req PromptRequest) (*PromptResult, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = c.baseURL
	}
	if base == "" {
		return nil, ErrAgentDisabled
	}
	if strings.TrimSpace(req.DishName) == "" || strings.TrimSpace(req.Recipe) == "" {
		return nil, newValidationError("dish_name and recipe are required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode agent request: %w", err)
	}
	logAgentExchange(c.log, req.RecipeID, "request", req.Recipe)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/generate-prompt", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "smallplates/1.0")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call prompt agent: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAgentResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read agent response: %w", err)
	}
	logAgentExchange(c.log, req.RecipeID, "response", string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var parsed agentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	if parsed.Success != nil && !*parsed.Success {
		msg := strings.TrimSpace(parsed.Error)
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("agent reported failure: %s", msg)
	}
	if strings.TrimSpace(parsed.GeneratedPrompt) == "" {
		return nil, ErrAgentMissingPrompt
	}

	result := &PromptResult{
		GeneratedPrompt: parsed.GeneratedPrompt,
		AgentMetadata:   parsed.AgentMetadata,
		PrintReady:      parsed.PrintReady,
		DishCategory:    strings.TrimSpace(parsed.DishCategory),
		Duration:        time.Since(start),
	}

	// The agent has sent these fields both at the root and nested in metadata.
	if len(parsed.AgentMetadata) > 0 {
		var meta agentMetadata
		if err := json.Unmarshal(parsed.AgentMetadata, &meta); err == nil {
			if result.PrintReady == nil {
				result.PrintReady = meta.PrintReady
			}
			if result.DishCategory == "" {
				result.DishCategory = strings.TrimSpace(meta.DishCategory)
			}
		}
	}
	if len(result.AgentMetadata) == 0 || string(result.AgentMetadata) == "null" {
		result.AgentMetadata = json.RawMessage("{}")
	}
	return result, nil
}
