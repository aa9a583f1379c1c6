// Package llm implements the responder: an OpenAI-compatible
// chat-completions client tuned for short WhatsApp SDR replies.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/linsalefe/anabot/pkg/anabot/bot"
	"github.com/linsalefe/anabot/pkg/anabot/config"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	dryRun      bool
	botName     string
	company     string
	timezone    string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a responder from config. With DryRun set, or when the
// API key is missing, the client never calls the network and returns a
// deterministic canned reply instead.
func NewClient(cfg config.LLMConfig, botName, company, timezone string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	dryRun := cfg.DryRun
	if cfg.APIKey == "" && !dryRun {
		logger.Warn("LLM API key missing, responder running in dry-run mode")
		dryRun = true
	}
	return &Client{
		baseURL:     trimBaseURL(cfg.BaseURL),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		dryRun:      dryRun,
		botName:     botName,
		company:     company,
		timezone:    timezone,
		httpClient: &http.Client{
			// No global timeout: each Generate call carries its own
			// context deadline set by the pipeline.
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   5,
				IdleConnTimeout:       120 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
		logger: logger.With("component", "llm"),
	}
}

// DryRun reports whether the remote call is disabled.
func (c *Client) DryRun() bool { return c.dryRun }

// ---------- Wire types ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces the next reply for a contact.
func (c *Client) Generate(ctx context.Context, pc bot.PromptContext) (string, error) {
	if c.dryRun {
		return c.dryRunReply(pc), nil
	}

	messages := []chatMessage{{Role: "system", Content: c.systemPrompt(pc)}}
	for _, turn := range pc.History {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: pc.Message})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("chat completion HTTP %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	reply := clampLines(parsed.Choices[0].Message.Content, 3)
	c.logger.Debug("reply generated",
		"phone", pc.Phone,
		"intent", pc.Intent,
		"elapsed", time.Since(start).String())
	return reply, nil
}

// dryRunReply is the deterministic reply used without credentials.
func (c *Client) dryRunReply(pc bot.PromptContext) string {
	name := pc.DisplayName
	if name == "" {
		name = "tudo bem"
	}
	if pc.Product != nil {
		return fmt.Sprintf("Olá, %s! Sou a %s, do %s. Vi seu interesse em %s. Podemos conversar para alinhar sua inscrição?",
			name, c.botName, c.company, pc.Product.Title)
	}
	return fmt.Sprintf("Olá, %s! Sou a %s, do %s. Como posso te ajudar hoje?",
		name, c.botName, c.company)
}

func trimBaseURL(u string) string {
	if u == "" {
		return "https://api.openai.com/v1"
	}
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
