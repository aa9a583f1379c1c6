// Package crm is the RD Station side channel: contact tags and
// conversation notes pushed after each completed turn. All calls are
// fire-and-forget from the pipeline's perspective; failures are logged and
// never affect the reply.
package crm

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

// Client wraps the RD Station API with bearer auth and bounded retries
// for transient failures.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates the CRM client, or nil when no access token is
// configured — the pipeline treats a nil notifier as a disabled side
// channel.
func NewClient(cfg config.CRMConfig, logger *slog.Logger) *Client {
	if cfg.AccessToken == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    trimSlash(cfg.BaseURL),
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "crm"),
	}
}

// NoteTurn records one completed conversation turn: tags the contact with
// the detected intent/product and appends a note with the exchange.
func (c *Client) NoteTurn(ctx context.Context, a bot.LeadActivity) error {
	tags := []string{"whatsapp", "intent:" + string(a.Intent), "prioridade:" + a.Priority}
	if a.Product != "" {
		tags = append(tags, "produto:"+a.Product)
	}
	if a.Handoff {
		tags = append(tags, "agendar")
	}
	if err := c.AddTags(ctx, a.Phone, tags); err != nil {
		return err
	}

	note := fmt.Sprintf("Lead: %s\nMensagem: %s\nResposta: %s", a.Name, a.Message, a.Reply)
	return c.AddNote(ctx, a.Phone, note)
}

// AddTags adds tags to a contact identified by phone.
func (c *Client) AddTags(ctx context.Context, phone string, tags []string) error {
	body := map[string]any{"phone": phone, "tags": tags}
	return c.request(ctx, http.MethodPost, "/platform/contacts/tags", body)
}

// AddNote appends a free-form note to a contact's timeline.
func (c *Client) AddNote(ctx context.Context, phone, note string) error {
	body := map[string]any{"phone": phone, "note": note}
	return c.request(ctx, http.MethodPost, "/platform/contacts/notes", body)
}

// UpdateStage moves a deal to a new funnel stage.
func (c *Client) UpdateStage(ctx context.Context, dealID, stage string) error {
	if dealID == "" || stage == "" {
		return fmt.Errorf("dealID and stage are required")
	}
	body := map[string]any{"stage": stage}
	return c.request(ctx, http.MethodPut, "/crm/deals/"+dealID+"/stage", body)
}

// request performs one JSON call with up to three attempts on 5xx or
// network errors; 4xx responses fail immediately.
func (c *Client) request(ctx context.Context, method, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding crm request: %w", err)
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("building crm request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("crm call: %w", err)
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			switch {
			case resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("crm HTTP %d: %s", resp.StatusCode, string(respBody))
			default:
				// 4xx is not retryable.
				return fmt.Errorf("crm HTTP %d: %s", resp.StatusCode, string(respBody))
			}
		}

		c.logger.Warn("crm request failed", "method", method, "path", path,
			"attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func trimSlash(u string) string {
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u
}
