// Package wa implements the outbound message dispatcher against an
// Evolution-style WhatsApp provider API.
package wa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/linsalefe/anabot/pkg/anabot/config"
)

// ErrDisabled is returned when the dispatcher has no credentials. The
// pipeline logs this at send time; the process keeps running.
var ErrDisabled = errors.New("dispatcher disabled: missing provider credentials")

// Dispatcher sends text messages through the provider HTTP API.
type Dispatcher struct {
	baseURL    string
	instance   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher from config. Missing credentials
// degrade the feature instead of failing startup.
func NewDispatcher(cfg config.WhatsAppConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		baseURL:  cfg.BaseURL,
		instance: cfg.Instance,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "dispatcher"),
	}
	if !d.enabled() {
		d.logger.Warn("provider credentials missing, outbound messages disabled")
	}
	return d
}

func (d *Dispatcher) enabled() bool {
	return d.baseURL != "" && d.instance != "" && d.apiKey != ""
}

// sendTextRequest is the provider sendText body.
type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Send delivers one text message to a phone (digits only).
func (d *Dispatcher) Send(ctx context.Context, phone, text string) error {
	if !d.enabled() {
		return ErrDisabled
	}

	body, err := json.Marshal(sendTextRequest{Number: phone, Text: text})
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/message/sendText/%s", d.baseURL, url.PathEscape(d.instance))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send HTTP %d: %s", resp.StatusCode, string(data))
	}

	d.logger.Info("message sent", "phone", phone, "chars", len(text))
	return nil
}
