package gateway

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxWebhookBody caps inbound payload size.
const maxWebhookBody = 1 << 20

// errorResponse is the consistent error format.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (g *Gateway) writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	var resp errorResponse
	resp.Error.Message = msg
	resp.Error.Code = code
	_ = json.NewEncoder(w).Encode(resp)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleWebhook implements POST /webhook. It always answers promptly with a
// status object; accepted events are processed in the background.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		g.writeJSON(w, http.StatusOK, map[string]string{"status": "error", "reason": "read_body"})
		return
	}
	g.writeJSON(w, http.StatusOK, g.pipeline.HandleWebhook(body))
}

// sendRequest is the POST /send body.
type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// handleSend implements POST /send: bypasses the pipeline and dispatches
// directly, recording the outbound text for echo suppression.
func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := g.pipeline.SendManual(r.Context(), req.Phone, req.Message); err != nil {
		g.logger.Warn("manual send failed", "phone", req.Phone, "error", err)
		g.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// handleReload implements POST /reload: synchronous knowledge reload.
func (g *Gateway) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, err := g.kb.Reload()
	if err != nil {
		g.writeError(w, "reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "reloaded",
		"corpus_bytes": snap.CorpusSize(),
		"products":     snap.ProductCount(),
	})
}

// resetRequest is the POST /reset body.
type resetRequest struct {
	Phone string `json:"phone"`
}

// handleReset implements POST /reset: clears one contact's session.
func (g *Gateway) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Phone == "" {
		g.writeError(w, "phone is required", http.StatusBadRequest)
		return
	}
	g.pipeline.ResetSession(req.Phone)
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleHealth implements GET /health.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := g.kb.Snapshot()
	g.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"corpus_bytes":    snap.CorpusSize(),
		"products":        snap.ProductCount(),
		"active_sessions": g.pipeline.ActiveSessions(),
		"dry_run":         g.dryRun,
	})
}
