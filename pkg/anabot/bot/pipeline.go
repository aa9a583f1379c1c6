package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
)

// PromptContext carries everything the responder needs for one reply.
type PromptContext struct {
	Phone       string
	DisplayName string
	Message     string
	Intent      Intent
	Corpus      string
	Product     *knowledge.Product
	History     []Turn
}

// Responder generates reply text. It may fail or exceed its deadline; the
// pipeline recovers with a fallback reply either way.
type Responder interface {
	Generate(ctx context.Context, pc PromptContext) (string, error)
}

// Dispatcher delivers reply text to a contact. Failures are logged, not
// retried here.
type Dispatcher interface {
	Send(ctx context.Context, phone, text string) error
}

// LeadActivity is the CRM bookkeeping record for one completed turn.
type LeadActivity struct {
	Phone    string
	Name     string
	Message  string
	Reply    string
	Intent   Intent
	Product  string
	Priority string
	Handoff  bool
}

// CRMNotifier receives lead activity on the side channel. Optional.
type CRMNotifier interface {
	NoteTurn(ctx context.Context, activity LeadActivity) error
}

// SnapshotProvider hands out the live knowledge snapshot.
type SnapshotProvider interface {
	Snapshot() *knowledge.Snapshot
}

// Result is the webhook response contract.
type Result struct {
	Status string       `json:"status"` // "processing", "ignored" or "error"
	Reason IgnoreReason `json:"reason,omitempty"`
}

// PipelineConfig tunes the reply pipeline.
type PipelineConfig struct {
	BotName          string
	HandoffContact   string
	ResponderTimeout time.Duration
}

// Pipeline orchestrates Normalizer -> Guard -> session update -> Responder
// -> guard-rail override -> Dispatcher, with per-contact serialization.
type Pipeline struct {
	cfg        PipelineConfig
	normalizer *Normalizer
	guard      *Guard
	locks      *ContactLocks
	sessions   SessionStore
	kb         SnapshotProvider
	responder  Responder
	dispatcher Dispatcher
	crm        CRMNotifier // nil when the side channel is disabled
	queue      *Queue
	// crmQueue is separate from the main queue: submitting side-channel
	// work from inside a main-queue worker back onto the same bounded pool
	// could leave every worker blocked handing off with nobody left to
	// accept.
	crmQueue *Queue
	logger   *slog.Logger
}

// NewPipeline wires the pipeline components together.
func NewPipeline(
	cfg PipelineConfig,
	normalizer *Normalizer,
	guard *Guard,
	sessions SessionStore,
	kb SnapshotProvider,
	responder Responder,
	dispatcher Dispatcher,
	crm CRMNotifier,
	queue *Queue,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResponderTimeout <= 0 {
		cfg.ResponderTimeout = 25 * time.Second
	}
	return &Pipeline{
		cfg:        cfg,
		normalizer: normalizer,
		guard:      guard,
		locks:      NewContactLocks(),
		sessions:   sessions,
		kb:         kb,
		responder:  responder,
		dispatcher: dispatcher,
		crm:        crm,
		queue:      queue,
		crmQueue:   NewQueue(2, logger),
		logger:     logger.With("component", "pipeline"),
	}
}

// Drain waits for queued side-channel work. Call after the main queue has
// drained: in-flight events may still submit CRM work while draining.
func (p *Pipeline) Drain() {
	p.crmQueue.Drain()
}

// HandleWebhook normalizes and filters a raw webhook body. Accepted events
// are handed to the worker pool; the caller returns immediately and never
// blocks on the responder or dispatcher.
func (p *Pipeline) HandleWebhook(body []byte) Result {
	ev, reason := p.normalizer.Normalize(body)
	if reason != "" {
		p.logger.Info("inbound ignored", "reason", reason, "phone", ev.Phone)
		return Result{Status: "ignored", Reason: reason}
	}

	// Dedup runs before the contact lock and before any session mutation:
	// rejected events cost no contention and leave no side effects.
	if reason := p.guard.Check(ev.Phone, ev.Text); reason != "" {
		p.logger.Info("inbound ignored", "reason", reason, "phone", ev.Phone)
		return Result{Status: "ignored", Reason: reason}
	}

	eventID := uuid.NewString()
	p.logger.Info("inbound accepted", "event_id", eventID, "phone", ev.Phone)
	p.queue.Submit(eventID, func() {
		p.process(eventID, ev)
	})
	return Result{Status: "processing"}
}

// process runs the serialized per-contact unit: session update, responder
// call, guard-rail override, dispatch, outbound record.
func (p *Pipeline) process(eventID string, ev Inbound) {
	unlock := p.locks.Lock(ev.Phone)
	defer unlock()

	logger := p.logger.With("event_id", eventID, "phone", ev.Phone)
	snap := p.kb.Snapshot()

	prior := p.sessions.Get(ev.Phone)
	p.sessions.AppendTurn(ev.Phone, RoleUser, ev.Text)
	p.sessions.UpdateProductFromText(ev.Phone, ev.Text, snap)

	session := p.sessions.Get(ev.Phone)
	intent := Classify(ev.Text, snap)

	var product *knowledge.Product
	if session.SelectedProduct != "" {
		// Stale slugs from a previous snapshot simply miss and degrade to
		// "no product".
		if pr, ok := snap.ProductBySlug(session.SelectedProduct); ok {
			product = &pr
		}
	}

	reply := p.generateReply(logger, PromptContext{
		Phone:       ev.Phone,
		DisplayName: ev.PushName,
		Message:     ev.Text,
		Intent:      intent,
		Corpus:      snap.Corpus,
		Product:     product,
		History:     lastTurnPair(prior.History),
	})

	reply, handoff := extractHandoff(reply)
	if handoff {
		logger.Info("handoff requested by responder")
		if p.cfg.HandoffContact != "" {
			reply += fmt.Sprintf("\nVocê pode falar direto com nossa equipe: %s", p.cfg.HandoffContact)
		}
	}

	if override, ok := guardRailOverride(intent, product); ok {
		logger.Info("guard rail override applied", "intent", intent, "product", product.Slug)
		reply = override
	}

	p.sessions.AppendTurn(ev.Phone, RoleAssistant, reply)

	if err := p.dispatcher.Send(context.Background(), ev.Phone, reply); err != nil {
		logger.Warn("dispatch failed", "error", err)
		return
	}
	p.guard.RecordOutbound(ev.Phone, reply)

	if p.crm != nil {
		priority := leadPriority(intent)
		if handoff {
			priority = "alta"
		}
		activity := LeadActivity{
			Phone:    ev.Phone,
			Name:     ev.PushName,
			Message:  ev.Text,
			Reply:    reply,
			Intent:   intent,
			Product:  session.SelectedProduct,
			Priority: priority,
			Handoff:  handoff,
		}
		p.crmQueue.Submit(eventID+"/crm", func() {
			if err := p.crm.NoteTurn(context.Background(), activity); err != nil {
				logger.Warn("crm bookkeeping failed", "error", err)
			}
		})
	}
}

// generateReply calls the responder under a timeout. Any failure degrades
// to the fixed fallback so the contact always gets a reply.
func (p *Pipeline) generateReply(logger *slog.Logger, pc PromptContext) string {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ResponderTimeout)
	defer cancel()

	text, err := p.responder.Generate(ctx, pc)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warn("responder failed, using fallback reply", "error", err)
		return p.fallbackReply()
	}
	return text
}

// fallbackReply is the fixed apologetic message with a human handoff.
func (p *Pipeline) fallbackReply() string {
	msg := "Desculpe, tive um problema técnico por aqui. Pode me mandar sua mensagem novamente em instantes?"
	if p.cfg.HandoffContact != "" {
		msg += fmt.Sprintf("\nSe preferir, fale direto com nossa equipe: %s", p.cfg.HandoffContact)
	}
	return msg
}

// handoffMarker is the token the responder appends when the contact asks
// to schedule a conversation or talk to a human.
const handoffMarker = "#AGENDAR"

// extractHandoff strips the handoff marker from a reply and reports whether
// it was present.
func extractHandoff(reply string) (string, bool) {
	if !strings.Contains(reply, handoffMarker) {
		return reply, false
	}
	reply = strings.TrimSpace(strings.ReplaceAll(reply, handoffMarker, ""))
	if reply == "" {
		reply = "Perfeito! Vou acionar nossa equipe para falar com você."
	}
	return reply, true
}

// guardRailOverride replaces the model reply with a deterministic template
// when a transactional URL is known: the responder is non-deterministic and
// must never be the sole source of truth for an enrollment or program link.
func guardRailOverride(intent Intent, product *knowledge.Product) (string, bool) {
	if product == nil {
		return "", false
	}
	switch {
	case intent == IntentEnrollment && product.EnrollURL != "":
		return fmt.Sprintf("Que ótimo! Para garantir sua vaga em %s, faça sua inscrição por aqui: %s",
			product.Title, product.EnrollURL), true
	case intent == IntentSchedule && product.ProgramURL != "":
		msg := fmt.Sprintf("Você encontra o cronograma completo de %s aqui: %s",
			product.Title, product.ProgramURL)
		if product.Dates != "" {
			msg += fmt.Sprintf("\nDatas: %s", product.Dates)
		}
		return msg, true
	}
	return "", false
}

// lastTurnPair returns the trailing assistant/user exchange from history.
func lastTurnPair(history []Turn) []Turn {
	if len(history) <= 2 {
		return history
	}
	return history[len(history)-2:]
}

// leadPriority derives the CRM priority hint from intent.
func leadPriority(intent Intent) string {
	switch intent {
	case IntentEnrollment, IntentPricing:
		return "alta"
	case IntentPositiveResponse, IntentSchedule, IntentProduct:
		return "média"
	}
	return "baixa"
}

// SendManual bypasses the pipeline: dispatch directly and record the
// outbound text for echo suppression.
func (p *Pipeline) SendManual(ctx context.Context, phone, text string) error {
	phone = digitsOnly(phone)
	if phone == "" || strings.TrimSpace(text) == "" {
		return fmt.Errorf("phone and message are required")
	}
	if err := p.dispatcher.Send(ctx, phone, text); err != nil {
		return err
	}
	p.guard.RecordOutbound(phone, text)
	return nil
}

// ResetSession clears a contact's session state.
func (p *Pipeline) ResetSession(phone string) {
	p.sessions.Reset(digitsOnly(phone))
}

// ActiveSessions reports the session count for introspection.
func (p *Pipeline) ActiveSessions() int {
	return p.sessions.Count()
}

// SweepDedup drops expired dedup entries; scheduled periodically.
func (p *Pipeline) SweepDedup() int {
	return p.guard.Sweep()
}
