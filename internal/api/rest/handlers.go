package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telephony"
	conversationsvc "github.com/siddartha1192/bharat-crm-sub009/internal/service/conversation"
	"github.com/siddartha1192/bharat-crm-sub009/internal/service/outreach"
	"github.com/siddartha1192/bharat-crm-sub009/internal/service/reminder"
)

const (
	turnPath    = "/webhooks/voice/turn"
	silencePath = "/webhooks/voice/turn?timeout=1"
)

// Metrics is the counter surface the handlers report into.
type Metrics interface {
	CallInitiated(callType string)
	CallFailed(callType string)
	TurnProcessed(kind string)
	WebhookRejected(path string)
}

// NoopMetrics discards all counters; tests use it.
type NoopMetrics struct{}

func (NoopMetrics) CallInitiated(string)   {}
func (NoopMetrics) CallFailed(string)      {}
func (NoopMetrics) TurnProcessed(string)   {}
func (NoopMetrics) WebhookRejected(string) {}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler carries the services behind the HTTP surface.
type Handler struct {
	orchestrator *conversationsvc.Orchestrator
	outreach     *outreach.Service
	scheduler    *reminder.Scheduler

	// baseURL reconstructs the externally visible URL each webhook was
	// signed against.
	baseURL string

	metrics Metrics
	checks  []HealthCheck
	logger  *slog.Logger
}

func NewHandler(
	orchestrator *conversationsvc.Orchestrator,
	outreachSvc *outreach.Service,
	scheduler *reminder.Scheduler,
	baseURL string,
	metrics Metrics,
	logger *slog.Logger,
	checks ...HealthCheck,
) *Handler {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		orchestrator: orchestrator,
		outreach:     outreachSvc,
		scheduler:    scheduler,
		baseURL:      strings.TrimRight(baseURL, "/"),
		metrics:      metrics,
		checks:       checks,
		logger:       logger,
	}
}

// verifyWebhook parses the form and checks the provider signature. An
// invalid signature yields a bare 403; the reason is deliberately not
// disclosed to the caller.
func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	if err := r.ParseForm(); err != nil {
		h.metrics.WebhookRejected(r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
		return nil, false
	}

	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	signature := r.Header.Get("X-Twilio-Signature")
	signedURL := h.baseURL + r.URL.RequestURI()
	if !h.outreach.ValidateWebhook(signature, signedURL, params) {
		h.metrics.WebhookRejected(r.URL.Path)
		h.logger.Warn("webhook signature rejected", "path", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
		return nil, false
	}
	return params, true
}

// VoiceAnswer handles the callee picking up: it opens the session and
// returns the greeting instructions.
func (h *Handler) VoiceAnswer(w http.ResponseWriter, r *http.Request) {
	params, ok := h.verifyWebhook(w, r)
	if !ok {
		return
	}

	callSID := params["CallSid"]
	leadID, err := uuid.Parse(r.URL.Query().Get("lead_id"))
	if err != nil || callSID == "" {
		writeError(w, errors.NewValidationError("INVALID_WEBHOOK",
			"missing call SID or lead ID"))
		return
	}

	opts := conversationsvc.AnswerOptions{
		Record:     r.URL.Query().Get("record") == "true",
		Transcribe: r.URL.Query().Get("transcribe") == "true",
	}
	decision, err := h.orchestrator.HandleAnswer(r.Context(), callSID, leadID, opts)
	if err != nil {
		h.logger.Error("answer webhook failed", "call_sid", callSID, "error", err)
		writeError(w, err)
		return
	}

	h.metrics.TurnProcessed("greeting")
	writeTwiML(w, conversationsvc.DecisionToTwiML(decision, turnPath, silencePath).Render())
}

// VoiceTurn handles every subsequent conversational exchange. A redirect
// from an elapsed listening window arrives with timeout=1 and no speech.
func (h *Handler) VoiceTurn(w http.ResponseWriter, r *http.Request) {
	params, ok := h.verifyWebhook(w, r)
	if !ok {
		return
	}

	callSID := params["CallSid"]
	transcript := params["SpeechResult"]
	if r.URL.Query().Get("timeout") == "1" {
		transcript = ""
	}

	decision, err := h.orchestrator.HandleTurn(r.Context(), callSID, transcript)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			// the session is gone; end the call cleanly
			resp := telephony.Response{Verbs: []interface{}{telephony.Hangup{}}}
			writeTwiML(w, resp.Render())
			return
		}
		h.logger.Error("turn webhook failed", "call_sid", callSID, "error", err)
		writeError(w, err)
		return
	}

	if transcript == "" {
		h.metrics.TurnProcessed("silence")
	} else {
		h.metrics.TurnProcessed("response")
	}
	writeTwiML(w, conversationsvc.DecisionToTwiML(decision, turnPath, silencePath).Render())
}

// VoiceStatus receives call lifecycle events.
func (h *Handler) VoiceStatus(w http.ResponseWriter, r *http.Request) {
	params, ok := h.verifyWebhook(w, r)
	if !ok {
		return
	}

	callSID := params["CallSid"]
	status := params["CallStatus"]
	if err := h.outreach.HandleStatusCallback(r.Context(), callSID, status); err != nil {
		h.logger.Error("status webhook failed", "call_sid", callSID, "error", err)
	}

	switch status {
	case "completed", "failed", "busy", "no-answer", "canceled":
		if err := h.orchestrator.EndSession(r.Context(), callSID); err != nil {
			h.logger.Warn("failed to end session", "call_sid", callSID, "error", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// VoiceRecording receives the recording location once the provider has it.
func (h *Handler) VoiceRecording(w http.ResponseWriter, r *http.Request) {
	params, ok := h.verifyWebhook(w, r)
	if !ok {
		return
	}

	callSID := params["CallSid"]
	transcribe := r.URL.Query().Get("transcribe") == "true"
	if url := params["RecordingUrl"]; url != "" {
		if err := h.outreach.HandleRecordingCallback(r.Context(), callSID, url, transcribe); err != nil {
			h.logger.Error("recording webhook failed", "call_sid", callSID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type initiateCallRequest struct {
	LeadID     uuid.UUID `json:"lead_id"`
	CallType   string    `json:"call_type"`
	Record     *bool     `json:"record,omitempty"`
	Transcribe *bool     `json:"transcribe,omitempty"`
}

// InitiateCall places an outbound call on demand.
func (h *Handler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	var req initiateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.ErrInvalidInput)
		return
	}

	callType := outreach.CallType(req.CallType)
	result, err := h.outreach.InitiateCall(r.Context(), outreach.InitiateCallRequest{
		LeadID:     req.LeadID,
		CallType:   callType,
		Record:     req.Record,
		Transcribe: req.Transcribe,
	})
	if err != nil {
		h.metrics.CallFailed(string(callType))
		writeError(w, err)
		return
	}

	h.metrics.CallInitiated(string(result.CallType))
	writeJSON(w, http.StatusCreated, result)
}

type schedulerStatus struct {
	Running         bool `json:"running"`
	IntervalMinutes int  `json:"interval_minutes,omitempty"`
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schedulerStatus{
		Running:         h.scheduler.IsRunning(),
		IntervalMinutes: h.scheduler.CurrentInterval(),
	})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Start(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.SchedulerStatus(w, r)
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	h.SchedulerStatus(w, r)
}

// SchedulerRestart bounces a running scheduler so it picks up a changed
// interval. Restarting a stopped scheduler is refused; Start is the
// explicit way to bring it up.
func (h *Handler) SchedulerRestart(w http.ResponseWriter, r *http.Request) {
	if !h.scheduler.IsRunning() {
		writeError(w, errors.ErrSchedulerNotRunning)
		return
	}
	if err := h.scheduler.Restart(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.SchedulerStatus(w, r)
}

// Health runs the dependency probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
