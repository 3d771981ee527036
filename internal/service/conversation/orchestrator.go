// Package conversation orchestrates live call turns: it owns session
// lifecycle around the pure state machine and translates its decisions
// into transport instructions.
package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	domain "github.com/siddartha1192/bharat-crm-sub009/internal/domain/conversation"
	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/lead"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/cache"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
)

// LeadReader looks up the lead a call was placed to.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
}

// TenantReader supplies the tenant's script material.
type TenantReader interface {
	GetSettings(ctx context.Context, tenantID uuid.UUID) (*database.TenantSettings, error)
}

// ResponseGenerator turns a caller transcript into the next thing to say.
// ContinueConversation false ends the call after the reply is spoken.
type ResponseGenerator interface {
	Respond(ctx context.Context, session *domain.Session, transcript string) (reply string, continueConversation bool, err error)
}

// Orchestrator drives one webhook-visible conversation turn at a time.
type Orchestrator struct {
	sessions  cache.SessionStore
	leads     LeadReader
	tenants   TenantReader
	responder ResponseGenerator
	voice     domain.Voice
	logger    *slog.Logger
}

func NewOrchestrator(
	sessions cache.SessionStore,
	leads LeadReader,
	tenants TenantReader,
	responder ResponseGenerator,
	voice domain.Voice,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:  sessions,
		leads:     leads,
		tenants:   tenants,
		responder: responder,
		voice:     voice,
		logger:    logger,
	}
}

// AnswerOptions carries the per-call flags resolved at placement time that
// the session has to remember for its lifetime.
type AnswerOptions struct {
	Record     bool
	Transcribe bool
}

// HandleAnswer runs when the callee picks up: it builds the session from
// the lead and tenant script, speaks the greeting and starts listening.
func (o *Orchestrator) HandleAnswer(ctx context.Context, callSID string, leadID uuid.UUID, opts AnswerOptions) (domain.Decision, error) {
	l, err := o.leads.GetByID(ctx, leadID)
	if err != nil {
		return domain.Decision{}, err
	}

	script := domain.ScriptContext{}
	settings, err := o.tenants.GetSettings(ctx, l.TenantID)
	if err != nil {
		// A tenant without settings still gets the default greeting.
		if !errors.IsType(err, errors.ErrorTypeNotFound) {
			return domain.Decision{}, err
		}
	} else {
		script = domain.ScriptContext{
			CompanyName:        settings.CompanyName,
			ProductName:        settings.ProductName,
			ProductDescription: settings.ProductDescription,
			GreetingTemplate:   settings.GreetingTemplate,
		}
	}

	session, err := domain.NewSession(callSID, l.ID, l.Name, script)
	if err != nil {
		return domain.Decision{}, errors.NewValidationError("INVALID_SESSION", err.Error())
	}
	session.Voice = o.voice
	session.RecordingEnabled = opts.Record
	session.TranscriptionEnabled = opts.Transcribe

	decision := domain.NextTurn(session, domain.Input{Kind: domain.InputGreeting})
	session.Advance(decision)

	if err := o.sessions.Save(ctx, session); err != nil {
		return domain.Decision{}, err
	}

	o.logger.Info("call answered",
		"call_sid", callSID,
		"lead_id", leadID.String(),
	)
	return decision, nil
}

// HandleTurn runs on every subsequent webhook: a captured transcript goes
// through the response generator; an empty transcript counts as silence and
// walks the fallback ladder. Terminal decisions delete the session.
func (o *Orchestrator) HandleTurn(ctx context.Context, callSID, transcript string) (domain.Decision, error) {
	session, err := o.sessions.Get(ctx, callSID)
	if err != nil {
		return domain.Decision{}, err
	}
	if session == nil {
		return domain.Decision{}, errors.ErrSessionNotFound
	}

	var input domain.Input
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		input = domain.Input{Kind: domain.InputSilence}
	} else {
		session.RecordTranscript(transcript)
		reply, cont, err := o.responder.Respond(ctx, session, transcript)
		if err != nil {
			// A responder failure must not strand the caller in silence.
			o.logger.Error("response generation failed",
				"call_sid", callSID,
				"error", err,
			)
			reply = "I am sorry, I did not catch that. Could you say that again?"
			cont = true
		}
		input = domain.Input{
			Kind:                 domain.InputResponse,
			ResponseText:         reply,
			ContinueConversation: cont,
		}
	}

	decision := domain.NextTurn(session, input)
	session.Advance(decision)

	if decision.Action == domain.ActionSpeakThenHangup {
		if err := o.sessions.Delete(ctx, callSID); err != nil {
			o.logger.Warn("failed to delete finished session",
				"call_sid", callSID,
				"error", err,
			)
		}
	} else if err := o.sessions.Save(ctx, session); err != nil {
		return domain.Decision{}, err
	}

	return decision, nil
}

// EndSession drops session state when the provider reports a terminal call
// status, whether or not the conversation reached its own goodbye.
func (o *Orchestrator) EndSession(ctx context.Context, callSID string) error {
	return o.sessions.Delete(ctx, callSID)
}
