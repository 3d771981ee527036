package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScriptContext carries the tenant's pitch material used to personalize the
// opening turn of a call.
type ScriptContext struct {
	CompanyName        string `json:"company_name"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	GreetingTemplate   string `json:"greeting_template"`
}

// Voice is transport presentation configuration. The state machine passes it
// through unchanged; it never influences a transition.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Session is the conversational state of one live call, keyed by the
// transport-issued call SID. TimeoutCount only ever grows within a session;
// it is zero exactly once, at creation.
type Session struct {
	SID            string        `json:"sid"`
	LeadID         uuid.UUID     `json:"lead_id"`
	LeadName       string        `json:"lead_name"`
	TimeoutCount   int           `json:"timeout_count"`
	LastTranscript string        `json:"last_transcript,omitempty"`
	Script         ScriptContext `json:"script"`
	Voice          Voice         `json:"voice"`

	RecordingEnabled     bool `json:"recording_enabled"`
	TranscriptionEnabled bool `json:"transcription_enabled"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session for a freshly answered call.
func NewSession(sid string, leadID uuid.UUID, leadName string, script ScriptContext) (*Session, error) {
	if sid == "" {
		return nil, fmt.Errorf("call SID cannot be empty")
	}
	if leadID == uuid.Nil {
		return nil, fmt.Errorf("lead ID cannot be nil")
	}

	now := clock.Now()
	return &Session{
		SID:       sid,
		LeadID:    leadID,
		LeadName:  leadName,
		Script:    script,
		StartedAt: now,
		UpdatedAt: now,
	}, nil
}

// Advance applies a decision's outcome to the session. TimeoutCount never
// moves backwards.
func (s *Session) Advance(d Decision) {
	if d.NextTimeoutCount > s.TimeoutCount {
		s.TimeoutCount = d.NextTimeoutCount
	}
	s.UpdatedAt = clock.Now()
}

// RecordTranscript stores the most recent caller utterance.
func (s *Session) RecordTranscript(text string) {
	s.LastTranscript = text
	s.UpdatedAt = clock.Now()
}
