// Package outreach initiates outbound calls to leads: it validates
// credentials, shapes the provider request, enforces the recording and
// transcription rules and rate-limits dialing.
package outreach

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/lead"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telephony"
)

// Transport places calls with the telephony provider.
type Transport interface {
	PlaceCall(ctx context.Context, req telephony.CallRequest) (*telephony.CallResult, error)
}

// LeadRepository provides lead lookups for call initiation.
type LeadRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error)
}

// CallRepository records initiated calls and their lifecycle updates.
type CallRepository interface {
	Create(ctx context.Context, rec *database.CallRecord) error
	UpdateStatus(ctx context.Context, providerSID, status string, endedAt *time.Time) error
	AttachRecording(ctx context.Context, providerSID, recordingURL string) error
}

// CallType distinguishes why a call was placed; it is carried in the
// answer URL so the webhook can pick the right opening script.
type CallType string

const (
	CallTypeOutreach CallType = "outreach"
	CallTypeReminder CallType = "reminder"
)

// InitiateCallRequest asks for one outbound call to a lead.
type InitiateCallRequest struct {
	LeadID   uuid.UUID
	TenantID uuid.UUID
	CallType CallType

	// Overrides; zero values fall back to the configured defaults.
	Record     *bool
	Transcribe *bool
}

// CallSessionResult reports the placed call.
type CallSessionResult struct {
	SID        string
	Status     string
	To         string
	From       string
	Direction  string
	Record     bool
	Transcribe bool
	CallType   CallType
	StartedAt  time.Time
}
