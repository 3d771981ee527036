package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// CallRecord is the durable trail of one outbound call attempt: initiated,
// answered, completed or failed, plus any recording the provider reports.
type CallRecord struct {
	SID          uuid.UUID
	ProviderSID  string
	LeadID       uuid.UUID
	TenantID     uuid.UUID
	ToNumber     string
	FromNumber   string
	CallType     string
	Status       string
	RecordingURL string
	StartedAt    time.Time
	EndedAt      *time.Time
}

// CallRepository persists call records.
type CallRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCallRepository(pool *Pool) *CallRepository {
	return &CallRepository{db: pool.Raw(), logger: pool.logger}
}

// Create inserts the record for a freshly initiated call.
func (r *CallRepository) Create(ctx context.Context, rec *CallRecord) error {
	query := `
		INSERT INTO call_records (sid, provider_sid, lead_id, tenant_id,
			to_number, from_number, call_type, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		rec.SID, rec.ProviderSID, rec.LeadID, rec.TenantID,
		rec.ToNumber, rec.FromNumber, rec.CallType, rec.Status, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create call record: %w", err)
	}
	return nil
}

// UpdateStatus applies a provider status callback. Terminal statuses also
// stamp the end time.
func (r *CallRepository) UpdateStatus(ctx context.Context, providerSID, status string, endedAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE call_records SET status = $2, ended_at = COALESCE($3, ended_at)
		WHERE provider_sid = $1`, providerSID, status, endedAt)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("status callback for unknown call",
			zap.String("provider_sid", providerSID),
			zap.String("status", status),
		)
	}
	return nil
}

// AttachRecording stores the recording URL reported by the provider.
func (r *CallRepository) AttachRecording(ctx context.Context, providerSID, recordingURL string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE call_records SET recording_url = $2
		WHERE provider_sid = $1`, providerSID, recordingURL)
	if err != nil {
		return fmt.Errorf("failed to attach recording: %w", err)
	}
	return nil
}
