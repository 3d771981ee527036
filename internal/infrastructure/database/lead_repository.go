package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	apperrors "github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/lead"
)

// LeadRepository persists leads and hands due leads to the reminder sweep.
type LeadRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLeadRepository(pool *Pool) *LeadRepository {
	return &LeadRepository{db: pool.Raw(), logger: pool.logger}
}

const leadColumns = `id, tenant_id, name, phone, status,
	reminder_due_at, reminder_attempts, last_reminded_at,
	created_at, updated_at`

// GetByID retrieves a lead.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE id = $1`, leadColumns)

	l, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// Save upserts a lead.
func (r *LeadRepository) Save(ctx context.Context, l *lead.Lead) error {
	query := `
		INSERT INTO leads (id, tenant_id, name, phone, status,
			reminder_due_at, reminder_attempts, last_reminded_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			status = EXCLUDED.status,
			reminder_due_at = EXCLUDED.reminder_due_at,
			reminder_attempts = EXCLUDED.reminder_attempts,
			last_reminded_at = EXCLUDED.last_reminded_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		l.ID, l.TenantID, l.Name, l.Phone, l.Status.String(),
		l.ReminderDueAt, l.ReminderAttempts, l.LastRemindedAt,
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

// ClaimDueLeads selects the tenant's leads whose reminder is due and, in
// the same transaction, clears their due markers. Concurrent sweeps then
// cannot dial the same lead twice. Rows are locked with SKIP LOCKED so a
// slow sweep does not block the next one.
func (r *LeadRepository) ClaimDueLeads(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]*lead.Lead, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT %s FROM leads
		WHERE tenant_id = $1
		  AND reminder_due_at IS NOT NULL
		  AND reminder_due_at <= $2
		  AND status NOT IN ('converted', 'lost')
		ORDER BY reminder_due_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED`, leadColumns)

	rows, err := tx.Query(ctx, query, tenantID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due leads: %w", err)
	}

	var leads []*lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan due lead: %w", err)
		}
		leads = append(leads, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due leads: %w", err)
	}

	for _, l := range leads {
		l.MarkReminded(now)
		_, err := tx.Exec(ctx, `
			UPDATE leads
			SET reminder_due_at = NULL,
			    reminder_attempts = $2,
			    last_reminded_at = $3,
			    updated_at = $3
			WHERE id = $1`,
			l.ID, l.ReminderAttempts, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark lead reminded: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit due lead claim: %w", err)
	}

	if len(leads) > 0 {
		r.logger.Debug("claimed due leads",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("count", len(leads)),
		)
	}
	return leads, nil
}

// ScheduleReminder sets when a lead should next be dialed.
func (r *LeadRepository) ScheduleReminder(ctx context.Context, leadID uuid.UUID, dueAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET reminder_due_at = $2, updated_at = NOW()
		WHERE id = $1`, leadID, dueAt)
	if err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrLeadNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var l lead.Lead
	var status string
	err := row.Scan(
		&l.ID, &l.TenantID, &l.Name, &l.Phone, &status,
		&l.ReminderDueAt, &l.ReminderAttempts, &l.LastRemindedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = lead.ParseStatus(status)
	return &l, nil
}
