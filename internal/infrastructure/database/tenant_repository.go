package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	apperrors "github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
)

// TenantSettings holds the per-tenant reminder configuration consulted by
// the scheduler on every start and restart.
type TenantSettings struct {
	TenantID        uuid.UUID
	ReminderEnabled bool
	IntervalMinutes int

	CompanyName        string
	ProductName        string
	ProductDescription string
	GreetingTemplate   string
}

// TenantRepository reads and writes tenant reminder settings.
type TenantRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTenantRepository(pool *Pool) *TenantRepository {
	return &TenantRepository{db: pool.Raw(), logger: pool.logger}
}

// GetSettings returns one tenant's settings.
func (r *TenantRepository) GetSettings(ctx context.Context, tenantID uuid.UUID) (*TenantSettings, error) {
	query := `
		SELECT tenant_id, reminder_enabled, reminder_interval_minutes,
		       company_name, product_name, product_description, greeting_template
		FROM tenant_settings WHERE tenant_id = $1`

	var s TenantSettings
	err := r.db.QueryRow(ctx, query, tenantID).Scan(
		&s.TenantID, &s.ReminderEnabled, &s.IntervalMinutes,
		&s.CompanyName, &s.ProductName, &s.ProductDescription, &s.GreetingTemplate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant settings: %w", err)
	}
	return &s, nil
}

// ListReminderEnabled returns settings for every tenant with reminders on.
func (r *TenantRepository) ListReminderEnabled(ctx context.Context) ([]*TenantSettings, error) {
	query := `
		SELECT tenant_id, reminder_enabled, reminder_interval_minutes,
		       company_name, product_name, product_description, greeting_template
		FROM tenant_settings WHERE reminder_enabled = TRUE`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant settings: %w", err)
	}
	defer rows.Close()

	var out []*TenantSettings
	for rows.Next() {
		var s TenantSettings
		err := rows.Scan(
			&s.TenantID, &s.ReminderEnabled, &s.IntervalMinutes,
			&s.CompanyName, &s.ProductName, &s.ProductDescription, &s.GreetingTemplate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant settings: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenant settings: %w", err)
	}
	return out, nil
}

// SaveSettings upserts a tenant's settings.
func (r *TenantRepository) SaveSettings(ctx context.Context, s *TenantSettings) error {
	query := `
		INSERT INTO tenant_settings (tenant_id, reminder_enabled, reminder_interval_minutes,
			company_name, product_name, product_description, greeting_template, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			reminder_enabled = EXCLUDED.reminder_enabled,
			reminder_interval_minutes = EXCLUDED.reminder_interval_minutes,
			company_name = EXCLUDED.company_name,
			product_name = EXCLUDED.product_name,
			product_description = EXCLUDED.product_description,
			greeting_template = EXCLUDED.greeting_template,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		s.TenantID, s.ReminderEnabled, s.IntervalMinutes,
		s.CompanyName, s.ProductName, s.ProductDescription, s.GreetingTemplate,
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant settings: %w", err)
	}

	r.logger.Debug("tenant settings saved",
		zap.String("tenant_id", s.TenantID.String()),
		zap.Bool("reminder_enabled", s.ReminderEnabled),
		zap.Int("interval_minutes", s.IntervalMinutes),
	)
	return nil
}
