package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/lead"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
	"github.com/siddartha1192/bharat-crm-sub009/internal/service/outreach"
)

// batchSize bounds how many due leads one tenant contributes per sweep.
const batchSize = 100

// TenantLister enumerates tenants with reminders enabled.
type TenantLister interface {
	ListReminderEnabled(ctx context.Context) ([]*database.TenantSettings, error)
}

// LeadClaimer atomically selects and marks a tenant's due leads.
type LeadClaimer interface {
	ClaimDueLeads(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]*lead.Lead, error)
}

// CallInitiator places the follow-up call.
type CallInitiator interface {
	InitiateCall(ctx context.Context, req outreach.InitiateCallRequest) (*outreach.CallSessionResult, error)
}

// Sweep walks every reminder-enabled tenant, claims that tenant's due
// leads and dials each one. Per-lead failures are logged and skipped so
// one bad number cannot starve the rest of the batch.
type SweepService struct {
	tenants   TenantLister
	leads     LeadClaimer
	initiator CallInitiator
	logger    *slog.Logger
}

func NewSweepService(tenants TenantLister, leads LeadClaimer, initiator CallInitiator, logger *slog.Logger) *SweepService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepService{
		tenants:   tenants,
		leads:     leads,
		initiator: initiator,
		logger:    logger,
	}
}

func (s *SweepService) Sweep(ctx context.Context) error {
	tenants, err := s.tenants.ListReminderEnabled(ctx)
	if err != nil {
		return apperrors.Wrap(err, "failed to list reminder tenants")
	}

	now := time.Now()
	var dialed, failed int

	for _, t := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		leads, err := s.leads.ClaimDueLeads(ctx, t.TenantID, now, batchSize)
		if err != nil {
			s.logger.Error("failed to claim due leads",
				"tenant_id", t.TenantID.String(),
				"error", err,
			)
			continue
		}

		for _, l := range leads {
			_, err := s.initiator.InitiateCall(ctx, outreach.InitiateCallRequest{
				LeadID:   l.ID,
				TenantID: l.TenantID,
				CallType: outreach.CallTypeReminder,
			})
			if err != nil {
				failed++
				s.logger.Error("reminder call failed",
					"tenant_id", t.TenantID.String(),
					"lead_id", l.ID.String(),
					"retryable", apperrors.IsRetryable(err),
					"error", err,
				)
				continue
			}
			dialed++
		}
	}

	if dialed > 0 || failed > 0 {
		s.logger.Info("reminder sweep summary",
			"tenants", len(tenants),
			"dialed", dialed,
			"failed", failed,
		)
	}
	return nil
}
