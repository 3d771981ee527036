package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/lead"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
	"github.com/siddartha1192/bharat-crm-sub009/internal/service/outreach"
)

type mockTenantLister struct {
	mock.Mock
}

func (m *mockTenantLister) ListReminderEnabled(ctx context.Context) ([]*database.TenantSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*database.TenantSettings), args.Error(1)
}

type mockLeadClaimer struct {
	mock.Mock
}

func (m *mockLeadClaimer) ClaimDueLeads(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]*lead.Lead, error) {
	args := m.Called(ctx, tenantID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*lead.Lead), args.Error(1)
}

type mockInitiator struct {
	mock.Mock
}

func (m *mockInitiator) InitiateCall(ctx context.Context, req outreach.InitiateCallRequest) (*outreach.CallSessionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outreach.CallSessionResult), args.Error(1)
}

func makeLead(t *testing.T, tenantID uuid.UUID) *lead.Lead {
	t.Helper()
	l, err := lead.NewLead(tenantID, "Asha", "+919876543210")
	require.NoError(t, err)
	return l
}

func TestSweep_DialsDueLeadsAsReminders(t *testing.T) {
	tenants := new(mockTenantLister)
	claimer := new(mockLeadClaimer)
	initiator := new(mockInitiator)
	svc := NewSweepService(tenants, claimer, initiator, nil)

	tenantID := uuid.New()
	l1 := makeLead(t, tenantID)
	l2 := makeLead(t, tenantID)

	tenants.On("ListReminderEnabled", mock.Anything).Return([]*database.TenantSettings{
		{TenantID: tenantID, ReminderEnabled: true},
	}, nil)
	claimer.On("ClaimDueLeads", mock.Anything, tenantID, mock.Anything, batchSize).
		Return([]*lead.Lead{l1, l2}, nil)
	initiator.On("InitiateCall", mock.Anything, mock.MatchedBy(func(req outreach.InitiateCallRequest) bool {
		return req.CallType == outreach.CallTypeReminder && req.TenantID == tenantID
	})).Return(&outreach.CallSessionResult{SID: "CA1", Status: "queued"}, nil).Twice()

	require.NoError(t, svc.Sweep(context.Background()))
	initiator.AssertNumberOfCalls(t, "InitiateCall", 2)
}

func TestSweep_OneBadLeadDoesNotStopTheBatch(t *testing.T) {
	tenants := new(mockTenantLister)
	claimer := new(mockLeadClaimer)
	initiator := new(mockInitiator)
	svc := NewSweepService(tenants, claimer, initiator, nil)

	tenantID := uuid.New()
	bad := makeLead(t, tenantID)
	good := makeLead(t, tenantID)

	tenants.On("ListReminderEnabled", mock.Anything).Return([]*database.TenantSettings{
		{TenantID: tenantID, ReminderEnabled: true},
	}, nil)
	claimer.On("ClaimDueLeads", mock.Anything, tenantID, mock.Anything, batchSize).
		Return([]*lead.Lead{bad, good}, nil)
	initiator.On("InitiateCall", mock.Anything, mock.MatchedBy(func(req outreach.InitiateCallRequest) bool {
		return req.LeadID == bad.ID
	})).Return(nil, assert.AnError)
	initiator.On("InitiateCall", mock.Anything, mock.MatchedBy(func(req outreach.InitiateCallRequest) bool {
		return req.LeadID == good.ID
	})).Return(&outreach.CallSessionResult{SID: "CA2", Status: "queued"}, nil)

	// per-lead failures are swallowed
	require.NoError(t, svc.Sweep(context.Background()))
	initiator.AssertNumberOfCalls(t, "InitiateCall", 2)
}

func TestSweep_ClaimFailureSkipsTenant(t *testing.T) {
	tenants := new(mockTenantLister)
	claimer := new(mockLeadClaimer)
	initiator := new(mockInitiator)
	svc := NewSweepService(tenants, claimer, initiator, nil)

	brokenTenant := uuid.New()
	healthyTenant := uuid.New()
	l := makeLead(t, healthyTenant)

	tenants.On("ListReminderEnabled", mock.Anything).Return([]*database.TenantSettings{
		{TenantID: brokenTenant},
		{TenantID: healthyTenant},
	}, nil)
	claimer.On("ClaimDueLeads", mock.Anything, brokenTenant, mock.Anything, batchSize).
		Return(nil, assert.AnError)
	claimer.On("ClaimDueLeads", mock.Anything, healthyTenant, mock.Anything, batchSize).
		Return([]*lead.Lead{l}, nil)
	initiator.On("InitiateCall", mock.Anything, mock.Anything).
		Return(&outreach.CallSessionResult{SID: "CA3", Status: "queued"}, nil)

	require.NoError(t, svc.Sweep(context.Background()))
	initiator.AssertNumberOfCalls(t, "InitiateCall", 1)
}

func TestSweep_ListFailurePropagates(t *testing.T) {
	tenants := new(mockTenantLister)
	svc := NewSweepService(tenants, new(mockLeadClaimer), new(mockInitiator), nil)

	tenants.On("ListReminderEnabled", mock.Anything).Return(nil, assert.AnError)

	err := svc.Sweep(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSweep_NoTenantsIsQuiet(t *testing.T) {
	tenants := new(mockTenantLister)
	svc := NewSweepService(tenants, new(mockLeadClaimer), new(mockInitiator), nil)

	tenants.On("ListReminderEnabled", mock.Anything).Return([]*database.TenantSettings{}, nil)

	require.NoError(t, svc.Sweep(context.Background()))
}
