package outreach

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/lead"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/config"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telephony"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) PlaceCall(ctx context.Context, req telephony.CallRequest) (*telephony.CallResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telephony.CallResult), args.Error(1)
}

type mockLeadRepo struct {
	mock.Mock
}

func (m *mockLeadRepo) GetByID(ctx context.Context, id uuid.UUID) (*lead.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lead.Lead), args.Error(1)
}

type mockCallRepo struct {
	mock.Mock
}

func (m *mockCallRepo) Create(ctx context.Context, rec *database.CallRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockCallRepo) UpdateStatus(ctx context.Context, providerSID, status string, endedAt *time.Time) error {
	return m.Called(ctx, providerSID, status, endedAt).Error(0)
}

func (m *mockCallRepo) AttachRecording(ctx context.Context, providerSID, recordingURL string) error {
	return m.Called(ctx, providerSID, recordingURL).Error(0)
}

func testConfig() config.TelephonyConfig {
	return config.TelephonyConfig{
		AccountSID:      "AC123",
		AuthToken:       "token",
		FromNumber:      "+15550100",
		CallbackBaseURL: "https://crm.example.com",
		RingTimeout:     30 * time.Second,
		DialsPerSecond:  100,
		DialBurst:       10,
	}
}

func testLead(t *testing.T) *lead.Lead {
	t.Helper()
	l, err := lead.NewLead(uuid.New(), "Asha", "+919876543210")
	require.NoError(t, err)
	return l
}

func newTestService(t *testing.T, cfg config.TelephonyConfig) (*Service, *mockTransport, *mockLeadRepo, *mockCallRepo) {
	t.Helper()
	transport := new(mockTransport)
	leads := new(mockLeadRepo)
	calls := new(mockCallRepo)
	svc, err := NewService(transport, leads, calls, cfg, slog.Default())
	require.NoError(t, err)
	return svc, transport, leads, calls
}

func TestNewService_MissingCredentials(t *testing.T) {
	tests := []struct {
		name       string
		accountSID string
		authToken  string
	}{
		{"empty account SID", "", "token"},
		{"empty auth token", "AC123", ""},
		{"whitespace account SID", "   ", "token"},
		{"whitespace auth token", "AC123", "\t\n"},
		{"both blank", "  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.AccountSID = tt.accountSID
			cfg.AuthToken = tt.authToken

			_, err := NewService(new(mockTransport), new(mockLeadRepo), new(mockCallRepo), cfg, nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
			// credential values must not leak into the error text
			assert.NotContains(t, err.Error(), "AC123")
			assert.NotContains(t, err.Error(), "token")
		})
	}
}

func TestInitiateCall_Success(t *testing.T) {
	svc, transport, leads, calls := newTestService(t, testConfig())
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	transport.On("PlaceCall", mock.Anything, mock.MatchedBy(func(req telephony.CallRequest) bool {
		return req.To == l.Phone &&
			req.From == "+15550100" &&
			req.RingTimeoutSeconds == 30
	})).Return(&telephony.CallResult{
		SID: "CA999", Status: "queued", To: l.Phone, From: "+15550100",
	}, nil)
	calls.On("Create", mock.Anything, mock.MatchedBy(func(rec *database.CallRecord) bool {
		return rec.ProviderSID == "CA999" && rec.LeadID == l.ID
	})).Return(nil)

	result, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: l.ID})
	require.NoError(t, err)
	assert.Equal(t, "CA999", result.SID)
	assert.Equal(t, "queued", result.Status)
	assert.Equal(t, CallTypeOutreach, result.CallType)

	transport.AssertExpectations(t)
	calls.AssertExpectations(t)
}

func TestInitiateCall_AnswerURLCarriesLeadAndCallType(t *testing.T) {
	svc, transport, leads, calls := newTestService(t, testConfig())
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	var captured telephony.CallRequest
	transport.On("PlaceCall", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(telephony.CallRequest)
	}).Return(&telephony.CallResult{SID: "CA1", Status: "queued"}, nil)
	calls.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{
		LeadID:   l.ID,
		CallType: CallTypeReminder,
	})
	require.NoError(t, err)

	assert.Contains(t, captured.AnswerURL, "https://crm.example.com/webhooks/voice/answer?")
	assert.Contains(t, captured.AnswerURL, "lead_id="+l.ID.String())
	assert.Contains(t, captured.AnswerURL, "call_type=reminder")
	assert.Contains(t, captured.StatusCallbackURL, "/webhooks/voice/status?")
}

func TestInitiateCall_TranscriptionRequiresRecording(t *testing.T) {
	cfg := testConfig()
	cfg.RecordCalls = false
	cfg.TranscribeCalls = true
	svc, transport, leads, calls := newTestService(t, cfg)
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	transport.On("PlaceCall", mock.Anything, mock.MatchedBy(func(req telephony.CallRequest) bool {
		return !req.Record && req.RecordingCallbackURL == ""
	})).Return(&telephony.CallResult{SID: "CA2", Status: "queued"}, nil)
	calls.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: l.ID})
	require.NoError(t, err)
	assert.False(t, result.Record)
	assert.False(t, result.Transcribe, "transcription must be disabled without recording")
}

func TestInitiateCall_RecordingEnablesTranscription(t *testing.T) {
	cfg := testConfig()
	cfg.RecordCalls = true
	cfg.TranscribeCalls = true
	svc, transport, leads, calls := newTestService(t, cfg)
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	transport.On("PlaceCall", mock.Anything, mock.MatchedBy(func(req telephony.CallRequest) bool {
		return req.Record && req.RecordingCallbackURL != ""
	})).Return(&telephony.CallResult{SID: "CA3", Status: "queued"}, nil)
	calls.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: l.ID})
	require.NoError(t, err)
	assert.True(t, result.Record)
	assert.True(t, result.Transcribe)
}

func TestInitiateCall_TranscriptionReachesTransport(t *testing.T) {
	cfg := testConfig()
	cfg.RecordCalls = true
	cfg.TranscribeCalls = true
	svc, transport, leads, calls := newTestService(t, cfg)
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	var captured telephony.CallRequest
	transport.On("PlaceCall", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(telephony.CallRequest)
	}).Return(&telephony.CallResult{SID: "CA4", Status: "queued"}, nil)
	calls.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: l.ID})
	require.NoError(t, err)

	assert.True(t, captured.Transcribe)
	assert.Contains(t, captured.TranscriptionCallbackURL, "/webhooks/voice/recording?")
	assert.Contains(t, captured.TranscriptionCallbackURL, "transcribe=true")
	assert.Contains(t, captured.AnswerURL, "record=true")
	assert.Contains(t, captured.AnswerURL, "transcribe=true")
}

func TestInitiateCall_NoTranscriptionWithoutRecordingAtTransport(t *testing.T) {
	cfg := testConfig()
	cfg.RecordCalls = false
	cfg.TranscribeCalls = true
	svc, transport, leads, calls := newTestService(t, cfg)
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	var captured telephony.CallRequest
	transport.On("PlaceCall", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(telephony.CallRequest)
	}).Return(&telephony.CallResult{SID: "CA5", Status: "queued"}, nil)
	calls.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: l.ID})
	require.NoError(t, err)

	assert.False(t, captured.Transcribe)
	assert.Empty(t, captured.TranscriptionCallbackURL)
	assert.NotContains(t, captured.AnswerURL, "transcribe=true")
}

func TestInitiateCall_TransportErrorPropagates(t *testing.T) {
	svc, transport, leads, _ := newTestService(t, testConfig())
	l := testLead(t)

	leads.On("GetByID", mock.Anything, l.ID).Return(l, nil)
	transport.On("PlaceCall", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: l.ID})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestInitiateCall_UnknownLead(t *testing.T) {
	svc, _, leads, _ := newTestService(t, testConfig())
	id := uuid.New()

	leads.On("GetByID", mock.Anything, id).Return(nil, apperrors.ErrLeadNotFound)

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{LeadID: id})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestInitiateCall_NilLeadID(t *testing.T) {
	svc, _, _, _ := newTestService(t, testConfig())

	_, err := svc.InitiateCall(context.Background(), InitiateCallRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func signWebhook(secret, rawURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(rawURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhook(t *testing.T) {
	svc, _, _, _ := newTestService(t, testConfig())
	url := "https://crm.example.com/webhooks/voice/answer?lead_id=abc"
	params := map[string]string{"CallSid": "CA1", "CallStatus": "in-progress"}

	valid := signWebhook("token", url, params)
	assert.True(t, svc.ValidateWebhook(valid, url, params))
	assert.False(t, svc.ValidateWebhook("bogus", url, params))
	assert.False(t, svc.ValidateWebhook("", url, params))
	assert.False(t, svc.ValidateWebhook(valid, url+"&extra=1", params))
}

func TestValidateWebhook_PrefersExplicitSecret(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookSecret = "separate-secret"
	svc, _, _, _ := newTestService(t, cfg)

	url := "https://crm.example.com/webhooks/voice/status"
	params := map[string]string{"CallSid": "CA2"}

	assert.True(t, svc.ValidateWebhook(signWebhook("separate-secret", url, params), url, params))
	assert.False(t, svc.ValidateWebhook(signWebhook("token", url, params), url, params))
}

func TestHandleStatusCallback_TerminalStampsEnd(t *testing.T) {
	svc, _, _, calls := newTestService(t, testConfig())

	calls.On("UpdateStatus", mock.Anything, "CA5", "completed",
		mock.MatchedBy(func(endedAt *time.Time) bool { return endedAt != nil })).Return(nil)
	calls.On("UpdateStatus", mock.Anything, "CA5", "ringing",
		(*time.Time)(nil)).Return(nil)

	require.NoError(t, svc.HandleStatusCallback(context.Background(), "CA5", "completed"))
	require.NoError(t, svc.HandleStatusCallback(context.Background(), "CA5", "ringing"))
	calls.AssertExpectations(t)
}
