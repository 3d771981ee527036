package outreach

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/siddartha1192/bharat-crm-sub009/internal/domain/errors"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/config"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/database"
	"github.com/siddartha1192/bharat-crm-sub009/internal/infrastructure/telephony"
)

// Service is the call session initiator.
type Service struct {
	transport Transport
	leads     LeadRepository
	calls     CallRepository
	cfg       config.TelephonyConfig
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewService validates the telephony credentials up front. A blank account
// SID or auth token (after trimming whitespace) is a configuration error;
// the error never carries the credential values themselves.
func NewService(
	transport Transport,
	leads LeadRepository,
	calls CallRepository,
	cfg config.TelephonyConfig,
	logger *slog.Logger,
) (*Service, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.ErrMissingCredentials
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, errors.NewConfigurationError("MISSING_FROM_NUMBER",
			"telephony from number is not configured")
	}
	if strings.TrimSpace(cfg.CallbackBaseURL) == "" {
		return nil, errors.NewConfigurationError("MISSING_CALLBACK_URL",
			"telephony callback base URL is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	perSecond := cfg.DialsPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.DialBurst
	if burst <= 0 {
		burst = 1
	}

	return &Service{
		transport: transport,
		leads:     leads,
		calls:     calls,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:    logger,
	}, nil
}

// InitiateCall places one outbound call to the lead. Transcription is only
// honored when recording is on; a transcribe request without recording is
// downgraded, not rejected.
func (s *Service) InitiateCall(ctx context.Context, req InitiateCallRequest) (*CallSessionResult, error) {
	if req.LeadID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_LEAD_ID", "lead ID is required")
	}
	callType := req.CallType
	if callType == "" {
		callType = CallTypeOutreach
	}

	l, err := s.leads.GetByID(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	record := s.cfg.RecordCalls
	if req.Record != nil {
		record = *req.Record
	}
	transcribe := s.cfg.TranscribeCalls
	if req.Transcribe != nil {
		transcribe = *req.Transcribe
	}
	if transcribe && !record {
		s.logger.Warn("transcription requested without recording, disabling",
			"lead_id", l.ID.String(),
		)
		transcribe = false
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dial rate limit wait: %w", err)
	}

	// The answer webhook carries the resolved flags so the session can
	// remember what the call was placed with.
	answerQuery := url.Values{}
	if record {
		answerQuery.Set("record", "true")
	}
	if transcribe {
		answerQuery.Set("transcribe", "true")
	}

	callReq := telephony.CallRequest{
		To:                 l.Phone,
		From:               s.cfg.FromNumber,
		AnswerURL:          s.webhookURL("/webhooks/voice/answer", l.ID, callType, answerQuery),
		StatusCallbackURL:  s.webhookURL("/webhooks/voice/status", l.ID, callType, nil),
		RingTimeoutSeconds: int(s.cfg.RingTimeout.Seconds()),
		MachineDetection:   s.cfg.MachineDetection,
		Record:             record,
		Transcribe:         transcribe,
	}
	if record {
		callReq.RecordingCallbackURL = s.webhookURL("/webhooks/voice/recording", l.ID, callType, nil)
		if transcribe {
			callReq.TranscriptionCallbackURL = s.webhookURL("/webhooks/voice/recording", l.ID, callType,
				url.Values{"transcribe": {"true"}})
		}
	}

	result, err := s.transport.PlaceCall(ctx, callReq)
	if err != nil {
		s.logger.Error("outbound call placement failed",
			"lead_id", l.ID.String(),
			"call_type", string(callType),
			"error", err,
		)
		return nil, errors.NewExternalError("telephony",
			"failed to place outbound call").WithCause(err)
	}

	startedAt := time.Now()
	rec := &database.CallRecord{
		SID:         uuid.New(),
		ProviderSID: result.SID,
		LeadID:      l.ID,
		TenantID:    l.TenantID,
		ToNumber:    result.To,
		FromNumber:  result.From,
		CallType:    string(callType),
		Status:      result.Status,
		StartedAt:   startedAt,
	}
	if err := s.calls.Create(ctx, rec); err != nil {
		// The call is already ringing; losing the record is logged, not fatal.
		s.logger.Error("failed to persist call record",
			"provider_sid", result.SID,
			"error", err,
		)
	}

	s.logger.Info("outbound call initiated",
		"lead_id", l.ID.String(),
		"call_sid", result.SID,
		"call_type", string(callType),
		"record", record,
		"transcribe", transcribe,
	)

	return &CallSessionResult{
		SID:        result.SID,
		Status:     result.Status,
		To:         result.To,
		From:       result.From,
		Direction:  result.Direction,
		Record:     record,
		Transcribe: transcribe,
		CallType:   callType,
		StartedAt:  startedAt,
	}, nil
}

// ValidateWebhook checks a webhook's authenticity against the signing
// secret. It never panics and never errors; any failure is false.
func (s *Service) ValidateWebhook(signature, url string, params map[string]string) bool {
	return telephony.ValidateSignature(signature, url, params, s.cfg.SigningSecret())
}

// HandleStatusCallback applies a provider lifecycle event to the call record.
func (s *Service) HandleStatusCallback(ctx context.Context, providerSID, status string) error {
	var endedAt *time.Time
	switch status {
	case "completed", "failed", "busy", "no-answer", "canceled":
		now := time.Now()
		endedAt = &now
	}
	return s.calls.UpdateStatus(ctx, providerSID, status, endedAt)
}

// HandleRecordingCallback stores the recording URL for the call. When the
// call was placed with transcription, the stored recording is flagged for
// the transcript pipeline.
func (s *Service) HandleRecordingCallback(ctx context.Context, providerSID, recordingURL string, transcribe bool) error {
	if err := s.calls.AttachRecording(ctx, providerSID, recordingURL); err != nil {
		return err
	}
	if transcribe {
		s.logger.Info("recording stored, transcript requested",
			"provider_sid", providerSID,
		)
	}
	return nil
}

func (s *Service) webhookURL(path string, leadID uuid.UUID, callType CallType, extra url.Values) string {
	q := url.Values{}
	q.Set("lead_id", leadID.String())
	q.Set("call_type", string(callType))
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return strings.TrimRight(s.cfg.CallbackBaseURL, "/") + path + "?" + q.Encode()
}
