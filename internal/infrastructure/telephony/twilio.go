// Package telephony is the Twilio-backed implementation of the external
// call transport: outbound call placement, webhook signature validation and
// TwiML instruction rendering.
package telephony

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// CallRequest is a normalized outbound call placement request.
type CallRequest struct {
	To   string
	From string

	// AnswerURL receives the first conversational turn; StatusCallbackURL
	// receives lifecycle events.
	AnswerURL         string
	StatusCallbackURL string

	// RingTimeoutSeconds bounds busy/no-answer ringing.
	RingTimeoutSeconds int

	MachineDetection bool

	Record               bool
	RecordingCallbackURL string

	// Transcribe only takes effect when Record is set. The create-call API
	// has no transcription parameter, so the request rides the recording
	// callback: TranscriptionCallbackURL replaces RecordingCallbackURL and
	// carries the transcription marker for the recording webhook.
	Transcribe               bool
	TranscriptionCallbackURL string
}

// CallResult is the transport's normalized view of a placed call.
type CallResult struct {
	SID       string
	Status    string
	To        string
	From      string
	Direction string
}

// Client places calls through the Twilio REST API.
type Client struct {
	api    *twilio.RestClient
	logger *slog.Logger
}

// NewClient builds a transport client for the given account credentials.
func NewClient(accountSID, authToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Client{api: api, logger: logger}
}

// PlaceCall creates the outbound call. Transport errors are returned
// unmodified; the caller decides whether a retry is safe.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) (*CallResult, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.AnswerURL)
	params.SetMethod("POST")

	if req.StatusCallbackURL != "" {
		params.SetStatusCallback(req.StatusCallbackURL)
		params.SetStatusCallbackMethod("POST")
		params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	}
	if req.RingTimeoutSeconds > 0 {
		params.SetTimeout(req.RingTimeoutSeconds)
	}
	if req.MachineDetection {
		params.SetMachineDetection("Enable")
	}
	if req.Record {
		params.SetRecord(true)
		callbackURL := req.RecordingCallbackURL
		if req.Transcribe && req.TranscriptionCallbackURL != "" {
			callbackURL = req.TranscriptionCallbackURL
		}
		if callbackURL != "" {
			params.SetRecordingStatusCallback(callbackURL)
			params.SetRecordingStatusCallbackMethod("POST")
		}
	}

	call, err := c.api.Api.CreateCall(params)
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}

	result := &CallResult{
		SID:       deref(call.Sid),
		Status:    deref(call.Status),
		To:        deref(call.To),
		From:      deref(call.From),
		Direction: deref(call.Direction),
	}

	c.logger.InfoContext(ctx, "outbound call placed",
		"call_sid", result.SID,
		"to", result.To,
		"status", result.Status,
	)
	return result, nil
}

// ValidateSignature checks a webhook's HMAC signature against the signing
// secret. It never panics and never returns an error: any internal failure
// collapses to false, since this gates untrusted input.
func ValidateSignature(signature, url string, params map[string]string, secret string) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			valid = false
		}
	}()
	if secret == "" || signature == "" {
		return false
	}
	validator := twilioclient.NewRequestValidator(secret)
	return validator.Validate(url, params, signature)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
