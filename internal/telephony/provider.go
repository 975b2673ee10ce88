package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// VoiceProvider places outbound AI voice calls.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Request/response types stay provider-agnostic.
type VoiceProvider interface {
	Name() string
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
}

// PlaceCallRequest is one outbound reminder call.
type PlaceCallRequest struct {
	// ToNumber is E.164.
	ToNumber string `json:"to_number"`
	// Script is the task text the voice agent follows.
	Script   string `json:"script"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
	// WebhookURL receives the call outcome.
	WebhookURL string `json:"webhook_url,omitempty"`
}

type PlaceCallResult struct {
	// CallID is the provider's call identifier.
	CallID string `json:"call_id"`
	Status string `json:"status,omitempty"`
}

var ErrVoiceCall = errors.New("telephony: voice call failed")

// VoiceCallError is returned when the provider rejects or never answers a call request.
type VoiceCallError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *VoiceCallError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("telephony: voice call status %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return "telephony: voice call: " + e.Err.Error()
	case e.Body != "":
		return fmt.Sprintf("telephony: voice call status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("telephony: voice call status %d", e.StatusCode)
	}
}

func (e *VoiceCallError) Unwrap() error { return e.Err }

func (e *VoiceCallError) Is(target error) bool { return target == ErrVoiceCall }

// CallOutcome is the provider-agnostic outcome delivered by the voice webhook.
type CallOutcome struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`

	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	Completed       *bool   `json:"completed,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndAt     *time.Time `json:"end_at,omitempty"`

	Transcript     *string  `json:"transcript,omitempty"`
	Summary        *string  `json:"summary,omitempty"`
	DispositionTag *string  `json:"disposition_tag,omitempty"`
	AnsweredBy     *string  `json:"answered_by,omitempty"`
	CallEndedBy    *string  `json:"call_ended_by,omitempty"`
	Cost           *float64 `json:"cost,omitempty"`

	// Raw is the webhook body as received.
	Raw string `json:"-"`
}
