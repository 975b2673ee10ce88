package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBlandBaseURL = "https://api.bland.ai"
	DefaultCallTimeout  = 30 * time.Second
)

type BlandConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// BlandProvider submits calls to a Bland-style voice API.
type BlandProvider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewBlandProvider(cfg BlandConfig) (*BlandProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("telephony: voice api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBlandBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &BlandProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (p *BlandProvider) Name() string { return "bland" }

type blandCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Task        string `json:"task"`
	Voice       string `json:"voice,omitempty"`
	Language    string `json:"language,omitempty"`
	Webhook     string `json:"webhook,omitempty"`
}

type blandCallResponse struct {
	Status  string `json:"status"`
	CallID  string `json:"call_id"`
	Message string `json:"message"`
}

func (p *BlandProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if strings.TrimSpace(req.ToNumber) == "" {
		return PlaceCallResult{}, &VoiceCallError{Err: errors.New("to_number is required")}
	}
	if strings.TrimSpace(req.Script) == "" {
		return PlaceCallResult{}, &VoiceCallError{Err: errors.New("script is required")}
	}

	b, err := json.Marshal(blandCallRequest{
		PhoneNumber: req.ToNumber,
		Task:        req.Script,
		Voice:       req.VoiceID,
		Language:    req.Language,
		Webhook:     req.WebhookURL,
	})
	if err != nil {
		return PlaceCallResult{}, &VoiceCallError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/calls", bytes.NewReader(b))
	if err != nil {
		return PlaceCallResult{}, &VoiceCallError{Err: err}
	}
	httpReq.Header.Set("authorization", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return PlaceCallResult{}, &VoiceCallError{Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PlaceCallResult{}, &VoiceCallError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out blandCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return PlaceCallResult{}, &VoiceCallError{StatusCode: resp.StatusCode, Err: err}
	}
	if out.CallID == "" {
		msg := out.Message
		if msg == "" {
			msg = "response has no call_id"
		}
		return PlaceCallResult{}, &VoiceCallError{StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return PlaceCallResult{CallID: out.CallID, Status: out.Status}, nil
}
