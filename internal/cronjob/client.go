package cronjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-reminders/internal/schedule"
)

const (
	DefaultBaseURL = "https://api.cron-job.org"
	DefaultTimeout = 15 * time.Second

	// requestMethodPost is the remote scheduler's numeric code for POST.
	requestMethodPost = 1
	// jobRequestTimeout is how long the remote scheduler waits on our callback, in seconds.
	jobRequestTimeout = 30

	// CallbackSecretHeader carries the shared secret on every job callback.
	CallbackSecretHeader = "X-Callback-Secret"
)

var ErrRemoteScheduler = errors.New("cronjob: remote scheduler error")

// RemoteSchedulerError describes a failed call against the remote scheduler.
type RemoteSchedulerError struct {
	Op         string
	JobID      int64
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteSchedulerError) Error() string {
	var b strings.Builder
	b.WriteString("cronjob: ")
	b.WriteString(e.Op)
	if e.JobID != 0 {
		fmt.Fprintf(&b, " job %d", e.JobID)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RemoteSchedulerError) Unwrap() error { return e.Err }

func (e *RemoteSchedulerError) Is(target error) bool { return target == ErrRemoteScheduler }

// CallbackPayload is what the remote scheduler posts back to the execution
// endpoint. Only GoalID is authoritative.
type CallbackPayload struct {
	GoalID      string `json:"goal_id"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Task        string `json:"task,omitempty"`
	Language    string `json:"language,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

// JobSpec is the input of CreateJob.
type JobSpec struct {
	Title    string
	URL      string
	Enabled  bool
	Schedule schedule.Schedule
	Payload  CallbackPayload
	// Headers are sent by the remote scheduler with every callback.
	Headers map[string]string
}

// Job is the subset of remote job details the service reads back.
type Job struct {
	JobID   int64  `json:"jobId"`
	Enabled bool   `json:"enabled"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	// NextExecution is a unix timestamp, 0 when nothing is planned.
	NextExecution int64             `json:"nextExecution"`
	LastExecution int64             `json:"lastExecution"`
	LastStatus    int               `json:"lastStatus"`
	Schedule      schedule.Schedule `json:"schedule"`
}

// NextExecutionTime reports the planned execution, if any.
func (j Job) NextExecutionTime() (time.Time, bool) {
	if j.NextExecution <= 0 {
		return time.Time{}, false
	}
	return time.Unix(j.NextExecution, 0).UTC(), true
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the cron-job.org REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("cronjob: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type extendedData struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
}

type jobBody struct {
	Enabled        bool              `json:"enabled"`
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	SaveResponses  bool              `json:"saveResponses"`
	RequestTimeout int               `json:"requestTimeout"`
	RequestMethod  int               `json:"requestMethod"`
	ExtendedData   extendedData      `json:"extendedData"`
	Schedule       schedule.Schedule `json:"schedule"`
}

// CreateJob creates the remote job and returns its id.
func (c *Client) CreateJob(ctx context.Context, spec JobSpec) (int64, error) {
	payload, err := json.Marshal(spec.Payload)
	if err != nil {
		return 0, &RemoteSchedulerError{Op: "create", Err: err}
	}
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range spec.Headers {
		headers[k] = v
	}

	req := map[string]jobBody{"job": {
		Enabled:        spec.Enabled,
		Title:          spec.Title,
		URL:            spec.URL,
		SaveResponses:  true,
		RequestTimeout: jobRequestTimeout,
		RequestMethod:  requestMethodPost,
		ExtendedData:   extendedData{Headers: headers, Body: string(payload)},
		Schedule:       spec.Schedule,
	}}

	var resp struct {
		JobID int64 `json:"jobId"`
	}
	if err := c.do(ctx, "create", 0, http.MethodPut, "/jobs", req, &resp); err != nil {
		return 0, err
	}
	if resp.JobID <= 0 {
		return 0, &RemoteSchedulerError{Op: "create", Err: errors.New("response has no jobId")}
	}
	return resp.JobID, nil
}

// GetJob fetches job details.
func (c *Client) GetJob(ctx context.Context, jobID int64) (Job, error) {
	var resp struct {
		JobDetails Job `json:"jobDetails"`
	}
	if err := c.do(ctx, "get", jobID, http.MethodGet, jobPath(jobID), nil, &resp); err != nil {
		return Job{}, err
	}
	return resp.JobDetails, nil
}

// SetEnabled enables or disables a job.
func (c *Client) SetEnabled(ctx context.Context, jobID int64, enabled bool) error {
	body := map[string]any{"job": map[string]bool{"enabled": enabled}}
	return c.do(ctx, "set_enabled", jobID, http.MethodPatch, jobPath(jobID), body, nil)
}

// DeleteJob removes a job.
func (c *Client) DeleteJob(ctx context.Context, jobID int64) error {
	return c.do(ctx, "delete", jobID, http.MethodDelete, jobPath(jobID), nil, nil)
}

// ListJobs returns every job of the account.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var resp struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, "list", 0, http.MethodGet, "/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func jobPath(jobID int64) string {
	return "/jobs/" + strconv.FormatInt(jobID, 10)
}

func (c *Client) do(ctx context.Context, op string, jobID int64, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &RemoteSchedulerError{Op: op, JobID: jobID, Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &RemoteSchedulerError{Op: op, JobID: jobID, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteSchedulerError{Op: op, JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteSchedulerError{Op: op, JobID: jobID, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &RemoteSchedulerError{Op: op, JobID: jobID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
