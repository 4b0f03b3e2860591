package flux

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = 750 * time.Millisecond
	DefaultTimeout      = 5 * time.Minute
	DefaultAspectRatio  = "1:1"

	defaultBaseURL = "https://api.bfl.ai"
	defaultModel   = "flux-kontext-pro"
)

var (
	// ErrJobFailed covers every failure reported by the generation service
	// itself: a failed job status or a ready job with no sample.
	ErrJobFailed = errors.New("generation job reported failure")
	// ErrPollTimeout is returned when the configured timeout elapses before
	// the job reaches a terminal status.
	ErrPollTimeout = errors.New("polling timed out before result was ready")
)

// Status is the tagged lifecycle state of a submitted job. Every service
// status string collapses into one of these three, so the poll loop has
// exactly one transition per state.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

type ItfFlux interface {
	Generate(ctx context.Context, request GenerateRequest) ([]byte, error)
}

type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	// InputImage, when set, is sent base64-encoded for image-to-image
	// editing.
	InputImage   []byte
	PollInterval time.Duration
	Timeout      time.Duration
}

type Job struct {
	ID         string
	PollingURL string
}

type PollResult struct {
	Status    Status
	SampleRef string
	Detail    string
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func New() *Client {
	baseURL := os.Getenv("BFL_API_BASE")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := os.Getenv("BFL_MODEL")
	if model == "" {
		model = defaultModel
	}
	apiKey := os.Getenv("BFL_API_KEY")
	if apiKey == "" {
		logrus.Warn("BFL_API_KEY is not set, generation requests will be rejected by the service")
	}

	return NewWithClient(baseURL, apiKey, model, &http.Client{Timeout: 60 * time.Second})
}

func NewWithClient(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    httpClient,
	}
}

type submitPayload struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	InputImage  string `json:"input_image,omitempty"`
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type pollResponse struct {
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// Submit starts one generation job and returns its handle. Every call is a
// brand-new job; the service does no deduplication and neither do we.
func (c *Client) Submit(ctx context.Context, request GenerateRequest) (Job, error) {
	aspectRatio := request.AspectRatio
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}
	payload := submitPayload{
		Prompt:      request.Prompt,
		AspectRatio: aspectRatio,
	}
	if len(request.InputImage) > 0 {
		payload.InputImage = base64.StdEncoding.EncodeToString(request.InputImage)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}

	url := c.baseURL + "/v1/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return Job{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Job{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Job{}, fmt.Errorf("BFL API error: %s", resp.Status)
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return Job{}, err
	}
	if submitted.ID == "" || submitted.PollingURL == "" {
		return Job{}, fmt.Errorf("BFL API returned no job handle")
	}
	return Job{ID: submitted.ID, PollingURL: submitted.PollingURL}, nil
}

// Poll fetches the job's current state once. Service statuses map onto the
// tagged lifecycle: Ready is ready, Error and Failed are failed, everything
// else (Pending, Queued, Processing, moderation holds) is pending.
func (c *Client) Poll(ctx context.Context, job Job) (PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.PollingURL, nil)
	if err != nil {
		return PollResult{}, err
	}
	query := req.URL.Query()
	query.Set("id", job.ID)
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return PollResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PollResult{}, fmt.Errorf("BFL API error: %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return PollResult{}, err
	}
	var polled pollResponse
	if err := json.Unmarshal(raw, &polled); err != nil {
		return PollResult{}, err
	}

	switch polled.Status {
	case "Ready":
		return PollResult{Status: StatusReady, SampleRef: polled.Result.Sample}, nil
	case "Error", "Failed":
		return PollResult{Status: StatusFailed, Detail: strings.TrimSpace(string(raw))}, nil
	default:
		return PollResult{Status: StatusPending}, nil
	}
}

// Fetch resolves a sample reference into image bytes. The service returns
// either a download URL or the base64-encoded image itself.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("sample download error: %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	}

	decoded, err := base64.StdEncoding.DecodeString(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: sample is neither a URL nor base64 data", ErrJobFailed)
	}
	return decoded, nil
}

// Generate runs the full blocking lifecycle: submit, poll at PollInterval
// until the job leaves pending, then fetch the result. The deadline is
// checked before every poll sleep; crossing it returns ErrPollTimeout and
// abandons the remote job. A failed status returns ErrJobFailed carrying the
// service's detail.
func (c *Client) Generate(ctx context.Context, request GenerateRequest) ([]byte, error) {
	interval := request.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := request.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	job, err := c.Submit(ctx, request)
	if err != nil {
		return nil, err
	}
	logrus.Debug(fmt.Sprintf("Submitted generation job %s", job.ID))

	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w (job %s, waited %s)", ErrPollTimeout, job.ID, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		polled, err := c.Poll(ctx, job)
		if err != nil {
			return nil, err
		}

		switch polled.Status {
		case StatusReady:
			if polled.SampleRef == "" {
				return nil, fmt.Errorf("%w: no sample in API response (job %s)", ErrJobFailed, job.ID)
			}
			return c.Fetch(ctx, polled.SampleRef)
		case StatusFailed:
			return nil, fmt.Errorf("%w: %s (job %s)", ErrJobFailed, polled.Detail, job.ID)
		}
	}
}
