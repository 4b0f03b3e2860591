package flux

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeService scripts a BFL-style endpoint: one submit route and a polling
// route whose answers are consumed in order, repeating the last one.
type fakeService struct {
	t          *testing.T
	pollBodies []string
	submits    int
	polls      int
	lastSubmit map[string]interface{}
	sample     []byte
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("x-key"); got != "test-key" {
			f.t.Errorf("submit x-key = %q, want test-key", got)
		}
		f.submits++
		f.lastSubmit = map[string]interface{}{}
		if err := json.NewDecoder(r.Body).Decode(&f.lastSubmit); err != nil {
			f.t.Errorf("submit body not JSON: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id":          "job-1",
			"polling_url": "http://" + r.Host + "/result",
		})
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "job-1" {
			f.t.Errorf("poll id = %q, want job-1", got)
		}
		body := f.pollBodies[len(f.pollBodies)-1]
		if f.polls < len(f.pollBodies) {
			body = f.pollBodies[f.polls]
		}
		f.polls++
		w.Write([]byte(body))
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write(f.sample)
	})
	return mux
}

func newFakeService(t *testing.T, pollBodies ...string) (*fakeService, *Client) {
	t.Helper()
	f := &fakeService{t: t, pollBodies: pollBodies, sample: []byte("fake-image-bytes")}
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)
	client := NewWithClient(server.URL, "test-key", "flux-kontext-pro", server.Client())
	return f, client
}

func readyBody(host string) string {
	return `{"status":"Ready","result":{"sample":"http://` + host + `/download"}}`
}

func TestGenerateLifecycle(t *testing.T) {
	f, client := newFakeService(t,
		`{"status":"Pending"}`,
		`{"status":"Processing"}`,
	)
	// The ready body needs the server host, which only exists now.
	job, err := client.Submit(context.Background(), GenerateRequest{Prompt: "probe"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	host := strings.TrimPrefix(job.PollingURL, "http://")
	host = strings.TrimSuffix(host, "/result")
	f.pollBodies = append(f.pollBodies, readyBody(host))
	f.polls = 0
	f.submits = 0

	input := []byte{0x89, 0x50, 0x4e, 0x47}
	got, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:       "compact the layout",
		AspectRatio:  "4:3",
		InputImage:   input,
		PollInterval: 5 * time.Millisecond,
		Timeout:      2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(got, f.sample) {
		t.Errorf("Generate() = %q, want %q", got, f.sample)
	}
	if f.submits != 1 {
		t.Errorf("submits = %d, want 1", f.submits)
	}
	if f.polls != 3 {
		t.Errorf("polls = %d, want 3 (two pending, one ready)", f.polls)
	}

	if f.lastSubmit["prompt"] != "compact the layout" {
		t.Errorf("submitted prompt = %v", f.lastSubmit["prompt"])
	}
	if f.lastSubmit["aspect_ratio"] != "4:3" {
		t.Errorf("submitted aspect_ratio = %v", f.lastSubmit["aspect_ratio"])
	}
	if f.lastSubmit["input_image"] != base64.StdEncoding.EncodeToString(input) {
		t.Errorf("submitted input_image not base64 of the input")
	}
}

func TestGenerateBase64Sample(t *testing.T) {
	want := []byte("decoded-image")
	_, client := newFakeService(t,
		`{"status":"Ready","result":{"sample":"`+base64.StdEncoding.EncodeToString(want)+`"}}`,
	)

	got, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:       "probe",
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}

func TestGenerateJobFailed(t *testing.T) {
	_, client := newFakeService(t,
		`{"status":"Pending"}`,
		`{"status":"Error","details":"content moderation"}`,
	)

	_, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:       "probe",
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("Generate() error = %v, want ErrJobFailed", err)
	}
	if !strings.Contains(err.Error(), "moderation") {
		t.Errorf("error %q does not carry the service detail", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	_, client := newFakeService(t, `{"status":"Pending"}`)

	start := time.Now()
	_, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:       "probe",
		PollInterval: 5 * time.Millisecond,
		Timeout:      40 * time.Millisecond,
	})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Generate() error = %v, want ErrPollTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s, polling did not stop promptly", elapsed)
	}
}

func TestGenerateReadyWithoutSample(t *testing.T) {
	_, client := newFakeService(t, `{"status":"Ready","result":{}}`)

	_, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:       "probe",
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
	})
	if !errors.Is(err, ErrJobFailed) {
		t.Errorf("Generate() error = %v, want ErrJobFailed", err)
	}
}

func TestGenerateContextCancelled(t *testing.T) {
	_, client := newFakeService(t, `{"status":"Pending"}`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(15*time.Millisecond, cancel)

	_, err := client.Generate(ctx, GenerateRequest{
		Prompt:       "probe",
		PollInterval: 5 * time.Millisecond,
		Timeout:      time.Minute,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestGenerateEachCallSubmitsFreshJob(t *testing.T) {
	f, client := newFakeService(t, `{"status":"Error","details":"boom"}`)

	request := GenerateRequest{Prompt: "probe", PollInterval: time.Millisecond, Timeout: time.Second}
	for i := 0; i < 3; i++ {
		if _, err := client.Generate(context.Background(), request); !errors.Is(err, ErrJobFailed) {
			t.Fatalf("call %d: error = %v, want ErrJobFailed", i, err)
		}
	}
	if f.submits != 3 {
		t.Errorf("submits = %d, want 3 (no caching between calls)", f.submits)
	}
}

func TestPollStatusMapping(t *testing.T) {
	tests := []struct {
		service string
		want    Status
	}{
		{"Pending", StatusPending},
		{"Queued", StatusPending},
		{"Processing", StatusPending},
		{"Request Moderated", StatusPending},
		{"Ready", StatusReady},
		{"Error", StatusFailed},
		{"Failed", StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			_, client := newFakeService(t, `{"status":"`+tt.service+`"}`)
			job, err := client.Submit(context.Background(), GenerateRequest{Prompt: "probe"})
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			polled, err := client.Poll(context.Background(), job)
			if err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			if polled.Status != tt.want {
				t.Errorf("Poll(%q) status = %q, want %q", tt.service, polled.Status, tt.want)
			}
		})
	}
}

func TestSubmitServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewWithClient(server.URL, "", "flux-kontext-pro", server.Client())
	_, err := client.Submit(context.Background(), GenerateRequest{Prompt: "probe"})
	if err == nil || !strings.Contains(err.Error(), "BFL API error") {
		t.Errorf("Submit() error = %v, want BFL API error", err)
	}
}
