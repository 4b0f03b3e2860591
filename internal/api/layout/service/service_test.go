package layoutService

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"LayoutGolang/internal/api/layout"
	layoutRepository "LayoutGolang/internal/api/layout/repository"
	"LayoutGolang/internal/entity"
	"LayoutGolang/internal/pipeline"
	"LayoutGolang/pkg/flux"
	"LayoutGolang/pkg/prompt"
	"LayoutGolang/pkg/utils"

	"github.com/sirupsen/logrus"
)

// layoutPNG renders count non-overlapping blockW x blockH blocks on a white
// 800x600 canvas, matching what the validator expects from a layout image.
func layoutPNG(t *testing.T, count, blockW, blockH int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	colors := []color.RGBA{
		{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255},
		{255, 165, 0, 255}, {255, 255, 0, 255},
	}
	for i := 0; i < count; i++ {
		x0 := 20 + (i%4)*190
		y0 := 30 + (i/4)*280
		c := colors[i%len(colors)]
		for y := y0; y < y0+blockH; y++ {
			for x := x0; x < x0+blockW; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// multipartImage builds a real *multipart.FileHeader the way fiber's FormFile
// would, so ReadMultipartFile works against it.
func multipartImage(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="image"; filename=%q`, filename)},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["image"][0]
}

type fakeRunStore struct {
	mu         sync.Mutex
	runs       map[string]entity.LayoutRun
	candidates map[string][]entity.LayoutCandidate
	created    []entity.LayoutRun
	updated    []entity.LayoutRun
	listRuns   []entity.LayoutRun
	lastLimit  int
	lastOffset int
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs:       make(map[string]entity.LayoutRun),
		candidates: make(map[string][]entity.LayoutCandidate),
	}
}

func (f *fakeRunStore) CreateRun(_ context.Context, run entity.LayoutRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, run)
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRunStore) UpdateRunResult(_ context.Context, run entity.LayoutRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, run)
	return nil
}

func (f *fakeRunStore) GetRunByID(_ context.Context, id string) (entity.LayoutRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return entity.LayoutRun{}, layout.ErrRunNotFound
	}
	return run, nil
}

func (f *fakeRunStore) GetRuns(_ context.Context, limit int, offset int) ([]entity.LayoutRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit, f.lastOffset = limit, offset
	return f.listRuns, nil
}

func (f *fakeRunStore) CountRuns(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listRuns), nil
}

func (f *fakeRunStore) CreateCandidate(_ context.Context, candidate entity.LayoutCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates[candidate.RunID] = append(f.candidates[candidate.RunID], candidate)
	return nil
}

func (f *fakeRunStore) GetCandidatesByRunID(_ context.Context, runID string) ([]entity.LayoutCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidates[runID], nil
}

type fakeRepository struct {
	store     *fakeRunStore
	clients   int
	commits   int
	rollbacks int
}

func (f *fakeRepository) NewClient(bool) (layoutRepository.Client, error) {
	f.clients++
	return layoutRepository.Client{
		Runs:     f.store,
		Commit:   func() error { f.commits++; return nil },
		Rollback: func() error { f.rollbacks++; return nil },
	}, nil
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    int
	lastReq  flux.GenerateRequest
	generate func(call int) ([]byte, error)
}

func (f *fakeGenerator) Generate(_ context.Context, req flux.GenerateRequest) ([]byte, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	return f.generate(call)
}

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func (f *fakeRedis) SetRunStatus(_ context.Context, runID string, status string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[runID] = status
	return nil
}

func (f *fakeRedis) GetRunStatus(_ context.Context, runID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	value, ok := f.values[runID]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return value, nil
}

type fakeS3 struct {
	mu              sync.Mutex
	lastKey         string
	lastContentType string
	uploadedBytes   int
}

func (f *fakeS3) UploadBytes(key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKey, f.lastContentType = key, contentType
	f.uploadedBytes = len(data)
	return "https://layout-bucket.s3.amazonaws.com/" + key, nil
}

func (f *fakeS3) PresignUrl(fileURL string) (string, error) {
	return fileURL + "?signed=1", nil
}

func (f *fakeS3) DeleteFile(string) error { return nil }

type serviceFixture struct {
	svc   *layoutService
	store *fakeRunStore
	repo  *fakeRepository
	gen   *fakeGenerator
	redis *fakeRedis
	s3    *fakeS3
	dir   string
}

func newTestService(t *testing.T, gen *fakeGenerator) *serviceFixture {
	t.Helper()

	store := newFakeRunStore()
	repo := &fakeRepository{store: store}
	redisServer := &fakeRedis{}
	s3Client := &fakeS3{}
	dir := t.TempDir()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := prompt.Config{
		Model:       "flux-kontext-pro",
		Scene:       "compact the layout",
		AspectRatio: "1:1",
	}

	svc := NewLayoutService(logger, repo, gen, nil, cfg, nil, redisServer, s3Client, utils.New(), dir).(*layoutService)

	return &serviceFixture{
		svc:   svc,
		store: store,
		repo:  repo,
		gen:   gen,
		redis: redisServer,
		s3:    s3Client,
		dir:   dir,
	}
}

func TestOptimizeLayoutCompletesRun(t *testing.T) {
	candidates := [][]byte{
		layoutPNG(t, 4, 150, 120),
		layoutPNG(t, 3, 180, 250),
	}
	fx := newTestService(t, &fakeGenerator{generate: func(call int) ([]byte, error) {
		return candidates[call], nil
	}})

	events, unsubscribe := fx.svc.SubscribeProgress()
	defer unsubscribe()

	res, err := fx.svc.OptimizeLayout(context.Background(), layout.OptimizeRequest{
		NumCandidates: 2,
		Sequential:    true,
	}, multipartImage(t, "board.png", layoutPNG(t, 4, 100, 80)), "op-1")
	if err != nil {
		t.Fatalf("OptimizeLayout() error = %v", err)
	}

	if res.RunID == "" {
		t.Fatal("response has no run ID")
	}
	if res.Status != entity.RunStatusCompleted.String() {
		t.Errorf("status = %q, want completed", res.Status)
	}
	if res.SelectedIndex != 0 || res.SelectionReason != pipeline.ReasonMatched {
		t.Errorf("selection = (%d, %q), want (0, matched)", res.SelectedIndex, res.SelectionReason)
	}
	if res.Original.ShapeCount != 4 {
		t.Errorf("original shape count = %d, want 4", res.Original.ShapeCount)
	}
	if len(res.Candidates) != 2 || len(res.Failures) != 0 {
		t.Errorf("got %d candidates and %d failures, want 2 and 0",
			len(res.Candidates), len(res.Failures))
	}
	if !strings.HasPrefix(res.Prompt, "compact the layout") || !strings.Contains(res.Prompt, "Subjects:") {
		t.Errorf("prompt %q was not composed from scene and subjects", res.Prompt)
	}

	wantSelected := "/generated/" + res.RunID + "/flux_candidate_0.png"
	if res.SelectedURL != wantSelected {
		t.Errorf("selected URL = %q, want %q", res.SelectedURL, wantSelected)
	}
	if _, err := os.Stat(filepath.Join(fx.dir, res.RunID, "original.png")); err != nil {
		t.Errorf("original image was not stored: %v", err)
	}

	if len(fx.store.created) != 1 {
		t.Fatalf("created runs = %d, want 1", len(fx.store.created))
	}
	created := fx.store.created[0]
	if created.Status != entity.RunStatusRunning.String() || created.SelectedOrdinal != -1 {
		t.Errorf("created run = (%q, %d), want (running, -1)", created.Status, created.SelectedOrdinal)
	}
	if created.RequestedBy != "op-1" || created.NumCandidates != 2 {
		t.Errorf("created run operator/candidates = (%q, %d)", created.RequestedBy, created.NumCandidates)
	}

	if len(fx.store.updated) != 1 {
		t.Fatalf("updated runs = %d, want 1", len(fx.store.updated))
	}
	updated := fx.store.updated[0]
	if updated.Status != entity.RunStatusCompleted.String() || updated.SelectedOrdinal != 0 {
		t.Errorf("updated run = (%q, %d), want (completed, 0)", updated.Status, updated.SelectedOrdinal)
	}
	wantMirror := "https://layout-bucket.s3.amazonaws.com/layout-runs/" + res.RunID + "/winner.png"
	if updated.WinnerURL != wantMirror {
		t.Errorf("persisted winner URL = %q, want %q", updated.WinnerURL, wantMirror)
	}
	if res.WinnerMirrorURL != wantMirror+"?signed=1" {
		t.Errorf("response mirror URL = %q, want presigned location", res.WinnerMirrorURL)
	}
	if fx.s3.lastKey != "layout-runs/"+res.RunID+"/winner.png" || fx.s3.lastContentType != "image/png" {
		t.Errorf("s3 upload = (%q, %q)", fx.s3.lastKey, fx.s3.lastContentType)
	}

	stored := fx.store.candidates[res.RunID]
	if len(stored) != 2 {
		t.Fatalf("persisted candidates = %d, want 2", len(stored))
	}
	for _, candidate := range stored {
		if candidate.Status != entity.CandidateStatusValidated {
			t.Errorf("candidate %d status = %q, want validated", candidate.Ordinal, candidate.Status)
		}
		if candidate.ID == "" {
			t.Errorf("candidate %d has no row ID", candidate.Ordinal)
		}
	}
	if fx.repo.commits != 1 {
		t.Errorf("commits = %d, want 1", fx.repo.commits)
	}

	cached, ok := fx.redis.values[res.RunID]
	if !ok {
		t.Fatal("run status was not cached")
	}
	var status layout.RunStatusResponse
	if err := json.Unmarshal([]byte(cached), &status); err != nil {
		t.Fatalf("cached status is not JSON: %v", err)
	}
	if status.Status != entity.RunStatusCompleted.String() || status.Stage != string(pipeline.EventSelectionMade) {
		t.Errorf("cached status = (%q, %q), want (completed, selection_made)", status.Status, status.Stage)
	}

	unsubscribe()
	var seen []pipeline.EventType
	for ev := range events {
		seen = append(seen, ev.Type)
	}
	if len(seen) == 0 || seen[0] != pipeline.EventRunStarted || seen[len(seen)-1] != pipeline.EventSelectionMade {
		t.Errorf("event feed = %v, want run_started first and selection_made last", seen)
	}
}

func TestOptimizeLayoutRejectsBadUploads(t *testing.T) {
	header := func(size int64, contentType string) *multipart.FileHeader {
		return &multipart.FileHeader{
			Filename: "board.png",
			Size:     size,
			Header:   textproto.MIMEHeader{"Content-Type": {contentType}},
		}
	}

	tests := []struct {
		name    string
		req     layout.OptimizeRequest
		image   *multipart.FileHeader
		wantErr error
	}{
		{"missing image", layout.OptimizeRequest{}, nil, layout.ErrMissingImage},
		{"oversized", layout.OptimizeRequest{}, header(21<<20, "image/png"), layout.ErrFileTooLarge},
		{"not an image", layout.OptimizeRequest{}, header(100, "text/plain"), layout.ErrInvalidFileType},
		{"too many candidates", layout.OptimizeRequest{NumCandidates: 11}, header(100, "image/png"), layout.ErrTooManyCandidates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTestService(t, &fakeGenerator{generate: func(int) ([]byte, error) {
				return nil, errors.New("must not be called")
			}})

			_, err := fx.svc.OptimizeLayout(context.Background(), tt.req, tt.image, "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("OptimizeLayout() error = %v, want %v", err, tt.wantErr)
			}
			if fx.gen.calls != 0 {
				t.Errorf("generator was called %d times", fx.gen.calls)
			}
			if len(fx.store.created) != 0 {
				t.Errorf("run was persisted despite rejected upload")
			}
		})
	}
}

func TestOptimizeLayoutFailsFastOnBadOriginal(t *testing.T) {
	fx := newTestService(t, &fakeGenerator{generate: func(int) ([]byte, error) {
		return nil, errors.New("must not be called")
	}})

	_, err := fx.svc.OptimizeLayout(context.Background(), layout.OptimizeRequest{},
		multipartImage(t, "board.png", []byte("definitely not an image")), "")
	if !errors.Is(err, pipeline.ErrOriginalValidation) {
		t.Fatalf("OptimizeLayout() error = %v, want ErrOriginalValidation", err)
	}
	if fx.gen.calls != 0 {
		t.Errorf("generator was called %d times before fail-fast", fx.gen.calls)
	}
	if len(fx.store.created) != 0 {
		t.Errorf("run was persisted despite failed original validation")
	}
}

func TestOptimizeLayoutUsesProvidedPrompt(t *testing.T) {
	fx := newTestService(t, &fakeGenerator{generate: func(int) ([]byte, error) {
		return layoutPNG(t, 4, 150, 120), nil
	}})

	res, err := fx.svc.OptimizeLayout(context.Background(), layout.OptimizeRequest{
		Prompt:        "make it tight",
		NumCandidates: 1,
		Sequential:    true,
	}, multipartImage(t, "board.png", layoutPNG(t, 4, 100, 80)), "")
	if err != nil {
		t.Fatalf("OptimizeLayout() error = %v", err)
	}

	if res.Prompt != "make it tight" {
		t.Errorf("prompt = %q, want the provided text untouched", res.Prompt)
	}
	if res.Description != "" {
		t.Errorf("description = %q, want empty without scene description", res.Description)
	}
}

func TestOptimizeLayoutForwardsPollingKnobs(t *testing.T) {
	fx := newTestService(t, &fakeGenerator{generate: func(int) ([]byte, error) {
		return layoutPNG(t, 4, 150, 120), nil
	}})

	_, err := fx.svc.OptimizeLayout(context.Background(), layout.OptimizeRequest{
		Prompt:        "make it tight",
		NumCandidates: 1,
		Sleep:         0.5,
		Timeout:       120,
		Sequential:    true,
	}, multipartImage(t, "board.png", layoutPNG(t, 4, 100, 80)), "")
	if err != nil {
		t.Fatalf("OptimizeLayout() error = %v", err)
	}

	if fx.gen.lastReq.PollInterval != 500*time.Millisecond {
		t.Errorf("poll interval = %v, want 500ms", fx.gen.lastReq.PollInterval)
	}
	if fx.gen.lastReq.Timeout != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m", fx.gen.lastReq.Timeout)
	}
}

func TestOptimizeLayoutRecordsRunFailure(t *testing.T) {
	fx := newTestService(t, &fakeGenerator{generate: func(int) ([]byte, error) {
		return nil, fmt.Errorf("%w: upstream says no", flux.ErrJobFailed)
	}})

	_, err := fx.svc.OptimizeLayout(context.Background(), layout.OptimizeRequest{
		NumCandidates: 2,
		Sequential:    true,
	}, multipartImage(t, "board.png", layoutPNG(t, 4, 100, 80)), "")
	if !errors.Is(err, pipeline.ErrNoViableCandidate) {
		t.Fatalf("OptimizeLayout() error = %v, want ErrNoViableCandidate", err)
	}

	if len(fx.store.created) != 1 {
		t.Fatalf("created runs = %d, want 1", len(fx.store.created))
	}
	if len(fx.store.updated) != 1 {
		t.Fatalf("updated runs = %d, want 1", len(fx.store.updated))
	}
	if fx.store.updated[0].Status != entity.RunStatusFailed.String() {
		t.Errorf("persisted status = %q, want failed", fx.store.updated[0].Status)
	}
}

func TestGetRunStatusPrefersCache(t *testing.T) {
	fx := newTestService(t, nil)

	cached, _ := json.Marshal(layout.RunStatusResponse{
		RunID:  "run-cache",
		Status: entity.RunStatusRunning.String(),
		Stage:  string(pipeline.EventCandidateGenerated),
	})
	fx.redis.values = map[string]string{"run-cache": string(cached)}

	status, err := fx.svc.GetRunStatus(context.Background(), "run-cache")
	if err != nil {
		t.Fatalf("GetRunStatus() error = %v", err)
	}
	if status.Status != "running" || status.Stage != "candidate_generated" {
		t.Errorf("status = %+v, want the cached payload", status)
	}
	if fx.repo.clients != 0 {
		t.Errorf("repository was queried despite cache hit")
	}
}

func TestGetRunStatusFallsBackToDatabase(t *testing.T) {
	completed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		setup func(fx *serviceFixture)
	}{
		{"cache miss", func(fx *serviceFixture) {
			fx.redis.getErr = errors.New("redis: nil")
		}},
		{"malformed cache", func(fx *serviceFixture) {
			fx.redis.values = map[string]string{"run-db": "{not json"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newTestService(t, nil)
			tt.setup(fx)
			fx.store.runs["run-db"] = entity.LayoutRun{
				ID:          "run-db",
				Status:      entity.RunStatusCompleted.String(),
				CompletedAt: completed,
			}

			status, err := fx.svc.GetRunStatus(context.Background(), "run-db")
			if err != nil {
				t.Fatalf("GetRunStatus() error = %v", err)
			}
			if status.RunID != "run-db" || status.Status != "completed" {
				t.Errorf("status = %+v, want the stored run", status)
			}
			if status.UpdatedAt != completed.Format(time.RFC3339) {
				t.Errorf("updated at = %q", status.UpdatedAt)
			}
		})
	}
}

func TestGetRunStatusUnknownRun(t *testing.T) {
	fx := newTestService(t, nil)
	fx.redis.getErr = errors.New("redis: nil")

	_, err := fx.svc.GetRunStatus(context.Background(), "missing")
	if !errors.Is(err, layout.ErrRunNotFound) {
		t.Fatalf("GetRunStatus() error = %v, want ErrRunNotFound", err)
	}
}

func TestGetRunByIDSplitsCandidatesAndFailures(t *testing.T) {
	fx := newTestService(t, nil)

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	fx.store.runs["run-1"] = entity.LayoutRun{
		ID:              "run-1",
		Status:          entity.RunStatusCompleted.String(),
		NumCandidates:   3,
		SelectedOrdinal: 1,
		StartedAt:       started,
		CompletedAt:     started.Add(2 * time.Minute),
		CreatedAt:       started,
	}
	fx.store.candidates["run-1"] = []entity.LayoutCandidate{
		{RunID: "run-1", Ordinal: 0, Status: entity.CandidateStatusGenerationTimeout,
			FailStage: pipeline.StageGeneration, FailReason: "polling timed out"},
		{RunID: "run-1", Ordinal: 1, Status: entity.CandidateStatusValidated,
			Path: "/tmp/run-1/flux_candidate_1.png", ShapeCount: 4, EmptySpacePct: 61.5},
		{RunID: "run-1", Ordinal: 2, Status: entity.CandidateStatusValidated,
			Path: "/tmp/run-1/flux_candidate_2.png", ShapeCount: 3, EmptySpacePct: 55.0},
	}

	detail, err := fx.svc.GetRunByID(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetRunByID() error = %v", err)
	}

	if len(detail.Candidates) != 2 || len(detail.Failures) != 1 {
		t.Fatalf("got %d candidates and %d failures, want 2 and 1",
			len(detail.Candidates), len(detail.Failures))
	}
	if detail.Candidates[0].Index != 1 || detail.Candidates[0].ShapeCount != 4 {
		t.Errorf("first candidate = %+v", detail.Candidates[0])
	}
	if detail.Candidates[0].ImageURL != "/generated/run-1/flux_candidate_1.png" {
		t.Errorf("candidate image URL = %q", detail.Candidates[0].ImageURL)
	}
	failure := detail.Failures[0]
	if failure.Index != 0 || failure.Kind != entity.CandidateStatusGenerationTimeout || failure.Stage != pipeline.StageGeneration {
		t.Errorf("failure = %+v, want the generation timeout at ordinal 0", failure)
	}
	if detail.CompletedAt == "" {
		t.Errorf("completed at missing for finished run")
	}
}

func TestGetRunByIDUnknownRun(t *testing.T) {
	fx := newTestService(t, nil)

	_, err := fx.svc.GetRunByID(context.Background(), "missing")
	if !errors.Is(err, layout.ErrRunNotFound) {
		t.Fatalf("GetRunByID() error = %v, want ErrRunNotFound", err)
	}
}

func TestGetRunsListsHistory(t *testing.T) {
	fx := newTestService(t, nil)
	fx.store.listRuns = []entity.LayoutRun{
		{ID: "run-a", Status: "completed", SelectedOrdinal: 2,
			WinnerURL: "https://layout-bucket.s3.amazonaws.com/layout-runs/run-a/winner.png"},
		{ID: "run-b", Status: "failed", SelectedOrdinal: -1},
	}

	res, err := fx.svc.GetRuns(context.Background(), 1000, -5)
	if err != nil {
		t.Fatalf("GetRuns() error = %v", err)
	}

	if fx.store.lastLimit != 100 || fx.store.lastOffset != 0 {
		t.Errorf("pagination = (%d, %d), want clamped to (100, 0)",
			fx.store.lastLimit, fx.store.lastOffset)
	}
	if res.Total != 2 || len(res.Runs) != 2 {
		t.Fatalf("result = %d runs of %d, want 2 of 2", len(res.Runs), res.Total)
	}
	if !strings.HasSuffix(res.Runs[0].WinnerURL, "?signed=1") {
		t.Errorf("winner URL %q was not presigned", res.Runs[0].WinnerURL)
	}
	if res.Runs[1].WinnerURL != "" {
		t.Errorf("run without mirror got winner URL %q", res.Runs[1].WinnerURL)
	}

	if _, err := fx.svc.GetRuns(context.Background(), 0, 0); err != nil {
		t.Fatalf("GetRuns() error = %v", err)
	}
	if fx.store.lastLimit != 20 {
		t.Errorf("default limit = %d, want 20", fx.store.lastLimit)
	}
}
