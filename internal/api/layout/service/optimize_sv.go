package layoutService

import (
	"LayoutGolang/internal/api/layout"
	"LayoutGolang/internal/entity"
	"LayoutGolang/internal/pipeline"
	contextPkg "LayoutGolang/pkg/context"
	"LayoutGolang/pkg/flux"
	"LayoutGolang/pkg/vision"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	maxUploadSize        = 20 * 1024 * 1024
	maxCandidates        = 10
	defaultNumCandidates = 5
	statusCacheTTL       = time.Hour
)

func (s *layoutService) OptimizeLayout(ctx context.Context, req layout.OptimizeRequest, image *multipart.FileHeader, requestedBy string) (layout.OptimizeResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if image == nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
		}).Warn("No layout image provided")
		return layout.OptimizeResponse{}, layout.ErrMissingImage
	}

	if image.Size > maxUploadSize {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"file_size":  image.Size,
		}).Warn("Layout image too large")
		return layout.OptimizeResponse{}, layout.ErrFileTooLarge
	}

	contentType := image.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		s.log.WithFields(logrus.Fields{
			"request_id":   requestID,
			"content_type": contentType,
		}).Warn("Layout image has invalid content type")
		return layout.OptimizeResponse{}, layout.ErrInvalidFileType
	}

	if req.NumCandidates > maxCandidates {
		return layout.OptimizeResponse{}, layout.ErrTooManyCandidates
	}

	originalBytes, err := s.utils.ReadMultipartFile(image)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to read uploaded layout image")
		return layout.OptimizeResponse{}, err
	}

	runID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate run ID")
		return layout.OptimizeResponse{}, err
	}

	runDir := filepath.Join(s.outputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return layout.OptimizeResponse{}, err
	}

	ext := strings.ToLower(filepath.Ext(image.Filename))
	if ext == "" {
		ext = ".png"
	}
	originalPath := filepath.Join(runDir, "original"+ext)
	if err := os.WriteFile(originalPath, originalBytes, 0o644); err != nil {
		return layout.OptimizeResponse{}, err
	}

	promptText := strings.TrimSpace(req.Prompt)
	description := ""
	if promptText == "" {
		original, verr := s.visionEngine.ValidateBytes(originalBytes)
		if verr != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"run_id":     runID,
				"error":      verr.Error(),
			}).Warn("Original validation failed during prompt composition")
			return layout.OptimizeResponse{}, fmt.Errorf("%w: %v", pipeline.ErrOriginalValidation, verr)
		}

		if req.DescribeScene && s.geminiClient != nil {
			desc, derr := s.geminiClient.DescribeLayout(ctx, originalBytes)
			if derr != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"run_id":     runID,
					"error":      derr.Error(),
				}).Warn("Gemini layout description failed, continuing without it")
			} else {
				description = desc
			}
		}

		promptText = s.promptConfig.Compose(vision.Subjects(original), description)
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = s.promptConfig.AspectRatio
	}
	if aspect == "" {
		aspect = flux.DefaultAspectRatio
	}

	numCandidates := req.NumCandidates
	if numCandidates <= 0 {
		numCandidates = defaultNumCandidates
	}

	startedAt := time.Now()
	s.persistRunStarted(ctx, entity.LayoutRun{
		ID:              runID,
		Prompt:          promptText,
		AspectRatio:     aspect,
		OriginalPath:    originalPath,
		NumCandidates:   numCandidates,
		SelectedOrdinal: -1,
		Status:          entity.RunStatusRunning.String(),
		RequestedBy:     requestedBy,
		StartedAt:       startedAt,
	})

	orchestrator := pipeline.New(s.visionEngine, s.fluxClient, s.log)
	orchestrator.OnEvent = func(ev pipeline.Event) {
		s.broker.Publish(ev)
		s.cacheRunStatus(ev)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":     requestID,
		"run_id":         runID,
		"num_candidates": numCandidates,
	}).Info("Starting layout optimization run")

	summary, err := orchestrator.Run(ctx, pipeline.RunInput{
		RunID:         runID,
		OriginalPath:  originalPath,
		Prompt:        promptText,
		AspectRatio:   aspect,
		NumCandidates: numCandidates,
		PollInterval:  time.Duration(req.Sleep * float64(time.Second)),
		Timeout:       time.Duration(req.Timeout * float64(time.Second)),
		OutputDir:     runDir,
		Sequential:    req.Sequential,
	})
	if err != nil {
		s.persistRunFailed(ctx, runID, err)
		return layout.OptimizeResponse{}, err
	}

	mirrorLocation, mirrorPresigned := s.mirrorWinner(runID, summary.SelectedPath)
	s.persistRunCompleted(ctx, summary, mirrorLocation)

	return s.makeOptimizeResponse(summary, description, mirrorPresigned), nil
}

// cacheRunStatus pushes the latest pipeline stage into Redis so the status
// endpoint works without holding the request open. Uses its own context;
// events keep firing while the caller context is busy with the run.
func (s *layoutService) cacheRunStatus(ev pipeline.Event) {
	if s.redisServer == nil {
		return
	}

	status := entity.RunStatusRunning
	switch ev.Type {
	case pipeline.EventSelectionMade:
		status = entity.RunStatusCompleted
	case pipeline.EventRunFailed:
		status = entity.RunStatusFailed
	}

	payload := layout.RunStatusResponse{
		RunID:     ev.RunID,
		Status:    status.String(),
		Stage:     string(ev.Type),
		Detail:    ev.Detail,
		UpdatedAt: ev.At.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = s.redisServer.SetRunStatus(c, ev.RunID, string(body), statusCacheTTL)
}

func (s *layoutService) persistRunStarted(ctx context.Context, run entity.LayoutRun) {
	if s.layoutRepository == nil {
		return
	}

	repo, err := s.layoutRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err.Error(),
		}).Warn("Failed to create repository client for run insert")
		return
	}

	if err := repo.Runs.CreateRun(ctx, run); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err.Error(),
		}).Warn("Failed to persist run start, continuing")
	}
}

func (s *layoutService) persistRunFailed(ctx context.Context, runID string, runErr error) {
	if s.layoutRepository == nil {
		return
	}

	repo, err := s.layoutRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to create repository client for run failure update")
		return
	}

	run := entity.LayoutRun{
		ID:              runID,
		SelectedOrdinal: -1,
		SelectionReason: runErr.Error(),
		Status:          entity.RunStatusFailed.String(),
		CompletedAt:     time.Now(),
	}

	if err := repo.Runs.UpdateRunResult(ctx, run); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to persist run failure, continuing")
	}
}

func (s *layoutService) persistRunCompleted(ctx context.Context, summary *pipeline.SelectionSummary, winnerURL string) {
	if s.layoutRepository == nil {
		return
	}

	repo, err := s.layoutRepository.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": summary.RunID,
			"error":  err.Error(),
		}).Warn("Failed to create repository client for run completion")
		return
	}

	run := entity.LayoutRun{
		ID:                 summary.RunID,
		OriginalShapeCount: summary.Original.ShapeCount,
		OriginalEmptyPct:   summary.Original.EmptySpacePct,
		SelectedOrdinal:    summary.SelectedOrdinal,
		SelectedPath:       summary.SelectedPath,
		SelectionReason:    summary.Reason,
		SummaryPath:        summary.SummaryPath,
		WinnerURL:          winnerURL,
		Status:             entity.RunStatusCompleted.String(),
		CompletedAt:        summary.CompletedAt,
	}

	if err := repo.Runs.UpdateRunResult(ctx, run); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": summary.RunID,
			"error":  err.Error(),
		}).Warn("Failed to persist run result, continuing")
		_ = repo.Rollback()
		return
	}

	for _, outcome := range summary.Candidates {
		candidate := entity.LayoutCandidate{
			ID:            uuid.NewString(),
			RunID:         summary.RunID,
			Ordinal:       outcome.Ordinal,
			Path:          outcome.Path,
			ShapeCount:    outcome.Validation.ShapeCount,
			EmptySpacePct: outcome.Validation.EmptySpacePct,
			Status:        entity.CandidateStatusValidated,
		}
		if err := repo.Runs.CreateCandidate(ctx, candidate); err != nil {
			s.log.WithFields(logrus.Fields{
				"run_id":  summary.RunID,
				"ordinal": outcome.Ordinal,
				"error":   err.Error(),
			}).Warn("Failed to persist candidate, continuing")
			_ = repo.Rollback()
			return
		}
	}

	for _, failure := range summary.Failures {
		candidate := entity.LayoutCandidate{
			ID:         uuid.NewString(),
			RunID:      summary.RunID,
			Ordinal:    failure.Ordinal,
			Path:       failure.Path,
			Status:     failureStatus(failure),
			FailStage:  failure.Stage,
			FailReason: failure.Reason,
		}
		if err := repo.Runs.CreateCandidate(ctx, candidate); err != nil {
			s.log.WithFields(logrus.Fields{
				"run_id":  summary.RunID,
				"ordinal": failure.Ordinal,
				"error":   err.Error(),
			}).Warn("Failed to persist failed attempt, continuing")
			_ = repo.Rollback()
			return
		}
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": summary.RunID,
			"error":  err.Error(),
		}).Warn("Failed to commit run result, continuing")
	}
}

func failureStatus(failure pipeline.AttemptFailure) string {
	switch failure.Kind {
	case pipeline.KindGenerationTimeout:
		return entity.CandidateStatusGenerationTimeout
	case pipeline.KindValidationError:
		return entity.CandidateStatusValidationError
	default:
		return entity.CandidateStatusGenerationFailed
	}
}

// mirrorWinner uploads the selected image to S3 and returns the stored
// location plus a presigned link for the response. Both are empty when S3
// is not configured or the upload fails; the run itself never fails here.
func (s *layoutService) mirrorWinner(runID string, selectedPath string) (string, string) {
	if s.s3Client == nil || selectedPath == "" {
		return "", ""
	}

	data, err := os.ReadFile(selectedPath)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to read winner for S3 mirror")
		return "", ""
	}

	key := fmt.Sprintf("layout-runs/%s/winner.png", runID)
	location, err := s.s3Client.UploadBytes(key, data, "image/png")
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to mirror winner to S3")
		return "", ""
	}

	presigned, err := s.s3Client.PresignUrl(location)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id": runID,
			"error":  err.Error(),
		}).Warn("Failed to presign winner mirror")
		return location, ""
	}

	return location, presigned
}

func (s *layoutService) publicURL(runID string, path string) string {
	if path == "" {
		return ""
	}
	return "/generated/" + runID + "/" + filepath.Base(path)
}

func (s *layoutService) makeValidationResponse(runID string, res *vision.Result) layout.ValidationResponse {
	shapes := make([]layout.ShapeResponse, 0, len(res.Shapes))
	for _, shape := range res.Shapes {
		shapes = append(shapes, layout.ShapeResponse{
			Label:  shape.Label,
			X:      shape.Bounds.X,
			Y:      shape.Bounds.Y,
			Width:  shape.Bounds.Width,
			Height: shape.Bounds.Height,
			Area:   shape.Area,
			Color:  shape.MeanColor,
		})
	}

	return layout.ValidationResponse{
		ShapeCount:    res.ShapeCount,
		EmptySpacePct: res.EmptySpacePct,
		Shapes:        shapes,
		MaskURL:       s.publicURL(runID, res.MaskPath),
		OverlayURL:    s.publicURL(runID, res.OverlayPath),
		ReportURL:     s.publicURL(runID, res.ReportPath),
	}
}

func (s *layoutService) makeOptimizeResponse(summary *pipeline.SelectionSummary, description string, winnerMirrorURL string) layout.OptimizeResponse {
	candidates := make([]layout.CandidateResponse, 0, len(summary.Candidates))
	for _, outcome := range summary.Candidates {
		candidates = append(candidates, layout.CandidateResponse{
			Index:         outcome.Ordinal,
			ImageURL:      s.publicURL(summary.RunID, outcome.Path),
			ShapeCount:    outcome.Validation.ShapeCount,
			EmptySpacePct: outcome.Validation.EmptySpacePct,
		})
	}

	failures := make([]layout.FailureResponse, 0, len(summary.Failures))
	for _, failure := range summary.Failures {
		failures = append(failures, layout.FailureResponse{
			Index: failure.Ordinal,
			Stage: failure.Stage,
			Kind:  failure.Kind,
			Error: failure.Reason,
		})
	}

	return layout.OptimizeResponse{
		RunID:           summary.RunID,
		Status:          entity.RunStatusCompleted.String(),
		Prompt:          summary.Prompt,
		AspectRatio:     summary.AspectRatio,
		Description:     description,
		Original:        s.makeValidationResponse(summary.RunID, summary.Original),
		Candidates:      candidates,
		Failures:        failures,
		SelectedIndex:   summary.SelectedOrdinal,
		SelectedURL:     s.publicURL(summary.RunID, summary.SelectedPath),
		SelectionReason: summary.Reason,
		WinnerMirrorURL: winnerMirrorURL,
		SummaryURL:      s.publicURL(summary.RunID, summary.SummaryPath),
		StartedAt:       summary.StartedAt.Format(time.RFC3339),
		CompletedAt:     summary.CompletedAt.Format(time.RFC3339),
	}
}
