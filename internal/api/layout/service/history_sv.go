package layoutService

import (
	"LayoutGolang/internal/api/layout"
	"LayoutGolang/internal/entity"
	contextPkg "LayoutGolang/pkg/context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (s *layoutService) GetRuns(ctx context.Context, limit int, offset int) (layout.RunListResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	repo, err := s.layoutRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return layout.RunListResponse{}, err
	}

	runs, err := repo.Runs.GetRuns(ctx, limit, offset)
	if err != nil {
		return layout.RunListResponse{}, err
	}

	total, err := repo.Runs.CountRuns(ctx)
	if err != nil {
		return layout.RunListResponse{}, err
	}

	result := make([]layout.RunResponse, 0, len(runs))
	for _, run := range runs {
		result = append(result, s.makeRunResponse(run))
	}

	return layout.RunListResponse{
		Runs:  result,
		Total: total,
	}, nil
}

func (s *layoutService) GetRunByID(ctx context.Context, id string) (layout.RunDetailResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.layoutRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return layout.RunDetailResponse{}, err
	}

	run, err := repo.Runs.GetRunByID(ctx, id)
	if err != nil {
		return layout.RunDetailResponse{}, err
	}

	candidates, err := repo.Runs.GetCandidatesByRunID(ctx, id)
	if err != nil {
		return layout.RunDetailResponse{}, err
	}

	detail := layout.RunDetailResponse{
		RunResponse:      s.makeRunResponse(run),
		OriginalEmptyPct: run.OriginalEmptyPct,
		NumCandidates:    run.NumCandidates,
		SelectedPath:     run.SelectedPath,
		SummaryPath:      run.SummaryPath,
		Candidates:       make([]layout.CandidateResponse, 0, len(candidates)),
		StartedAt:        run.StartedAt.Format(time.RFC3339),
	}

	if !run.CompletedAt.IsZero() {
		detail.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}

	for _, candidate := range candidates {
		if candidate.Status == entity.CandidateStatusValidated {
			detail.Candidates = append(detail.Candidates, layout.CandidateResponse{
				Index:         candidate.Ordinal,
				ImageURL:      s.publicURL(run.ID, candidate.Path),
				ShapeCount:    candidate.ShapeCount,
				EmptySpacePct: candidate.EmptySpacePct,
			})
			continue
		}

		detail.Failures = append(detail.Failures, layout.FailureResponse{
			Index: candidate.Ordinal,
			Stage: candidate.FailStage,
			Kind:  candidate.Status,
			Error: candidate.FailReason,
		})
	}

	return detail, nil
}

func (s *layoutService) GetRunStatus(ctx context.Context, id string) (layout.RunStatusResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.redisServer != nil {
		cached, err := s.redisServer.GetRunStatus(ctx, id)
		if err == nil && cached != "" {
			var status layout.RunStatusResponse
			if uerr := json.Unmarshal([]byte(cached), &status); uerr == nil {
				return status, nil
			}
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"run_id":     id,
			}).Warn("Cached run status is malformed, falling back to database")
		}
	}

	if s.layoutRepository == nil {
		return layout.RunStatusResponse{}, layout.ErrRunStatusNotFound
	}

	repo, err := s.layoutRepository.NewClient(false)
	if err != nil {
		return layout.RunStatusResponse{}, err
	}

	run, err := repo.Runs.GetRunByID(ctx, id)
	if err != nil {
		return layout.RunStatusResponse{}, err
	}

	status := layout.RunStatusResponse{
		RunID:  run.ID,
		Status: run.Status,
	}
	if !run.CompletedAt.IsZero() {
		status.UpdatedAt = run.CompletedAt.Format(time.RFC3339)
	}

	return status, nil
}

func (s *layoutService) makeRunResponse(run entity.LayoutRun) layout.RunResponse {
	winnerURL := run.WinnerURL
	if winnerURL != "" && s.s3Client != nil {
		presigned, err := s.s3Client.PresignUrl(winnerURL)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"run_id": run.ID,
				"error":  err.Error(),
			}).Warn("Failed to presign winner URL")
		} else {
			winnerURL = presigned
		}
	}

	return layout.RunResponse{
		RunID:              run.ID,
		Status:             run.Status,
		Prompt:             run.Prompt,
		AspectRatio:        run.AspectRatio,
		OriginalShapeCount: run.OriginalShapeCount,
		SelectedIndex:      run.SelectedOrdinal,
		SelectionReason:    run.SelectionReason,
		WinnerURL:          winnerURL,
		RequestedBy:        run.RequestedBy,
		CreatedAt:          run.CreatedAt.Format(time.RFC3339),
	}
}
