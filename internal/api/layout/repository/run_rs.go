package layoutRepository

import (
	"LayoutGolang/internal/api/layout"
	"LayoutGolang/internal/entity"
	contextPkg "LayoutGolang/pkg/context"
	"context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"time"
)

type LayoutRunDB struct {
	ID                 sql.NullString  `db:"id"`
	Prompt             sql.NullString  `db:"prompt"`
	AspectRatio        sql.NullString  `db:"aspect_ratio"`
	OriginalPath       sql.NullString  `db:"original_path"`
	OriginalShapeCount sql.NullInt64   `db:"original_shape_count"`
	OriginalEmptyPct   sql.NullFloat64 `db:"original_empty_pct"`
	NumCandidates      sql.NullInt64   `db:"num_candidates"`
	SelectedOrdinal    sql.NullInt64   `db:"selected_ordinal"`
	SelectedPath       sql.NullString  `db:"selected_path"`
	SelectionReason    sql.NullString  `db:"selection_reason"`
	SummaryPath        sql.NullString  `db:"summary_path"`
	WinnerURL          sql.NullString  `db:"winner_url"`
	Status             sql.NullString  `db:"status"`
	RequestedBy        sql.NullString  `db:"requested_by"`
	StartedAt          time.Time       `db:"started_at"`
	CompletedAt        sql.NullTime    `db:"completed_at"`
	CreatedAt          time.Time       `db:"created_at"`
}

type LayoutCandidateDB struct {
	ID            sql.NullString  `db:"id"`
	RunID         sql.NullString  `db:"run_id"`
	Ordinal       sql.NullInt64   `db:"ordinal"`
	Path          sql.NullString  `db:"path"`
	ShapeCount    sql.NullInt64   `db:"shape_count"`
	EmptySpacePct sql.NullFloat64 `db:"empty_space_pct"`
	Status        sql.NullString  `db:"status"`
	FailStage     sql.NullString  `db:"fail_stage"`
	FailReason    sql.NullString  `db:"fail_reason"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r *layoutRepository) CreateRun(c context.Context, run entity.LayoutRun) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":                   run.ID,
		"prompt":               run.Prompt,
		"aspect_ratio":         run.AspectRatio,
		"original_path":        run.OriginalPath,
		"original_shape_count": run.OriginalShapeCount,
		"original_empty_pct":   run.OriginalEmptyPct,
		"num_candidates":       run.NumCandidates,
		"selected_ordinal":     run.SelectedOrdinal,
		"selected_path":        run.SelectedPath,
		"selection_reason":     run.SelectionReason,
		"summary_path":         run.SummaryPath,
		"winner_url":           run.WinnerURL,
		"status":               run.Status,
		"requested_by":         run.RequestedBy,
		"started_at":           run.StartedAt,
		"created_at":           time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateRun, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateRun")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating run")

		return err
	}

	return nil
}

func (r *layoutRepository) UpdateRunResult(c context.Context, run entity.LayoutRun) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":                   run.ID,
		"original_shape_count": run.OriginalShapeCount,
		"original_empty_pct":   run.OriginalEmptyPct,
		"selected_ordinal":     run.SelectedOrdinal,
		"selected_path":        run.SelectedPath,
		"selection_reason":     run.SelectionReason,
		"summary_path":         run.SummaryPath,
		"winner_url":           run.WinnerURL,
		"status":               run.Status,
		"completed_at":         run.CompletedAt,
	}

	query, args, err := sqlx.Named(queryUpdateRunResult, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for UpdateRunResult")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when updating run result")

		return err
	}

	return nil
}

func (r *layoutRepository) GetRunByID(c context.Context, id string) (entity.LayoutRun, error) {
	requestID := contextPkg.GetRequestID(c)
	var run LayoutRunDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetRunById, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRunByID named query preparation err")

		return entity.LayoutRun{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(c, query, args...).StructScan(&run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("GetRunByID no rows found")
			return entity.LayoutRun{}, layout.ErrRunNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRunByID execution err")
		return entity.LayoutRun{}, err
	}

	return r.makeLayoutRun(run), nil
}

func (r *layoutRepository) GetRuns(c context.Context, limit int, offset int) ([]entity.LayoutRun, error) {
	requestID := contextPkg.GetRequestID(c)
	var runs []LayoutRunDB

	argsKV := map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}

	query, args, err := sqlx.Named(queryGetRuns, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRuns named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &runs, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRuns execution err")
		return nil, err
	}

	result := make([]entity.LayoutRun, 0, len(runs))
	for _, run := range runs {
		result = append(result, r.makeLayoutRun(run))
	}

	return result, nil
}

func (r *layoutRepository) CountRuns(c context.Context) (int, error) {
	requestID := contextPkg.GetRequestID(c)
	var count int

	query := r.q.Rebind(queryCountRuns)

	if err := r.q.QueryRowxContext(c, query).Scan(&count); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountRuns execution err")
		return 0, err
	}

	return count, nil
}

func (r *layoutRepository) CreateCandidate(c context.Context, candidate entity.LayoutCandidate) error {
	requestID := contextPkg.GetRequestID(c)
	argsKV := map[string]interface{}{
		"id":              candidate.ID,
		"run_id":          candidate.RunID,
		"ordinal":         candidate.Ordinal,
		"path":            candidate.Path,
		"shape_count":     candidate.ShapeCount,
		"empty_space_pct": candidate.EmptySpacePct,
		"status":          candidate.Status,
		"fail_stage":      candidate.FailStage,
		"fail_reason":     candidate.FailReason,
		"created_at":      time.Now(),
	}

	query, args, err := sqlx.Named(queryCreateCandidate, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateCandidate")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(c, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating candidate")

		return err
	}

	return nil
}

func (r *layoutRepository) GetCandidatesByRunID(c context.Context, runID string) ([]entity.LayoutCandidate, error) {
	requestID := contextPkg.GetRequestID(c)
	var candidates []LayoutCandidateDB

	argsKV := map[string]interface{}{
		"run_id": runID,
	}

	query, args, err := sqlx.Named(queryGetCandidatesByRunID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetCandidatesByRunID named query preparation err")
		return nil, err
	}

	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &candidates, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetCandidatesByRunID execution err")
		return nil, err
	}

	result := make([]entity.LayoutCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		result = append(result, r.makeLayoutCandidate(candidate))
	}

	return result, nil
}

func (r *layoutRepository) makeLayoutRun(run LayoutRunDB) entity.LayoutRun {
	result := entity.LayoutRun{
		ID:                 run.ID.String,
		Prompt:             run.Prompt.String,
		AspectRatio:        run.AspectRatio.String,
		OriginalPath:       run.OriginalPath.String,
		OriginalShapeCount: int(run.OriginalShapeCount.Int64),
		OriginalEmptyPct:   run.OriginalEmptyPct.Float64,
		NumCandidates:      int(run.NumCandidates.Int64),
		SelectedOrdinal:    int(run.SelectedOrdinal.Int64),
		SelectedPath:       run.SelectedPath.String,
		SelectionReason:    run.SelectionReason.String,
		SummaryPath:        run.SummaryPath.String,
		WinnerURL:          run.WinnerURL.String,
		Status:             run.Status.String,
		RequestedBy:        run.RequestedBy.String,
		StartedAt:          run.StartedAt,
		CreatedAt:          run.CreatedAt,
	}

	if run.CompletedAt.Valid {
		result.CompletedAt = run.CompletedAt.Time
	}

	if !run.SelectedOrdinal.Valid {
		result.SelectedOrdinal = -1
	}

	return result
}

func (r *layoutRepository) makeLayoutCandidate(candidate LayoutCandidateDB) entity.LayoutCandidate {
	return entity.LayoutCandidate{
		ID:            candidate.ID.String,
		RunID:         candidate.RunID.String,
		Ordinal:       int(candidate.Ordinal.Int64),
		Path:          candidate.Path.String,
		ShapeCount:    int(candidate.ShapeCount.Int64),
		EmptySpacePct: candidate.EmptySpacePct.Float64,
		Status:        candidate.Status.String,
		FailStage:     candidate.FailStage.String,
		FailReason:    candidate.FailReason.String,
		CreatedAt:     candidate.CreatedAt,
	}
}
