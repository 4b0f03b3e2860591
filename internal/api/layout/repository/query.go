package layoutRepository

const (
	queryCreateRun = `
		INSERT INTO layout_runs (
			id,
			prompt,
			aspect_ratio,
			original_path,
			original_shape_count,
			original_empty_pct,
			num_candidates,
			selected_ordinal,
			selected_path,
			selection_reason,
			summary_path,
			winner_url,
			status,
			requested_by,
			started_at,
			created_at
		) VALUES (
			:id,
			:prompt,
			:aspect_ratio,
			:original_path,
			:original_shape_count,
			:original_empty_pct,
			:num_candidates,
			:selected_ordinal,
			:selected_path,
			:selection_reason,
			:summary_path,
			:winner_url,
			:status,
			:requested_by,
			:started_at,
			:created_at
		)
	`

	queryUpdateRunResult = `
		UPDATE layout_runs
		SET
			original_shape_count = :original_shape_count,
			original_empty_pct = :original_empty_pct,
			selected_ordinal = :selected_ordinal,
			selected_path = :selected_path,
			selection_reason = :selection_reason,
			summary_path = :summary_path,
			winner_url = :winner_url,
			status = :status,
			completed_at = :completed_at
		WHERE id = :id
	`

	queryGetRunById = `
		SELECT
			id,
			prompt,
			aspect_ratio,
			original_path,
			original_shape_count,
			original_empty_pct,
			num_candidates,
			selected_ordinal,
			selected_path,
			selection_reason,
			summary_path,
			winner_url,
			status,
			requested_by,
			started_at,
			completed_at,
			created_at
		FROM layout_runs
		WHERE id = :id
	`

	queryGetRuns = `
		SELECT
			id,
			prompt,
			aspect_ratio,
			original_path,
			original_shape_count,
			original_empty_pct,
			num_candidates,
			selected_ordinal,
			selected_path,
			selection_reason,
			summary_path,
			winner_url,
			status,
			requested_by,
			started_at,
			completed_at,
			created_at
		FROM layout_runs
		ORDER BY created_at DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountRuns = `
		SELECT COUNT(*) FROM layout_runs
	`

	queryCreateCandidate = `
		INSERT INTO layout_candidates (
			id,
			run_id,
			ordinal,
			path,
			shape_count,
			empty_space_pct,
			status,
			fail_stage,
			fail_reason,
			created_at
		) VALUES (
			:id,
			:run_id,
			:ordinal,
			:path,
			:shape_count,
			:empty_space_pct,
			:status,
			:fail_stage,
			:fail_reason,
			:created_at
		)
	`

	queryGetCandidatesByRunID = `
		SELECT
			id,
			run_id,
			ordinal,
			path,
			shape_count,
			empty_space_pct,
			status,
			fail_stage,
			fail_reason,
			created_at
		FROM layout_candidates
		WHERE run_id = :run_id
		ORDER BY ordinal ASC
	`
)
