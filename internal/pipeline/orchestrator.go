package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"LayoutGolang/pkg/flux"
	"LayoutGolang/pkg/vision"
)

const summaryFileName = "multi_generation_summary.json"

var (
	// ErrOriginalValidation means the input image itself could not be
	// analyzed; without a baseline shape count the run is meaningless.
	ErrOriginalValidation = errors.New("original image could not be analyzed")
	// ErrNoViableCandidate means every attempt failed generation or
	// validation, so there is nothing to select from.
	ErrNoViableCandidate = errors.New("no candidate survived generation and validation")
)

// Orchestrator drives one optimization run: validate the original, fan out
// the generation attempts, validate each result, and select a winner.
// OnEvent, when set, receives progress notifications; it may be called from
// several goroutines at once and must be safe for that.
type Orchestrator struct {
	Vision    *vision.Engine
	Generator flux.ItfFlux
	Log       *logrus.Logger
	OnEvent   func(Event)
}

func New(engine *vision.Engine, generator flux.ItfFlux, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		Vision:    engine,
		Generator: generator,
		Log:       log,
	}
}

type attempt struct {
	outcome *CandidateOutcome
	failure *AttemptFailure
}

// Run executes the full pipeline and returns the summary, which has by then
// been persisted to <OutputDir>/multi_generation_summary.json. Attempt
// failures never abort the run; only an unanalyzable original or a run with
// zero survivors does.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*SelectionSummary, error) {
	if o.Vision == nil {
		o.Vision = vision.New()
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	if in.NumCandidates <= 0 {
		in.NumCandidates = 1
	}
	startedAt := time.Now()

	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	o.emit(Event{RunID: in.RunID, Type: EventRunStarted, Ordinal: -1})

	originalBytes, err := os.ReadFile(in.OriginalPath)
	if err != nil {
		o.emit(Event{RunID: in.RunID, Type: EventRunFailed, Ordinal: -1, Detail: err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrOriginalValidation, err)
	}
	original, err := o.Vision.ValidateAndReport(originalBytes, in.OutputDir, "original")
	if err != nil {
		o.Log.WithFields(logrus.Fields{"run_id": in.RunID}).Error(fmt.Sprintf("Original validation failed: %v", err))
		o.emit(Event{RunID: in.RunID, Type: EventRunFailed, Ordinal: -1, Detail: err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrOriginalValidation, err)
	}
	o.Log.WithFields(logrus.Fields{"run_id": in.RunID}).Info(fmt.Sprintf(
		"Original validated: %d shapes, %.2f%% empty", original.ShapeCount, original.EmptySpacePct))
	o.emit(Event{
		RunID: in.RunID, Type: EventOriginalValidated, Ordinal: -1,
		Detail: fmt.Sprintf("%d shapes, %.2f%% empty", original.ShapeCount, original.EmptySpacePct),
	})

	// Each attempt writes only its own slot, so no lock is needed and the
	// collected order is always submission order.
	attempts := make([]attempt, in.NumCandidates)
	if in.Sequential {
		for i := range attempts {
			attempts[i] = o.runAttempt(ctx, in, i, originalBytes)
		}
	} else {
		var wg sync.WaitGroup
		for i := range attempts {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				attempts[i] = o.runAttempt(ctx, in, i, originalBytes)
			}(i)
		}
		wg.Wait()
	}

	var outcomes []CandidateOutcome
	var failures []AttemptFailure
	for _, a := range attempts {
		if a.outcome != nil {
			outcomes = append(outcomes, *a.outcome)
		} else if a.failure != nil {
			failures = append(failures, *a.failure)
		}
	}

	if len(outcomes) == 0 {
		o.emit(Event{RunID: in.RunID, Type: EventRunFailed, Ordinal: -1, Detail: "all attempts failed"})
		return nil, fmt.Errorf("%w: all %d attempts failed", ErrNoViableCandidate, in.NumCandidates)
	}

	winner, reason := SelectWinner(original.ShapeCount, outcomes)
	selectedPath := ""
	for _, oc := range outcomes {
		if oc.Ordinal == winner {
			selectedPath = oc.Path
			break
		}
	}
	o.Log.WithFields(logrus.Fields{"run_id": in.RunID}).Info(fmt.Sprintf(
		"Selected candidate %d (%s) from %d survivors", winner, reason, len(outcomes)))
	o.emit(Event{
		RunID: in.RunID, Type: EventSelectionMade, Ordinal: winner,
		Detail: reason,
	})

	summary := &SelectionSummary{
		RunID:           in.RunID,
		Prompt:          in.Prompt,
		AspectRatio:     in.AspectRatio,
		InputImage:      in.OriginalPath,
		Original:        original,
		Candidates:      outcomes,
		Failures:        failures,
		SelectedOrdinal: winner,
		SelectedPath:    selectedPath,
		Reason:          reason,
		StartedAt:       startedAt,
		CompletedAt:     time.Now(),
	}
	if err := o.writeSummary(in.OutputDir, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (o *Orchestrator) runAttempt(ctx context.Context, in RunInput, ordinal int, originalBytes []byte) attempt {
	log := o.Log.WithFields(logrus.Fields{"run_id": in.RunID, "index": ordinal})
	o.emit(Event{RunID: in.RunID, Type: EventCandidateSubmitted, Ordinal: ordinal})

	data, err := o.Generator.Generate(ctx, flux.GenerateRequest{
		Prompt:       in.Prompt,
		AspectRatio:  in.AspectRatio,
		InputImage:   originalBytes,
		PollInterval: in.PollInterval,
		Timeout:      in.Timeout,
	})
	if err != nil {
		log.Warn(fmt.Sprintf("Generation failed: %v", err))
		o.emit(Event{RunID: in.RunID, Type: EventCandidateFailed, Ordinal: ordinal, Detail: err.Error()})
		return attempt{failure: &AttemptFailure{
			Ordinal: ordinal,
			Stage:   StageGeneration,
			Kind:    generationKind(err),
			Reason:  err.Error(),
		}}
	}
	o.emit(Event{RunID: in.RunID, Type: EventCandidateGenerated, Ordinal: ordinal})

	path := filepath.Join(in.OutputDir, fmt.Sprintf("flux_candidate_%d.png", ordinal))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error(fmt.Sprintf("Saving candidate failed: %v", err))
		o.emit(Event{RunID: in.RunID, Type: EventCandidateFailed, Ordinal: ordinal, Detail: err.Error()})
		return attempt{failure: &AttemptFailure{
			Ordinal: ordinal,
			Stage:   StageGeneration,
			Kind:    KindGenerationFailed,
			Reason:  fmt.Sprintf("save candidate: %v", err),
		}}
	}

	res, err := o.Vision.ValidateAndReport(data, in.OutputDir, fmt.Sprintf("candidate_%d", ordinal))
	if err != nil {
		log.Warn(fmt.Sprintf("Validation failed: %v", err))
		o.emit(Event{RunID: in.RunID, Type: EventCandidateFailed, Ordinal: ordinal, Detail: err.Error()})
		return attempt{failure: &AttemptFailure{
			Ordinal: ordinal,
			Stage:   StageValidation,
			Kind:    KindValidationError,
			Reason:  err.Error(),
			Path:    path,
		}}
	}

	log.Info(fmt.Sprintf("Candidate validated: %d shapes, %.2f%% empty", res.ShapeCount, res.EmptySpacePct))
	o.emit(Event{
		RunID: in.RunID, Type: EventCandidateValidated, Ordinal: ordinal,
		Detail: fmt.Sprintf("%d shapes, %.2f%% empty", res.ShapeCount, res.EmptySpacePct),
	})
	return attempt{outcome: &CandidateOutcome{Ordinal: ordinal, Path: path, Validation: res}}
}

func (o *Orchestrator) writeSummary(dir string, summary *SelectionSummary) error {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(dir, summaryFileName)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	summary.SummaryPath = path
	return nil
}

func (o *Orchestrator) emit(ev Event) {
	if o.OnEvent == nil {
		return
	}
	ev.At = time.Now()
	o.OnEvent(ev)
}

func generationKind(err error) string {
	if errors.Is(err, flux.ErrPollTimeout) {
		return KindGenerationTimeout
	}
	return KindGenerationFailed
}
