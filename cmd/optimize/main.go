package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"LayoutGolang/internal/pipeline"
	"LayoutGolang/pkg/flux"
	"LayoutGolang/pkg/log"
	"LayoutGolang/pkg/prompt"
	"LayoutGolang/pkg/utils"
	"LayoutGolang/pkg/vision"
	"github.com/joho/godotenv"
	"golang.org/x/net/context"
)

func main() {
	input := flag.String("input", "", "path to the layout image to optimize")
	output := flag.String("output", "generated", "directory for run artifacts")
	promptText := flag.String("prompt", "", "generation prompt (composed from the layout when empty)")
	promptConfig := flag.String("prompt-config", "config/prompt.toml", "path to the prompt TOML")
	aspect := flag.String("aspect", flux.DefaultAspectRatio, "aspect ratio passed to the generator")
	num := flag.Int("num", 5, "number of candidates to generate")
	sleep := flag.Duration("sleep", flux.DefaultPollInterval, "poll interval while waiting for a candidate")
	timeout := flag.Duration("timeout", flux.DefaultTimeout, "per-candidate polling timeout")
	sequential := flag.Bool("sequential", false, "generate candidates one at a time")
	flag.Parse()

	logger := log.NewLogger()
	_ = godotenv.Load()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	eng := vision.New()

	originalBytes, err := os.ReadFile(*input)
	if err != nil {
		logger.Fatalf("Failed to read input image: %v", err)
	}

	text := strings.TrimSpace(*promptText)
	if text == "" {
		cfg, cerr := prompt.Load(*promptConfig)
		if cerr != nil {
			logger.Fatalf("Failed to load prompt config: %v", cerr)
		}

		original, verr := eng.ValidateBytes(originalBytes)
		if verr != nil {
			logger.Fatalf("Input image failed validation: %v", verr)
		}

		text = cfg.Compose(vision.Subjects(original), "")
	}

	runID, err := utils.New().NewULIDFromTimestamp(time.Now())
	if err != nil {
		logger.Fatalf("Failed to generate run ID: %v", err)
	}
	runDir := filepath.Join(*output, runID)

	orchestrator := pipeline.New(eng, flux.New(), logger)
	orchestrator.OnEvent = func(ev pipeline.Event) {
		if ev.Ordinal >= 0 {
			logger.Infof("[%s] candidate %d: %s %s", ev.RunID, ev.Ordinal, ev.Type, ev.Detail)
		} else {
			logger.Infof("[%s] %s %s", ev.RunID, ev.Type, ev.Detail)
		}
	}

	summary, err := orchestrator.Run(context.Background(), pipeline.RunInput{
		RunID:         runID,
		OriginalPath:  *input,
		Prompt:        text,
		AspectRatio:   *aspect,
		NumCandidates: *num,
		PollInterval:  *sleep,
		Timeout:       *timeout,
		OutputDir:     runDir,
		Sequential:    *sequential,
	})
	if err != nil {
		logger.Fatalf("Optimization failed: %v", err)
	}

	fmt.Printf("Selected candidate %d (%s): %s\n", summary.SelectedOrdinal, summary.Reason, summary.SelectedPath)
	fmt.Printf("Summary written to %s\n", summary.SummaryPath)
}
