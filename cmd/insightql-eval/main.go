package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/insightql/insightql/internal/agent"
	"github.com/insightql/insightql/internal/config"
	"github.com/insightql/insightql/internal/eval"
	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/insights"
	"github.com/insightql/insightql/internal/security"
	"github.com/insightql/insightql/internal/warehouse"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	casesFile := flag.String("cases", "eval/cases.json", "evaluation cases file")
	runID := flag.String("run-id", "", "custom run ID (default: timestamped)")
	history := flag.Bool("history", false, "print recent run history and exit")
	flag.Parse()

	if err := run(*casesFile, *runID, *history); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(casesFile, runID string, history bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()

	store, err := eval.OpenStore(cfg.EvalDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if history {
		runs, err := store.History(ctx, 10)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  score=%.3f  passed=%d/%d\n", r.RunID, r.OverallScore, r.PassedCases, r.TotalCases)
		}
		return nil
	}

	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required for evaluation")
	}

	cases, err := eval.LoadCases(casesFile)
	if err != nil {
		return err
	}

	wh, err := warehouse.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening warehouse: %w", err)
	}
	defer wh.Close()

	dialect, err := guardrails.ParseDialect(cfg.SQLDialect)
	if err != nil {
		return err
	}
	guard, err := guardrails.New(guardrails.Config{
		MaxRows:           cfg.MaxResultRows,
		AllowedNamespaces: cfg.AllowedNamespaces,
		Dialect:           dialect,
		BlockedKeywords:   cfg.BlockedKeywords,
		BlockedFunctions:  cfg.BlockedFunctions,
	})
	if err != nil {
		return err
	}

	model := cfg.ModelList["anthropic"]
	ag := agent.New(cfg.AnthropicAPIKey, model, cfg.AnthropicBaseURL)
	gen := insights.NewGenerator(cfg.AnthropicAPIKey, model, cfg.AnthropicBaseURL)
	askH := agent.NewAskHandler(
		ag, wh, guard, nil, gen,
		security.NewPIIDetector(cfg.PIIKeywords),
		security.NewPromptValidator(),
		security.NewCostTracker(cfg.MaxQueryBytesProcessed),
		security.NewDataMasker(cfg.SensitiveColumns),
		security.NewAuditLogger(cfg.EnableAuditLogging),
	)

	evaluator := eval.NewEvaluator(cases, askH, guard, wh, store)
	result, err := evaluator.Run(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("\nrun %s: score=%.3f  passed=%d/%d\n",
		result.RunID, result.OverallScore, result.PassedCases, result.TotalCases)
	for _, cr := range result.CaseResults {
		status := "FAIL"
		if cr.OverallScore >= 0.7 {
			status = "PASS"
		}
		fmt.Printf("  [%s] %-30s %.2f\n", status, cr.CaseID, cr.OverallScore)
	}
	return nil
}
