/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal/backend"
	"github.com/valpere/hubtran/internal/config"
	"github.com/valpere/hubtran/internal/memory"
	"github.com/valpere/hubtran/internal/pipeline"
	"github.com/valpere/hubtran/internal/quality"
	"github.com/valpere/hubtran/internal/validator"
)

var (
	pipelineInput   string
	pipelineOutput  string
	pipelineProfile string
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the translate -> review -> quality gate agent chain",
	Long: `Run entries through the three-stage agent pipeline: a first-pass
translation, a regional review driven by an expert profile, then the
deterministic quality gate.

A stage failure aborts the whole run with a diagnostic snapshot; no
partial output is written. The review stage itself degrades gracefully
when the model is unavailable and keeps its rule-based edits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer log.Sync()

		if pipelineProfile != "" {
			cfg.ProfilePath = pipelineProfile
		}
		profile, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return err
		}

		entries, err := readEntries(pipelineInput)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to translate")
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, err := buildBackend(ctx, cfg)
		if err != nil {
			return err
		}

		// The reviewer needs a completion-capable backend; without one the
		// profile's rule-based edits still apply.
		completer, _ := b.(backend.Completer)
		if completer == nil && !profile.IsZero() {
			log.Warn("provider does not support review completions, applying profile rules only",
				zap.String("provider", cfg.Provider))
		}

		orchCfg := orchestratorConfig(cfg)
		p := pipeline.New(
			pipeline.NewTranslatorStage(b, orchCfg, log),
			pipeline.NewReviewerStage(completer, profile, orchCfg, log),
			quality.New(cfg.QualityThreshold),
			log,
		)

		results, summary, err := p.Run(ctx, entries)
		if err != nil {
			var perr *pipeline.PipelineError
			if errors.As(err, &perr) {
				return fmt.Errorf("pipeline aborted at %s stage: %w", perr.Stage, perr.Err)
			}
			return err
		}

		validator.New(cfg.TargetLang).Annotate(results)

		if !noMemory {
			store, err := memory.New(cfg.DBPath, cfg.TargetLang, log)
			if err != nil {
				return fmt.Errorf("failed to open translation memory: %w", err)
			}
			defer store.Close()

			for _, res := range results {
				if res.NeedsHumanReview {
					if err := store.QueueReview(ctx, res); err != nil {
						log.Warn("failed to queue review", zap.String("source_text", res.SourceText), zap.Error(err))
					}
				}
			}
		}

		if err := writeJSON(pipelineOutput, results); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Translated %d, needs review %d, failed %d\n",
			summary.Translated, summary.NeedsReview, summary.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().StringVarP(&pipelineInput, "input", "i", "", "Input JSON file of entries (required)")
	pipelineCmd.Flags().StringVarP(&pipelineOutput, "output", "o", "", "Output JSON file for results (default stdout)")
	pipelineCmd.Flags().StringVar(&pipelineProfile, "profile", "", "Regional expert profile JSON file")
	pipelineCmd.Flags().BoolVar(&noMemory, "no-memory", false, "Disable the translation memory database")

	pipelineCmd.MarkFlagRequired("input")
}
