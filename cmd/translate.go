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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal"
	"github.com/valpere/hubtran/internal/memory"
	"github.com/valpere/hubtran/internal/orchestrator"
	"github.com/valpere/hubtran/internal/quality"
	"github.com/valpere/hubtran/internal/validator"
)

var (
	translateInput  string
	translateOutput string
	translateAll    bool
	noMemory        bool
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a batch of entries with retries and per-entry fallback",
	Long: `Translate entries from a JSON file in batches. Failed batches are
retried whole, then entry by entry; entries that still fail are dropped
from the output and reported in the summary.

Resolved translations are stored in the translation memory after every
batch, so an interrupted run resumes where it stopped. Results below the
quality threshold are queued for human review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadEnvironment()
		if err != nil {
			return err
		}
		defer log.Sync()

		entries, err := readEntries(translateInput)
		if err != nil {
			return err
		}

		// SIGINT stops cleanly between batches.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var store *memory.Store
		if !noMemory {
			store, err = memory.New(cfg.DBPath, cfg.TargetLang, log)
			if err != nil {
				return fmt.Errorf("failed to open translation memory: %w", err)
			}
			defer store.Close()

			if !translateAll {
				pending, err := store.Untranslated(ctx, entries)
				if err != nil {
					return err
				}
				if skipped := len(entries) - len(pending); skipped > 0 {
					fmt.Fprintf(os.Stderr, "Skipping %d entries already in memory\n", skipped)
				}
				entries = pending
			}
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to translate")
			return nil
		}

		b, err := buildBackend(ctx, cfg)
		if err != nil {
			return err
		}

		orch := orchestrator.New(b, orchestratorConfig(cfg), log)
		if store != nil {
			orch.SetSink(store)
		}
		orch.SetProgress(func(translated, total int) {
			fmt.Fprintf(os.Stderr, "Translated %d/%d\n", translated, total)
		})

		translations, summary := orch.Run(ctx, entries)

		// Score every resolved translation and queue the doubtful ones.
		engine := quality.New(cfg.QualityThreshold)
		val := validator.New(cfg.TargetLang)

		results := make([]internal.TranslationResult, 0, len(translations))
		for _, t := range translations {
			results = append(results, engine.Gate(t.SourceText, t.TranslatedText))
		}
		val.Annotate(results)

		summary.RecountResolved(results)
		if store != nil {
			for _, res := range results {
				if !res.NeedsHumanReview {
					continue
				}
				if err := store.QueueReview(ctx, res); err != nil {
					log.Warn("failed to queue review", zap.String("source_text", res.SourceText), zap.Error(err))
				}
			}
		}

		if err := writeJSON(translateOutput, results); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Translated %d, needs review %d, failed %d (%d batches)\n",
			summary.Translated, summary.NeedsReview, summary.Failed, summary.BatchesCompleted)
		if summary.Interrupted {
			fmt.Fprintln(os.Stderr, "Interrupted; completed batches are saved, rerun to resume")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateInput, "input", "i", "", "Input JSON file of entries (required)")
	translateCmd.Flags().StringVarP(&translateOutput, "output", "o", "", "Output JSON file for results (default stdout)")
	translateCmd.Flags().BoolVar(&translateAll, "all", false, "Translate every entry even if already in memory")
	translateCmd.Flags().BoolVar(&noMemory, "no-memory", false, "Disable the translation memory database")

	translateCmd.MarkFlagRequired("input")
}
