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
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/hubtran/internal/memory"
)

var approveText string

func openStore() (*memory.Store, *zap.Logger, error) {
	cfg, log, err := loadEnvironment()
	if err != nil {
		return nil, nil, err
	}
	store, err := memory.New(cfg.DBPath, cfg.TargetLang, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open translation memory: %w", err)
	}
	return store, log, nil
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage the human review queue",
	Long:  `List, approve, and reject translations queued below the quality threshold.`,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.PendingReviews(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list reviews: %w", err)
		}

		if len(items) == 0 {
			fmt.Println("No pending reviews.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSCORE\tSOURCE\tTRANSLATION\tREASONS")
		for _, item := range items {
			fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\t%s\n",
				item.ID, item.QualityScore,
				snippet(item.SourceText), snippet(item.TranslatedText),
				strings.Join(item.Reasons, "; "))
		}
		return w.Flush()
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a review, optionally with corrected text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid review id: %s", args[0])
		}

		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Approve(context.Background(), id, approveText); err != nil {
			return fmt.Errorf("failed to approve: %w", err)
		}
		fmt.Printf("Approved review %d\n", id)
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid review id: %s", args[0])
		}

		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Reject(context.Background(), id); err != nil {
			return fmt.Errorf("failed to reject: %w", err)
		}
		fmt.Printf("Rejected review %d\n", id)
		return nil
	},
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the translation memory",
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Memory entries:  %d\n", stats.MemoryEntries)
		fmt.Printf("Total usage:     %d\n", stats.TotalUsage)
		fmt.Printf("Pending reviews: %d\n", stats.PendingReviews)
		return nil
	},
}

func snippet(s string) string {
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)

	reviewApproveCmd.Flags().StringVar(&approveText, "text", "", "Corrected translation to store instead of the queued one")

	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
}
