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
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	flagProvider   string
	flagModel      string
	flagTargetLang string
	flagDBPath     string
)

var rootCmd = &cobra.Command{
	Use:   "hubtran",
	Short: "Batch LLM translation for application strings",
	Long: `hubtran translates batches of application strings with an LLM backend,
scores every result with deterministic quality checks and queues anything
below the threshold for human review.

Two translation paths are available:
  translate   batch orchestrator with retries and per-entry fallback
  pipeline    translate -> regional review -> quality gate agent chain

Configuration is read from hubtran.yaml and HUBTRAN_* environment
variables; flags override both.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Translation provider: gemini, openai, groq, openrouter, googlecloud, mock")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "Model name for LLM providers")
	rootCmd.PersistentFlags().StringVarP(&flagTargetLang, "target", "t", "", "Target language code")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Translation memory database path")
}
