// Kelly, the AI Scientist Poet.
//
// Subcommands:
//
//	kelly chat    interactive terminal session
//	kelly serve   gRPC service plus Prometheus metrics
//	kelly ask     one-shot question against a running `kelly serve`
//
// Settings come from --config, ./kelly.yaml, or KELLY_* variables
// (KELLY_PROVIDER, KELLY_MODEL, KELLY_MAX_RETRIES, KELLY_STORE_BACKEND, ...).
// Credentials are read only from OPENAI_API_KEY(S) / GEMINI_API_KEY(S).
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "kelly",
		Short:         "Kelly, the AI Scientist Poet",
		Long:          "Ask Kelly about AI and she replies in analytical, skeptical verse.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./kelly.yaml if present)")

	root.AddCommand(
		newChatCmd(&configFile),
		newServeCmd(&configFile),
		newAskCmd(),
	)
	return root
}
