package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

var version = "dev"

// lookupEnv is where API keys and feature overrides are read from.
var lookupEnv llm.LookupEnv = os.LookupEnv

type globalFlags struct {
	cfgFile  string
	logLevel string
}

// Execute runs the root command with the process arguments.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "synaptic-ai",
		Short: "Multi-vendor AI provider gateway for study features",
		Long: `synaptic-ai routes study features (chat, flashcards, podcasts, mind maps,
exams, study guides) to OpenAI, DeepSeek or Anthropic, falling back to
whichever vendor has an API key configured.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(newProvidersCmd(flags))
	rootCmd.AddCommand(newResolveCmd(flags))
	rootCmd.AddCommand(newCompleteCmd(flags))
	rootCmd.AddCommand(newFlashcardsCmd(flags))
	rootCmd.AddCommand(newSpeakCmd(flags))
	rootCmd.AddCommand(newSearchCmd(flags))
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "synaptic-ai version %s\n", version)
		},
	}
}
