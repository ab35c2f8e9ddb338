package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

func newProvidersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show configured vendors and how each feature routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			configured := a.factory.ConfiguredProviders()
			names := make([]string, 0, len(configured))
			for _, t := range configured {
				names = append(names, string(t))
			}
			if len(names) == 0 {
				names = append(names, "none")
			}
			fmt.Fprintf(out, "Configured providers: %s\n\n", strings.Join(names, ", "))

			fmt.Fprintf(out, "%-16s %-10s %-10s %s\n", "FEATURE", "PRIMARY", "SERVED", "READY")
			for _, f := range llm.Features() {
				primary, served, ready := a.factory.Route(f)
				fmt.Fprintf(out, "%-16s %-10s %-10s %s\n", f, primary, served, yesNo(ready))
			}
			return nil
		},
	}
}

func newResolveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <feature>",
		Short: "Show which vendor would serve a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			feature := llm.ParseFeature(args[0])
			primary, served, ready := a.factory.Route(feature)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Feature:  %s\n", feature)
			fmt.Fprintf(out, "Primary:  %s\n", primary)
			if override, source, ok := a.factory.Policy().Override(feature); ok {
				fmt.Fprintf(out, "Override: %s (%s)\n", override, source)
			}
			fmt.Fprintf(out, "Served:   %s\n", served)
			fmt.Fprintf(out, "Ready:    %s\n", yesNo(ready))
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
