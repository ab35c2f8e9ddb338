package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/config"
	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	cmd.AddCommand(newConfigValidateCmd(flags))
	return cmd
}

func newConfigValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfgPath := config.FindConfigPath(flags.cfgFile)
			if cfgPath == "" {
				return fmt.Errorf("config file not found")
			}

			fmt.Fprintf(out, "Validating config: %s\n", cfgPath)

			cfg, err := config.LoadWithEnv(cfgPath, lookupEnv)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			errs := config.Validate(cfg)
			if _, err := llm.NewPolicy(lookupEnv, nil); err != nil {
				errs = append(errs, err)
			}
			if len(errs) > 0 {
				fmt.Fprintln(out, "\nValidation errors:")
				for _, e := range errs {
					fmt.Fprintf(out, "  - %v\n", e)
				}
				return fmt.Errorf("configuration is invalid")
			}

			fmt.Fprintln(out, "\nConfiguration is valid!")
			for _, t := range llm.ProviderTypes() {
				p := cfg.Provider(t)
				key := "from " + llm.APIKeyEnv(t)
				if p.APIKey != "" {
					key = "set"
				}
				fmt.Fprintf(out, "  - %s: model=%s key=%s\n", t, valueOr(p.Model, "default"), key)
			}

			features := make([]string, 0, len(cfg.Features))
			for f := range cfg.Features {
				features = append(features, f)
			}
			sort.Strings(features)
			for _, f := range features {
				fmt.Fprintf(out, "  - override %s -> %s\n", f, cfg.Features[f])
			}
			fmt.Fprintf(out, "  - Retry: %d attempts\n", cfg.Retry.MaxAttempts)
			for _, k := range cfg.UnsetKeys() {
				fmt.Fprintf(out, "  - warning: %s references %s, which is not set\n", k.Field, k.Var)
			}

			return nil
		},
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
