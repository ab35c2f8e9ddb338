package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/study"
)

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query> <file>",
		Short: "Find the paragraphs of a study material file closest to a query",
		Long: `Embed the query and every paragraph of the file ("-" reads stdin) with the
material_search provider and print the closest paragraphs by cosine similarity.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			material, err := readFile(cmd, args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			matches, provider, err := a.study.Search(cmd.Context(), args[0], study.SplitPassages(material), limit)
			if err != nil {
				return fmt.Errorf("%s: %w", study.UserMessage(err), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", provider)
			for _, m := range matches {
				fmt.Fprintf(out, "\n[%d] score=%.3f\n%s\n", m.Index, m.Score, m.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", study.DefaultSearchLimit, "number of paragraphs to show")
	return cmd
}
