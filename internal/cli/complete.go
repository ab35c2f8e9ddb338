package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
	"github.com/EndaleK/Synaptic-sub005/internal/study"
	"github.com/EndaleK/Synaptic-sub005/pkg/models"
)

func newCompleteCmd(flags *globalFlags) *cobra.Command {
	var (
		feature     string
		system      string
		stream      bool
		temperature float64
		maxTokens   int
		model       string
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Run a completion for a feature",
		Long: `Run a completion against the vendor routed for --feature. The prompt is
taken from the arguments, or from stdin when the only argument is "-".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			var messages []llm.Message
			if system != "" {
				messages = append(messages, llm.SystemMessage(system))
			}
			messages = append(messages, llm.UserMessage(prompt))

			opts := &llm.CompletionOptions{MaxTokens: maxTokens, Model: model, Stream: stream}
			if cmd.Flags().Changed("temperature") {
				opts.Temperature = llm.Float64(temperature)
			}

			f := llm.ParseFeature(feature)
			out := cmd.OutOrStdout()

			if stream {
				s, provider, err := a.study.Stream(cmd.Context(), f, messages, opts)
				if err != nil {
					return fmt.Errorf("%s: %w", study.UserMessage(err), err)
				}
				a.logger.Debug("streaming", "feature", string(f), "provider", string(provider))
				for chunk, err := range s {
					if err != nil {
						fmt.Fprintln(out)
						return fmt.Errorf("%s: %w", study.UserMessage(err), err)
					}
					fmt.Fprint(out, chunk)
				}
				fmt.Fprintln(out)
				return nil
			}

			res, err := a.study.Complete(cmd.Context(), f, messages, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", study.UserMessage(err), err)
			}
			a.logger.Debug("completed", "feature", string(f), "provider", string(res.Provider))
			fmt.Fprintln(out, res.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&feature, "feature", string(llm.FeatureChat), "feature whose routing to use")
	cmd.Flags().StringVar(&system, "system", "", "system instruction")
	cmd.Flags().BoolVar(&stream, "stream", false, "print fragments as they arrive")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "response token limit (0 uses the default)")
	cmd.Flags().StringVar(&model, "model", "", "model override")

	return cmd
}

func newFlashcardsCmd(flags *globalFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "flashcards <file>",
		Short: "Generate flashcards from a study material file",
		Long:  `Generate flashcards from a text file ("-" reads stdin) and print them as JSON.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 || count > study.MaxFlashcardCount {
				return fmt.Errorf("--count must be between 0 and %d", study.MaxFlashcardCount)
			}

			material, err := readFile(cmd, args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			cards, provider, err := a.study.Flashcards(cmd.Context(), material, count)
			if err != nil {
				return fmt.Errorf("%s: %w", study.UserMessage(err), err)
			}

			resp := models.FlashcardsResponse{
				DeckID:       models.DeckID(material, count),
				MaterialHash: models.MaterialHash(material),
				Provider:     string(provider),
				Cards:        make([]models.Flashcard, 0, len(cards)),
			}
			for _, c := range cards {
				resp.Cards = append(resp.Cards, models.Flashcard{Front: c.Front, Back: c.Back})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().IntVar(&count, "count", study.DefaultFlashcardCount, "number of cards to generate")
	return cmd
}

func newSpeakCmd(flags *globalFlags) *cobra.Command {
	var (
		outPath string
		voice   string
		speed   float64
	)

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Render text to speech with the podcast_tts provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			audio, provider, err := a.study.Speak(cmd.Context(), text, &llm.TTSOptions{Voice: voice, Speed: speed})
			if err != nil {
				return fmt.Errorf("%s: %w", study.UserMessage(err), err)
			}

			if err := os.WriteFile(outPath, audio, 0o644); err != nil {
				return fmt.Errorf("failed to write audio: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s (%s)\n", len(audio), outPath, provider)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file for the mp3 audio")
	cmd.Flags().StringVar(&voice, "voice", "", "voice override")
	cmd.Flags().Float64Var(&speed, "speed", 0, "speech speed (0.25 to 4, 0 uses the default)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// readInput joins args into one string, or reads stdin for a lone "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func readFile(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		return readInput(cmd, []string{path})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read material: %w", err)
	}
	return string(data), nil
}
