package study

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

const (
	DefaultFlashcardCount = 10
	MaxFlashcardCount     = 50
)

// Flashcard is one question/answer pair.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

const flashcardSystemPrompt = `You create study flashcards from learning material.
Respond with a JSON array only, no prose. Each element is an object with
"front" (a question or term) and "back" (the answer or definition).
Keep each side under 300 characters and cover the most important concepts.`

// Flashcards generates up to count cards from material using the flashcards provider.
func (s *Service) Flashcards(ctx context.Context, material string, count int) ([]Flashcard, llm.ProviderType, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, "", ErrEmptyInput
	}
	if count <= 0 {
		count = DefaultFlashcardCount
	}
	if count > MaxFlashcardCount {
		count = MaxFlashcardCount
	}

	messages := []llm.Message{
		llm.SystemMessage(flashcardSystemPrompt),
		llm.UserMessage(fmt.Sprintf("Create %d flashcards from the following material:\n\n%s", count, material)),
	}

	res, err := s.Complete(ctx, llm.FeatureFlashcards, messages, &llm.CompletionOptions{
		Temperature: llm.Float64(0.5),
	})
	if err != nil {
		return nil, "", err
	}

	cards, err := parseFlashcards(res.Content)
	if err != nil {
		return nil, res.Provider, fmt.Errorf("%s: %w", res.Provider, err)
	}
	if len(cards) > count {
		cards = cards[:count]
	}
	return cards, res.Provider, nil
}

// parseFlashcards parses the model output, tolerating code fences and text
// around the JSON array.
func parseFlashcards(response string) ([]Flashcard, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if start, end := strings.Index(response, "["), strings.LastIndex(response, "]"); start >= 0 && end > start {
		response = response[start : end+1]
	}

	var raw []Flashcard
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse flashcards: %v", llm.ErrInvalidResponse, err)
	}

	cards := make([]Flashcard, 0, len(raw))
	for _, c := range raw {
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		if c.Front == "" || c.Back == "" {
			continue
		}
		cards = append(cards, c)
	}

	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no usable flashcards in response", llm.ErrInvalidResponse)
	}
	return cards, nil
}
