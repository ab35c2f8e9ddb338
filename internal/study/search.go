package study

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

const (
	DefaultSearchLimit = 5
	MaxSearchPassages  = 256
)

// ErrTooManyPassages is returned when Search is given more than
// MaxSearchPassages passages.
var ErrTooManyPassages = errors.New("too many passages")

// Match is a passage scored against a query.
type Match struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// SplitPassages splits material into paragraphs, dropping blank ones.
func SplitPassages(material string) []string {
	var out []string
	for _, p := range blankLines.Split(strings.ReplaceAll(material, "\r\n", "\n"), -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Embed returns one vector per text from the material_search provider.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, llm.ProviderType, error) {
	if len(texts) == 0 || slices.ContainsFunc(texts, func(t string) bool { return strings.TrimSpace(t) == "" }) {
		return nil, "", ErrEmptyInput
	}

	p := s.providers.ProviderForFeature(llm.FeatureMaterialSearch)
	embedder, ok := llm.AsEmbedder(p)
	if !ok {
		return nil, p.Type(), fmt.Errorf("%s: embeddings: %w", p.Type(), ErrUnsupported)
	}

	vectors, err := withRetry(ctx, s, llm.FeatureMaterialSearch, p.Type(), func() ([][]float32, error) {
		return embedder.Embed(ctx, texts)
	})
	if err != nil {
		return nil, p.Type(), err
	}
	if len(vectors) != len(texts) {
		return nil, p.Type(), fmt.Errorf("%s: got %d embeddings for %d inputs: %w", p.Type(), len(vectors), len(texts), llm.ErrInvalidResponse)
	}
	return vectors, p.Type(), nil
}

// Search ranks passages by cosine similarity to query and returns the best
// limit matches, highest score first.
func (s *Service) Search(ctx context.Context, query string, passages []string, limit int) ([]Match, llm.ProviderType, error) {
	query = strings.TrimSpace(query)
	kept := make([]Match, 0, len(passages))
	for i, p := range passages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, Match{Index: i, Text: p})
		}
	}
	if query == "" || len(kept) == 0 {
		return nil, "", ErrEmptyInput
	}
	if len(kept) > MaxSearchPassages {
		return nil, "", fmt.Errorf("%w: %d, limit is %d", ErrTooManyPassages, len(kept), MaxSearchPassages)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	texts := make([]string, 0, len(kept)+1)
	texts = append(texts, query)
	for _, m := range kept {
		texts = append(texts, m.Text)
	}

	vectors, provider, err := s.Embed(ctx, texts)
	if err != nil {
		return nil, provider, err
	}

	for i := range kept {
		kept[i].Score = cosineSimilarity(vectors[0], vectors[i+1])
	}
	slices.SortStableFunc(kept, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept, provider, nil
}

// cosineSimilarity is 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
