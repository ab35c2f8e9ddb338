package study

import (
	"context"
	"errors"
	"math"
	"net/http"
	"slices"
	"testing"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
)

// embeddingProvider maps each text to a fixed vector.
type embeddingProvider struct {
	stubProvider
	vectors map[string][]float32
	errs    []error
	inputs  [][]string
}

func (p *embeddingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.inputs = append(p.inputs, texts)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := p.vectors[t]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func TestService_Search(t *testing.T) {
	p := &embeddingProvider{
		stubProvider: stubProvider{typ: llm.OpenAI},
		vectors: map[string][]float32{
			"what makes ATP":            {1, 0, 0},
			"Mitochondria produce ATP.": {0.9, 0.1, 0},
			"The Nile is a river.":      {0, 0, 1},
			"Glycolysis yields ATP.":    {0.6, 0.6, 0},
		},
	}
	svc, src := newTestService(p)

	passages := []string{"Mitochondria produce ATP.", "  ", "The Nile is a river.", "Glycolysis yields ATP."}
	matches, provider, err := svc.Search(t.Context(), " what makes ATP ", passages, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if provider != llm.OpenAI {
		t.Errorf("provider = %v, want openai", provider)
	}
	if !slices.Equal(src.features, []llm.Feature{llm.FeatureMaterialSearch}) {
		t.Errorf("features asked = %v", src.features)
	}
	if len(p.inputs) != 1 || len(p.inputs[0]) != 4 {
		t.Errorf("Embed inputs = %v, want one call with query + 3 passages", p.inputs)
	}

	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Index != 0 || matches[1].Index != 3 {
		t.Errorf("match order = %d, %d, want 0, 3", matches[0].Index, matches[1].Index)
	}
	if matches[0].Score <= matches[1].Score {
		t.Errorf("scores not descending: %v", matches)
	}
}

func TestService_SearchRetriesTransient(t *testing.T) {
	p := &embeddingProvider{
		stubProvider: stubProvider{typ: llm.OpenAI},
		vectors:      map[string][]float32{"q": {1}, "a": {1}},
		errs:         []error{&llm.APIError{Provider: llm.OpenAI, StatusCode: http.StatusTooManyRequests}},
	}
	svc, _ := newTestService(p)

	matches, _, err := svc.Search(t.Context(), "q", []string{"a"}, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(p.inputs) != 2 || len(matches) != 1 {
		t.Errorf("calls = %d, matches = %v", len(p.inputs), matches)
	}
}

func TestService_SearchErrors(t *testing.T) {
	tooMany := make([]string, MaxSearchPassages+1)
	for i := range tooMany {
		tooMany[i] = "passage"
	}

	tests := []struct {
		name     string
		provider llm.Provider
		query    string
		passages []string
		want     error
	}{
		{"empty query", &embeddingProvider{stubProvider: stubProvider{typ: llm.OpenAI}}, " ", []string{"a"}, ErrEmptyInput},
		{"no passages", &embeddingProvider{stubProvider: stubProvider{typ: llm.OpenAI}}, "q", []string{"", " "}, ErrEmptyInput},
		{"too many", &embeddingProvider{stubProvider: stubProvider{typ: llm.OpenAI}}, "q", tooMany, ErrTooManyPassages},
		{"no embedder", &stubProvider{typ: llm.DeepSeek}, "q", []string{"a"}, ErrUnsupported},
		{"short response", &embeddingProvider{stubProvider: stubProvider{typ: llm.OpenAI}, vectors: map[string][]float32{"q": {1}}}, "q", []string{"a"}, llm.ErrInvalidResponse},
		{"not configured", &embeddingProvider{stubProvider: stubProvider{typ: llm.OpenAI}, errs: []error{llm.ErrNotConfigured}}, "q", []string{"a"}, llm.ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(tt.provider)
			if _, _, err := svc.Search(t.Context(), tt.query, tt.passages, 3); !errors.Is(err, tt.want) {
				t.Errorf("Search() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_EmbedRejectsBlank(t *testing.T) {
	svc, _ := newTestService(&embeddingProvider{stubProvider: stubProvider{typ: llm.OpenAI}})
	for _, texts := range [][]string{nil, {"ok", ""}} {
		if _, _, err := svc.Embed(t.Context(), texts); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Embed(%q) error = %v, want ErrEmptyInput", texts, err)
		}
	}
}

func TestSplitPassages(t *testing.T) {
	got := SplitPassages("First paragraph\nstill first.\r\n\r\nSecond.\n   \n\n\nThird.\n")
	want := []string{"First paragraph\nstill first.", "Second.", "Third."}
	if !slices.Equal(got, want) {
		t.Errorf("SplitPassages() = %q, want %q", got, want)
	}
	if got := SplitPassages("  \n\n "); len(got) != 0 {
		t.Errorf("SplitPassages(blank) = %q, want none", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: cosineSimilarity() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
