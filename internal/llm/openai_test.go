package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeOpenAI records requests and serves canned chat, speech and embedding
// responses in the OpenAI wire format.
type fakeOpenAI struct {
	mu       sync.Mutex
	hits     atomic.Int32
	bodies   []map[string]any
	paths    []string
	auth     string
	chat     string
	chunks   []string
	status   int
	errBody  string
	audio    []byte
	vectors  [][]float32
	noChoice bool
}

func (f *fakeOpenAI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.paths = append(f.paths, r.URL.Path)
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()

		if f.status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.errBody)
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions") && body["stream"] == true:
			w.Header().Set("Content-Type", "text/event-stream")
			for i, c := range f.chunks {
				chunk := map[string]any{
					"id":      "chatcmpl-1",
					"object":  "chat.completion.chunk",
					"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": c}}},
				}
				if i == 0 {
					chunk["choices"] = []map[string]any{{"index": 0, "delta": map[string]any{"role": "assistant", "content": c}}}
				}
				data, _ := json.Marshal(chunk)
				fmt.Fprintf(w, "data: %s\n\n", data)
			}
			fmt.Fprint(w, `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":4,"completion_tokens":3,"total_tokens":7}}`+"\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			w.Header().Set("Content-Type", "application/json")
			choices := []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": f.chat},
				"finish_reason": "stop",
			}}
			if f.noChoice {
				choices = []map[string]any{}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"object":  "chat.completion",
				"choices": choices,
				"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
			})
		case strings.HasSuffix(r.URL.Path, "/audio/speech"):
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write(f.audio)
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			w.Header().Set("Content-Type", "application/json")
			data := make([]map[string]any, len(f.vectors))
			for i, v := range f.vectors {
				data[i] = map[string]any{"object": "embedding", "index": i, "embedding": v}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeOpenAI) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

func startFakeOpenAI(t *testing.T, f *fakeOpenAI) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return srv
}

func newChatAdapters(baseURL string, key string) []Provider {
	env := WithLookupEnv(MapEnv(nil))
	return []Provider{
		NewOpenAIProvider(WithAPIKey(key), WithBaseURL(baseURL), env),
		NewDeepSeekProvider(WithAPIKey(key), WithBaseURL(baseURL), env),
	}
}

func TestChatAdapters_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		provider  func(opts ...Option) Provider
		wantModel string
	}{
		{"openai", func(opts ...Option) Provider { return NewOpenAIProvider(opts...) }, "gpt-4o-mini"},
		{"deepseek", func(opts ...Option) Provider { return NewDeepSeekProvider(opts...) }, "deepseek-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOpenAI{chat: "hello"}
			srv := startFakeOpenAI(t, fake)

			p := tt.provider(WithAPIKey("sk-test"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))
			resp, err := p.Complete(t.Context(), []Message{UserMessage("hi")}, nil)
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.Content != "hello" {
				t.Errorf("Content = %q, want hello", resp.Content)
			}
			if resp.Usage == nil || resp.Usage.TotalTokens != 7 {
				t.Errorf("Usage = %+v, want total 7", resp.Usage)
			}

			body := fake.lastBody()
			if got := body["model"]; got != tt.wantModel {
				t.Errorf("model = %v, want %v", got, tt.wantModel)
			}
			if got, _ := body["temperature"].(float64); math.Abs(got-DefaultTemperature) > 1e-6 {
				t.Errorf("temperature = %v, want %v", got, DefaultTemperature)
			}
			if got, _ := body["max_tokens"].(float64); int(got) != DefaultMaxTokens {
				t.Errorf("max_tokens = %v, want %v", got, DefaultMaxTokens)
			}
			if fake.auth != "Bearer sk-test" {
				t.Errorf("Authorization = %q", fake.auth)
			}
			if !strings.HasSuffix(fake.paths[0], "/v1/chat/completions") {
				t.Errorf("path = %q", fake.paths[0])
			}
		})
	}
}

func TestChatAdapters_OptionsOverride(t *testing.T) {
	fake := &fakeOpenAI{chat: "ok"}
	srv := startFakeOpenAI(t, fake)

	p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))
	_, err := p.Complete(t.Context(), []Message{SystemMessage("be brief"), UserMessage("hi")}, &CompletionOptions{
		Temperature: Float64(0.2),
		MaxTokens:   50,
		Model:       "gpt-4o",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	body := fake.lastBody()
	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", body["model"])
	}
	if got, _ := body["temperature"].(float64); math.Abs(got-0.2) > 1e-6 {
		t.Errorf("temperature = %v, want 0.2", got)
	}
	if got, _ := body["max_tokens"].(float64); got != 50 {
		t.Errorf("max_tokens = %v, want 50", got)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v, want 2 entries", msgs)
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("messages[0].role = %v, want system", first["role"])
	}
}

func TestChatAdapters_ExplicitZeroTemperature(t *testing.T) {
	fake := &fakeOpenAI{chat: "ok", chunks: []string{"ok"}}
	srv := startFakeOpenAI(t, fake)
	opts := &CompletionOptions{Temperature: Float64(0)}

	for _, p := range newChatAdapters(srv.URL+"/v1", "k") {
		if _, err := p.Complete(t.Context(), []Message{UserMessage("hi")}, opts); err != nil {
			t.Fatalf("%s: Complete() error = %v", p.Type(), err)
		}
		got, present := fake.lastBody()["temperature"].(float64)
		if !present || got > 1e-6 {
			t.Errorf("%s: complete temperature = %v (present=%v), want ~0", p.Type(), got, present)
		}

		streamer, _ := AsStreamer(p)
		stream, err := streamer.StreamComplete(t.Context(), []Message{UserMessage("hi")}, opts)
		if err != nil {
			t.Fatalf("%s: StreamComplete() error = %v", p.Type(), err)
		}
		if _, err := Collect(stream); err != nil {
			t.Fatalf("%s: Collect() error = %v", p.Type(), err)
		}
		got, present = fake.lastBody()["temperature"].(float64)
		if !present || got > 1e-6 {
			t.Errorf("%s: stream temperature = %v (present=%v), want ~0", p.Type(), got, present)
		}
	}
}

func TestChatAdapters_NotConfiguredMakesNoCall(t *testing.T) {
	fake := &fakeOpenAI{chat: "never"}
	srv := startFakeOpenAI(t, fake)

	for _, p := range newChatAdapters(srv.URL+"/v1", "") {
		if p.IsConfigured() {
			t.Errorf("%v IsConfigured() = true", p.Type())
		}
		if _, err := p.Complete(t.Context(), []Message{UserMessage("hi")}, nil); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("%v Complete() error = %v, want ErrNotConfigured", p.Type(), err)
		}
		s, _ := AsStreamer(p)
		if _, err := s.StreamComplete(t.Context(), []Message{UserMessage("hi")}, nil); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("%v StreamComplete() error = %v, want ErrNotConfigured", p.Type(), err)
		}
	}

	openai := NewOpenAIProvider(WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))
	if _, err := openai.GenerateSpeech(t.Context(), "hi", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("GenerateSpeech() error = %v, want ErrNotConfigured", err)
	}
	if _, err := openai.Embed(t.Context(), []string{"hi"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Embed() error = %v, want ErrNotConfigured", err)
	}

	if hits := fake.hits.Load(); hits != 0 {
		t.Errorf("server hits = %d, want 0", hits)
	}
}

func TestChatAdapters_KeyFromEnv(t *testing.T) {
	env := MapEnv(map[string]string{"OPENAI_API_KEY": "o", "DEEPSEEK_API_KEY": ""})
	if !NewOpenAIProvider(WithLookupEnv(env)).IsConfigured() {
		t.Error("openai should read OPENAI_API_KEY")
	}
	if NewDeepSeekProvider(WithLookupEnv(env)).IsConfigured() {
		t.Error("deepseek with empty DEEPSEEK_API_KEY should be unconfigured")
	}
	if !NewDeepSeekProvider(WithLookupEnv(env), WithAPIKey("explicit")).IsConfigured() {
		t.Error("explicit key should win")
	}
}

func TestChatAdapters_NoChoices(t *testing.T) {
	fake := &fakeOpenAI{noChoice: true}
	srv := startFakeOpenAI(t, fake)

	for _, p := range newChatAdapters(srv.URL+"/v1", "k") {
		_, err := p.Complete(t.Context(), []Message{UserMessage("hi")}, nil)
		if !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("%v Complete() error = %v, want ErrInvalidResponse", p.Type(), err)
		}
	}
}

func TestChatAdapters_APIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			fake := &fakeOpenAI{
				status:  tt.status,
				errBody: `{"error":{"message":"boom","type":"server_error"}}`,
			}
			srv := startFakeOpenAI(t, fake)

			p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))
			_, err := p.Complete(t.Context(), []Message{UserMessage("hi")}, nil)
			if err == nil {
				t.Fatal("Complete() expected error")
			}
			if got := StatusCode(err); got != tt.status {
				t.Errorf("StatusCode() = %d, want %d", got, tt.status)
			}
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := ErrorKind(err); got != "api" {
				t.Errorf("ErrorKind() = %q, want api", got)
			}
		})
	}
}

func TestChatAdapters_Stream(t *testing.T) {
	chunks := []string{"Hel", "lo, ", "wor", "ld"}
	fake := &fakeOpenAI{chunks: chunks}
	srv := startFakeOpenAI(t, fake)

	for _, p := range newChatAdapters(srv.URL+"/v1", "k") {
		t.Run(string(p.Type()), func(t *testing.T) {
			s, ok := AsStreamer(p)
			if !ok {
				t.Fatal("adapter should stream")
			}
			stream, err := s.StreamComplete(t.Context(), []Message{UserMessage("hi")}, nil)
			if err != nil {
				t.Fatalf("StreamComplete() error = %v", err)
			}

			var got []string
			for chunk, err := range stream {
				if err != nil {
					t.Fatalf("stream error = %v", err)
				}
				got = append(got, chunk)
			}
			if strings.Join(got, "|") != strings.Join(chunks, "|") {
				t.Errorf("chunks = %q, want %q", got, chunks)
			}

			if body := fake.lastBody(); body["stream"] != true {
				t.Errorf("stream flag = %v, want true", body["stream"])
			}

			// single use
			for _, err := range stream {
				if !errors.Is(err, ErrStreamConsumed) {
					t.Errorf("second range error = %v, want ErrStreamConsumed", err)
				}
			}
		})
	}
}

func TestChatAdapters_StreamMatchesComplete(t *testing.T) {
	fake := &fakeOpenAI{chat: "Hello, world", chunks: []string{"Hello", ", ", "world"}}
	srv := startFakeOpenAI(t, fake)
	p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))

	resp, err := p.Complete(t.Context(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	stream, err := p.StreamComplete(t.Context(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}
	streamed, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if streamed != resp.Content {
		t.Errorf("streamed %q, completed %q", streamed, resp.Content)
	}
}

func TestChatAdapters_StreamEarlyBreak(t *testing.T) {
	fake := &fakeOpenAI{chunks: []string{"a", "b", "c"}}
	srv := startFakeOpenAI(t, fake)
	p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))

	stream, err := p.StreamComplete(t.Context(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}
	var got []string
	for chunk, err := range stream {
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
		got = append(got, chunk)
		break
	}
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("got %q, want [a]", got)
	}
}

func TestChatAdapters_StreamOpenError(t *testing.T) {
	fake := &fakeOpenAI{status: http.StatusServiceUnavailable, errBody: `{"error":{"message":"overloaded"}}`}
	srv := startFakeOpenAI(t, fake)
	p := NewDeepSeekProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))

	stream, err := p.StreamComplete(t.Context(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("StreamComplete() error = %v", err)
	}
	_, err = Collect(stream)
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("Collect() error = %v, want status 503", err)
	}
}

func TestOpenAI_GenerateSpeech(t *testing.T) {
	fake := &fakeOpenAI{audio: []byte("ID3-fake-mp3")}
	srv := startFakeOpenAI(t, fake)
	p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))

	audio, err := p.GenerateSpeech(t.Context(), "Welcome to the podcast", nil)
	if err != nil {
		t.Fatalf("GenerateSpeech() error = %v", err)
	}
	if string(audio) != "ID3-fake-mp3" {
		t.Errorf("audio = %q", audio)
	}

	body := fake.lastBody()
	if body["model"] != "tts-1" || body["voice"] != "alloy" || body["response_format"] != "mp3" {
		t.Errorf("speech request = %v", body)
	}

	_, err = p.GenerateSpeech(t.Context(), "again", &TTSOptions{Voice: "nova", Model: "tts-1-hd", Speed: 1.25})
	if err != nil {
		t.Fatalf("GenerateSpeech() error = %v", err)
	}
	body = fake.lastBody()
	if body["voice"] != "nova" || body["model"] != "tts-1-hd" || body["speed"] != 1.25 {
		t.Errorf("speech request = %v", body)
	}
}

func TestOpenAI_GenerateSpeechErrors(t *testing.T) {
	fake := &fakeOpenAI{}
	srv := startFakeOpenAI(t, fake)
	p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))

	if _, err := p.GenerateSpeech(t.Context(), "  ", nil); err == nil {
		t.Error("GenerateSpeech(empty) expected error")
	}
	if hits := fake.hits.Load(); hits != 0 {
		t.Errorf("empty text hit the server %d times", hits)
	}

	if _, err := p.GenerateSpeech(t.Context(), "hello", nil); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("GenerateSpeech() error = %v, want ErrInvalidResponse for empty audio", err)
	}
}

func TestOpenAI_Embed(t *testing.T) {
	fake := &fakeOpenAI{vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}}}
	srv := startFakeOpenAI(t, fake)
	p := NewOpenAIProvider(WithAPIKey("k"), WithBaseURL(srv.URL+"/v1"), WithLookupEnv(MapEnv(nil)))

	got, err := p.Embed(t.Context(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 2 || len(got[1]) != 2 || got[1][0] != 0.3 {
		t.Errorf("Embed() = %v", got)
	}
	if body := fake.lastBody(); body["model"] != "text-embedding-3-small" {
		t.Errorf("model = %v", body["model"])
	}

	_, err = p.Embed(t.Context(), []string{"alpha", "beta", "gamma"})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Embed() mismatched count error = %v, want ErrInvalidResponse", err)
	}

	got, err = p.Embed(t.Context(), nil)
	if err != nil || got != nil {
		t.Errorf("Embed(nil) = %v, %v", got, err)
	}
}

func TestCapabilities(t *testing.T) {
	env := WithLookupEnv(MapEnv(nil))
	tests := []struct {
		p                     Provider
		stream, speech, embed bool
	}{
		{NewOpenAIProvider(env), true, true, true},
		{NewDeepSeekProvider(env), true, false, false},
		{NewAnthropicProvider(env), true, false, false},
	}
	for _, tt := range tests {
		if _, ok := AsStreamer(tt.p); ok != tt.stream {
			t.Errorf("%v AsStreamer = %v", tt.p.Type(), ok)
		}
		if _, ok := AsSpeechGenerator(tt.p); ok != tt.speech {
			t.Errorf("%v AsSpeechGenerator = %v", tt.p.Type(), ok)
		}
		if _, ok := AsEmbedder(tt.p); ok != tt.embed {
			t.Errorf("%v AsEmbedder = %v", tt.p.Type(), ok)
		}
	}
}
