package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/EndaleK/Synaptic-sub005/internal/llm"
	"github.com/EndaleK/Synaptic-sub005/internal/study"
	"github.com/EndaleK/Synaptic-sub005/pkg/models"
)

func (s *Server) handleProviders(c echo.Context) error {
	resp := models.ProvidersResponse{
		Configured: []string{},
		Features:   make(map[string]models.FeatureRoute),
	}
	for _, t := range s.router.ConfiguredProviders() {
		resp.Configured = append(resp.Configured, string(t))
	}
	for _, f := range llm.Features() {
		primary, served, ready := s.router.Route(f)
		resp.Features[string(f)] = models.FeatureRoute{
			Primary: string(primary),
			Served:  string(served),
			Ready:   ready,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleComplete(c echo.Context) error {
	feature := llm.ParseFeature(c.Param("feature"))
	if feature == "" {
		return badRequest("feature is required")
	}

	var req models.CompletionRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return badRequest(err.Error())
	}

	messages := toMessages(req.Conversation())
	opts := &llm.CompletionOptions{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Model:       req.Model,
		Stream:      req.Stream,
	}
	ctx := c.Request().Context()

	if req.Stream {
		stream, provider, err := s.study.Stream(ctx, feature, messages, opts)
		if err != nil {
			return toHTTPError(err)
		}
		return s.writeStream(c, provider, stream)
	}

	res, err := s.study.Complete(ctx, feature, messages, opts)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, models.CompletionResponse{
		ID:       requestID(c),
		Feature:  string(feature),
		Provider: string(res.Provider),
		Content:  res.Content,
		Usage:    toUsage(res.Usage),
	})
}

// writeStream relays fragments as SSE data frames. After headers are sent a
// failure is reported in-band and the stream ends.
func (s *Server) writeStream(c echo.Context, provider llm.ProviderType, stream llm.Stream) error {
	res := c.Response()
	header := res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	id := requestID(c)
	for chunk, err := range stream {
		if err != nil {
			s.logger.WarnContext(c.Request().Context(), "stream failed",
				"provider", string(provider), "request_id", id, "error", err)
			return writeSSE(res, models.StreamChunk{ID: id, Provider: string(provider), Error: study.UserMessage(err)})
		}
		if err := writeSSE(res, models.StreamChunk{ID: id, Provider: string(provider), Delta: chunk}); err != nil {
			return err
		}
	}

	return writeSSE(res, models.StreamChunk{ID: id, Provider: string(provider), Done: true})
}

func writeSSE(res *echo.Response, payload models.StreamChunk) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	res.Flush()
	return nil
}

func (s *Server) handleFlashcards(c echo.Context) error {
	var req models.FlashcardsRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if req.Count < 0 || req.Count > study.MaxFlashcardCount {
		return badRequest(fmt.Sprintf("count must be between 0 and %d", study.MaxFlashcardCount))
	}

	cards, provider, err := s.study.Flashcards(c.Request().Context(), req.Material, req.Count)
	if err != nil {
		return toHTTPError(err)
	}

	resp := models.FlashcardsResponse{
		ID:           requestID(c),
		DeckID:       models.DeckID(req.Material, req.Count),
		MaterialHash: models.MaterialHash(req.Material),
		Provider:     string(provider),
		Cards:        make([]models.Flashcard, 0, len(cards)),
	}
	for _, card := range cards {
		resp.Cards = append(resp.Cards, models.Flashcard{Front: card.Front, Back: card.Back})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSpeech(c echo.Context) error {
	var req models.SpeechRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if req.Speed != 0 && (req.Speed < 0.25 || req.Speed > 4) {
		return badRequest("speed must be between 0.25 and 4")
	}

	audio, provider, err := s.study.Speak(c.Request().Context(), req.Text, &llm.TTSOptions{
		Voice: req.Voice,
		Model: req.Model,
		Speed: req.Speed,
	})
	if err != nil {
		return toHTTPError(err)
	}

	c.Response().Header().Set("X-AI-Provider", string(provider))
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

func (s *Server) handleEmbeddings(c echo.Context) error {
	var req models.EmbeddingsRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if len(req.Input) > study.MaxSearchPassages {
		return badRequest(fmt.Sprintf("input must have at most %d entries", study.MaxSearchPassages))
	}

	vectors, provider, err := s.study.Embed(c.Request().Context(), req.Input)
	if err != nil {
		return toHTTPError(err)
	}

	resp := models.EmbeddingsResponse{
		ID:       requestID(c),
		Provider: string(provider),
		Data:     make([]models.Embedding, 0, len(vectors)),
	}
	for i, v := range vectors {
		resp.Data = append(resp.Data, models.Embedding{Index: i, Embedding: v})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSearch(c echo.Context) error {
	var req models.SearchRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if req.Limit < 0 {
		return badRequest("limit must not be negative")
	}

	passages := req.Passages
	if len(passages) == 0 {
		passages = study.SplitPassages(req.Material)
	}

	matches, provider, err := s.study.Search(c.Request().Context(), req.Query, passages, req.Limit)
	if err != nil {
		return toHTTPError(err)
	}

	resp := models.SearchResponse{
		ID:       requestID(c),
		Provider: string(provider),
		Matches:  make([]models.SearchMatch, 0, len(matches)),
	}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, models.SearchMatch{Index: m.Index, Text: m.Text, Score: m.Score})
	}
	return c.JSON(http.StatusOK, resp)
}

func toMessages(in []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(in))
	for _, m := range in {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

func toUsage(u *llm.Usage) *models.Usage {
	if u == nil {
		return nil
	}
	return &models.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
