package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxSSELine = 1 << 20

// anthropicStreamEvent is one decoded event of the Messages SSE stream.
type anthropicStreamEvent struct {
	Type    string              `json:"type"`
	Message *anthropicResponse  `json:"message,omitempty"`
	Delta   *anthropicDelta     `json:"delta,omitempty"`
	Usage   *anthropicUsage     `json:"usage,omitempty"`
	Error   *anthropicErrorBody `json:"error,omitempty"`
}

// anthropicDelta covers both content_block_delta (type/text) and
// message_delta (stop_reason).
type anthropicDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &sseReader{scanner: scanner}
}

// next returns the next event, or io.EOF when the body ends.
func (s *sseReader) next() (*anthropicStreamEvent, error) {
	for {
		eventType, data, err := s.readEvent()
		if err != nil {
			return nil, err
		}

		var ev anthropicStreamEvent
		if data != "" {
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return nil, invalidResponse(Anthropic, fmt.Sprintf("parse stream event: %v", err))
			}
		}
		if ev.Type == "" {
			ev.Type = eventType
		}
		if ev.Type == "" {
			continue
		}
		return &ev, nil
	}
}

// readEvent collects the event: and data: fields up to the next blank line.
func (s *sseReader) readEvent() (string, string, error) {
	var eventType string
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// id:, retry: and comments are ignored
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", err
	}

	if eventType == "" && len(dataLines) == 0 {
		return "", "", io.EOF
	}

	return eventType, strings.Join(dataLines, "\n"), nil
}
