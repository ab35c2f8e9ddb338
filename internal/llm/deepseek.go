package llm

import "context"

const (
	defaultDeepSeekModel   = "deepseek-chat"
	defaultDeepSeekBaseURL = "https://api.deepseek.com/v1"
)

// DeepSeekProvider implements Provider and Streamer against DeepSeek's
// OpenAI-compatible chat API.
type DeepSeekProvider struct {
	chat *chatClient
}

// NewDeepSeekProvider creates a DeepSeek adapter, reading DEEPSEEK_API_KEY when
// no explicit key is given.
func NewDeepSeekProvider(opts ...Option) *DeepSeekProvider {
	s := newSettings(DeepSeek, defaultDeepSeekModel, defaultDeepSeekBaseURL, opts)
	return &DeepSeekProvider{chat: newChatClient(DeepSeek, s)}
}

func (p *DeepSeekProvider) Type() ProviderType { return DeepSeek }

func (p *DeepSeekProvider) IsConfigured() bool { return p.chat.configured() }

func (p *DeepSeekProvider) Complete(ctx context.Context, messages []Message, opts *CompletionOptions) (*CompletionResponse, error) {
	return p.chat.complete(ctx, messages, opts)
}

func (p *DeepSeekProvider) StreamComplete(ctx context.Context, messages []Message, opts *CompletionOptions) (Stream, error) {
	return p.chat.stream(ctx, messages, opts)
}
