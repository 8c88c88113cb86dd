package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

type openaiCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements Client over the Chat Completions API, for
// OpenAI-compatible gateways.
type OpenAI struct {
	completions openaiCompletions
}

// NewOpenAI constructs an OpenAI client from opts.
func NewOpenAI(opts Options) *OpenAI {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.RequestTimeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.RequestTimeout))
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAI{completions: &client.Chat.Completions}
}

// Complete sends req as a chat completion. An assistant message at the end
// of req is sent as a prefill turn; the returned text does not repeat it.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	resp, err := o.completions.New(ctx, openaiParams(req))
	if err != nil {
		return nil, classify(ProviderOpenAI, err, openaiStatus)
	}
	var parts []string
	var stop string
	if len(resp.Choices) > 0 {
		parts = append(parts, resp.Choices[0].Message.Content)
		stop = resp.Choices[0].FinishReason
	}
	text, err := ResponseText(parts)
	if err != nil {
		return nil, classify(ProviderOpenAI, err, openaiStatus)
	}
	return &Response{
		Text:         text,
		Model:        resp.Model,
		StopReason:   stop,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func openaiParams(req Request) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if sys := strings.TrimSpace(req.System); sys != "" {
		msgs = append(msgs, openai.SystemMessage(sys))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}
	return openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(req.Model),
		Messages:            msgs,
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}
}

func openaiStatus(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
