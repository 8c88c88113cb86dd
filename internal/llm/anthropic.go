package llm

import (
	"context"
	"errors"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicMessages interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

// Anthropic implements Client over the Messages API. SDK-level retries are
// disabled; retry policy belongs to the caller.
type Anthropic struct {
	msgs anthropicMessages
}

// NewAnthropic constructs an Anthropic client from opts.
func NewAnthropic(opts Options) *Anthropic {
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
	client := anthropicsdk.NewClient(reqOpts...)
	return &Anthropic{msgs: &client.Messages}
}

// Complete sends req as a single non-streaming message call.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	msg, err := a.msgs.New(ctx, anthropicParams(req))
	if err != nil {
		return nil, classify(ProviderAnthropic, err, anthropicStatus)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text, err := ResponseText(parts)
	if err != nil {
		return nil, classify(ProviderAnthropic, err, anthropicStatus)
	}
	return &Response{
		Text:         text,
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func anthropicParams(req Request) anthropicsdk.MessageNewParams {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  make([]anthropicsdk.MessageParam, 0, len(req.Messages)),
	}
	if sys := strings.TrimSpace(req.System); sys != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: sys}}
	}
	for _, m := range req.Messages {
		block := anthropicsdk.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropicsdk.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, anthropicsdk.NewUserMessage(block))
	}
	return params
}

func anthropicStatus(err error) int {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
