package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/starford/chronicle/internal/apperr"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func statusFn(code int) func(error) int {
	return func(error) int { return code }
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 409, 429, 500, 502, 503, 529} {
		require.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{400, 401, 403, 404, 413, 422} {
		require.False(t, RetryableStatus(code), "status %d", code)
	}
}

func TestClassify(t *testing.T) {
	base := errors.New("boom")

	err := classify("test", base, statusFn(http.StatusTooManyRequests))
	require.True(t, IsRetryable(err))
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, 429, e.StatusCode)
	require.ErrorIs(t, err, base)

	require.False(t, IsRetryable(classify("test", base, statusFn(http.StatusBadRequest))))
	require.False(t, IsRetryable(classify("test", base, statusFn(0))))
	require.True(t, IsRetryable(classify("test", fmt.Errorf("dial: %w", timeoutErr{}), statusFn(0))))
	require.True(t, IsRetryable(classify("test", context.DeadlineExceeded, statusFn(0))))
	require.False(t, IsRetryable(classify("test", context.Canceled, statusFn(0))))
	require.False(t, IsRetryable(classify("test", ErrEmptyResponse, statusFn(503))))
	require.Nil(t, classify("test", nil, statusFn(0)))
}

func TestIsRetryableUntagged(t *testing.T) {
	require.False(t, IsRetryable(errors.New("plain")))
	require.False(t, IsRetryable(nil))
}

func TestResponseText(t *testing.T) {
	text, err := ResponseText([]string{"Hello", ", world"})
	require.NoError(t, err)
	require.Equal(t, "Hello, world", text)

	_, err = ResponseText([]string{" ", "\n"})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Options{Provider: ProviderAnthropic, APIKey: "  "})
	require.ErrorIs(t, err, apperr.ErrMissingCredential)

	_, err = New(Options{Provider: "mystery", APIKey: "k"})
	require.Error(t, err)

	c, err := New(Options{Provider: ProviderOpenAI, APIKey: "k", RequestsPerSecond: 2})
	require.NoError(t, err)
	require.IsType(t, &rateLimited{}, c)
}

type fakeMessages struct {
	got  anthropicsdk.MessageNewParams
	resp *anthropicsdk.Message
	err  error
}

func (f *fakeMessages) New(_ context.Context, params anthropicsdk.MessageNewParams, _ ...option.RequestOption) (*anthropicsdk.Message, error) {
	f.got = params
	return f.resp, f.err
}

func TestAnthropicComplete(t *testing.T) {
	fake := &fakeMessages{resp: &anthropicsdk.Message{
		Model:      "claude-haiku-4-5",
		StopReason: "end_turn",
		Content: []anthropicsdk.ContentBlockUnion{
			{Type: "text", Text: " in which"},
			{Type: "text", Text: " things happened."},
		},
		Usage: anthropicsdk.Usage{InputTokens: 120, OutputTokens: 30},
	}}
	client := &Anthropic{msgs: fake}

	resp, err := client.Complete(context.Background(), Request{
		Model:     "claude-haiku-4-5",
		System:    "be brief",
		MaxTokens: 500,
		Messages: []Message{
			{Role: RoleUser, Content: "entries"},
			{Role: RoleAssistant, Content: "Report"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, " in which things happened.", resp.Text)
	require.Equal(t, 120, resp.InputTokens)
	require.Equal(t, 30, resp.OutputTokens)
	require.Equal(t, "end_turn", resp.StopReason)

	require.Equal(t, int64(500), fake.got.MaxTokens)
	require.Len(t, fake.got.System, 1)
	require.Equal(t, "be brief", fake.got.System[0].Text)
	require.Len(t, fake.got.Messages, 2)
	require.Equal(t, anthropicsdk.MessageParamRoleAssistant, fake.got.Messages[1].Role)
}

func TestAnthropicEmptyResponseIsTerminal(t *testing.T) {
	client := &Anthropic{msgs: &fakeMessages{resp: &anthropicsdk.Message{}}}
	_, err := client.Complete(context.Background(), Request{Model: "m", MaxTokens: 10})
	require.ErrorIs(t, err, ErrEmptyResponse)
	require.False(t, IsRetryable(err))
}

func TestAnthropicTransportErrorTagged(t *testing.T) {
	client := &Anthropic{msgs: &fakeMessages{err: fmt.Errorf("post: %w", timeoutErr{})}}
	_, err := client.Complete(context.Background(), Request{Model: "m", MaxTokens: 10})
	require.True(t, IsRetryable(err))
}

type countingClient struct{ calls int }

func (c *countingClient) Complete(context.Context, Request) (*Response, error) {
	c.calls++
	return &Response{Text: "ok"}, nil
}

func TestRateLimitWaits(t *testing.T) {
	next := &countingClient{}
	c := WithRateLimit(next, rate.NewLimiter(rate.Every(50*time.Millisecond), 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), Request{})
		require.NoError(t, err)
	}
	require.Equal(t, 3, next.calls)
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimitCancelledIsTerminal(t *testing.T) {
	next := &countingClient{}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := WithRateLimit(next, limiter)

	_, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Complete(ctx, Request{})
	require.Error(t, err)
	require.False(t, IsRetryable(err))
	require.Equal(t, 1, next.calls)
}
