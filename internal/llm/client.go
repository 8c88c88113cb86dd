// Package llm defines the language-model client used for batch summaries and
// the final report, with Anthropic and OpenAI backed implementations.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/chronicle/internal/apperr"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Message is one role-tagged conversation turn.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Response is the generated text plus token usage.
type Response struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client issues completion calls. Implementations return *Error for upstream
// failures so callers can check retryability with IsRetryable.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options configures a provider client.
type Options struct {
	Provider          string
	APIKey            string
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// New builds the configured provider client, rate limited when
// RequestsPerSecond is positive.
func New(opts Options) (Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("llm: %w", apperr.ErrMissingCredential)
	}
	var c Client
	switch opts.Provider {
	case "", ProviderAnthropic:
		c = NewAnthropic(opts)
	case ProviderOpenAI:
		c = NewOpenAI(opts)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c = WithRateLimit(c, rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst))
	}
	return c, nil
}

// ResponseText joins non-empty text parts, returning ErrEmptyResponse when
// nothing usable came back.
func ResponseText(parts []string) (string, error) {
	text := strings.Join(parts, "")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
