// Package testutil provides shared test helpers for object stores and a
// scripted language-model client.
package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/chronicle/internal/llm"
	"github.com/starford/chronicle/internal/storage"
)

// TestDB creates a temporary SQLite object store that is automatically
// cleaned up.
func TestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "chronicle-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestFS creates a temporary file-system object store opener.
func TestFS(t *testing.T) (string, *storage.FSOpener) {
	t.Helper()
	dir := t.TempDir()
	opener, err := storage.NewFSOpener(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, opener
}

// Reply is one scripted outcome. When Err is set it is returned instead of
// a response.
type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Err          error
	Delay        time.Duration
}

// ScriptedClient is an llm.Client that answers from a script. Handler, when
// set, takes precedence and sees every request; otherwise replies are
// consumed in order and the last one repeats.
type ScriptedClient struct {
	Handler func(req llm.Request, call int) Reply

	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// NewScriptedClient returns a client that answers with replies in order.
func NewScriptedClient(replies ...Reply) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// Complete implements llm.Client.
func (c *ScriptedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	call := len(c.requests)
	c.requests = append(c.requests, req)
	var r Reply
	switch {
	case c.Handler != nil:
	case len(c.replies) == 0:
		r = Reply{Text: "ok"}
	case call < len(c.replies):
		r = c.replies[call]
	default:
		r = c.replies[len(c.replies)-1]
	}
	handler := c.Handler
	c.mu.Unlock()

	if handler != nil {
		r = handler(req, call)
	}
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, &llm.Error{Provider: "scripted", Err: ctx.Err()}
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.Response{
		Text:         r.Text,
		Model:        req.Model,
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
	}, nil
}

// Requests returns a copy of every request received so far.
func (c *ScriptedClient) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.requests...)
}

// Calls returns the number of requests received so far.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Transient returns a retryable upstream error.
func Transient() error {
	return &llm.Error{Provider: "scripted", StatusCode: 429, Retryable: true, Err: errors.New("rate limited")}
}

// Terminal returns a non-retryable upstream error.
func Terminal() error {
	return &llm.Error{Provider: "scripted", StatusCode: 400, Err: llm.ErrEmptyResponse}
}
