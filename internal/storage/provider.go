// Package storage defines the per-user object store that backs the summary
// cache, with file-system and SQLite implementations.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/chronicle/internal/apperr"
	"github.com/starford/chronicle/internal/models"
)

// Provider is a named-blob store scoped to one user.
type Provider interface {
	// List returns every object whose name starts with prefix, ordered by name.
	List(ctx context.Context, prefix string) ([]models.ObjectInfo, error)
	// Get returns the blob stored under id.
	Get(ctx context.Context, id string) ([]byte, error)
	// Create stores a new object and returns its id. An existing name yields
	// apperr.ErrAlreadyExists.
	Create(ctx context.Context, name string, blob []byte) (string, error)
	// Update replaces the blob of an existing object.
	Update(ctx context.Context, id string, blob []byte) error
	// Delete removes the object with id.
	Delete(ctx context.Context, id string) error
}

// Opener hands out a Provider scoped to a single user.
type Opener interface {
	ForUser(user string) (Provider, error)
}

var unsafeUserChars = regexp.MustCompile(`[^A-Za-z0-9._@-]`)

// UserKey normalizes a user identifier into a storage-safe key.
func UserKey(user string) (string, error) {
	key := unsafeUserChars.ReplaceAllString(strings.TrimSpace(user), "_")
	if key == "" || strings.Trim(key, ".") == "" {
		return "", fmt.Errorf("storage: user %q: %w", user, apperr.ErrNotFound)
	}
	return key, nil
}
