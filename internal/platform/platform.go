package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/keywatch/keywatch/internal/database"
)

// Credential carries the token an adapter authenticates with. The zero
// value means "no account connected"; adapters that require auth fail
// the call, which the scanner isolates per platform.
type Credential struct {
	AccessToken string
	AccountName string
}

// RawPost is one normalized search result from a platform.
type RawPost struct {
	PostID     string
	CommentID  string // set when the hit is a comment, not a top-level post
	Content    string
	AuthorName string
	AuthorID   string
	AuthorURL  string
	PostURL    string
	PostedAt   time.Time
}

// Adapter is implemented once per platform. Search returns a nil error
// with an empty slice for "no results"; an error means authentication
// or transport failure. PostReply returns the platform-assigned ID of
// the posted reply.
type Adapter interface {
	Search(ctx context.Context, cred Credential, keyword string, maxResults int) ([]RawPost, error)
	PostReply(ctx context.Context, cred Credential, postID, commentID, text string) (string, error)
}

// Registry maps platform identifiers to adapters. Adding a platform is
// one Register call; the scanner and poster only see the Adapter
// contract.
type Registry struct {
	adapters map[database.Platform]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[database.Platform]Adapter)}
}

// DefaultRegistry returns a registry with all five platform adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(database.PlatformFacebook, NewFacebookAdapter())
	r.Register(database.PlatformInstagram, NewInstagramAdapter())
	r.Register(database.PlatformTwitter, NewTwitterAdapter())
	r.Register(database.PlatformLinkedIn, NewLinkedInAdapter())
	r.Register(database.PlatformWeb, NewWebAdapter())
	return r
}

// Register adds or replaces the adapter for a platform.
func (r *Registry) Register(p database.Platform, a Adapter) {
	r.adapters[p] = a
}

// Lookup returns the adapter for a platform. An unknown platform is a
// configuration error and bubbles up as fatal.
func (r *Registry) Lookup(p database.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return a, nil
}

// Platforms returns the registered platform identifiers.
func (r *Registry) Platforms() []database.Platform {
	var out []database.Platform
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
