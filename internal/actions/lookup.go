package actions

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ObjectType is the type of git object a ref points at.
type ObjectType string

const (
	// ObjectCommit marks a branch, a lightweight tag or any direct commit pointer.
	ObjectCommit ObjectType = "commit"
	// ObjectTag marks an annotated tag object that must be dereferenced.
	ObjectTag ObjectType = "tag"
)

// RefObject is the result of a ref lookup.
type RefObject struct {
	Ref  string
	SHA  string
	Type ObjectType
}

// ErrNotFound is returned by a Lookup when the requested ref, tag or commit does not exist.
var ErrNotFound = errors.New("not found")

// RateLimitError is returned by a Lookup when the provider rejected the request
// because the request quota is exhausted.
type RateLimitError struct {
	Detail string    // Provider message text
	Reset  time.Time // When the quota resets
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (resets at %d)", e.Detail, e.Reset.Unix())
}

// TransportError is returned by a Lookup for any failure that is neither
// not-found nor rate-limited. Its text is the underlying error text.
type TransportError struct {
	StatusCode int // HTTP status, zero for network-level failures
	Err        error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Lookup issues the read requests needed to resolve a version specifier.
// refPath is "tags/<name>" or "heads/<name>".
type Lookup interface {
	GetRef(ctx context.Context, owner, repo, refPath string) (*RefObject, error)
	GetTag(ctx context.Context, owner, repo, tagSHA string) (string, error)
	GetCommit(ctx context.Context, owner, repo, shaOrRef string) (string, error)
}
