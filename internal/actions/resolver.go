package actions

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Resolver pins action references to commit hashes.
type Resolver struct {
	lookup    Lookup
	cache     *Cache
	formatter Formatter
	metrics   *Metrics
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache makes the Resolver use a shared cache.
func WithCache(cache *Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithFormatter sets how rate-limit reset times are rendered.
func WithFormatter(f Formatter) Option {
	return func(r *Resolver) {
		r.formatter = f
	}
}

// WithMetrics sets the collectors the Resolver records to.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithLogger sets the Resolver's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver issuing its requests through lookup.
func NewResolver(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Resolve returns the commit hash ref.PinnedVersion points at.
//
// Concurrent calls for the same reference share one lookup chain, and a
// successful result is reused until ClearCache. The chain is not cancelled
// when ctx is; ctx only bounds how long this caller waits for it.
func (r *Resolver) Resolve(ctx context.Context, ref ActionReference) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref.String(), err)
	}

	chainCtx := context.WithoutCancel(ctx)
	handle := r.cache.GetOrCreate(ref.Key(), func() (string, error) {
		return r.resolveChain(chainCtx, ref)
	})

	select {
	case res := <-handle:
		r.metrics.CacheEvents.WithLabelValues(string(res.Event)).Inc()
		if res.Err != nil {
			return "", res.Err
		}
		return res.SHA, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ClearCache evicts every cached resolution.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// CacheStats returns the cache usage statistics.
func (r *Resolver) CacheStats() CacheStats {
	return r.cache.Stats()
}

// resolveChain tries the version as a tag, then as a branch, then as a commit.
func (r *Resolver) resolveChain(ctx context.Context, ref ActionReference) (string, error) {
	log := r.logger.With(zap.String("action", ref.String()))

	sha, err := r.resolveRef(ctx, log, ref, "tags/"+ref.PinnedVersion)
	if errors.Is(err, ErrNotFound) {
		sha, err = r.resolveRef(ctx, log, ref, "heads/"+ref.PinnedVersion)
	}
	if errors.Is(err, ErrNotFound) {
		sha, err = r.lookup.GetCommit(ctx, ref.Owner, ref.Repo, ref.PinnedVersion)
		r.record(log, endpointCommit, ref.PinnedVersion, err)
	}

	r.metrics.Resolutions.WithLabelValues(outcomeOf(err)).Inc()
	if err != nil {
		log.Warn("resolution failed", zap.Error(err))
		return "", r.formatter.Compose(ref, err)
	}

	log.Info("resolved", zap.String("sha", sha))
	return sha, nil
}

// resolveRef looks up a tag or branch ref, dereferencing annotated tags.
func (r *Resolver) resolveRef(ctx context.Context, log *zap.Logger, ref ActionReference, refPath string) (string, error) {
	obj, err := r.lookup.GetRef(ctx, ref.Owner, ref.Repo, refPath)
	r.record(log, endpointRef, refPath, err)
	if err != nil {
		return "", err
	}

	switch obj.Type {
	case ObjectCommit:
		return obj.SHA, nil
	case ObjectTag:
		sha, err := r.lookup.GetTag(ctx, ref.Owner, ref.Repo, obj.SHA)
		r.record(log, endpointTag, obj.SHA, err)
		return sha, err
	default:
		return "", &TransportError{Err: fmt.Errorf("unexpected object type %q for %s", obj.Type, refPath)}
	}
}

func (r *Resolver) record(log *zap.Logger, endpoint, target string, err error) {
	outcome := outcomeOf(err)
	r.metrics.Lookups.WithLabelValues(endpoint, outcome).Inc()
	log.Debug("lookup",
		zap.String("endpoint", endpoint),
		zap.String("target", target),
		zap.String("outcome", outcome))
}
