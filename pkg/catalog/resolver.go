package catalog

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Searcher resolves one candidate product name to a full record. *Client
// satisfies this; tests supply fakes.
type Searcher interface {
	SearchByName(ctx context.Context, name string) (*Product, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, name string) (*Product, error)

// SearchByName implements Searcher.
func (f SearcherFunc) SearchByName(ctx context.Context, name string) (*Product, error) {
	return f(ctx, name)
}

// Candidate is a partial product reference from a voice tool result.
type Candidate struct {
	ID   string
	Name string
}

// Resolver turns candidate batches into full product lists with stale-result
// suppression.
//
// Every batch is tagged with a strictly increasing sequence number at issue
// time. A user can trigger a new search before a previous one resolves, so
// when a batch finishes it is applied only if its sequence number still
// equals the most recently issued one; superseded batches are discarded
// silently, never partially applied.
type Resolver struct {
	searcher    Searcher
	logger      *zap.Logger
	concurrency int

	mu  sync.Mutex
	seq uint64 // most recently issued batch
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConcurrency bounds the number of in-flight lookups per batch.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewResolver creates a resolver over the given searcher.
func NewResolver(searcher Searcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		searcher:    searcher,
		logger:      zap.NewNop(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue tags a new batch and returns its sequence number. Any batch issued
// earlier becomes stale immediately.
func (r *Resolver) Issue() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

// Resolve looks up every candidate concurrently, deduplicates by identity
// (first occurrence wins), and calls apply with the merged batch, unless the
// batch was superseded while in flight, in which case the whole batch is
// dropped and apply is never called. Individual lookup failures are logged
// and skipped; they do not fail the batch.
func (r *Resolver) Resolve(ctx context.Context, batch uint64, candidates []Candidate, apply func([]Product)) {
	if len(candidates) == 0 {
		return
	}

	results := make([]*Product, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for i, candidate := range candidates {
		name := strings.TrimSpace(candidate.Name)
		if name == "" {
			name = strings.TrimSpace(candidate.ID)
		}
		if name == "" {
			continue
		}
		group.Go(func() error {
			product, err := r.searcher.SearchByName(groupCtx, name)
			if err != nil {
				r.logger.Warn("product lookup failed",
					zap.String("candidate", name),
					zap.Uint64("batch", batch),
					zap.Error(err))
				return nil
			}
			results[i] = product
			return nil
		})
	}
	_ = group.Wait()

	merged := dedupeByID(results, candidates)

	r.mu.Lock()
	defer r.mu.Unlock()
	if batch != r.seq {
		r.logger.Debug("discarding stale product batch",
			zap.Uint64("batch", batch),
			zap.Uint64("latest", r.seq))
		return
	}
	if apply != nil {
		apply(merged)
	}
}

// dedupeByID merges lookup results in candidate order, keeping the first
// occurrence of each product identity.
func dedupeByID(results []*Product, candidates []Candidate) []Product {
	merged := make([]Product, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for i, product := range results {
		if product == nil {
			continue
		}
		id := strings.TrimSpace(product.ID)
		if id == "" {
			id = strings.TrimSpace(candidates[i].ID)
		}
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		merged = append(merged, *product)
	}
	return merged
}
