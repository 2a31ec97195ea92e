package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestResolver_StaleBatchDiscardedEntirely(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	searcher := SearcherFunc(func(ctx context.Context, name string) (*Product, error) {
		if strings.HasPrefix(name, "slow") {
			<-release
		}
		return &Product{ID: name, Name: name}, nil
	})
	resolver := NewResolver(searcher)

	var mu sync.Mutex
	var applied [][]Product
	apply := func(products []Product) {
		mu.Lock()
		applied = append(applied, products)
		mu.Unlock()
	}

	first := resolver.Issue()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resolver.Resolve(context.Background(), first, []Candidate{{Name: "slow-drill"}}, apply)
	}()

	// A second batch issued while the first is still in flight supersedes it.
	second := resolver.Issue()
	resolver.Resolve(context.Background(), second, []Candidate{{Name: "saw"}}, apply)

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(applied) != 1 {
		t.Fatalf("applied %d batches, want 1 (stale batch must be discarded)", len(applied))
	}
	if len(applied[0]) != 1 || applied[0][0].ID != "saw" {
		t.Fatalf("applied=%+v, want the newer batch only", applied[0])
	}
}

func TestResolver_DedupFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	searcher := SearcherFunc(func(ctx context.Context, name string) (*Product, error) {
		// Both candidate names resolve to the same product identity; the
		// lookup echoes the queried name so order is observable.
		return &Product{ID: "p1", Name: name}, nil
	})
	resolver := NewResolver(searcher)

	var got []Product
	batch := resolver.Issue()
	resolver.Resolve(context.Background(), batch, []Candidate{
		{ID: "p1", Name: "cordless drill"},
		{ID: "p1", Name: "drill"},
	}, func(products []Product) { got = products })

	if len(got) != 1 {
		t.Fatalf("merged %d products, want 1", len(got))
	}
	if got[0].Name != "cordless drill" {
		t.Fatalf("kept %q, want first occurrence", got[0].Name)
	}
}

func TestResolver_LookupFailureSkipsCandidateOnly(t *testing.T) {
	t.Parallel()

	searcher := SearcherFunc(func(ctx context.Context, name string) (*Product, error) {
		if name == "broken" {
			return nil, errors.New("search backend unavailable")
		}
		return &Product{ID: name, Name: name}, nil
	})
	resolver := NewResolver(searcher)

	var got []Product
	batch := resolver.Issue()
	resolver.Resolve(context.Background(), batch, []Candidate{
		{Name: "hammer"},
		{Name: "broken"},
		{Name: "wrench"},
	}, func(products []Product) { got = products })

	if len(got) != 2 {
		t.Fatalf("merged %d products, want 2", len(got))
	}
	if got[0].ID != "hammer" || got[1].ID != "wrench" {
		t.Fatalf("merged=%+v, want candidate order preserved", got)
	}
}

func TestResolver_NoMatchCandidatesDropped(t *testing.T) {
	t.Parallel()

	searcher := SearcherFunc(func(ctx context.Context, name string) (*Product, error) {
		return nil, nil // no match
	})
	resolver := NewResolver(searcher)

	called := false
	batch := resolver.Issue()
	resolver.Resolve(context.Background(), batch, []Candidate{{Name: "unobtainium"}}, func(products []Product) {
		called = true
		if len(products) != 0 {
			t.Fatalf("merged=%+v, want empty", products)
		}
	})
	if !called {
		t.Fatalf("apply not called for current batch")
	}
}

func TestResolver_EmptyBatchIsNoOp(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(SearcherFunc(func(ctx context.Context, name string) (*Product, error) {
		t.Fatalf("searcher must not run for empty batch")
		return nil, nil
	}))
	resolver.Resolve(context.Background(), resolver.Issue(), nil, func([]Product) {
		t.Fatalf("apply must not run for empty batch")
	})
}
