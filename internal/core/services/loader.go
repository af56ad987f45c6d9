package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/domain"
	"github.com/melih/lighthouse-console/internal/core/ports"
)

// collections is one consistent read of both board collections.
type collections struct {
	categories []domain.Category
	containers []domain.Container
	// observedAt is the oldest fetch time of the two, used to order the
	// statuses they carry against push and poll facts.
	observedAt time.Time
}

// loader reads collections through the cache. Concurrent misses for the
// same key share one backend call. It is safe for concurrent use.
type loader struct {
	backend ports.BackendService
	cache   *cache.Cache
	clock   clockwork.Clock
	flight  singleflight.Group
}

func newLoader(backend ports.BackendService, c *cache.Cache, clock clockwork.Clock) *loader {
	return &loader{backend: backend, cache: c, clock: clock}
}

func (l *loader) load(ctx context.Context, force bool) (collections, error) {
	var out collections
	var catsAt, contsAt time.Time

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, at, err := fetch(gctx, l, cache.KeyCategories, force, l.backend.ListCategories)
		out.categories, catsAt = v, at
		return err
	})
	g.Go(func() error {
		v, at, err := fetch(gctx, l, cache.KeyContainers, force, l.backend.ListContainers)
		out.containers, contsAt = v, at
		return err
	})
	if err := g.Wait(); err != nil {
		return collections{}, err
	}

	out.observedAt = catsAt
	if contsAt.Before(out.observedAt) {
		out.observedAt = contsAt
	}
	return out, nil
}

type flightResult[T any] struct {
	value T
	at    time.Time
}

func fetch[T any](ctx context.Context, l *loader, key string, force bool,
	get func(context.Context) (T, error)) (T, time.Time, error) {
	if v, at, ok := cache.Lookup[T](l.cache, key, force); ok {
		return v, at, nil
	}

	res, err, _ := l.flight.Do(key, func() (any, error) {
		epoch := l.cache.Epoch(key)
		issued := l.clock.Now()
		v, err := get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		l.cache.SetIfCurrent(key, epoch, v, issued)
		return flightResult[T]{value: v, at: issued}, nil
	})
	if err != nil {
		var zero T
		return zero, time.Time{}, err
	}
	r := res.(flightResult[T])
	return r.value, r.at, nil
}

// invalidate drops keys from the cache and detaches in-flight fetches for
// them so the next load starts a fresh call.
func (l *loader) invalidate(keys ...string) {
	l.cache.Invalidate(keys...)
	for _, k := range keys {
		l.flight.Forget(k)
	}
}
