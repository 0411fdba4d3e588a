package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-negotiation-backend/internal/domain"
	"github.com/tbourn/go-negotiation-backend/internal/observability"
)

// bucketWidth is the cache horizon: entries are keyed by a 30-day bucket so
// a key rolls over to fresh data at least once a month.
const bucketWidth = 30 * 24 * time.Hour

// Provider resolves benchmark entries through its sources and cache.
type Provider struct {
	Sources     []Source
	Cache       Cache
	Multipliers Multipliers
	Timeout     time.Duration
	TTL         time.Duration

	now    func() time.Time
	group  singleflight.Group
	mu     sync.Mutex
	served map[domain.BenchmarkKey]time.Time
}

// NewProvider wires a provider. A nil cache falls back to MemoryCache.
func NewProvider(cache Cache, mult Multipliers, timeout, ttl time.Duration, sources ...Source) *Provider {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Provider{
		Sources:     sources,
		Cache:       cache,
		Multipliers: mult,
		Timeout:     timeout,
		TTL:         ttl,
		now:         time.Now,
		served:      make(map[domain.BenchmarkKey]time.Time),
	}
}

func cacheKey(k domain.BenchmarkKey, at time.Time) string {
	return fmt.Sprintf("benchmark:%s|%s|%s|%s|%d",
		k.Industry, k.ExperienceLevel, k.Location, k.CompanySize, at.Unix()/int64(bucketWidth/time.Second))
}

// Lookup returns the entry for key. ErrNotFound and ErrUnavailable both mean
// the caller should proceed without benchmark data.
func (p *Provider) Lookup(ctx context.Context, key domain.BenchmarkKey) (domain.BenchmarkEntry, error) {
	tr := otel.Tracer("benchmark/Provider")
	ctx, span := tr.Start(ctx, "Lookup")
	defer span.End()

	k := key.Normalized()
	span.SetAttributes(
		attribute.String("benchmark.industry", k.Industry),
		attribute.String("benchmark.level", k.ExperienceLevel),
	)
	if k.Industry == "" || k.ExperienceLevel == "" {
		observability.BenchmarkLookups.WithLabelValues("not_found").Inc()
		return domain.BenchmarkEntry{}, ErrNotFound
	}

	now := p.now()
	ck := cacheKey(k, now)
	if e, ok, err := p.Cache.Get(ctx, ck); err != nil {
		log.Warn().Err(err).Str("key", ck).Msg("benchmark cache read failed")
	} else if ok {
		observability.BenchmarkLookups.WithLabelValues("hit").Inc()
		p.remember(k, now)
		return withAge(e, now), nil
	}

	ch := p.group.DoChan(ck, func() (any, error) {
		return p.fetchAndStore(context.WithoutCancel(ctx), k, ck)
	})
	select {
	case <-ctx.Done():
		observability.BenchmarkLookups.WithLabelValues("unavailable").Inc()
		return domain.BenchmarkEntry{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			outcome := "unavailable"
			if errors.Is(res.Err, ErrNotFound) {
				outcome = "not_found"
			}
			observability.BenchmarkLookups.WithLabelValues(outcome).Inc()
			return domain.BenchmarkEntry{}, res.Err
		}
		observability.BenchmarkLookups.WithLabelValues("miss").Inc()
		p.remember(k, now)
		return withAge(res.Val.(domain.BenchmarkEntry), now), nil
	}
}

// Refresh re-fetches every key served within the cache TTL and replaces the
// cached values. Keys that have gone stale are forgotten. It returns the
// number of keys refreshed.
func (p *Provider) Refresh(ctx context.Context) (int, error) {
	now := p.now()
	var keys []domain.BenchmarkKey
	p.mu.Lock()
	for k, at := range p.served {
		if now.Sub(at) > p.TTL {
			delete(p.served, k)
			continue
		}
		keys = append(keys, k)
	}
	p.mu.Unlock()

	var errs []error
	refreshed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ck := cacheKey(k, now)
		_, err, _ := p.group.Do(ck, func() (any, error) {
			return p.fetchAndStore(ctx, k, ck)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ck, err))
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}

// fetchAndStore resolves k from the sources and writes it to the cache.
func (p *Provider) fetchAndStore(ctx context.Context, k domain.BenchmarkKey, ck string) (domain.BenchmarkEntry, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	e, err := p.resolve(ctx, k)
	if err != nil {
		return domain.BenchmarkEntry{}, err
	}
	if err := p.Cache.Set(ctx, ck, e, p.TTL); err != nil {
		log.Warn().Err(err).Str("key", ck).Msg("benchmark cache write failed")
	}
	return e, nil
}

// resolve asks each source in order; the first hit with a usable percentile
// table wins.
func (p *Provider) resolve(ctx context.Context, k domain.BenchmarkKey) (domain.BenchmarkEntry, error) {
	unavailable := false
	for _, src := range p.Sources {
		base, err := src.Base(ctx, k.Industry, k.ExperienceLevel)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			unavailable = true
			log.Warn().Err(err).Str("source", src.Name()).Msg("benchmark source failed")
			continue
		}
		if base.Percentiles == nil || !base.Percentiles.Monotonic() {
			log.Debug().Str("source", src.Name()).Msg("benchmark source has no usable percentiles")
			continue
		}
		f := p.Multipliers.Factor(k)
		return domain.BenchmarkEntry{
			Key:         k,
			Min:         domain.RoundCents(base.Min * f),
			Median:      domain.RoundCents(base.Median * f),
			Max:         domain.RoundCents(base.Max * f),
			Benefits:    base.Benefits,
			Percentiles: base.Percentiles.Scale(f),
			SourceYear:  base.SourceYear,
			Source:      src.Name(),
			FetchedAt:   p.now().UTC(),
		}, nil
	}
	if unavailable {
		return domain.BenchmarkEntry{}, ErrUnavailable
	}
	return domain.BenchmarkEntry{}, ErrNotFound
}

func (p *Provider) remember(k domain.BenchmarkKey, at time.Time) {
	p.mu.Lock()
	p.served[k] = at
	p.mu.Unlock()
}

func withAge(e domain.BenchmarkEntry, now time.Time) domain.BenchmarkEntry {
	if d := now.Sub(e.FetchedAt); d > 0 {
		e.CacheAgeDays = int(d / (24 * time.Hour))
	}
	return e
}
