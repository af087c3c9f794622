package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qgold/goldrates/internal/derive"
	"github.com/qgold/goldrates/internal/parse"
	"github.com/qgold/goldrates/internal/sources"
)

// ErrStructureChanged marks a fetch that mechanically succeeded but yielded
// no gram prices, meaning the page markup no longer matches our selectors.
var ErrStructureChanged = errors.New("could not parse prices: page structure may have changed")

// PageFetcher retrieves the raw text of a target page.
type PageFetcher interface {
	Fetch(ctx context.Context, target string) (string, error)
}

// Sink receives derived prices after a successful fetch. Persistence is
// best-effort; the engine logs and discards its errors.
type Sink interface {
	SaveGramPrices(ctx context.Context, slug string, prices []derive.GramPrice) error
}

// SourceState is the per-source runtime state. Metrics are sticky: a failed
// refresh keeps the last good value visible (stale-while-revalidate).
type SourceState struct {
	Metrics     derive.GoldMetrics `json:"metrics"`
	IsLoading   bool               `json:"is_loading"`
	Err         string             `json:"error,omitempty"`
	LastUpdated time.Time          `json:"last_updated"`
}

type Config struct {
	// BatchSize sources are fetched concurrently per group in FetchMany.
	BatchSize int
	// BatchDelay is the pause between groups, throttling proxy load.
	BatchDelay time.Duration
	// PersistSlug is the single source whose prices are written to the sink.
	PersistSlug string
}

const (
	defaultBatchSize  = 3
	defaultBatchDelay = 500 * time.Millisecond
	persistTimeout    = 10 * time.Second
)

// Engine runs fetch -> parse -> derive per source and owns all per-source
// state. Parser and derivation are pure, so the state map is the only shared
// structure; it is patched per key under one mutex so two sources settling
// at the same instant never clobber each other.
type Engine struct {
	fetcher PageFetcher
	sink    Sink
	cfg     Config

	mu     sync.Mutex
	states map[string]SourceState

	initialLoading atomic.Bool
}

func New(fetcher PageFetcher, sink Sink, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	if cfg.PersistSlug == "" {
		cfg.PersistSlug = sources.DefaultSlug
	}
	return &Engine{
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		states:  map[string]SourceState{},
	}
}

// State returns a copy of one source's state. The zero state is returned for
// slugs never fetched.
func (e *Engine) State(slug string) (SourceState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[slug]
	return st, ok
}

// Snapshot copies the whole state map.
func (e *Engine) Snapshot() map[string]SourceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]SourceState, len(e.states))
	for k, v := range e.states {
		out[k] = v
	}
	return out
}

// InitialLoading reports whether a FetchMany sweep is still in flight.
func (e *Engine) InitialLoading() bool {
	return e.initialLoading.Load()
}

// patch applies a read-modify-write to one key, creating the entry on first
// reference. Independent keys never interfere.
func (e *Engine) patch(slug string, fn func(*SourceState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.states[slug]
	fn(&st)
	e.states[slug] = st
}

// FetchOne runs the full pipeline for a single source: Loading -> Success or
// Error, with prior metrics retained on failure. Manual refreshes call this
// directly, bypassing any batch context.
func (e *Engine) FetchOne(ctx context.Context, slug string) error {
	src, ok := sources.BySlug(slug)
	if !ok {
		return fmt.Errorf("unknown source %q", slug)
	}

	e.patch(slug, func(st *SourceState) {
		st.IsLoading = true
	})

	body, err := e.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		e.fail(slug, err)
		return err
	}

	fields, changes := parse.Markup(body)
	metrics := derive.Metrics(fields, changes, src.KeyPrefix)
	if len(metrics.GramPrices) == 0 {
		e.fail(slug, ErrStructureChanged)
		return ErrStructureChanged
	}

	now := time.Now()
	e.patch(slug, func(st *SourceState) {
		st.IsLoading = false
		st.Err = ""
		st.Metrics = metrics
		st.LastUpdated = now
	})
	log.Debug().Str("source", slug).Int("gram_prices", len(metrics.GramPrices)).Msg("source refreshed")

	if e.sink != nil && slug == e.cfg.PersistSlug {
		// Fire-and-forget: user-facing latency stays bounded by
		// fetch+parse+derive, and a store outage never surfaces as an error.
		go e.persist(slug, metrics.GramPrices)
	}
	return nil
}

func (e *Engine) fail(slug string, err error) {
	e.patch(slug, func(st *SourceState) {
		st.IsLoading = false
		st.Err = err.Error()
	})
	log.Warn().Str("source", slug).Err(err).Msg("source refresh failed")
}

func (e *Engine) persist(slug string, prices []derive.GramPrice) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.sink.SaveGramPrices(ctx, slug, prices); err != nil {
		log.Error().Str("source", slug).Err(err).Msg("persist gram prices failed")
	}
}

// FetchMany refreshes the given sources in fixed-size groups. Members of a
// group run concurrently; a pause separates groups (but does not follow the
// last one). One member's failure never aborts its siblings, and the
// initial-loading flag clears only after the final group settles.
func (e *Engine) FetchMany(ctx context.Context, slugs []string) {
	e.initialLoading.Store(true)
	defer e.initialLoading.Store(false)

	for start := 0; start < len(slugs); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(slugs) {
			end = len(slugs)
		}

		var wg sync.WaitGroup
		for _, slug := range slugs[start:end] {
			wg.Add(1)
			go func(slug string) {
				defer wg.Done()
				_ = e.FetchOne(ctx, slug)
			}(slug)
		}
		wg.Wait()

		if end < len(slugs) {
			select {
			case <-time.After(e.cfg.BatchDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}
