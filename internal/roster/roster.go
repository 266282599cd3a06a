// Package roster fetches hires from the roster source and resolves the location
// labels used for grouping and ride rule matching.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"onboard/internal/roster/models"
)

// Source returns every roster record of a category, pending or not.
type Source interface {
	FetchRoster(ctx context.Context, category models.Category) ([]models.Record, error)
}

// LocationResolver maps one page of records to their location labels, keyed by
// record id. Records missing from the result keep their raw location.
type LocationResolver interface {
	ResolveLocations(ctx context.Context, page []models.Record) (map[string]string, error)
}

const (
	DefaultPageSize  = 50
	DefaultWaveWidth = 4
)

// Enricher resolves labels in fixed-size pages, issuing a bounded number of
// pages concurrently per wave.
type Enricher struct {
	resolver  LocationResolver
	pageSize  int
	waveWidth int
	logger    *slog.Logger
}

type Option func(*Enricher)

func WithPageSize(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func WithWaveWidth(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.waveWidth = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		e.logger = logger
	}
}

func NewEnricher(resolver LocationResolver, opts ...Option) *Enricher {
	e := &Enricher{
		resolver:  resolver,
		pageSize:  DefaultPageSize,
		waveWidth: DefaultWaveWidth,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Labels resolves the label of every record. A failing page aborts its wave and
// the error is returned with whatever earlier waves resolved.
func (e *Enricher) Labels(ctx context.Context, records []models.Record) (map[string]string, error) {
	labels := make(map[string]string, len(records))
	pages := paginate(records, e.pageSize)

	for start := 0; start < len(pages); start += e.waveWidth {
		wave := pages[start:min(start+e.waveWidth, len(pages))]
		resolvedWave := make(map[string]string)
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for i, page := range wave {
			g.Go(func() error {
				resolved, err := e.resolver.ResolveLocations(gctx, page)
				if err != nil {
					return fmt.Errorf("resolve page %d: %w", start+i, err)
				}
				mu.Lock()
				for id, label := range resolved {
					resolvedWave[id] = label
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return labels, err
		}
		for id, label := range resolvedWave {
			labels[id] = label
		}
		e.logger.DebugContext(ctx, "location wave resolved", "pages", len(wave), "resolved", len(labels))
	}
	return labels, nil
}

func paginate(records []models.Record, size int) [][]models.Record {
	var pages [][]models.Record
	for start := 0; start < len(records); start += size {
		pages = append(pages, records[start:min(start+size, len(records))])
	}
	return pages
}

// Pending filters records down to hires still awaiting onboarding.
func Pending(records []models.Record) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if r.IsPending() {
			out = append(out, r)
		}
	}
	return out
}

// StaticResolver labels records from a fixed location-code table.
type StaticResolver map[string]string

func (s StaticResolver) ResolveLocations(_ context.Context, page []models.Record) (map[string]string, error) {
	out := make(map[string]string, len(page))
	for _, r := range page {
		if label, ok := s[r.Location]; ok {
			out[r.ID] = label
		}
	}
	return out, nil
}
