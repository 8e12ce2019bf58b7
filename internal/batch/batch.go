// Package batch runs the entity lister and the reshaper across many sources,
// isolating per-source failures and combining results in file order.
package batch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/jikan/internal/entities"
	"github.com/hyperjump/jikan/internal/metrics"
	"github.com/hyperjump/jikan/internal/models"
	"github.com/hyperjump/jikan/internal/reshape"
)

const defaultConcurrency = 4

// Processor lists and reshapes batches of sources.
type Processor struct {
	reshaper    *reshape.Reshaper
	concurrency int
	logger      *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithConcurrency bounds the number of sources reshaped at once. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewProcessor returns a Processor that reshapes with r.
func NewProcessor(r *reshape.Reshaper, opts ...Option) *Processor {
	if r == nil {
		r = reshape.New()
	}
	p := &Processor{
		reshaper:    r,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// ListResult is the outcome of listing entities over several sources.
type ListResult struct {
	ShortNames []string              `json:"short_names"`
	Failures   []*models.SourceError `json:"failures"`
}

// ListEntities returns the union of short names across sources in source order.
// A source that cannot be read or lacks the identifier column is recorded as a failure.
func (p *Processor) ListEntities(sources []models.Source) *ListResult {
	res := &ListResult{ShortNames: []string{}, Failures: []*models.SourceError{}}
	lists := make([][]string, 0, len(sources))
	for _, src := range sources {
		names, err := p.listSource(src)
		if err != nil {
			p.logger.Warn("source skipped", zap.String("source", src.Name), zap.Error(err))
			metrics.IncSource(metrics.ResultError)
			res.Failures = append(res.Failures, &models.SourceError{Source: src.Name, Err: err})
			continue
		}
		metrics.IncSource(metrics.ResultSuccess)
		lists = append(lists, names)
	}
	if names := entities.Union(lists...); names != nil {
		res.ShortNames = names
	}
	return res
}

func (p *Processor) listSource(src models.Source) ([]string, error) {
	if src.Err != nil {
		return nil, src.Err
	}
	return entities.List(src.Table, p.reshaper.IdentifierHeader())
}

// Result is the outcome of reshaping several sources.
type Result struct {
	Table    *models.Table         `json:"table"`
	Warnings []models.Warning      `json:"warnings"`
	Failures []*models.SourceError `json:"failures"`
}

type sourceResult struct {
	table    *models.Table
	warnings []models.Warning
	err      error
}

// Transform reshapes every source for the selected short names and concatenates the
// results in source order. Sources are processed in parallel; a failing source is
// reported in Result.Failures and does not affect the others. The only error returned
// is the context's.
func (p *Processor) Transform(ctx context.Context, sources []models.Source, selected []string) (*Result, error) {
	start := time.Now()
	results := make([]sourceResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if src.Err != nil {
				results[i] = sourceResult{err: src.Err}
				return nil
			}
			table, warnings, err := p.reshaper.Reshape(src.Table, selected)
			results[i] = sourceResult{table: table, warnings: warnings, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ObserveTransform(metrics.ResultError, time.Since(start))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		metrics.ObserveTransform(metrics.ResultError, time.Since(start))
		return nil, err
	}

	res := &Result{Warnings: []models.Warning{}, Failures: []*models.SourceError{}}
	tables := make([]*models.Table, 0, len(results))
	for i, r := range results {
		name := sources[i].Name
		if r.err != nil {
			p.logger.Warn("source skipped", zap.String("source", name), zap.Error(r.err))
			metrics.IncSource(metrics.ResultError)
			res.Failures = append(res.Failures, &models.SourceError{Source: name, Err: r.err})
			continue
		}
		metrics.IncSource(metrics.ResultSuccess)
		for _, w := range r.warnings {
			p.logger.Warn(w.Message,
				zap.String("kind", string(w.Kind)),
				zap.String("source", w.Source),
				zap.String("short_name", w.ShortName),
			)
			metrics.IncWarning(string(w.Kind))
		}
		res.Warnings = append(res.Warnings, r.warnings...)
		tables = append(tables, r.table)
	}
	res.Table = reshape.Combine(tables...)
	metrics.AddRows(res.Table.Len())
	metrics.ObserveTransform(metrics.ResultSuccess, time.Since(start))

	p.logger.Info("transform complete",
		zap.Int("sources", len(sources)),
		zap.Int("failed", len(res.Failures)),
		zap.Int("rows", res.Table.Len()),
		zap.Int("dates", len(res.Table.Dates)),
		zap.Duration("took", time.Since(start)),
	)
	return res, nil
}
