package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/jikan/internal/batch"
	"github.com/hyperjump/jikan/internal/export"
	"github.com/hyperjump/jikan/internal/extract"
)

// Pipeline transforms files dropped into the inbox and writes the results to an outbox.
type Pipeline struct {
	extractor *extract.Extractor
	processor *batch.Processor
	outbox    string
	selected  []string
	logger    *zap.Logger
}

// NewPipeline returns a Pipeline writing to outbox for the selected short names.
// An empty selection transforms every short name found in each file.
func NewPipeline(ext *extract.Extractor, proc *batch.Processor, outbox string, selected []string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: ext,
		processor: proc,
		outbox:    outbox,
		selected:  selected,
		logger:    logger,
	}
}

// OutputPath returns where the result for the input file at path is written.
func (p *Pipeline) OutputPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(p.outbox, base+"_transformed.xlsx")
}

// Process transforms the file at path and writes the workbook to the outbox.
// It returns the output path.
func (p *Pipeline) Process(ctx context.Context, path string) (string, error) {
	sources := p.extractor.Load(path)

	selected := p.selected
	if len(selected) == 0 {
		listed := p.processor.ListEntities(sources)
		selected = listed.ShortNames
	}
	if len(selected) == 0 {
		return "", fmt.Errorf("%s: no short names to transform", filepath.Base(path))
	}

	res, err := p.processor.Transform(ctx, sources, selected)
	if err != nil {
		return "", err
	}
	if len(res.Failures) == len(sources) {
		return "", res.Failures[0]
	}

	content, err := export.Bytes(res.Table, export.FormatXLSX)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := os.MkdirAll(p.outbox, 0755); err != nil {
		return "", fmt.Errorf("create outbox: %w", err)
	}
	out := p.OutputPath(path)
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write result: %w", err)
	}
	return out, nil
}

// Handler adapts Process to a watcher callback that logs the outcome.
func (p *Pipeline) Handler(ctx context.Context) func(path string) {
	return func(path string) {
		out, err := p.Process(ctx, path)
		if err != nil {
			p.logger.Error("inbox file failed", zap.String("path", path), zap.Error(err))
			return
		}
		p.logger.Info("inbox file transformed", zap.String("path", path), zap.String("output", out))
	}
}
