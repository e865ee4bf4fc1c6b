package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"juiceWatch/internal/ids"
	"juiceWatch/internal/metrics"
	"juiceWatch/internal/watermark"
)

const saveTimeout = 30 * time.Second

// Report summarizes one invocation.
type Report struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Streams    []StreamResult
	Watermarks map[string]int64
}

// Orchestrator runs every configured stream once and persists the merged
// watermarks with a single save.
type Orchestrator struct {
	store     watermark.Store
	sources   []Source
	processor *Processor
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrchestrator(store watermark.Store, sources []Source, processor *Processor, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:     store,
		sources:   sources,
		processor: processor,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Run returns an error only when the watermarks cannot be loaded or saved.
// Stream and event failures are reported in the Report.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: ids.NewRunID(), StartedAt: o.now()}
	log := o.logger.With(zap.String("run_id", report.RunID))

	prior, err := o.store.Load(ctx)
	if err != nil {
		o.metrics.RunFinished(o.now().Sub(report.StartedAt), false)
		return report, fmt.Errorf("load watermarks: %w", err)
	}
	log.Info("run started", zap.Int("streams", len(o.sources)), zap.Any("watermarks", prior))

	results := make([]StreamResult, len(o.sources))
	var g errgroup.Group
	for i, src := range o.sources {
		g.Go(func() error {
			results[i] = o.processor.Process(ctx, report.RunID, src, prior[src.Name()])
			return nil
		})
	}
	_ = g.Wait()

	next := Merge(prior, results)
	report.Streams = results
	report.Watermarks = next

	// Progress made before a shutdown signal is still persisted.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	err = o.store.Save(saveCtx, next)
	report.Duration = o.now().Sub(report.StartedAt)
	o.metrics.RunFinished(report.Duration, err == nil)
	if err != nil {
		return report, fmt.Errorf("save watermarks: %w", err)
	}

	for stream, ts := range next {
		o.metrics.Watermark(stream, ts)
	}
	log.Info("run complete", zap.Duration("duration", report.Duration), zap.Any("watermarks", next))
	return report, nil
}

// Merge overlays stream results on the prior watermarks. Streams without a
// result keep their prior value and no watermark ever moves backwards.
func Merge(prior map[string]int64, results []StreamResult) map[string]int64 {
	next := make(map[string]int64, len(prior)+len(results))
	for stream, ts := range prior {
		next[stream] = ts
	}
	for _, r := range results {
		if cur, ok := next[r.Stream]; !ok || r.Watermark > cur {
			next[r.Stream] = r.Watermark
		}
	}
	return next
}
