package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"juiceWatch/internal/metrics"
	"juiceWatch/internal/model"
	"juiceWatch/internal/storage"
)

// ProcessorConfig tunes event fan-out.
type ProcessorConfig struct {
	// MaxConcurrency caps in-flight events per stream. Zero means unbounded.
	MaxConcurrency int
}

// Processor runs one stream: fetch, then enrich and deliver every event
// concurrently, then advance the watermark.
type Processor struct {
	cfg       ProcessorConfig
	metadata  MetadataResolver
	identity  IdentityResolver
	formatter Formatter
	sink      Sink
	failures  storage.FailureLog
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewProcessor(
	cfg ProcessorConfig,
	metadata MetadataResolver,
	identity IdentityResolver,
	formatter Formatter,
	sink Sink,
	failures storage.FailureLog,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:       cfg,
		metadata:  metadata,
		identity:  identity,
		formatter: formatter,
		sink:      sink,
		failures:  failures,
		metrics:   m,
		logger:    logger,
	}
}

// Process never returns an error: a fetch failure is reported in the result
// and leaves the watermark at prior, and per-event failures are outcomes.
func (p *Processor) Process(ctx context.Context, runID string, src Source, prior int64) StreamResult {
	stream := src.Name()
	log := p.logger.With(zap.String("run_id", runID), zap.String("stream", stream))
	result := StreamResult{Stream: stream, Prior: prior, Watermark: prior}

	log.Info("fetch events", zap.Int64("watermark", prior))
	events, err := src.FetchSince(ctx, prior)
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		p.metrics.FetchFailed(stream)
		p.recordFailure(ctx, log, model.FailureRecord{RunID: runID, Stream: stream, Stage: model.StageFetch, Error: err.Error()})
		result.Err = fmt.Errorf("fetch %s: %w", stream, err)
		return result
	}
	p.metrics.EventsFetched(stream, len(events))

	outcomes := make([]Outcome, len(events))
	var g errgroup.Group
	if p.cfg.MaxConcurrency > 0 {
		g.SetLimit(p.cfg.MaxConcurrency)
	}
	for i, ev := range events {
		g.Go(func() error {
			outcomes[i] = p.handle(ctx, log, runID, stream, ev)
			return nil
		})
	}
	_ = g.Wait()

	result.Outcomes = outcomes
	result.Watermark = Advance(prior, outcomes)

	log.Info("stream complete",
		zap.Int("events", len(events)),
		zap.Int("delivered", result.Count(StatusDelivered)),
		zap.Int("enrich_failed", result.Count(StatusEnrichFailed)),
		zap.Int("deliver_failed", result.Count(StatusDeliverFailed)),
		zap.Int64("watermark", result.Watermark),
	)
	return result
}

// Advance returns the larger of prior and the newest delivered timestamp.
// Upstream order is not assumed.
func Advance(prior int64, outcomes []Outcome) int64 {
	next := prior
	for _, o := range outcomes {
		if o.Status != StatusDelivered {
			continue
		}
		if ts := int64(o.Event.Header().Timestamp); ts > next {
			next = ts
		}
	}
	return next
}

func (p *Processor) handle(ctx context.Context, log *zap.Logger, runID, stream string, ev model.Event) (out Outcome) {
	h := ev.Header()
	log = log.With(zap.String("event", model.EventKey(ev)), zap.Stringer("project_id", h.ProjectID))
	out = Outcome{Event: ev}

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusEnrichFailed
			out.Err = fmt.Errorf("panic: %v", r)
			log.Error("event handler panicked", zap.Any("panic", r))
			p.fail(ctx, log, runID, stream, model.StageEnrich, ev, out.Err)
		}
	}()

	enriched, err := p.enrich(ctx, ev)
	if err == nil {
		var n model.Notification
		n, err = p.formatter.Build(enriched)
		if err == nil {
			if err := p.sink.Deliver(ctx, n); err != nil {
				out.Status = StatusDeliverFailed
				out.Err = err
				log.Warn("delivery failed", zap.Error(err))
				p.fail(ctx, log, runID, stream, model.StageDeliver, ev, err)
				return out
			}
			out.Status = StatusDelivered
			p.metrics.Notification(stream, metrics.StatusDelivered)
			log.Info("notification delivered", zap.String("title", n.Title))
			return out
		}
	}

	out.Status = StatusEnrichFailed
	out.Err = err
	log.Warn("enrichment failed", zap.Error(err))
	p.fail(ctx, log, runID, stream, model.StageEnrich, ev, err)
	return out
}

// enrich resolves metadata and identity concurrently. Only metadata can fail.
func (p *Processor) enrich(ctx context.Context, ev model.Event) (model.EnrichedEvent, error) {
	out := model.EnrichedEvent{Event: ev}
	h := ev.Header()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		meta, err := p.metadata.Resolve(gctx, h.Project.MetadataURI)
		if err != nil {
			return fmt.Errorf("resolve metadata %q: %w", h.Project.MetadataURI, err)
		}
		out.Metadata = meta
		return nil
	})
	g.Go(func() error {
		out.Identity = p.identity.Resolve(gctx, ev.Subject())
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.EnrichedEvent{}, err
	}
	return out, nil
}

func (p *Processor) fail(ctx context.Context, log *zap.Logger, runID, stream, stage string, ev model.Event, err error) {
	status := metrics.StatusEnrichFailed
	if stage == model.StageDeliver {
		status = metrics.StatusDeliverFailed
	}
	p.metrics.Notification(stream, status)

	h := ev.Header()
	p.recordFailure(ctx, log, model.FailureRecord{
		RunID:     runID,
		Stream:    stream,
		Stage:     stage,
		TxHash:    h.TxHash,
		Timestamp: int64(h.Timestamp),
		Error:     err.Error(),
	})
}

func (p *Processor) recordFailure(ctx context.Context, log *zap.Logger, rec model.FailureRecord) {
	if p.failures == nil {
		return
	}
	rec.At = time.Now().UTC().Format(time.RFC3339Nano)
	if err := p.failures.AppendFailures(context.WithoutCancel(ctx), []model.FailureRecord{rec}); err != nil {
		log.Error("write error log", zap.Error(err))
	}
}
