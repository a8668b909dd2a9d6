package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/pointme/pointme/libs/db"
	"github.com/pointme/pointme/libs/kafkax"
	otelx "github.com/pointme/pointme/libs/otel"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
	// Retention is how long delivered rows are kept. Zero keeps them forever.
	Retention time.Duration
}

// Publisher relays outbox rows to Kafka, one topic per event type, keyed by
// aggregate id so events of one booking stay ordered.
type Publisher struct {
	pool   *db.Pool
	repo   *Repository
	logger *slog.Logger
	cfg    PublisherConfig
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{pool: pool, repo: repo, logger: logger, cfg: cfg}
}

// Run delivers until ctx is cancelled. Failed batches stay undelivered and
// are retried on the next tick.
func (p *Publisher) Run(ctx context.Context) {
	brokers := kafkax.SplitBrokers(p.cfg.Brokers)
	if len(brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	writer := kafkax.NewWriter(brokers)
	defer writer.Close()

	poll := time.NewTicker(p.cfg.PollEvery)
	defer poll.Stop()
	var prune <-chan time.Time
	if p.cfg.Retention > 0 {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		prune = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.deliver(ctx, writer)
		case <-prune:
			n, err := p.repo.Prune(ctx, time.Now().Add(-p.cfg.Retention))
			if err != nil {
				p.logger.Warn("outbox prune failed", "err", err)
			} else if n > 0 {
				p.logger.Info("outbox pruned", "deleted", n)
			}
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, writer MessageWriter) {
	ids, err := p.publishBatch(ctx, writer)
	if err == nil {
		if len(ids) > 0 {
			p.logger.Debug("outbox batch published", "count", len(ids))
		}
		return
	}
	p.logger.Error("outbox publish failed", "err", err, "count", len(ids))
	if ferr := p.repo.RecordFailure(ctx, ids, err); ferr != nil {
		p.logger.Warn("outbox failure bookkeeping failed", "err", ferr)
	}
}

// publishBatch returns the ids it tried to deliver, also on failure.
func (p *Publisher) publishBatch(ctx context.Context, writer MessageWriter) ([]int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.Claim(ctx, tx, p.cfg.BatchSize)
	if err != nil || len(records) == 0 {
		return nil, err
	}

	ids := make([]int64, len(records))
	msgs := make([]kafka.Message, len(records))
	for i, r := range records {
		ids[i] = r.ID
		msgs[i] = ToMessage(ctx, r)
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return ids, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return ids, err
	}
	return ids, tx.Commit(ctx)
}

// ToMessage restores the trace context captured at insert time and
// attaches event metadata headers.
func ToMessage(ctx context.Context, r Record) kafka.Message {
	traced := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}
	return kafka.Message{
		Topic:   r.EventType,
		Key:     []byte(r.AggregateID),
		Value:   r.Payload,
		Headers: kafkax.InjectTraceHeaders(traced, kafkax.MetaHeaders(meta)),
	}
}
