package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/pointme/pointme/libs/kafkax"
	otelx "github.com/pointme/pointme/libs/otel"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Reader is the part of *kafka.Reader the consumer drives. Offsets are
// committed only after a message has been handled or given up on.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
	// MaxAttempts per message before it is skipped. Defaults to 5.
	MaxAttempts int
}

type Consumer struct {
	reader      Reader
	logger      *slog.Logger
	inbox       Inbox
	handler     Handler
	maxAttempts int
	backoff     time.Duration
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Consumer{
		reader:      kafkax.NewReader(kafkax.SplitBrokers(cfg.Brokers), cfg.GroupID, cfg.Topic),
		logger:      logger.With("topic", cfg.Topic, "group", cfg.GroupID),
		inbox:       inbox,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoff:     250 * time.Millisecond,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch failed", "err", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		if !c.handle(ctx, msg) {
			return
		}
	}
}

// handle retries a failing message with doubling backoff, then commits its
// offset either way. It returns false when ctx ended first.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.process(ctx, msg)
		if err == nil {
			break
		}
		if attempt >= c.maxAttempts {
			c.logger.Error("event skipped after retries", "err", err, "attempts", attempt,
				"partition", msg.Partition, "offset", msg.Offset)
			break
		}
		if !sleep(ctx, wait) {
			return false
		}
		wait *= 2
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Warn("kafka commit failed", "err", err, "offset", msg.Offset)
	}
	return true
}

// process runs the handler once under a consumer span. Duplicates are
// dropped through the inbox; a failed handler un-records the event so the
// retry is not mistaken for a duplicate.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	ctx, span := otelx.Tracer("consumer").Start(kafkax.ExtractTraceContext(ctx, msg), "consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
		),
	)
	defer span.End()
	logger := c.logger.With("event_id", meta.EventID, "event_type", meta.EventType)

	fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inbox")
		logger.Error("inbox record failed", "err", err)
		return err
	}
	if !fresh {
		logger.Info("duplicate event ignored")
		return nil
	}

	if err := c.handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler")
		logger.Warn("event handler failed", "err", err)
		if ferr := c.inbox.Forget(ctx, meta.EventID); ferr != nil {
			logger.Error("inbox forget failed", "err", ferr)
		}
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
