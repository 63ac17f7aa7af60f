package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
)

// Sink persists records.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// Recorder is what pipeline components depend on.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// Log fans a record out to every sink.
type Log struct {
	sinks   []Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

var _ Recorder = (*Log)(nil)

func New(logger *zap.Logger, m *metrics.Metrics, sinks ...Sink) *Log {
	return &Log{
		sinks:   sinks,
		logger:  logger.Named("audit"),
		metrics: m,
		now:     time.Now,
	}
}

// Record stamps rec and writes it to every sink. It never fails.
func (l *Log) Record(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RequestID == "" {
		rec.RequestID = RequestID(ctx)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	rec.Summary = Truncate(rec.Summary, SummaryLimit)
	rec.Snippet = Truncate(rec.Snippet, SnippetLimit)

	for _, sink := range l.sinks {
		if err := l.write(ctx, sink, rec); err != nil {
			l.logger.Warn("Failed to write audit record",
				zap.String("sink", sink.Name()),
				zap.String("stage", string(rec.Stage)),
				zap.Error(err),
			)
			l.metrics.AuditDropped(sink.Name())
		}
	}
}

func (l *Log) write(ctx context.Context, sink Sink, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Write(ctx, rec)
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) {}

type requestIDKey struct{}

// WithRequestID tags ctx so records written under it carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
