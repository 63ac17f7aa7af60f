package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/database"
)

const (
	insertRecordQuery = `
		INSERT INTO audit_records (
			id, recorded_at, stage, request_id, summary, outcome, attempt,
			provider, model, code_snippet, error, tx_id, program_id, content_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	listRecordsQuery = `
		SELECT id, recorded_at, stage, request_id, summary, outcome, attempt,
		       provider, model, code_snippet, error, tx_id, program_id, content_hash
		FROM audit_records
		WHERE ($1::text = '' OR stage = $1::text)
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	DefaultListLimit = 50
	MaxListLimit     = 500
)

// PostgresSink stores records in the audit_records table.
type PostgresSink struct {
	db     database.DBTX
	logger *zap.Logger
}

var _ Sink = (*PostgresSink)(nil)

func NewPostgresSink(db database.DBTX, logger *zap.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger.Named("audit_pg")}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, insertRecordQuery,
		rec.ID, rec.Timestamp, string(rec.Stage), rec.RequestID, rec.Summary, rec.Outcome, rec.Attempt,
		rec.Provider, rec.Model, rec.Snippet, rec.Error, rec.TxID, int64(rec.ProgramID), rec.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", rec.ID, err)
	}
	return nil
}

type recordRow struct {
	ID          string    `db:"id"`
	RecordedAt  time.Time `db:"recorded_at"`
	Stage       string    `db:"stage"`
	RequestID   string    `db:"request_id"`
	Summary     string    `db:"summary"`
	Outcome     string    `db:"outcome"`
	Attempt     int       `db:"attempt"`
	Provider    string    `db:"provider"`
	Model       string    `db:"model"`
	Snippet     string    `db:"code_snippet"`
	Error       string    `db:"error"`
	TxID        string    `db:"tx_id"`
	ProgramID   int64     `db:"program_id"`
	ContentHash string    `db:"content_hash"`
}

// List returns the newest records first. An empty stage matches all stages.
func (s *PostgresSink) List(ctx context.Context, stage Stage, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var rows []recordRow
	if err := pgxscan.Select(ctx, s.db, &rows, listRecordsQuery, string(stage), limit); err != nil {
		s.logger.Error("Failed to list audit records", zap.String("stage", string(stage)), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, Record{
			ID:          r.ID,
			Timestamp:   r.RecordedAt.UTC(),
			Stage:       Stage(r.Stage),
			RequestID:   r.RequestID,
			Summary:     r.Summary,
			Outcome:     r.Outcome,
			Attempt:     r.Attempt,
			Provider:    r.Provider,
			Model:       r.Model,
			Snippet:     r.Snippet,
			Error:       r.Error,
			TxID:        r.TxID,
			ProgramID:   uint64(r.ProgramID),
			ContentHash: r.ContentHash,
		})
	}
	return records, nil
}
