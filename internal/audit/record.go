// Package audit writes one structured record per pipeline event.
//
// Writing is best-effort: a failing sink is logged and counted, never
// surfaced to the caller.
package audit

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap/zapcore"
)

type Stage string

const (
	StageGeneration  Stage = "generation"
	StageCompilation Stage = "compilation"
	StageDeployment  Stage = "deployment"
)

// Outcomes used across stages.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeSubmitted = "submitted"
)

// Field limits.
const (
	SummaryLimit = 100
	SnippetLimit = 200
)

// Record is one audit log entry.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Stage       Stage     `json:"stage"`
	RequestID   string    `json:"request_id,omitempty"`
	Summary     string    `json:"summary"`
	Outcome     string    `json:"outcome"`
	Attempt     int       `json:"attempt,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	Snippet     string    `json:"code_snippet,omitempty"`
	Error       string    `json:"error,omitempty"`
	TxID        string    `json:"tx_id,omitempty"`
	ProgramID   uint64    `json:"program_id,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
}

// MarshalLogObject lets zap encode a record without reflection.
func (r Record) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", r.ID)
	enc.AddTime("timestamp", r.Timestamp)
	enc.AddString("stage", string(r.Stage))
	if r.RequestID != "" {
		enc.AddString("request_id", r.RequestID)
	}
	enc.AddString("summary", r.Summary)
	enc.AddString("outcome", r.Outcome)
	if r.Attempt > 0 {
		enc.AddInt("attempt", r.Attempt)
	}
	if r.Provider != "" {
		enc.AddString("provider", r.Provider)
	}
	if r.Model != "" {
		enc.AddString("model", r.Model)
	}
	if r.Snippet != "" {
		enc.AddString("code_snippet", r.Snippet)
	}
	if r.Error != "" {
		enc.AddString("error", r.Error)
	}
	if r.TxID != "" {
		enc.AddString("tx_id", r.TxID)
	}
	if r.ProgramID != 0 {
		enc.AddUint64("program_id", r.ProgramID)
	}
	if r.ContentHash != "" {
		enc.AddString("content_hash", r.ContentHash)
	}
	return nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
