package models

import (
	"fmt"
	"time"
)

// Ledger limits on application state schemas.
const (
	MaxGlobalStateEntries = 64
	MaxLocalStateEntries  = 16
)

// StateSchema is the storage an application reserves.
type StateSchema struct {
	NumUints      uint64 `json:"num_uints" yaml:"num_uints"`
	NumByteSlices uint64 `json:"num_byte_slices" yaml:"num_byte_slices"`
}

// Entries is the total number of key/value slots.
func (s StateSchema) Entries() uint64 {
	return s.NumUints + s.NumByteSlices
}

// CheckLimit returns an error when the schema asks for more than limit slots.
func (s StateSchema) CheckLimit(scope string, limit uint64) error {
	if s.Entries() > limit {
		return fmt.Errorf("%w: %s schema requests %d entries, limit is %d", ErrInvalidInput, scope, s.Entries(), limit)
	}
	return nil
}

// DeploymentRecord is created once, when the ledger confirms an application.
type DeploymentRecord struct {
	ProgramID      uint64    `json:"program_id"`
	TransactionID  string    `json:"transaction_id"`
	ProgramAddress string    `json:"program_address"`
	Sender         string    `json:"sender"`
	ConfirmedRound uint64    `json:"confirmed_round"`
	ExplorerURL    string    `json:"explorer_url,omitempty"`
	DeployedAt     time.Time `json:"deployed_at"`
}

// DeploymentEvent is published after a deployment reaches a terminal state.
type DeploymentEvent struct {
	EventID        string    `json:"event_id"`
	Status         string    `json:"status"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	ProgramID      uint64    `json:"program_id,omitempty"`
	ProgramAddress string    `json:"program_address,omitempty"`
	ConfirmedRound uint64    `json:"confirmed_round,omitempty"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
