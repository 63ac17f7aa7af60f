package deployer

import (
	"errors"
	"fmt"
)

// Kind classifies deployment failures.
type Kind string

const (
	KindBuild    Kind = "build"
	KindNetwork  Kind = "network"
	KindTimeout  Kind = "timeout"
	KindRejected Kind = "rejected"
)

// Stage is the last state a deployment reached.
type Stage string

const (
	StageInit      Stage = "init"
	StageBuilt     Stage = "built"
	StageSigned    Stage = "signed"
	StageSubmitted Stage = "submitted"
	StageConfirmed Stage = "confirmed"
	StageTimedOut  Stage = "timed_out"
	StageRejected  Stage = "rejected"
)

// Error carries the transaction id once one exists, so a caller can look
// the transaction up before deciding to resubmit.
type Error struct {
	Kind  Kind
	Stage Stage
	TxID  string
	Err   error
}

func (e *Error) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("deploy %s error at %s (tx %s): %v", e.Kind, e.Stage, e.TxID, e.Err)
	}
	return fmt.Sprintf("deploy %s error at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a deployer error, or "".
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
