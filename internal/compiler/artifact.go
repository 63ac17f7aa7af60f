package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
)

// Artifact is a compiled program. Only a Service can produce one that
// reports Verified.
type Artifact struct {
	Mode     teal.Mode `json:"mode"`
	Name     string    `json:"name,omitempty"`
	TEAL     string    `json:"teal"`
	Bytecode []byte    `json:"bytecode"`
	// ContentHash is the node's program hash.
	ContentHash string `json:"content_hash"`
	// SourceHash is the sha256 of the document the program came from.
	SourceHash string    `json:"source_hash"`
	CompiledAt time.Time `json:"compiled_at"`

	GlobalSchema *models.StateSchema `json:"global_schema,omitempty"`
	LocalSchema  *models.StateSchema `json:"local_schema,omitempty"`

	minted *Service
}

// Verified reports whether the artifact came out of a Service.
func (a *Artifact) Verified() bool {
	return a != nil && a.minted != nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
