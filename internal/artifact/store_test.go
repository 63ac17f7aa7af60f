package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const document = "approval_program: approve\n"

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "ai_generated"), zap.NewNop())
	s.now = func() time.Time { return time.Date(2025, 10, 19, 11, 2, 50, 0, time.UTC) }
	return s
}

func TestSave(t *testing.T) {
	s := newStore(t)

	path, err := s.Save("Build a counter\nthat increments", document)
	require.NoError(t, err)
	assert.Equal(t, "contract_20251019_110250.yaml", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "# AI-Generated Smart Contract\n" +
		"# Generated: 2025-10-19T11:02:50Z\n" +
		"# Description: Build a counter that increments\n\n" +
		document
	assert.Equal(t, want, string(data))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "approve", doc["approval_program"])
}

func TestSave_SameSecondGetsSuffix(t *testing.T) {
	s := newStore(t)

	first, err := s.Save("a", document)
	require.NoError(t, err)
	second, err := s.Save("b", document)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "contract_20251019_110250_1.yaml", filepath.Base(second))
}

func TestSave_Empty(t *testing.T) {
	_, err := newStore(t).Save("a", "  \n")
	assert.Error(t, err)
}

func TestRender_AddsTrailingNewline(t *testing.T) {
	out := Render("d", "approval_program: approve", time.Unix(0, 0).UTC())
	assert.Equal(t, "approval_program: approve\n", out[len(out)-len("approval_program: approve\n"):])
}
