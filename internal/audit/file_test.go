package audit_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
)

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ai_generations.log")
	sink, err := audit.OpenFile(path)
	require.NoError(t, err)

	log := audit.New(zap.NewNop(), nil, sink)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	log.Record(context.Background(), audit.Record{
		Timestamp: ts,
		Stage:     audit.StageGeneration,
		Summary:   "counter contract",
		Outcome:   audit.OutcomeFailure,
		Attempt:   2,
		Provider:  "openai",
		Model:     "gpt-4",
		Error:     "validation failed: missing program entry point.",
	})
	require.NoError(t, sink.Close())

	records, err := audit.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, audit.StageGeneration, got.Stage)
	assert.Equal(t, "counter contract", got.Summary)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, "validation failed: missing program entry point.", got.Error)
	assert.True(t, ts.Equal(got.Timestamp))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSink_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	for i := 0; i < 2; i++ {
		sink, err := audit.OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, sink.Write(context.Background(), audit.Record{ID: fmt.Sprint(i), Stage: audit.StageCompilation}))
		require.NoError(t, sink.Close())
	}

	records, err := audit.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0", records[0].ID)
	assert.Equal(t, "1", records[1].ID)
}

func TestFileSink_ConcurrentWritersDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	sink, err := audit.OpenFile(path)
	require.NoError(t, err)
	log := audit.New(zap.NewNop(), nil, sink)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				log.Record(context.Background(), audit.Record{
					Stage:   audit.StageGeneration,
					Summary: fmt.Sprintf("writer %d record %d", w, i),
					Snippet: "approval_program: {seq: [approve]}",
					Outcome: audit.OutcomeSuccess,
				})
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	records, err := audit.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, records, writers*perWriter, "every line decodes as one record")
}

func TestReadFile_SkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	content := "not json\n{\"id\":\"x\",\"stage\":\"deployment\",\"outcome\":\"submitted\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	records, err := audit.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, audit.StageDeployment, records[0].Stage)
}
