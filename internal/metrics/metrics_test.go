package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.GenerationAttempt("openai", "gpt-4", "validation_failed")
	m.GenerationAttempt("openai", "gpt-4", "validation_failed")
	m.Compile("program", "ok")
	m.Deploy("confirmed", 3)

	expected := `
# HELP contractor_generation_attempts_total Generation attempts, partitioned by provider, model and outcome.
# TYPE contractor_generation_attempts_total counter
contractor_generation_attempts_total{model="gpt-4",outcome="validation_failed",provider="openai"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "contractor_generation_attempts_total"))
	count, err := testutil.GatherAndCount(m.Registry, "contractor_compile_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.GenerationAttempt("a", "b", "c")
		m.GenerationResult("a", "b")
		m.ProviderCall("a", "b", 1, 1, 1)
		m.Compile("a", "b")
		m.Deploy("a", 1)
		m.AuditDropped("file")
	})
}

func TestPusher(t *testing.T) {
	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		assert.Contains(t, r.URL.Path, "/metrics/job/contractor")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := metrics.New()
	m.Compile("program", "ok")

	p := metrics.NewPusher(srv.URL, "contractor", m, zap.NewNop())
	require.NotNil(t, p)
	p.Push()

	assert.Equal(t, int32(1), pushes.Load())
}

func TestPusher_Disabled(t *testing.T) {
	p := metrics.NewPusher("", "contractor", metrics.New(), zap.NewNop())
	assert.Nil(t, p)
	assert.NotPanics(t, p.Push)
}
