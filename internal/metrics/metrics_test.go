package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.SourceFinished("succeeded")
	r.SourceFinished("succeeded")
	r.SourceFinished("failed")
	r.EncodeFailed("av1", "missing-encoder")
	r.RenditionPublished("h264", 1080)
	r.Retried("encode")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.sources.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sources.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.encodeFailures.WithLabelValues("av1", "missing-encoder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.renditions.WithLabelValues("h264", "1080")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retries.WithLabelValues("encode")))
}

func TestRecorder_StageHistogram(t *testing.T) {
	r := New()
	r.ObserveStage("encode", 3*time.Second)
	r.ObserveStage("package", time.Second)
	assert.Equal(t, 2, testutil.CollectAndCount(r.stageDuration))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.SourceFinished("degraded")
	r.RunFinished(time.Unix(1700000000, 0), 90*time.Second)

	path := filepath.Join(t.TempDir(), "dash.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `dash_sources_total{outcome="degraded"} 1`)
	assert.Contains(t, text, "dash_last_run_timestamp_seconds 1.7e+09")
	assert.Contains(t, text, "dash_last_run_duration_seconds 90")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SourceFinished("failed")
		r.ObserveStage("probe", time.Second)
		r.EncodeFailed("h264", "io")
		r.RenditionPublished("h264", 480)
		r.Retried("probe")
		r.RunFinished(time.Now(), time.Second)
	})
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, r.Registry())
}
