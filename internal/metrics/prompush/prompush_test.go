package prompush

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/etlite/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name       string
		jobName    string
		gatewayURL string
		wantErr    bool
		wantJob    string
	}{
		{name: "missing gateway URL", jobName: "nightly", wantErr: true},
		{name: "default job", gatewayURL: "http://pushgateway:9091", wantJob: DefaultJob},
		{name: "explicit job", jobName: "nightly", gatewayURL: "http://pushgateway:9091", wantJob: "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJob, b.jobName)
		})
	}
}

func TestBackendRecords(t *testing.T) {
	b, err := NewBackend("", "http://example.com")
	require.NoError(t, err)

	metrics.RecordStep(b, "1.city_stats.sql", nil, 1500*time.Millisecond)
	metrics.RecordStep(b, "1.city_stats.sql", nil, time.Second)
	metrics.RecordStep(b, "2.volume.sql", errors.New("boom"), time.Second)
	metrics.RecordCheck(b, "test", "no_duplicates", true)
	metrics.RecordCheck(b, "test", "no_duplicates", false)
	metrics.RecordRows(b, "1.city_stats.sql", 42)
	metrics.RecordRows(b, "1.city_stats.sql", 0)
	b.IncCounter("unknown", 1, metrics.Labels{})
	b.ObserveDuration("unknown", 1, metrics.Labels{})

	assert.InDelta(t, 2.0, testutil.ToFloat64(b.stepCounter.WithLabelValues("1.city_stats.sql", "success")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(b.stepCounter.WithLabelValues("2.volume.sql", "failure")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(b.checkCounter.WithLabelValues("test", "no_duplicates", "failure")), 1e-9)
	assert.InDelta(t, 42.0, testutil.ToFloat64(b.rowsCounter.WithLabelValues("1.city_stats.sql")), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(b.stepDuration))
}

func TestFlush(t *testing.T) {
	var calls atomic.Int32
	var body atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		data, _ := io.ReadAll(r.Body)
		body.Store(string(data))
		assert.True(t, strings.HasPrefix(r.URL.Path, "/metrics/job/nightly"), r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b, err := NewBackend("nightly", server.URL)
	require.NoError(t, err)
	metrics.RecordStep(b, "a.sql", nil, time.Second)

	require.NoError(t, b.Flush())
	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, body.Load())
}

func TestFlushError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	b, err := NewBackend("nightly", server.URL)
	require.NoError(t, err)

	err = b.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompush: push to")
}
