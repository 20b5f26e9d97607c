package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/internal/pool"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.httpRequestDuration)
	assert.NotNil(t, collector.upstreamRequestsTotal)
	assert.NotNil(t, collector.upstreamRequestDuration)
	assert.NotNil(t, collector.assetFetchTotal)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/v1/audio/speech", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("POST", "/v1/audio/speech", 201, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/v1/audio/speech", 502, 50*time.Millisecond, 512, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/v1/audio/speech", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/v1/audio/speech", "5xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestsTotal))
}

func TestCollector_RecordUABlocked(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())
	collector.RecordUABlocked()
	collector.RecordUABlocked()
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.uaBlockedTotal))
}

func TestCollector_RecordUpstreamCall(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordUpstreamCall("image", "async", "wan2.2-t2i-flash", 200, 8*time.Second)
	collector.RecordUpstreamCall("speech", "sync", "qwen3-tts-flash", 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.upstreamRequestsTotal.WithLabelValues("image", "async", "wan2.2-t2i-flash", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.upstreamRequestsTotal.WithLabelValues("speech", "sync", "qwen3-tts-flash", "unknown")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.upstreamRequestDuration))
}

func TestCollector_RecordTaskPollAndAsset(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordTaskPoll("RUNNING")
	collector.RecordTaskPoll("RUNNING")
	collector.RecordTaskPoll("SUCCEEDED")
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.taskPollsTotal.WithLabelValues("RUNNING")))

	collector.RecordAssetFetch("image", true, 4096)
	collector.RecordAssetFetch("image", false, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.assetFetchTotal.WithLabelValues("image", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.assetFetchBytes))
}

func TestCollector_RegisterPoolStats(t *testing.T) {
	ns := nextTestNamespace()
	collector := NewCollector(ns, zap.NewNop())

	p := pool.New(pool.Config{MaxWorkers: 2, QueueSize: 4})
	defer p.Close()
	collector.RegisterPoolStats("bridge", p.Stats)

	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer,
		ns+"_bridge_workers", ns+"_bridge_active", ns+"_bridge_queued", ns+"_bridge_rejected")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/v1/models", 200, time.Millisecond, 0, 128)
			collector.RecordUpstreamCall("transcription", "sync", "qwen3-asr-flash", 200, time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/v1/models", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.upstreamRequestsTotal.WithLabelValues("transcription", "sync", "qwen3-asr-flash", "2xx")))
}

func TestStatusCode(t *testing.T) {
	tests := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 0: "unknown"}
	for code, want := range tests {
		assert.Equal(t, want, statusCode(code))
	}
}
