package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/dashscope"
	"github.com/BaSui01/dashscope-router/gateway"
	"github.com/BaSui01/dashscope-router/internal/pool"
	"github.com/BaSui01/dashscope-router/testutil/mocks"
	"github.com/BaSui01/dashscope-router/types"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

// testStack 以 DashScope 替身组装完整的 handler 链路
type testStack struct {
	audio    *AudioHandler
	images   *ImageHandler
	upstream *mocks.DashScope
}

func newTestStack(t *testing.T, defaultKey string) *testStack {
	t.Helper()

	upstream := mocks.NewDashScope(t)
	logger := zap.NewNop()
	client := dashscope.New(dashscope.Config{
		BaseURL:      upstream.BaseURL(),
		Timeout:      5 * time.Second,
		AsyncTimeout: 5 * time.Second,
		PollInterval: 10 * time.Millisecond,
		AssetTimeout: 5 * time.Second,
	}, logger)

	table := gateway.NewCapabilityTable(gateway.TableConfig{})
	p := pool.New(pool.Config{MaxWorkers: 2, QueueSize: 2})
	t.Cleanup(p.Close)
	bridge, err := gateway.NewBridge(p, nil, logger)
	require.NoError(t, err)

	normalizer := gateway.NewNormalizer(table, 1<<20)
	dispatcher := gateway.NewDispatcher(client, client, table, bridge, logger)
	renderer := gateway.NewRenderer(client, 2, logger)
	keys := StaticKey(defaultKey)

	return &testStack{
		audio:    NewAudioHandler(normalizer, dispatcher, renderer, keys, logger),
		images:   NewImageHandler(normalizer, dispatcher, renderer, keys, logger),
		upstream: upstream,
	}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
