package dashscope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "sk-test"

type recordingRecorder struct {
	mu     sync.Mutex
	polls  []string
	assets []bool
}

func (r *recordingRecorder) RecordTaskPoll(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, status)
}

func (r *recordingRecorder) RecordAssetFetch(_ string, ok bool, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, ok)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) (*Client, *recordingRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:      srv.URL + "/api/v1/",
		Timeout:      5 * time.Second,
		AsyncTimeout: 5 * time.Second,
		PollInterval: 10 * time.Millisecond,
		AssetTimeout: 5 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	rec := &recordingRecorder{}
	return New(cfg, zap.NewNop(), WithRecorder(rec)), rec
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// 🎙️ Transcribe
// =============================================================================

func TestClient_Transcribe(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/services/aigc/multimodal-generation/generation", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get(headerAsync))

		body := decodeBody(t, r)
		assert.Equal(t, "qwen3-asr-flash", body["model"])

		messages := body["input"].(map[string]any)["messages"].([]any)
		require.Len(t, messages, 2)
		system := messages[0].(map[string]any)
		assert.Equal(t, "system", system["role"])
		assert.Equal(t, []any{map[string]any{"text": ""}}, system["content"])
		user := messages[1].(map[string]any)
		assert.Equal(t, []any{map[string]any{"audio": "data:audio/wav;base64,AAAA"}}, user["content"])

		params := body["parameters"].(map[string]any)
		assert.Equal(t, "message", params["result_format"])
		assert.Equal(t, map[string]any{"enable_itn": false, "language": "zh"}, params["asr_options"])

		writeJSON(w, http.StatusOK, map[string]any{
			"request_id": "req-1",
			"output": map[string]any{
				"choices": []any{map[string]any{
					"message": map[string]any{"role": "assistant", "content": []any{map[string]any{"text": "你好世界"}}},
				}},
			},
		})
	})

	text, err := client.Transcribe(context.Background(), testKey, TranscribeParams{
		Model:        "qwen3-asr-flash",
		AudioDataURI: "data:audio/wav;base64,AAAA",
		Language:     "zh",
	})
	require.NoError(t, err)
	assert.Equal(t, "你好世界", text)
}

func TestClient_Transcribe_OmitsEmptyLanguage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		params := decodeBody(t, r)["parameters"].(map[string]any)
		assert.Equal(t, map[string]any{"enable_itn": false}, params["asr_options"])
		writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": []any{map[string]any{"text": "ok"}}}}},
		}})
	})

	_, err := client.Transcribe(context.Background(), testKey, TranscribeParams{Model: "m", AudioDataURI: "data:x;base64,"})
	require.NoError(t, err)
}

func TestClient_Transcribe_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{name: "no choices", body: map[string]any{"output": map[string]any{}}},
		{name: "empty content", body: map[string]any{"output": map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": []any{}}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			_, err := client.Transcribe(context.Background(), testKey, TranscribeParams{Model: "m"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestClient_NotJSONSuccessBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})
	_, err := client.Transcribe(context.Background(), testKey, TranscribeParams{Model: "m"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

// =============================================================================
// ❌ 错误解析
// =============================================================================

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
		wantReqID   string
	}{
		{
			name:        "json envelope",
			status:      http.StatusBadRequest,
			body:        `{"code":"InvalidParameter","message":"url error","request_id":"r-9"}`,
			wantCode:    "InvalidParameter",
			wantMessage: "url error",
			wantReqID:   "r-9",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream exploded",
			wantMessage: "upstream exploded",
		},
		{
			name:        "empty body",
			status:      http.StatusTooManyRequests,
			wantMessage: "Too Many Requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Synthesize(context.Background(), testKey, SpeechParams{Model: "m", Text: "hi", Voice: "Chelsie"})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantReqID, apiErr.RequestID)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	_, err := client.Synthesize(context.Background(), testKey, SpeechParams{Model: "m"})
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

// =============================================================================
// 🔊 Synthesize
// =============================================================================

func TestClient_Synthesize(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, map[string]any{"text": "hello", "voice": "Cherry"}, body["input"])
		_, hasParams := body["parameters"]
		assert.False(t, hasParams)
		writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{
			"audio": map[string]any{"url": "https://oss.example/a.wav", "data": ""},
		}})
	})

	audio, err := client.Synthesize(context.Background(), testKey, SpeechParams{Model: "qwen3-tts-flash", Text: "hello", Voice: "Cherry"})
	require.NoError(t, err)
	assert.Equal(t, "https://oss.example/a.wav", audio.URL)
}

func TestClient_Synthesize_NoAudio(t *testing.T) {
	for name, output := range map[string]any{
		"missing audio": map[string]any{},
		"empty audio":   map[string]any{"audio": map[string]any{"url": "", "data": ""}},
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"output": output})
			})
			_, err := client.Synthesize(context.Background(), testKey, SpeechParams{Model: "m"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

// =============================================================================
// 🖼️ 同步生图
// =============================================================================

func TestClient_GenerateImageSync(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		params := body["parameters"].(map[string]any)
		assert.Equal(t, "message", params["result_format"])
		assert.Equal(t, false, params["stream"])
		assert.Equal(t, true, params["prompt_extend"])
		assert.Equal(t, false, params["watermark"])
		assert.Equal(t, "", params["negative_prompt"])
		assert.Equal(t, "1664*928", params["size"])
		assert.Equal(t, float64(2), params["n"])

		messages := body["input"].(map[string]any)["messages"].([]any)
		assert.Equal(t, []any{map[string]any{"text": "a cat"}}, messages[0].(map[string]any)["content"])

		writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": []any{
					map[string]any{"image": "https://oss.example/1.png"},
					map[string]any{"text": "ignored"},
				}}},
				map[string]any{"message": map[string]any{"content": []any{
					map[string]any{"image": "https://oss.example/2.png"},
				}}},
			},
		}})
	})

	images, err := client.GenerateImageSync(context.Background(), testKey, ImageParams{
		Model: "qwen-image-max", Prompt: "a cat", Size: "1664*928", N: 2, PromptExtend: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []ImageResult{{URL: "https://oss.example/1.png"}, {URL: "https://oss.example/2.png"}}, images)
}

func TestClient_GenerateImageSync_NoImages(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{"choices": []any{}}})
	})
	images, err := client.GenerateImageSync(context.Background(), testKey, ImageParams{Model: "qwen-image"})
	require.NoError(t, err)
	assert.Empty(t, images)
}

// =============================================================================
// ⏳ 异步生图
// =============================================================================

func asyncHandler(t *testing.T, statuses []string, final map[string]any) (http.HandlerFunc, *atomic.Int32) {
	var polls atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/services/aigc/text2image/image-synthesis":
			assert.Equal(t, "enable", r.Header.Get(headerAsync))
			body := decodeBody(t, r)
			assert.Equal(t, map[string]any{"prompt": "a dog", "negative_prompt": " "}, body["input"])
			assert.Equal(t, map[string]any{
				"size": "1024*1024", "n": float64(1), "prompt_extend": true, "watermark": false,
			}, body["parameters"])
			writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{"task_id": "t-1", "task_status": "PENDING"}})

		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/tasks/t-1":
			assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
			i := int(polls.Add(1)) - 1
			if i < len(statuses) {
				writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{"task_id": "t-1", "task_status": statuses[i]}})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"output": final})

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, &polls
}

var asyncParams = ImageParams{Model: "wan2.2-t2i-flash", Prompt: "a dog", Size: "1024*1024", N: 1, PromptExtend: true}

func TestClient_GenerateImageAsync_Succeeded(t *testing.T) {
	handler, polls := asyncHandler(t, []string{"PENDING", "RUNNING"}, map[string]any{
		"task_id":     "t-1",
		"task_status": "SUCCEEDED",
		"results": []any{
			map[string]any{"url": "https://oss.example/d.png", "actual_prompt": "a cute dog"},
			map[string]any{"code": "DataInspectionFailed", "message": "blocked"},
		},
	})
	client, rec := newTestClient(t, handler)

	images, err := client.GenerateImageAsync(context.Background(), testKey, asyncParams)
	require.NoError(t, err)
	assert.Equal(t, []ImageResult{{URL: "https://oss.example/d.png", ActualPrompt: "a cute dog"}}, images)
	assert.Equal(t, int32(3), polls.Load())
	assert.Equal(t, []string{"PENDING", "RUNNING", "SUCCEEDED"}, rec.polls)
}

func TestClient_GenerateImageAsync_Failed(t *testing.T) {
	handler, _ := asyncHandler(t, []string{"RUNNING"}, map[string]any{
		"task_id":     "t-1",
		"task_status": "FAILED",
		"code":        "InternalError",
		"message":     "model overloaded",
	})
	client, _ := newTestClient(t, handler)

	_, err := client.GenerateImageAsync(context.Background(), testKey, asyncParams)
	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr), "got %v", err)
	assert.Equal(t, TaskFailed, taskErr.Status)
	assert.Equal(t, "InternalError", taskErr.Code)
	assert.Equal(t, "model overloaded", taskErr.Message)
}

func TestClient_GenerateImageAsync_SucceededWithoutResults(t *testing.T) {
	handler, _ := asyncHandler(t, nil, map[string]any{"task_id": "t-1", "task_status": "SUCCEEDED"})
	client, _ := newTestClient(t, handler)

	_, err := client.GenerateImageAsync(context.Background(), testKey, asyncParams)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_GenerateImageAsync_Timeout(t *testing.T) {
	running := make([]string, 1000)
	for i := range running {
		running[i] = "RUNNING"
	}
	handler, _ := asyncHandler(t, running, nil)
	client, _ := newTestClient(t, handler, func(c *Config) { c.AsyncTimeout = 80 * time.Millisecond })

	start := time.Now()
	_, err := client.GenerateImageAsync(context.Background(), testKey, asyncParams)
	assert.ErrorIs(t, err, ErrTaskTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_SubmitImageTask_NoTaskID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"output": map[string]any{}})
	})
	_, err := client.SubmitImageTask(context.Background(), testKey, ImageParams{Model: "wan2.6-t2i", NegativePrompt: "blurry"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTaskStatus_Terminal(t *testing.T) {
	for _, s := range []TaskStatus{TaskSucceeded, TaskFailed, TaskCanceled, TaskUnknown} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []TaskStatus{TaskPending, TaskRunning, ""} {
		assert.False(t, s.Terminal(), s)
	}
}

// =============================================================================
// 📥 资源下载
// =============================================================================

func TestClient_Download(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("PNGDATA"))
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rec := &recordingRecorder{}
	client := New(Config{BaseURL: srv.URL}, zap.NewNop(), WithRecorder(rec))

	data, err := client.Download(context.Background(), "image", srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)

	// 第二次下载复用缓冲区，返回值不受影响
	again, err := client.Download(context.Background(), "image", srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, data, again)

	_, err = client.Download(context.Background(), "image", srv.URL+"/gone.png")
	require.Error(t, err)

	assert.Equal(t, []bool{true, true, false}, rec.assets)
	assert.GreaterOrEqual(t, client.BufferStats().Gets, int64(3))
}

func TestDecodeAudioData(t *testing.T) {
	raw := []byte("RIFF....WAVEfmt ")
	std := base64.StdEncoding.EncodeToString(raw)
	unpadded := base64.RawStdEncoding.EncodeToString([]byte("ab"))

	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{name: "bare base64", in: std, want: raw},
		{name: "data uri", in: "data:audio/wav;base64," + std, want: raw},
		{name: "unpadded", in: unpadded, want: []byte("ab")},
		{name: "data uri without comma", in: "data:audio/wav;base64", wantErr: true},
		{name: "garbage", in: "!!!not base64!!!", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAudioData(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, "https://dashscope.aliyuncs.com/api/v1", c.BaseURL())
	assert.Equal(t, 2*time.Second, c.cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, c.cfg.AsyncTimeout)
}
