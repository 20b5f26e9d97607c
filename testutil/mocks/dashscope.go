// =============================================================================
// 🎭 DashScope 替身服务器
// =============================================================================
// 基于 httptest 的上游替身，按端点注册响应，记录所有请求
//
// 使用方法:
//
//	ds := mocks.NewDashScope(t).
//		OnSubmit(http.StatusOK, fixtures.TaskSubmitted("task-1")).
//		OnTask("task-1", fixtures.TaskRunning("task-1"), fixtures.TaskSucceeded("task-1", ...))
// =============================================================================
package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BaSui01/dashscope-router/testutil"
)

// 上游路径
const (
	MultimodalPath = "/api/v1/services/aigc/multimodal-generation/generation"
	SynthesisPath  = "/api/v1/services/aigc/text2image/image-synthesis"
	TasksPrefix    = "/api/v1/tasks/"
	assetsPrefix   = "/oss/"
)

// Request 一次被记录的上游请求
type Request struct {
	Method        string
	Path          string
	Authorization string
	Async         string
	Body          map[string]any
}

// Reply 由 OnMultimodalFunc 返回的响应
type Reply struct {
	Status int
	Body   any
}

type asset struct {
	status int
	data   []byte
}

// DashScope 替身服务器
type DashScope struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	requests   []Request
	multimodal func(Request) Reply
	submit     *Reply
	tasks      map[string][]any
	polls      map[string]int
	assets     map[string]asset
}

// NewDashScope 启动替身服务器，测试结束时自动关闭。
// 未注册的端点被调用时测试失败。
func NewDashScope(t *testing.T) *DashScope {
	t.Helper()
	d := &DashScope{
		t:      t,
		tasks:  make(map[string][]any),
		polls:  make(map[string]int),
		assets: make(map[string]asset),
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.server.Close)
	return d
}

// URL 服务器根地址
func (d *DashScope) URL() string { return d.server.URL }

// BaseURL 对应 dashscope.base_url 配置
func (d *DashScope) BaseURL() string { return d.server.URL + "/api/v1" }

// OnMultimodal 为多模态同步接口注册固定响应
func (d *DashScope) OnMultimodal(status int, body any) *DashScope {
	return d.OnMultimodalFunc(func(Request) Reply { return Reply{Status: status, Body: body} })
}

// OnMultimodalFunc 按请求内容动态决定响应
func (d *DashScope) OnMultimodalFunc(fn func(Request) Reply) *DashScope {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.multimodal = fn
	return d
}

// OnSubmit 为异步生图提交接口注册响应
func (d *DashScope) OnSubmit(status int, body any) *DashScope {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submit = &Reply{Status: status, Body: body}
	return d
}

// OnTask 注册任务查询的状态序列，按轮询次数依次返回，最后一项重复
func (d *DashScope) OnTask(id string, bodies ...any) *DashScope {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks[id] = bodies
	return d
}

// Asset 注册可下载资源，返回完整 URL
func (d *DashScope) Asset(name string, data []byte) string {
	return d.AssetStatus(name, http.StatusOK, data)
}

// AssetStatus 注册指定状态码的资源
func (d *DashScope) AssetStatus(name string, status int, data []byte) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[name] = asset{status: status, data: data}
	return d.server.URL + assetsPrefix + name
}

// Requests 返回已记录请求的副本
func (d *DashScope) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, len(d.requests))
	copy(out, d.requests)
	return out
}

// Hits 已收到的请求数（含资源下载）
func (d *DashScope) Hits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

// Polls 指定任务被查询的次数
func (d *DashScope) Polls(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.polls[id]
}

func (d *DashScope) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Async:         r.Header.Get("X-DashScope-Async"),
	}
	if r.Method == http.MethodPost {
		req.Body = testutil.DecodeJSONBody(d.t, r)
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	multimodal, submit := d.multimodal, d.submit
	d.mu.Unlock()

	switch {
	case req.Path == MultimodalPath && multimodal != nil:
		reply := multimodal(req)
		writeJSON(w, reply.Status, reply.Body)
	case req.Path == SynthesisPath && submit != nil:
		writeJSON(w, submit.Status, submit.Body)
	case strings.HasPrefix(req.Path, TasksPrefix):
		d.serveTask(w, strings.TrimPrefix(req.Path, TasksPrefix))
	case strings.HasPrefix(req.Path, assetsPrefix):
		d.serveAsset(w, strings.TrimPrefix(req.Path, assetsPrefix))
	default:
		d.t.Errorf("unexpected upstream call: %s %s", req.Method, req.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (d *DashScope) serveTask(w http.ResponseWriter, id string) {
	d.mu.Lock()
	seq, ok := d.tasks[id]
	n := d.polls[id]
	d.polls[id] = n + 1
	d.mu.Unlock()

	if !ok || len(seq) == 0 {
		d.t.Errorf("unexpected task poll: %s", id)
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "NotFound", "message": "task not found"})
		return
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	writeJSON(w, http.StatusOK, seq[n])
}

func (d *DashScope) serveAsset(w http.ResponseWriter, name string) {
	d.mu.Lock()
	a, ok := d.assets[name]
	d.mu.Unlock()

	if !ok {
		d.t.Errorf("unexpected asset download: %s", name)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(a.status)
	_, _ = w.Write(a.data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
