package dashscope

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedResponse 成功响应无法解析为预期结构
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrTaskTimeout 异步任务在截止时间前未进入终态
	ErrTaskTimeout = errors.New("async task did not finish before deadline")
)

// APIError DashScope 返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dashscope: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dashscope: status=%d message=%s", e.StatusCode, e.Message)
}

// TaskError 异步任务以 FAILED/CANCELED/UNKNOWN 结束
type TaskError struct {
	TaskID  string
	Status  TaskStatus
	Code    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("dashscope task %s %s: code=%s message=%s", e.TaskID, e.Status, e.Code, e.Message)
}

const maxErrorSnippet = 512

// decodeAPIError 宽松解析错误体 {code, message, request_id}；
// 非 JSON 或缺字段时退化为截断后的原始文本或状态描述。
func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}

	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "code", "message", "request_id")
		e.Code = res[0].String()
		e.Message = res[1].String()
		e.RequestID = res[2].String()
	}

	if e.Message == "" {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet] + "..."
		}
		if snippet == "" {
			snippet = http.StatusText(status)
		}
		e.Message = snippet
	}
	return e
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
