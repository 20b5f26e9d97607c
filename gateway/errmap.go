package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/BaSui01/dashscope-router/dashscope"
	"github.com/BaSui01/dashscope-router/types"
)

const providerDashScope = "dashscope"

// MapError 把任意错误归一为 *types.Error，HTTP 状态始终落在 [400,599]。
//
//   - *types.Error 原样返回
//   - *dashscope.APIError：状态在 [400,599] 时透传，否则 502；code 透传
//   - 任务失败、超时、响应无法解析、传输错误：502 upstream_error
func MapError(err error) *types.Error {
	if err == nil {
		return nil
	}
	if e, ok := types.AsError(err); ok {
		if e.HTTPStatus < 400 || e.HTTPStatus > 599 {
			e.HTTPStatus = http.StatusBadGateway
		}
		return e
	}

	var apiErr *dashscope.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return types.NewError(types.ErrUpstream, "DashScope error: "+apiErr.Message).
			WithCode(apiErr.Code).
			WithHTTPStatus(status).
			WithProvider(providerDashScope).
			WithCause(err)
	}

	var taskErr *dashscope.TaskError
	if errors.As(err, &taskErr) {
		msg := taskErr.Message
		if msg == "" {
			msg = "task ended with status " + string(taskErr.Status)
		}
		return types.NewUpstreamError("DashScope task %s failed: %s", taskErr.TaskID, msg).
			WithCode(taskErr.Code).
			WithProvider(providerDashScope).
			WithCause(err)
	}

	switch {
	case errors.Is(err, dashscope.ErrTaskTimeout):
		return types.NewUpstreamError("DashScope task did not finish in time").
			WithProvider(providerDashScope).
			WithCause(err)
	case errors.Is(err, dashscope.ErrMalformedResponse):
		return types.NewUpstreamError("%v", err).
			WithProvider(providerDashScope).
			WithCause(err)
	case errors.Is(err, context.Canceled):
		return types.NewUpstreamError("request canceled before the upstream call completed").
			WithCause(err)
	}

	return types.NewUpstreamError("failed to call DashScope: %v", err).
		WithProvider(providerDashScope).
		WithCause(err)
}
