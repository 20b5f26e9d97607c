package dashscope

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Task 异步任务快照
type Task struct {
	ID      string
	Status  TaskStatus
	Results []ImageResult
	Code    string
	Message string
}

func taskFrom(resp *taskResponse) *Task {
	t := &Task{
		ID:      resp.Output.TaskID,
		Status:  resp.Output.TaskStatus,
		Code:    resp.Output.Code,
		Message: resp.Output.Message,
	}
	for _, r := range resp.Output.Results {
		// 部分失败的子结果只带 code/message，没有 url
		if r.URL == "" {
			continue
		}
		t.Results = append(t.Results, ImageResult{URL: r.URL, ActualPrompt: r.ActualPrompt})
	}
	return t
}

// SubmitImageTask 提交异步文生图任务。
// Endpoint: POST /services/aigc/text2image/image-synthesis (X-DashScope-Async: enable)
func (c *Client) SubmitImageTask(ctx context.Context, apiKey string, p ImageParams) (*Task, error) {
	negative := p.NegativePrompt
	if negative == "" {
		// 接口拒绝空字符串
		negative = " "
	}
	body := synthesisRequest{
		Model: p.Model,
		Input: synthesisInput{Prompt: p.Prompt, NegativePrompt: negative},
		Parameters: synthesisParameters{
			Size:         p.Size,
			N:            p.N,
			PromptExtend: p.PromptExtend,
			Watermark:    p.Watermark,
		},
	}

	var resp taskResponse
	err := c.postJSON(ctx, apiKey, imageSynthesisPath, body,
		map[string]string{headerAsync: "enable"}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Output.TaskID == "" {
		return nil, malformed("image synthesis submit response has no output.task_id")
	}

	c.logger.Info("image synthesis task submitted",
		zap.String("model", p.Model),
		zap.String("task_id", resp.Output.TaskID),
		zap.String("request_id", resp.RequestID))
	return taskFrom(&resp), nil
}

// GetTask 查询异步任务状态。
// Endpoint: GET /tasks/{task_id}
func (c *Client) GetTask(ctx context.Context, apiKey, taskID string) (*Task, error) {
	var resp taskResponse
	if err := c.getJSON(ctx, apiKey, tasksPath+url.PathEscape(taskID), &resp); err != nil {
		return nil, err
	}
	if resp.Output.TaskStatus == "" {
		return nil, malformed("task %s response has no output.task_status", taskID)
	}
	if resp.Output.TaskID == "" {
		resp.Output.TaskID = taskID
	}
	return taskFrom(&resp), nil
}

// WaitTask 按 PollInterval 轮询直到任务进入终态或 ctx 结束。
// 终态非 SUCCEEDED 时返回 *TaskError。
func (c *Client) WaitTask(ctx context.Context, apiKey, taskID string) (*Task, error) {
	limiter := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	// 消耗初始令牌，首轮查询前等待一个间隔
	limiter.Reserve()

	status := TaskPending
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, c.waitError(ctx, taskID, status, err)
		}

		task, err := c.GetTask(ctx, apiKey, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.waitError(ctx, taskID, status, err)
			}
			return nil, err
		}
		status = task.Status
		c.recorder.RecordTaskPoll(string(status))

		if !status.Terminal() {
			continue
		}
		if status != TaskSucceeded {
			return nil, &TaskError{TaskID: taskID, Status: status, Code: task.Code, Message: task.Message}
		}
		return task, nil
	}
}

// waitError 区分超时与取消。limiter 预判等待会越过截止时间时 ctx 尚未结束，同样视为超时。
func (c *Client) waitError(ctx context.Context, taskID string, last TaskStatus, cause error) error {
	if ctxErr := ctx.Err(); ctxErr == nil || errors.Is(ctxErr, context.DeadlineExceeded) {
		c.logger.Warn("image synthesis task timed out",
			zap.String("task_id", taskID),
			zap.String("last_status", string(last)))
		return fmt.Errorf("%w: task %s last status %s", ErrTaskTimeout, taskID, last)
	}
	return fmt.Errorf("wait for task %s: %w", taskID, cause)
}

// GenerateImageAsync 提交任务并阻塞等待结果，整体受 AsyncTimeout 约束。
func (c *Client) GenerateImageAsync(ctx context.Context, apiKey string, p ImageParams) ([]ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AsyncTimeout)
	defer cancel()

	start := time.Now()
	task, err := c.SubmitImageTask(ctx, apiKey, p)
	if err != nil {
		return nil, err
	}

	if !task.Status.Terminal() {
		task, err = c.WaitTask(ctx, apiKey, task.ID)
		if err != nil {
			return nil, err
		}
	} else if task.Status != TaskSucceeded {
		return nil, &TaskError{TaskID: task.ID, Status: task.Status, Code: task.Code, Message: task.Message}
	}

	if len(task.Results) == 0 {
		return nil, malformed("task %s succeeded without results", task.ID)
	}

	c.logger.Info("image synthesis task succeeded",
		zap.String("task_id", task.ID),
		zap.Int("images", len(task.Results)),
		zap.Duration("elapsed", time.Since(start)))
	return task.Results, nil
}
