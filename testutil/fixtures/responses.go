// =============================================================================
// 📦 测试数据工厂 - DashScope 响应体
// =============================================================================
// 按 DashScope REST 接口的 JSON 形状构造响应，供替身服务器返回
// =============================================================================
package fixtures

import "encoding/base64"

// =============================================================================
// 🎯 多模态同步接口
// =============================================================================

// multimodal 构造 output.choices[0].message.content 结构
func multimodal(content ...map[string]any) map[string]any {
	parts := make([]any, 0, len(content))
	for _, c := range content {
		parts = append(parts, c)
	}
	return map[string]any{
		"request_id": "req-fixture",
		"output": map[string]any{
			"choices": []any{map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": parts,
				},
			}},
		},
	}
}

// ASRText 返回语音识别结果
func ASRText(text string) map[string]any {
	return multimodal(map[string]any{"text": text})
}

// SyncImages 返回同步生图结果，每个 URL 一个 content 项
func SyncImages(urls ...string) map[string]any {
	content := make([]map[string]any, 0, len(urls))
	for _, u := range urls {
		content = append(content, map[string]any{"image": u})
	}
	return multimodal(content...)
}

// SpeechData 返回内联 base64 音频
func SpeechData(audio []byte) map[string]any {
	return speech(map[string]any{"data": base64.StdEncoding.EncodeToString(audio)})
}

// SpeechURL 返回音频下载地址
func SpeechURL(url string) map[string]any {
	return speech(map[string]any{"url": url, "id": "audio-fixture", "expires_at": 1735689600})
}

func speech(audio map[string]any) map[string]any {
	return map[string]any{
		"request_id": "req-fixture",
		"output":     map[string]any{"audio": audio},
	}
}

// =============================================================================
// 🕐 异步任务
// =============================================================================

// TaskResult 任务成功时的单个结果
type TaskResult struct {
	URL          string
	ActualPrompt string
}

// TaskSubmitted 返回提交成功（PENDING）
func TaskSubmitted(id string) map[string]any {
	return task(id, "PENDING", nil)
}

// TaskRunning 返回运行中状态
func TaskRunning(id string) map[string]any {
	return task(id, "RUNNING", nil)
}

// TaskSucceeded 返回成功状态及结果
func TaskSucceeded(id string, results ...TaskResult) map[string]any {
	items := make([]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{"url": r.URL}
		if r.ActualPrompt != "" {
			item["actual_prompt"] = r.ActualPrompt
		}
		items = append(items, item)
	}
	return task(id, "SUCCEEDED", map[string]any{"results": items})
}

// TaskFailed 返回失败状态
func TaskFailed(id, code, message string) map[string]any {
	return task(id, "FAILED", map[string]any{"code": code, "message": message})
}

func task(id, status string, extra map[string]any) map[string]any {
	output := map[string]any{"task_id": id, "task_status": status}
	for k, v := range extra {
		output[k] = v
	}
	return map[string]any{"request_id": "req-fixture", "output": output}
}

// =============================================================================
// ❌ 错误体
// =============================================================================

// ErrorBody 返回 DashScope 非 2xx 响应体
func ErrorBody(code, message string) map[string]any {
	return map[string]any{
		"code":       code,
		"message":    message,
		"request_id": "req-fixture",
	}
}
