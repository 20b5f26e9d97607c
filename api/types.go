package api

// =============================================================================
// 🎙️ 音频转写类型
// =============================================================================

// TranscriptionResponse 是 response_format=json 的转写结果。
// @Description 转写结果
type TranscriptionResponse struct {
	// 识别出的文本
	Text string `json:"text" example:"你好，世界"`
}

// VerboseTranscriptionResponse 是 response_format=verbose_json 的转写结果。
// duration 为上游调用耗时（秒）；后端不提供分段与逐词信息，segments/words 恒为空数组。
// @Description 详细转写结果
type VerboseTranscriptionResponse struct {
	Task     string  `json:"task" example:"transcribe"`
	Language string  `json:"language" example:"unknown"`
	Duration float64 `json:"duration" example:"1.23"`
	Text     string  `json:"text"`
	Segments []any   `json:"segments"`
	Words    []any   `json:"words"`
}

// =============================================================================
// 🖼️ 图像生成类型
// =============================================================================

// ImageData 单张生成图片，url 与 b64_json 二选一。
// @Description 生成图片
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ImageResponse 图像生成响应。
// @Description 图像生成响应
type ImageResponse struct {
	// Unix 时间戳（秒）
	Created int64       `json:"created" example:"1735689600"`
	Data    []ImageData `json:"data"`
}

// =============================================================================
// 📋 模型列表类型
// =============================================================================

// Model 模型列表项。
// @Description 模型信息
type Model struct {
	ID      string `json:"id" example:"qwen3-asr-flash"`
	Object  string `json:"object" example:"model"`
	Created int64  `json:"created" example:"0"`
	OwnedBy string `json:"owned_by" example:"dashscope"`
}

// ModelListResponse 模型列表响应。
// @Description 模型列表
type ModelListResponse struct {
	Object string  `json:"object" example:"list"`
	Data   []Model `json:"data"`
}

// =============================================================================
// 🏥 运维类型
// =============================================================================

// HealthResponse 健康检查响应。
// @Description 健康状态
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse 版本信息。
// @Description 版本信息
type VersionResponse struct {
	Version   string `json:"version" example:"1.0.0"`
	BuildTime string `json:"build_time" example:"2026-01-01T00:00:00Z"`
	GitCommit string `json:"git_commit" example:"abc1234"`
}
