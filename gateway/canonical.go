package gateway

import "time"

// =============================================================================
// 📦 规范化请求 / 结果
// =============================================================================

// Request 规范化请求，按模态区分具体类型
type Request interface {
	Modality() Modality
	// Model 返回已解析的后端模型
	Model() string
}

// Common 三种模态共有的字段
type Common struct {
	// PublicModel 调用方传入的模型名（可能为空）
	PublicModel string
	// BackendModel 分发前已解析的后端模型名
	BackendModel string
	// OutputFormat 已小写的输出格式
	OutputFormat string
}

// Model implements Request.
func (c Common) Model() string { return c.BackendModel }

// TranscriptionRequest 语音转写请求
type TranscriptionRequest struct {
	Common

	Audio        []byte
	MIMEType     string
	AudioDataURI string
	Filename     string
	Language     string
	Prompt       string
}

// Modality implements Request.
func (*TranscriptionRequest) Modality() Modality { return ModalityTranscription }

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Common

	Input        string
	PublicVoice  string
	BackendVoice string
}

// Modality implements Request.
func (*SpeechRequest) Modality() Modality { return ModalitySpeech }

// ImageRequest 文生图请求
type ImageRequest struct {
	Common

	Prompt         string
	NegativePrompt string
	// Size 已规范为 W*H
	Size         string
	N            int
	PromptExtend bool
	Watermark    bool
}

// Modality implements Request.
func (*ImageRequest) Modality() Modality { return ModalityImage }

// Asset 生成资源的引用
type Asset struct {
	URL           string
	RevisedPrompt string
}

// Result 规范化结果。Text、Assets、Audio 三者按模态只填其一。
type Result struct {
	Modality   Modality
	Convention Convention

	Text   string
	Assets []Asset
	// Audio 后端内联返回或按 URL 下载得到的音频
	Audio []byte

	Elapsed time.Duration
}
