package dashscope

// =============================================================================
// 📦 多模态同步接口（multimodal-generation）
// =============================================================================

// Role 消息角色
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// ContentPart 响应消息内容片段
type ContentPart struct {
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
	Image string `json:"image,omitempty"`
}

// Message 响应消息
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// requestMessage 请求消息。每个片段恰好一个键，空文本也要保留 "text" 键
type requestMessage struct {
	Role    Role                `json:"role"`
	Content []map[string]string `json:"content"`
}

type multimodalInput struct {
	Messages []requestMessage `json:"messages,omitempty"`
	Text     string           `json:"text,omitempty"`
	Voice    string           `json:"voice,omitempty"`
}

type multimodalRequest struct {
	Model      string          `json:"model"`
	Input      multimodalInput `json:"input"`
	Parameters any             `json:"parameters,omitempty"`
}

type asrOptions struct {
	EnableITN bool   `json:"enable_itn"`
	Language  string `json:"language,omitempty"`
}

type asrParameters struct {
	ResultFormat string     `json:"result_format"`
	ASROptions   asrOptions `json:"asr_options"`
}

type imageSyncParameters struct {
	ResultFormat   string `json:"result_format"`
	Stream         bool   `json:"stream"`
	Watermark      bool   `json:"watermark"`
	PromptExtend   bool   `json:"prompt_extend"`
	NegativePrompt string `json:"negative_prompt"`
	Size           string `json:"size"`
	N              int    `json:"n"`
}

type multimodalChoice struct {
	FinishReason string  `json:"finish_reason"`
	Message      Message `json:"message"`
}

// AudioOutput TTS 音频输出，url 与 data 至少一个非空
type AudioOutput struct {
	URL       string `json:"url"`
	Data      string `json:"data"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type multimodalResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		Choices []multimodalChoice `json:"choices"`
		Audio   *AudioOutput       `json:"audio"`
	} `json:"output"`
}

// =============================================================================
// 🖼️ 异步文生图接口（image-synthesis + tasks）
// =============================================================================

// TaskStatus 异步任务状态
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
	TaskCanceled  TaskStatus = "CANCELED"
	TaskUnknown   TaskStatus = "UNKNOWN"
)

// Terminal 是否为终态
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskCanceled, TaskUnknown:
		return true
	default:
		return false
	}
}

type synthesisInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
}

type synthesisParameters struct {
	Size         string `json:"size"`
	N            int    `json:"n"`
	PromptExtend bool   `json:"prompt_extend"`
	Watermark    bool   `json:"watermark"`
}

type synthesisRequest struct {
	Model      string              `json:"model"`
	Input      synthesisInput      `json:"input"`
	Parameters synthesisParameters `json:"parameters"`
}

type taskResult struct {
	URL          string `json:"url"`
	ActualPrompt string `json:"actual_prompt"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

type taskResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		TaskID     string       `json:"task_id"`
		TaskStatus TaskStatus   `json:"task_status"`
		Results    []taskResult `json:"results"`
		Code       string       `json:"code"`
		Message    string       `json:"message"`
	} `json:"output"`
}

// =============================================================================
// 🎯 对外参数与结果
// =============================================================================

// TranscribeParams 语音识别参数
type TranscribeParams struct {
	Model string
	// AudioDataURI data:<mime>;base64,<payload>
	AudioDataURI string
	Language     string
	Prompt       string
}

// SpeechParams 语音合成参数
type SpeechParams struct {
	Model string
	Text  string
	Voice string
}

// ImageParams 文生图参数（同步与异步共用）
type ImageParams struct {
	Model          string
	Prompt         string
	NegativePrompt string
	Size           string
	N              int
	PromptExtend   bool
	Watermark      bool
}

// ImageResult 单张生成图片
type ImageResult struct {
	URL          string
	ActualPrompt string
}
