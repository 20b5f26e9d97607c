package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/gateway"
)

// =============================================================================
// 🎙️ 音频 Handler
// =============================================================================

// KeySource 返回当前配置的默认 API Key（可随配置热加载变化）
type KeySource func() string

// StaticKey 固定的默认 API Key
func StaticKey(key string) KeySource {
	return func() string { return key }
}

// AudioHandler 处理语音转写与语音合成
type AudioHandler struct {
	normalizer *gateway.Normalizer
	dispatcher *gateway.Dispatcher
	renderer   *gateway.Renderer
	defaultKey KeySource
	logger     *zap.Logger
}

// NewAudioHandler 创建音频处理器
func NewAudioHandler(n *gateway.Normalizer, d *gateway.Dispatcher, r *gateway.Renderer, defaultKey KeySource, logger *zap.Logger) *AudioHandler {
	return &AudioHandler{
		normalizer: n,
		dispatcher: d,
		renderer:   r,
		defaultKey: defaultKey,
		logger:     logger.With(zap.String("handler", "audio")),
	}
}

// HandleTranscriptions 处理 POST /v1/audio/transcriptions
// @Summary 语音转写
// @Description OpenAI 兼容的语音转写，后端为 Qwen ASR
// @Tags 音频
// @Accept multipart/form-data
// @Produce json,plain
// @Param file formData file true "音频文件"
// @Param model formData string false "模型名"
// @Param language formData string false "语言提示"
// @Param prompt formData string false "上下文提示"
// @Param response_format formData string false "json|text|verbose_json|srt|vtt"
// @Success 200 {object} api.TranscriptionResponse
// @Failure 400 {object} types.ErrorEnvelope
// @Failure 401 {object} types.ErrorEnvelope
// @Failure 502 {object} types.ErrorEnvelope
// @Router /v1/audio/transcriptions [post]
func (h *AudioHandler) HandleTranscriptions(w http.ResponseWriter, r *http.Request) {
	apiKey, err := gateway.ResolveAPIKey(r.Header.Get("Authorization"), h.defaultKey())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	req, err := h.normalizer.Transcription(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	h.logger.Info("transcription request",
		zap.String("model", req.PublicModel),
		zap.String("backend_model", req.BackendModel),
		zap.String("filename", req.Filename),
		zap.Int("size", len(req.Audio)),
		zap.String("mime", req.MIMEType),
		zap.String("language", req.Language),
		zap.String("response_format", req.OutputFormat))

	res, err := h.dispatcher.Transcribe(r.Context(), apiKey, req)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	payload, err := h.renderer.Transcription(req.OutputFormat, res)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WritePayload(w, payload)
}

// HandleSpeech 处理 POST /v1/audio/speech
// @Summary 语音合成
// @Description OpenAI 兼容的语音合成，后端为 Qwen TTS
// @Tags 音频
// @Accept json
// @Produce octet-stream
// @Success 200 {file} binary "音频数据"
// @Failure 400 {object} types.ErrorEnvelope
// @Failure 401 {object} types.ErrorEnvelope
// @Failure 502 {object} types.ErrorEnvelope
// @Router /v1/audio/speech [post]
func (h *AudioHandler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	apiKey, err := gateway.ResolveAPIKey(r.Header.Get("Authorization"), h.defaultKey())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	req, err := h.normalizer.Speech(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	h.logger.Info("speech request",
		zap.String("model", req.PublicModel),
		zap.String("backend_model", req.BackendModel),
		zap.String("voice", req.PublicVoice),
		zap.String("backend_voice", req.BackendVoice),
		zap.Int("text_length", len([]rune(req.Input))),
		zap.String("response_format", req.OutputFormat))

	res, err := h.dispatcher.Speak(r.Context(), apiKey, req)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WritePayload(w, h.renderer.Speech(req.OutputFormat, res))
}
