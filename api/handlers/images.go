package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/gateway"
)

// ImageHandler 处理文生图
type ImageHandler struct {
	normalizer *gateway.Normalizer
	dispatcher *gateway.Dispatcher
	renderer   *gateway.Renderer
	defaultKey KeySource
	logger     *zap.Logger
}

// NewImageHandler 创建文生图处理器
func NewImageHandler(n *gateway.Normalizer, d *gateway.Dispatcher, r *gateway.Renderer, defaultKey KeySource, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		normalizer: n,
		dispatcher: d,
		renderer:   r,
		defaultKey: defaultKey,
		logger:     logger.With(zap.String("handler", "images")),
	}
}

// HandleGenerations 处理 POST /v1/images/generations
// @Summary 文生图
// @Description OpenAI 兼容的图像生成，按模型能力选择 DashScope 同步或异步接口
// @Tags 图像
// @Accept json
// @Produce json
// @Success 200 {object} api.ImageResponse
// @Failure 400 {object} types.ErrorEnvelope
// @Failure 401 {object} types.ErrorEnvelope
// @Failure 502 {object} types.ErrorEnvelope
// @Failure 503 {object} types.ErrorEnvelope
// @Router /v1/images/generations [post]
func (h *ImageHandler) HandleGenerations(w http.ResponseWriter, r *http.Request) {
	apiKey, err := gateway.ResolveAPIKey(r.Header.Get("Authorization"), h.defaultKey())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	req, err := h.normalizer.Image(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	h.logger.Info("image generation request",
		zap.String("model", req.PublicModel),
		zap.String("backend_model", req.BackendModel),
		zap.Int("n", req.N),
		zap.String("size", req.Size),
		zap.Int("prompt_length", len([]rune(req.Prompt))),
		zap.String("response_format", req.OutputFormat))

	res, err := h.dispatcher.GenerateImage(r.Context(), apiKey, req)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	payload, err := h.renderer.Images(r.Context(), req.OutputFormat, res)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WritePayload(w, payload)
}
