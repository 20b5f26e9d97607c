package handlers

import (
	"net/http"

	"github.com/BaSui01/dashscope-router/api"
	"github.com/BaSui01/dashscope-router/gateway"
)

// ModelsHandler 模型列表处理器
type ModelsHandler struct {
	resp api.ModelListResponse
}

// NewModelsHandler 创建模型列表处理器。能力表只读，列表在构造时生成一次。
func NewModelsHandler(table *gateway.CapabilityTable) *ModelsHandler {
	models := table.Models()
	data := make([]api.Model, 0, len(models))
	for _, m := range models {
		data = append(data, api.Model{
			ID:      m.ID,
			Object:  "model",
			Created: 0,
			OwnedBy: m.OwnedBy,
		})
	}
	return &ModelsHandler{resp: api.ModelListResponse{Object: "list", Data: data}}
}

// HandleList 处理 GET /v1/models
// @Summary 模型列表
// @Description 列出后端模型与对外别名
// @Tags 模型
// @Produce json
// @Success 200 {object} api.ModelListResponse
// @Router /v1/models [get]
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.resp)
}
