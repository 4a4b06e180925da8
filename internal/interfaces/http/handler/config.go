package handler

import (
	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
)

// ConfigHandler serves the settings the browser needs before login.
type ConfigHandler struct {
	BaseHandler
	config appsettlement.ClientConfig
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(config appsettlement.ClientConfig) *ConfigHandler {
	return &ConfigHandler{config: config}
}

// GetConfig godoc
// @Summary      Client configuration
// @Description  Portal base URL and whether allocations may be edited
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[appsettlement.ClientConfig]
// @Router       /api/config [get]
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	h.Success(c, h.config)
}
