package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tokengate/tokengate/internal/services"
	"github.com/tokengate/tokengate/pkg/response"
)

// AccessLogHandler lists gateway authorization history for the admin UI.
type AccessLogHandler struct {
	service *services.AccessLogService
}

func NewAccessLogHandler(service *services.AccessLogService) *AccessLogHandler {
	return &AccessLogHandler{service: service}
}

func (h *AccessLogHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	params := &services.AccessLogListParams{
		Page:     page,
		PageSize: pageSize,
		TokenID:  c.Query("token_id"),
		ClientIP: c.Query("client_ip"),
	}

	if blockedStr := c.Query("blocked"); blockedStr != "" {
		blocked := blockedStr == "true"
		params.Blocked = &blocked
	}

	entries, total, err := h.service.List(params)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
		"items":     entries,
	})
}
