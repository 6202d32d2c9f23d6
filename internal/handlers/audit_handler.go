package handlers

import (
	"salonhub/internal/services"
	"salonhub/pkg/pagination"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// List 审计日志查询（分页）
func (h *AuditHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	action := c.Query("action")

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "user_id不是合法UUID")
			return
		}
		userID = &parsed
	}

	logs, total, err := h.auditService.GetWithFiltersAndPage(currentTenantID(c), action, userID, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "查询审计日志失败")
		return
	}

	response.SuccessWithPage(c, logs, params.Page, params.PageSize, total)
}
