package handlers

import (
	"salonhub/internal/services"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RuleHandler struct {
	ruleService *services.RuleService
}

func NewRuleHandler(ruleService *services.RuleService) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
	}
}

// ListRolePermissions 租户角色规则（可按角色过滤）
func (h *RuleHandler) ListRolePermissions(c *gin.Context) {
	rules, err := h.ruleService.ListRolePermissions(currentTenantID(c), c.Query("role"))
	if err != nil {
		response.ServerError(c, "查询权限规则失败")
		return
	}
	response.Success(c, rules)
}

type SetRolePermissionRequest struct {
	Role    string `json:"role" binding:"required,salonrole"`
	Module  string `json:"module" binding:"required,salonmodule"`
	Allowed *bool  `json:"allowed" binding:"required"`
}

// SetRolePermission 定制角色规则
func (h *RuleHandler) SetRolePermission(c *gin.Context) {
	var req SetRolePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.ruleService.SetRolePermission(currentTenantID(c), req.Role, req.Module, *req.Allowed, currentUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "规则已更新", nil)
}

// ListUserOverrides 用户例外列表
func (h *RuleHandler) ListUserOverrides(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		response.BadRequest(c, "用户ID不是合法UUID")
		return
	}

	overrides, err := h.ruleService.ListUserOverrides(currentTenantID(c), userID)
	if err != nil {
		response.ServerError(c, "查询用户例外失败")
		return
	}
	response.Success(c, overrides)
}

type SetUserOverrideRequest struct {
	UserID  uuid.UUID `json:"user_id" binding:"required"`
	Module  string    `json:"module" binding:"required,salonmodule"`
	Allowed *bool     `json:"allowed" binding:"required"`
}

// SetUserOverride 设置用户例外
func (h *RuleHandler) SetUserOverride(c *gin.Context) {
	var req SetUserOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.ruleService.SetUserOverride(currentTenantID(c), req.UserID, req.Module, *req.Allowed, currentUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	refreshUserSession(req.UserID)
	response.SuccessWithMessage(c, "例外已设置", nil)
}

type RemoveUserOverrideRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Module string    `json:"module" binding:"required"`
}

// RemoveUserOverride 移除用户例外
func (h *RuleHandler) RemoveUserOverride(c *gin.Context) {
	var req RemoveUserOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.ruleService.RemoveUserOverride(currentTenantID(c), req.UserID, req.Module, currentUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	refreshUserSession(req.UserID)
	response.SuccessWithMessage(c, "例外已移除", nil)
}
