package handlers

import (
	"salonhub/internal/services"
	"salonhub/pkg/pagination"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserHandler struct {
	userService       *services.UserService
	membershipService *services.MembershipService
}

func NewUserHandler(userService *services.UserService, membershipService *services.MembershipService) *UserHandler {
	return &UserHandler{
		userService:       userService,
		membershipService: membershipService,
	}
}

type CreateUserRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Name     string  `json:"name" binding:"required"`
	Password string  `json:"password" binding:"required,min=8"`
	Phone    *string `json:"phone"`
	Role     string  `json:"role" binding:"required,salonrole"`
}

// Create 在当前租户内创建员工并分配角色
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Create(req.Email, req.Email, req.Name, req.Password, req.Phone)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if _, err := h.membershipService.AssignRole(currentTenantID(c), user.ID, req.Role, currentUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, user)
}

// Get 用户详情
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "用户ID不是合法UUID")
		return
	}

	user, err := h.userService.GetByID(id)
	if err != nil {
		response.NotFound(c, "用户不存在")
		return
	}
	response.Success(c, user)
}

// List 用户列表（分页）
func (h *UserHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	status := c.Query("status")
	keyword := c.Query("keyword")

	users, total, err := h.userService.GetWithFiltersAndPage(status, keyword, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "查询用户失败")
		return
	}
	response.SuccessWithPage(c, users, params.Page, params.PageSize, total)
}

type UpdateUserRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

// Update 更新用户资料
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "用户ID不是合法UUID")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Update(id, req.Name, req.Phone)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, user)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 启用/停用/锁定用户
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "用户ID不是合法UUID")
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.userService.UpdateStatus(id, req.Status); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 停用的用户不应继续持有已解析会话
	services.GetSessionRegistry().Drop(id)
	response.SuccessWithMessage(c, "状态已更新", nil)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword 修改自己的密码
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.userService.ChangePassword(currentUserID(c), req.OldPassword, req.NewPassword); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "密码已修改", nil)
}

// CompleteOnboarding 标记完成引导
func (h *UserHandler) CompleteOnboarding(c *gin.Context) {
	if err := h.userService.CompleteOnboarding(currentUserID(c)); err != nil {
		response.ServerError(c, "操作失败")
		return
	}
	response.SuccessWithMessage(c, "已完成引导", nil)
}

// ========== 成员管理 ==========

type AssignRoleRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role" binding:"required,salonrole"`
}

// AssignRole 设置成员角色
func (h *UserHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	assignment, err := h.membershipService.AssignRole(currentTenantID(c), req.UserID, req.Role, currentUserID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 对方在线时立即重建其会话
	refreshUserSession(req.UserID)
	response.Success(c, assignment)
}

// RevokeRole 停用成员
func (h *UserHandler) RevokeRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "用户ID不是合法UUID")
		return
	}

	if err := h.membershipService.RevokeRole(currentTenantID(c), id, currentUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	refreshUserSession(id)
	response.SuccessWithMessage(c, "成员已停用", nil)
}

// ListMembers 租户成员列表（分页）
func (h *UserHandler) ListMembers(c *gin.Context) {
	params := pagination.Parse(c)
	role := c.Query("role")

	members, total, err := h.membershipService.ListByTenantWithPage(currentTenantID(c), role, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "查询成员失败")
		return
	}

	response.SuccessWithPage(c, members, params.Page, params.PageSize, total)
}
