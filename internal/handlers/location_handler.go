package handlers

import (
	"salonhub/internal/services"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LocationHandler struct {
	locationService *services.LocationService
}

func NewLocationHandler(locationService *services.LocationService) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
	}
}

type CreateLocationRequest struct {
	Name      string `json:"name" binding:"required"`
	IsDefault bool   `json:"is_default"`
}

// Create 创建门店
func (h *LocationHandler) Create(c *gin.Context) {
	var req CreateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	location, err := h.locationService.Create(currentTenantID(c), req.Name, req.IsDefault)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, location)
}

// Get 门店详情
func (h *LocationHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "门店ID不是合法UUID")
		return
	}

	location, err := h.locationService.GetByID(currentTenantID(c), id)
	if err != nil {
		response.NotFound(c, "门店不存在")
		return
	}
	response.Success(c, location)
}

// List 当前租户的门店列表
func (h *LocationHandler) List(c *gin.Context) {
	locations, err := h.locationService.ListByTenant(currentTenantID(c), c.Query("status"))
	if err != nil {
		response.ServerError(c, "查询门店失败")
		return
	}
	response.Success(c, locations)
}

type UpdateLocationRequest struct {
	Name      string `json:"name"`
	IsDefault *bool  `json:"is_default"`
}

// Update 更新门店
func (h *LocationHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "门店ID不是合法UUID")
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	location, err := h.locationService.Update(currentTenantID(c), id, req.Name, req.IsDefault)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, location)
}

// Deactivate 停用门店
func (h *LocationHandler) Deactivate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "门店ID不是合法UUID")
		return
	}

	if err := h.locationService.Deactivate(currentTenantID(c), id); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "门店已停用", nil)
}

type AssignStaffRequest struct {
	UserID      uuid.UUID   `json:"user_id" binding:"required"`
	LocationIDs []uuid.UUID `json:"location_ids"`
}

// AssignStaff 整体替换员工的排班门店
func (h *LocationHandler) AssignStaff(c *gin.Context) {
	var req AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.locationService.AssignStaff(currentTenantID(c), req.UserID, req.LocationIDs, currentUserID(c)); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 排班变更影响对方的上下文与可见范围
	refreshUserSession(req.UserID)
	response.SuccessWithMessage(c, "排班已更新", nil)
}
