package handlers

import (
	"time"

	"salonhub/internal/services"
	"salonhub/pkg/pagination"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	tenantService *services.TenantService
}

func NewTenantHandler(tenantService *services.TenantService) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
	}
}

type CreateTenantRequest struct {
	Name     string `json:"name" binding:"required"`
	Code     string `json:"code" binding:"required"`
	PlanTier string `json:"plan_tier"`
}

// Create 开通租户（开通人自动成为owner，种子化默认权限矩阵）
func (h *TenantHandler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	tenant, err := h.tenantService.Create(req.Name, req.Code, req.PlanTier, currentUserID(c))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 新租户立即可用：刷新开通人的会话
	refreshUserSession(currentUserID(c))
	response.Success(c, tenant)
}

// Get 租户详情
func (h *TenantHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "租户ID不是合法UUID")
		return
	}

	tenant, err := h.tenantService.GetByID(id)
	if err != nil {
		response.NotFound(c, "租户不存在")
		return
	}
	response.Success(c, tenant)
}

// List 租户列表（分页）
func (h *TenantHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	status := c.Query("status")
	keyword := c.Query("keyword")

	tenants, total, err := h.tenantService.GetWithFiltersAndPage(status, keyword, params.Page, params.PageSize)
	if err != nil {
		response.ServerError(c, "查询租户失败")
		return
	}

	response.SuccessWithPage(c, tenants, params.Page, params.PageSize, total)
}

type UpdateTenantRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	PlanTier string `json:"plan_tier"`
}

// Update 更新租户基础信息
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "租户ID不是合法UUID")
		return
	}

	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	tenant, err := h.tenantService.Update(id, req.Name, req.Currency, req.PlanTier)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, tenant)
}

type UpdateSubscriptionRequest struct {
	Status      string     `json:"status" binding:"required"`
	TrialEndsAt *time.Time `json:"trial_ends_at"`
}

// UpdateSubscription 更新订阅状态
func (h *TenantHandler) UpdateSubscription(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.BadRequest(c, "租户ID不是合法UUID")
		return
	}

	var req UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	tenant, err := h.tenantService.UpdateSubscription(id, req.Status, req.TrialEndsAt)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, tenant)
}

// Stats 租户统计
func (h *TenantHandler) Stats(c *gin.Context) {
	stats, err := h.tenantService.GetStats()
	if err != nil {
		response.ServerError(c, "查询统计失败")
		return
	}
	response.Success(c, stats)
}
