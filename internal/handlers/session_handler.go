package handlers

import (
	"time"

	"salonhub/internal/engine"
	"salonhub/internal/middleware"
	"salonhub/pkg/jwt"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler 会话操作：租户切换、上下文切换、落地路由
type SessionHandler struct {
	jwtManager *jwt.JWTManager
}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{
		jwtManager: jwt.GetJWTManager(),
	}
}

// Snapshot 当前会话快照
func (h *SessionHandler) Snapshot(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}
	response.Success(c, session.Snapshot())
}

type SwitchTenantRequest struct {
	TenantID uuid.UUID `json:"tenant_id" binding:"required"`
}

// SwitchTenant 切换当前租户并重签Token
// 切换期间保留旧快照，解析完成后一次性替换
func (h *SessionHandler) SwitchTenant(c *gin.Context) {
	var req SwitchTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	snap, err := session.SwitchTenant(c.Request.Context(), req.TenantID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 新租户的角色写入Token
	token, err := h.jwtManager.GenerateToken(snap.UserID, snap.TenantID, snap.Email, string(snap.Role))
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		"session":    snap,
	})
}

type SwitchContextRequest struct {
	Type       string    `json:"type" binding:"required"`
	LocationID uuid.UUID `json:"location_id"`
}

// SwitchContext 切换活动上下文
func (h *SessionHandler) SwitchContext(c *gin.Context) {
	var req SwitchContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	target := engine.ActiveContext{
		Type:       engine.ContextType(req.Type),
		LocationID: req.LocationID,
	}
	snap, err := session.SwitchContext(c.Request.Context(), target)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, snap)
}

// FirstRoute 计算用户可落地的第一个路由
func (h *SessionHandler) FirstRoute(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	contextType := engine.ContextType(c.Query("context_type"))
	var locationID uuid.UUID
	if raw := c.Query("location_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "location_id不是合法UUID")
			return
		}
		locationID = parsed
	}

	route := session.FirstAllowedRoute(c.Request.Context(), contextType, locationID)
	response.Success(c, gin.H{"route": route})
}

// Permissions 当前租户内的模块权限快照
func (h *SessionHandler) Permissions(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	snap := session.Snapshot()
	response.Success(c, gin.H{
		"tenant_id":   snap.TenantID,
		"role":        snap.Role,
		"permissions": snap.Permissions,
	})
}

// Refresh 重新解析当前租户（角色/排班变更后前端主动调用）
func (h *SessionHandler) Refresh(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	snap, err := session.Refresh(c.Request.Context())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, snap)
}
