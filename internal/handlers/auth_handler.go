package handlers

import (
	"time"

	"salonhub/internal/engine"
	"salonhub/internal/middleware"
	"salonhub/internal/models"
	"salonhub/internal/services"
	"salonhub/pkg/jwt"
	"salonhub/pkg/logger"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthHandler struct {
	userService *services.UserService
	registry    *services.SessionRegistry
	jwtManager  *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		registry:    services.GetSessionRegistry(),
		jwtManager:  jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt int64           `json:"expires_at"`
	Session   engine.Snapshot `json:"session"`
}

// Login 用户登录：验证凭据后完整解析会话（租户、上下文、权限）
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	user, err := h.userService.GetByEmail(req.Email)
	if err != nil {
		response.Unauthorized(c, "邮箱或密码错误")
		return
	}
	if user.Status != models.UserStatusActive {
		response.Unauthorized(c, "用户已被禁用")
		return
	}
	if !user.CheckPassword(req.Password) {
		response.Unauthorized(c, "邮箱或密码错误")
		return
	}

	// 会话解析：authenticating → resolved，失败即强制登出
	session := h.registry.Get(user.ID)
	snap, err := session.Authenticate(c.Request.Context(), user.ID)
	if err != nil {
		response.ServerError(c, "会话解析失败，请稍后重试")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, snap.TenantID, user.Email, string(snap.Role))
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	// 更新最后登录时间，失败不影响登录流程
	if err := h.userService.RecordLogin(user.ID); err != nil {
		logger.GetLogger().Warnf("更新最后登录时间失败: %v", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":    user.ID,
		"tenant_id":  snap.TenantID,
		"ip":         c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
	}).Info("用户登录成功")

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		Session:   snap,
	})
}

// Logout 登出：清除本地会话状态并释放会话
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	if session := middleware.GetSession(c); session != nil {
		session.SignOut(c.Request.Context())
	}
	h.registry.Drop(userID)

	response.SuccessWithMessage(c, "已登出", nil)
}

// Refresh 刷新Token
func (h *AuthHandler) Refresh(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) <= 7 {
		response.Unauthorized(c, "认证头格式错误")
		return
	}

	token, err := h.jwtManager.RefreshToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return
	}

	response.Success(c, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
	})
}

// Me 当前会话快照
func (h *AuthHandler) Me(c *gin.Context) {
	session := middleware.GetSession(c)
	if session == nil {
		response.Unauthorized(c, "请先登录")
		return
	}
	response.Success(c, session.Snapshot())
}
