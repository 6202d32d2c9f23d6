package middleware

import (
	"strings"

	"salonhub/internal/engine"
	"salonhub/internal/models"
	"salonhub/internal/services"
	"salonhub/pkg/jwt"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证与权限中间件
type AuthMiddleware struct {
	userService *services.UserService
	registry    *services.SessionRegistry
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{
		userService: services.NewUserService(),
		registry:    services.GetSessionRegistry(),
		jwtManager:  jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

// RequireLogin 验证JWT并挂载会话
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从Authorization头获取JWT token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		tokenString := authHeader[7:] // 去掉 "Bearer "

		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 获取用户信息
		user, err := m.userService.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}
		if user.Status != models.UserStatusActive {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		// 挂载会话；服务重启后会话丢失时按token重新解析
		session := m.registry.Get(claims.UserID)
		snap := session.Snapshot()
		if snap.State == engine.StateAnonymous {
			if snap, err = session.Authenticate(c.Request.Context(), claims.UserID); err != nil {
				response.Unauthorized(c, "会话解析失败，请重新登录")
				c.Abort()
				return
			}
		}

		c.Set("user", user)
		c.Set("user_id", claims.UserID)
		c.Set("current_tenant_id", claims.CurrentTenantID)
		c.Set("session", session)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequirePermission 要求当前租户内的模块权限
// 依次检查：试用硬门禁、待分配锁定、模块权限
func (m *AuthMiddleware) RequirePermission(module engine.Module) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetSession(c)
		if session == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		snap := session.Snapshot()

		// 试用宽限期结束后只放行计费页，owner需要能去付款
		if snap.Trial.ShouldBlockAccess && module != engine.ModuleBilling {
			response.TrialExpired(c, "试用期已结束，请升级订阅")
			c.Abort()
			return
		}

		// 待分配锁定：未排班的非owner只能看固定提示页
		if snap.AssignmentPending {
			response.AssignmentPending(c, "尚未分配门店，请联系管理员")
			c.Abort()
			return
		}

		if !session.HasPermission(module) {
			response.Forbidden(c, "权限不足：需要 "+string(module)+" 模块权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetSession 从gin上下文取会话
func GetSession(c *gin.Context) *engine.Session {
	value, exists := c.Get("session")
	if !exists {
		return nil
	}
	session, ok := value.(*engine.Session)
	if !ok {
		return nil
	}
	return session
}
