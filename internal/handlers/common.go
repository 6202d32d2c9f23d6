package handlers

import (
	"context"
	"time"

	"salonhub/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// currentTenantID 当前操作的租户（由认证中间件写入）
func currentTenantID(c *gin.Context) uuid.UUID {
	return c.MustGet("current_tenant_id").(uuid.UUID)
}

// currentUserID 当前用户（由认证中间件写入）
func currentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet("user_id").(uuid.UUID)
}

// parseIDParam 解析路径中的UUID参数
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// refreshUserSession 管理操作改动他人权限/排班后，尽力刷新对方在线会话
func refreshUserSession(userID uuid.UUID) {
	if session, ok := services.GetSessionRegistry().Peek(userID); ok {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = session.Refresh(ctx)
		}()
	}
}
