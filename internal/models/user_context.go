package models

import (
	"github.com/google/uuid"
)

// UserContext 活动上下文的服务端镜像（跨设备一致性）
// 本地偏好写入后尽力同步到这里；读取时作为服务端默认值参与上下文解析
type UserContext struct {
	BaseModel
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_tenant_ctx" json:"user_id"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_tenant_ctx" json:"tenant_id"`
	ContextType string     `gorm:"not null;size:20" json:"context_type"` // owner_hub 或 location
	LocationID  *uuid.UUID `gorm:"type:uuid" json:"location_id"`
}

// TableName 表名
func (UserContext) TableName() string {
	return "user_contexts"
}
