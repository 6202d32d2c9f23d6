package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog 审计日志（登录、上下文切换、权限相关变更）
type AuditLog struct {
	BaseModel
	TenantID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	Action     string         `gorm:"not null;size:50;index" json:"action"`      // 如 auth.login, context.switch
	EntityType string         `gorm:"not null;size:50" json:"entity_type"`       // 如 user, location, role_assignment
	EntityID   uuid.UUID      `gorm:"type:uuid;not null" json:"entity_id"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
}

// TableName 表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// 审计动作常量
const (
	AuditActionLogin              = "auth.login"
	AuditActionContextSwitch      = "context.switch"
	AuditActionRoleChange         = "role.change"
	AuditActionLocationReassign   = "location.reassign"
	AuditActionPermissionOverride = "permission.override"
	AuditActionRuleChange         = "permission.rule_change"
)
