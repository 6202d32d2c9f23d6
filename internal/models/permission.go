package models

import (
	"github.com/google/uuid"
)

// RolePermission 租户级角色权限规则
// 租户对内置默认矩阵的定制；新租户开通时以默认矩阵为种子写入
type RolePermission struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_role_module" json:"tenant_id"`
	Role     string    `gorm:"not null;size:20;uniqueIndex:idx_tenant_role_module" json:"role"`
	Module   string    `gorm:"not null;size:50;uniqueIndex:idx_tenant_role_module" json:"module"`
	Allowed  bool      `gorm:"not null" json:"allowed"`
}

// TableName 表名
func (RolePermission) TableName() string {
	return "role_permissions"
}

// UserPermissionOverride 用户级权限例外
// 优先级高于角色规则；owner不受任何规则限制
type UserPermissionOverride struct {
	BaseModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_user_module" json:"tenant_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tenant_user_module" json:"user_id"`
	Module   string    `gorm:"not null;size:50;uniqueIndex:idx_tenant_user_module" json:"module"`
	Allowed  bool      `gorm:"not null" json:"allowed"`
}

// TableName 表名
func (UserPermissionOverride) TableName() string {
	return "user_permission_overrides"
}
