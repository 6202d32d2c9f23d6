package models

import (
	"github.com/google/uuid"
)

// RoleAssignment 用户-租户角色关联表
// 每个(用户,租户)对至多一条；停用（is_active=false）而非删除
type RoleAssignment struct {
	BaseModel
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_tenant_role" json:"user_id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_tenant_role" json:"tenant_id"`
	Role     string    `gorm:"not null;size:20" json:"role"` // owner/manager/supervisor/receptionist/staff
	IsActive bool      `gorm:"default:true" json:"is_active"`

	// 关联
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Tenant Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
}

// TableName 指定表名
func (RoleAssignment) TableName() string {
	return "role_assignments"
}
