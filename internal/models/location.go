package models

import (
	"github.com/google/uuid"
)

// Location 门店模型
type Location struct {
	BaseModel
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name      string    `gorm:"not null;size:100" json:"name"`
	IsDefault bool      `gorm:"default:false" json:"is_default"`
	Status    string    `gorm:"default:'active';size:20" json:"status"`

	// 关联
	Tenant Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
}

// TableName 表名
func (Location) TableName() string {
	return "locations"
}

// 门店状态常量
const (
	LocationStatusActive   = "active"
	LocationStatusInactive = "inactive"
)

// StaffLocationAssignment 员工-门店排班关联表（非owner角色的可见范围）
type StaffLocationAssignment struct {
	BaseModel
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_staff_location" json:"user_id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	LocationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_staff_location" json:"location_id"`

	// 关联
	User     User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Location Location `gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE" json:"location,omitempty"`
}

// TableName 表名
func (StaffLocationAssignment) TableName() string {
	return "staff_location_assignments"
}
