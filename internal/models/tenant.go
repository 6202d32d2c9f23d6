package models

import "time"

// Tenant 租户（沙龙组织）模型 - 贫血模型，只包含数据结构
type Tenant struct {
	BaseModel
	Name               string     `json:"name" gorm:"not null;size:100"`
	Code               string     `json:"code" gorm:"unique;not null;size:50;index"`
	Currency           string     `json:"currency" gorm:"not null;size:3;default:'EUR'"`
	PlanTier           string     `json:"plan_tier" gorm:"size:20;default:'basic'"`
	Status             string     `json:"status" gorm:"default:'active';size:20"`
	SubscriptionStatus string     `json:"subscription_status" gorm:"size:20;default:'trialing'"`
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// 订阅状态常量
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// 套餐常量
const (
	PlanTierBasic   = "basic"
	PlanTierPro     = "pro"
	PlanTierPremium = "premium"
)
