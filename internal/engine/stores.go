package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrProfileNotFound 认证通过但档案缺失
var ErrProfileNotFound = errors.New("用户档案不存在")

// Profile 用户档案
type Profile struct {
	ID                     uuid.UUID
	Email                  string
	Name                   string
	HasCompletedOnboarding bool
	RequiresPasswordChange bool
}

// Membership 用户在某租户的成员关系（仅加载is_active的记录）
type Membership struct {
	TenantID   uuid.UUID
	TenantName string
	Role       Role
}

// LocationInfo 门店信息
type LocationInfo struct {
	ID        uuid.UUID
	Name      string
	IsDefault bool
}

// TenantInfo 租户订阅信息（试用门禁的输入）
type TenantInfo struct {
	ID                 uuid.UUID
	Name               string
	Currency           string
	SubscriptionStatus string
	TrialEndsAt        *time.Time
}

// ProfileStore 档案与成员关系读取；CreateProfile用于一次性的档案自愈
type ProfileStore interface {
	Profile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	CreateProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Memberships(ctx context.Context, userID uuid.UUID) ([]Membership, error)
}

// TenantStore 租户订阅信息读取
type TenantStore interface {
	TenantInfo(ctx context.Context, tenantID uuid.UUID) (*TenantInfo, error)
}

// AssignmentStore 门店与排班读取
type AssignmentStore interface {
	AssignedLocationIDs(ctx context.Context, userID, tenantID uuid.UUID) ([]uuid.UUID, error)
	TenantLocations(ctx context.Context, tenantID uuid.UUID) ([]LocationInfo, error)
}

// RuleStore 权限规则读取（按租户加载，租户切换后必须重新加载）
type RuleStore interface {
	RolePermissions(ctx context.Context, tenantID uuid.UUID, role Role) (map[Module]bool, error)
	UserOverrides(ctx context.Context, tenantID, userID uuid.UUID) (map[Module]bool, error)
}

// ContextStore 上下文偏好的本地存储
// 键空间等价于 "activeContext:<tenantID>" 与 "currentTenantId"，登出时整体清除
type ContextStore interface {
	LoadContext(ctx context.Context, userID, tenantID uuid.UUID) (*ActiveContext, error)
	SaveContext(ctx context.Context, userID, tenantID uuid.UUID, ac ActiveContext) error
	CurrentTenant(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	SetCurrentTenant(ctx context.Context, userID, tenantID uuid.UUID) error
	ClearAll(ctx context.Context, userID uuid.UUID) error
}

// ContextMirror 上下文的服务端镜像（跨设备一致性），尽力而为
type ContextMirror interface {
	PushContext(ctx context.Context, userID, tenantID uuid.UUID, ac ActiveContext) error
	DefaultContext(ctx context.Context, userID, tenantID uuid.UUID) (*ActiveContext, error)
}

// RouteResolver 服务端权威落地路由排序；不可用时引擎回退到上下文类型默认值
type RouteResolver interface {
	RankedRoutes(ctx context.Context, tenantID, userID uuid.UUID, contextType ContextType, locationID uuid.UUID) ([]string, error)
}

// AuditEntry 审计记录
type AuditEntry struct {
	TenantID   uuid.UUID
	Action     string
	EntityType string
	EntityID   uuid.UUID
	Metadata   map[string]interface{}
}

// AuditSink 审计落库，由服务层实现
type AuditSink interface {
	Write(ctx context.Context, entry AuditEntry) error
}
