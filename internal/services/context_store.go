package services

import (
	"context"
	"errors"
	"fmt"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"
	"salonhub/pkg/cache"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContextService 活动上下文的双层存储
// Redis承担本地持久化（键空间按用户隔离，登出整体清除）；
// Postgres的user_contexts表是服务端镜像，跨设备读取时作为默认值。
type ContextService struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

func NewContextService() *ContextService {
	return &ContextService{
		db:    database.GetDB(),
		cache: database.GetRedisCache(),
	}
}

func contextKey(userID, tenantID uuid.UUID) string {
	return fmt.Sprintf("ctx:%s:activeContext:%s", userID, tenantID)
}

func currentTenantKey(userID uuid.UUID) string {
	return fmt.Sprintf("ctx:%s:currentTenantId", userID)
}

// ========== 本地存储 ==========

// LoadContext 读取已存上下文偏好，缺失返回nil
func (s *ContextService) LoadContext(ctx context.Context, userID, tenantID uuid.UUID) (*engine.ActiveContext, error) {
	var ac engine.ActiveContext
	err := s.cache.GetJSON(ctx, contextKey(userID, tenantID), &ac)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// SaveContext 写入上下文偏好（不过期，登出时清除）
func (s *ContextService) SaveContext(ctx context.Context, userID, tenantID uuid.UUID, ac engine.ActiveContext) error {
	return s.cache.SetJSON(ctx, contextKey(userID, tenantID), ac, 0)
}

// CurrentTenant 最近使用的租户，缺失返回零值
func (s *ContextService) CurrentTenant(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.cache.GetJSON(ctx, currentTenantKey(userID), &id)
	if errors.Is(err, cache.ErrMiss) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// SetCurrentTenant 记录最近使用的租户
func (s *ContextService) SetCurrentTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	return s.cache.SetJSON(ctx, currentTenantKey(userID), tenantID, 0)
}

// ClearAll 清除用户的全部本地会话状态（登出/强制登出）
func (s *ContextService) ClearAll(ctx context.Context, userID uuid.UUID) error {
	return s.cache.DeleteByPattern(ctx, fmt.Sprintf("ctx:%s:*", userID))
}

// ========== 服务端镜像 ==========

// PushContext 尽力同步偏好到服务端镜像
func (s *ContextService) PushContext(ctx context.Context, userID, tenantID uuid.UUID, ac engine.ActiveContext) error {
	var locationID *uuid.UUID
	if ac.Type == engine.ContextLocation {
		id := ac.LocationID
		locationID = &id
	}

	var row models.UserContext
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.UserContext{
			UserID:      userID,
			TenantID:    tenantID,
			ContextType: string(ac.Type),
			LocationID:  locationID,
		}
		return s.db.WithContext(ctx).Create(&row).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&row).Updates(map[string]interface{}{
		"context_type": string(ac.Type),
		"location_id":  locationID,
	}).Error
}

// DefaultContext 服务端镜像中的默认上下文，缺失返回nil
func (s *ContextService) DefaultContext(ctx context.Context, userID, tenantID uuid.UUID) (*engine.ActiveContext, error) {
	var row models.UserContext
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ac := &engine.ActiveContext{Type: engine.ContextType(row.ContextType)}
	if row.LocationID != nil {
		ac.LocationID = *row.LocationID
	}
	return ac, nil
}
