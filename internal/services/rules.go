package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"
	"salonhub/pkg/cache"
	"salonhub/pkg/config"
	"salonhub/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleService 租户权限规则管理
// 规则集走短TTL缓存，写操作同步失效对应键
type RuleService struct {
	db    *gorm.DB
	cache *cache.RedisCache
	ttl   time.Duration
	audit *engine.Emitter
}

func NewRuleService() *RuleService {
	cfg := config.GetConfig()
	return &RuleService{
		db:    database.GetDB(),
		cache: database.GetRedisCache(),
		ttl:   time.Duration(cfg.Redis.CacheTTL) * time.Second,
		audit: engine.NewEmitter(NewAuditService(), logger.GetLogger()),
	}
}

// seedDefaultRolePermissions 把内置默认矩阵写入为新租户的规则种子
func seedDefaultRolePermissions(tx *gorm.DB, tenantID uuid.UUID) error {
	for _, module := range engine.Catalog() {
		for _, role := range engine.AllRoles() {
			// owner不受规则限制，不落库
			if role == engine.RoleOwner {
				continue
			}
			allowed, _ := engine.DefaultAllowed(role, module)
			rule := &models.RolePermission{
				TenantID: tenantID,
				Role:     string(role),
				Module:   string(module),
				Allowed:  allowed,
			}
			if err := tx.Create(rule).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// SetRolePermission 定制租户级角色规则
func (s *RuleService) SetRolePermission(tenantID uuid.UUID, role, module string, allowed bool, actorID uuid.UUID) error {
	r := engine.Role(role)
	if !r.Valid() {
		return fmt.Errorf("无效的角色: %s", role)
	}
	if r == engine.RoleOwner {
		return fmt.Errorf("owner权限不可配置")
	}
	if !moduleInCatalog(module) {
		return fmt.Errorf("未知的模块: %s", module)
	}

	var rule models.RolePermission
	err := s.db.Where("tenant_id = ? AND role = ? AND module = ?", tenantID, role, module).
		First(&rule).Error
	if err == gorm.ErrRecordNotFound {
		rule = models.RolePermission{
			TenantID: tenantID,
			Role:     role,
			Module:   module,
			Allowed:  allowed,
		}
		err = s.db.Create(&rule).Error
	} else if err == nil {
		err = s.db.Model(&rule).Update("allowed", allowed).Error
	}
	if err != nil {
		return err
	}

	s.invalidateRole(tenantID, role)
	s.audit.Log(tenantID, models.AuditActionRuleChange, "role_permission", rule.ID.String(), map[string]interface{}{
		"actor_id": actorID.String(),
		"role":     role,
		"module":   module,
		"allowed":  allowed,
	})
	return nil
}

// SetUserOverride 设置用户级权限例外
func (s *RuleService) SetUserOverride(tenantID, userID uuid.UUID, module string, allowed bool, actorID uuid.UUID) error {
	if !moduleInCatalog(module) {
		return fmt.Errorf("未知的模块: %s", module)
	}

	var override models.UserPermissionOverride
	err := s.db.Where("tenant_id = ? AND user_id = ? AND module = ?", tenantID, userID, module).
		First(&override).Error
	if err == gorm.ErrRecordNotFound {
		override = models.UserPermissionOverride{
			TenantID: tenantID,
			UserID:   userID,
			Module:   module,
			Allowed:  allowed,
		}
		err = s.db.Create(&override).Error
	} else if err == nil {
		err = s.db.Model(&override).Update("allowed", allowed).Error
	}
	if err != nil {
		return err
	}

	s.invalidateUser(tenantID, userID)
	s.audit.Log(tenantID, models.AuditActionPermissionOverride, "user_permission_override", override.ID.String(), map[string]interface{}{
		"actor_id": actorID.String(),
		"user_id":  userID.String(),
		"module":   module,
		"allowed":  allowed,
	})
	return nil
}

// RemoveUserOverride 移除用户级例外，回落到角色规则
func (s *RuleService) RemoveUserOverride(tenantID, userID uuid.UUID, module string, actorID uuid.UUID) error {
	var override models.UserPermissionOverride
	if err := s.db.Where("tenant_id = ? AND user_id = ? AND module = ?", tenantID, userID, module).
		First(&override).Error; err != nil {
		return err
	}
	if err := s.db.Delete(&override).Error; err != nil {
		return err
	}

	s.invalidateUser(tenantID, userID)
	s.audit.Log(tenantID, models.AuditActionPermissionOverride, "user_permission_override", override.ID.String(), map[string]interface{}{
		"actor_id": actorID.String(),
		"user_id":  userID.String(),
		"module":   module,
		"removed":  true,
	})
	return nil
}

// ListRolePermissions 租户的角色规则（按角色分组的全量视图）
func (s *RuleService) ListRolePermissions(tenantID uuid.UUID, role string) ([]*models.RolePermission, error) {
	var rules []*models.RolePermission
	query := s.db.Where("tenant_id = ?", tenantID)
	if role != "" {
		query = query.Where("role = ?", role)
	}
	err := query.Order("role ASC, module ASC").Find(&rules).Error
	return rules, err
}

// ListUserOverrides 用户的例外列表
func (s *RuleService) ListUserOverrides(tenantID, userID uuid.UUID) ([]*models.UserPermissionOverride, error) {
	var overrides []*models.UserPermissionOverride
	err := s.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("module ASC").Find(&overrides).Error
	return overrides, err
}

// ========== 会话解析接口实现 ==========

// RolePermissions 角色规则集（短TTL缓存）
func (s *RuleService) RolePermissions(ctx context.Context, tenantID uuid.UUID, role engine.Role) (map[engine.Module]bool, error) {
	cacheKey := fmt.Sprintf("rules:%s:%s", tenantID, role)

	var cached map[engine.Module]bool
	if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.GetLogger().Warnf("读取规则缓存失败: %v", err)
	}

	var rules []models.RolePermission
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND role = ?", tenantID, string(role)).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}

	result := make(map[engine.Module]bool, len(rules))
	for _, rule := range rules {
		result[engine.Module(rule.Module)] = rule.Allowed
	}

	if err := s.cache.SetJSON(ctx, cacheKey, result, s.ttl); err != nil {
		logger.GetLogger().Warnf("写入规则缓存失败: %v", err)
	}
	return result, nil
}

// UserOverrides 用户例外集（短TTL缓存）
func (s *RuleService) UserOverrides(ctx context.Context, tenantID, userID uuid.UUID) (map[engine.Module]bool, error) {
	cacheKey := fmt.Sprintf("ovr:%s:%s", tenantID, userID)

	var cached map[engine.Module]bool
	if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.GetLogger().Warnf("读取例外缓存失败: %v", err)
	}

	var overrides []models.UserPermissionOverride
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}

	result := make(map[engine.Module]bool, len(overrides))
	for _, override := range overrides {
		result[engine.Module(override.Module)] = override.Allowed
	}

	if err := s.cache.SetJSON(ctx, cacheKey, result, s.ttl); err != nil {
		logger.GetLogger().Warnf("写入例外缓存失败: %v", err)
	}
	return result, nil
}

// ========== 缓存失效 ==========

func (s *RuleService) invalidateRole(tenantID uuid.UUID, role string) {
	ctx := context.Background()
	if err := s.cache.Delete(ctx, fmt.Sprintf("rules:%s:%s", tenantID, role)); err != nil {
		logger.GetLogger().Warnf("失效规则缓存失败: %v", err)
	}
}

func (s *RuleService) invalidateUser(tenantID, userID uuid.UUID) {
	ctx := context.Background()
	if err := s.cache.Delete(ctx, fmt.Sprintf("ovr:%s:%s", tenantID, userID)); err != nil {
		logger.GetLogger().Warnf("失效例外缓存失败: %v", err)
	}
}

func moduleInCatalog(module string) bool {
	for _, m := range engine.Catalog() {
		if string(m) == module {
			return true
		}
	}
	return false
}
