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

// LocationService 门店与员工排班管理
// 排班与门店列表走短TTL缓存，写操作同步失效对应键
type LocationService struct {
	db    *gorm.DB
	cache *cache.RedisCache
	ttl   time.Duration
	audit *engine.Emitter
}

func NewLocationService() *LocationService {
	cfg := config.GetConfig()
	return &LocationService{
		db:    database.GetDB(),
		cache: database.GetRedisCache(),
		ttl:   time.Duration(cfg.Redis.CacheTTL) * time.Second,
		audit: engine.NewEmitter(NewAuditService(), logger.GetLogger()),
	}
}

// Create 创建门店
func (s *LocationService) Create(tenantID uuid.UUID, name string, isDefault bool) (*models.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("门店名称不能为空")
	}

	location := &models.Location{
		TenantID:  tenantID,
		Name:      name,
		IsDefault: isDefault,
		Status:    models.LocationStatusActive,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 默认门店唯一
		if isDefault {
			if err := tx.Model(&models.Location{}).
				Where("tenant_id = ?", tenantID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(location).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTenant(tenantID)
	return location, nil
}

// GetByID 根据ID获取门店
func (s *LocationService) GetByID(tenantID, id uuid.UUID) (*models.Location, error) {
	var location models.Location
	err := s.db.Where("tenant_id = ?", tenantID).First(&location, "id = ?", id).Error
	return &location, err
}

// ListByTenant 租户门店列表
func (s *LocationService) ListByTenant(tenantID uuid.UUID, status string) ([]*models.Location, error) {
	var locations []*models.Location
	query := s.db.Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at ASC").Find(&locations).Error
	return locations, err
}

// Update 更新门店
func (s *LocationService) Update(tenantID, id uuid.UUID, name string, isDefault *bool) (*models.Location, error) {
	location, err := s.GetByID(tenantID, id)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if name != "" {
			updates["name"] = name
		}
		if isDefault != nil {
			if *isDefault {
				if err := tx.Model(&models.Location{}).
					Where("tenant_id = ? AND id <> ?", tenantID, id).
					Update("is_default", false).Error; err != nil {
					return err
				}
			}
			updates["is_default"] = *isDefault
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(location).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidateTenant(tenantID)
	return location, nil
}

// Deactivate 停用门店（停用而非删除，历史排班保留）
func (s *LocationService) Deactivate(tenantID, id uuid.UUID) error {
	location, err := s.GetByID(tenantID, id)
	if err != nil {
		return err
	}
	if location.IsDefault {
		return fmt.Errorf("默认门店不能停用")
	}
	if err := s.db.Model(location).Update("status", models.LocationStatusInactive).Error; err != nil {
		return err
	}

	s.invalidateTenant(tenantID)
	// 停用门店影响所有排班到该店的员工
	s.invalidateTenantAssignments(tenantID)
	return nil
}

// AssignStaff 整体替换员工的排班门店集合
func (s *LocationService) AssignStaff(tenantID, userID uuid.UUID, locationIDs []uuid.UUID, actorID uuid.UUID) error {
	// 校验门店都属于该租户且处于激活状态
	if len(locationIDs) > 0 {
		var count int64
		s.db.Model(&models.Location{}).
			Where("tenant_id = ? AND status = ? AND id IN ?", tenantID, models.LocationStatusActive, locationIDs).
			Count(&count)
		if count != int64(len(locationIDs)) {
			return fmt.Errorf("存在无效或已停用的门店")
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND tenant_id = ?", userID, tenantID).
			Delete(&models.StaffLocationAssignment{}).Error; err != nil {
			return err
		}
		for _, locationID := range locationIDs {
			assignment := &models.StaffLocationAssignment{
				UserID:     userID,
				TenantID:   tenantID,
				LocationID: locationID,
			}
			if err := tx.Create(assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateUser(tenantID, userID)
	s.audit.Log(tenantID, models.AuditActionLocationReassign, "user", userID.String(), map[string]interface{}{
		"actor_id":       actorID.String(),
		"location_count": len(locationIDs),
	})
	return nil
}

// ========== 会话解析接口实现 ==========

// AssignedLocationIDs 员工排班的门店ID集合（仅激活门店），短TTL缓存
func (s *LocationService) AssignedLocationIDs(ctx context.Context, userID, tenantID uuid.UUID) ([]uuid.UUID, error) {
	cacheKey := fmt.Sprintf("assign:%s:%s", tenantID, userID)

	var cached []uuid.UUID
	if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.GetLogger().Warnf("读取排班缓存失败: %v", err)
	}

	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Table("staff_location_assignments").
		Joins("JOIN locations ON locations.id = staff_location_assignments.location_id").
		Where("staff_location_assignments.user_id = ? AND staff_location_assignments.tenant_id = ? AND locations.status = ?",
			userID, tenantID, models.LocationStatusActive).
		Order("staff_location_assignments.created_at ASC").
		Pluck("staff_location_assignments.location_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	if err := s.cache.SetJSON(ctx, cacheKey, ids, s.ttl); err != nil {
		logger.GetLogger().Warnf("写入排班缓存失败: %v", err)
	}
	return ids, nil
}

// TenantLocations 租户激活门店列表，短TTL缓存
func (s *LocationService) TenantLocations(ctx context.Context, tenantID uuid.UUID) ([]engine.LocationInfo, error) {
	cacheKey := fmt.Sprintf("locs:%s", tenantID)

	var cached []engine.LocationInfo
	if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		logger.GetLogger().Warnf("读取门店缓存失败: %v", err)
	}

	var locations []models.Location
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.LocationStatusActive).
		Order("created_at ASC").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}

	infos := make([]engine.LocationInfo, 0, len(locations))
	for _, loc := range locations {
		infos = append(infos, engine.LocationInfo{
			ID:        loc.ID,
			Name:      loc.Name,
			IsDefault: loc.IsDefault,
		})
	}

	if err := s.cache.SetJSON(ctx, cacheKey, infos, s.ttl); err != nil {
		logger.GetLogger().Warnf("写入门店缓存失败: %v", err)
	}
	return infos, nil
}

// ========== 缓存失效 ==========

func (s *LocationService) invalidateTenant(tenantID uuid.UUID) {
	ctx := context.Background()
	if err := s.cache.Delete(ctx, fmt.Sprintf("locs:%s", tenantID)); err != nil {
		logger.GetLogger().Warnf("失效门店缓存失败: %v", err)
	}
}

func (s *LocationService) invalidateUser(tenantID, userID uuid.UUID) {
	ctx := context.Background()
	if err := s.cache.Delete(ctx, fmt.Sprintf("assign:%s:%s", tenantID, userID)); err != nil {
		logger.GetLogger().Warnf("失效排班缓存失败: %v", err)
	}
}

func (s *LocationService) invalidateTenantAssignments(tenantID uuid.UUID) {
	ctx := context.Background()
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("assign:%s:*", tenantID)); err != nil {
		logger.GetLogger().Warnf("批量失效排班缓存失败: %v", err)
	}
}
