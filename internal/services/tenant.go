package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 新租户默认试用天数
const defaultTrialDays = 14

type TenantService struct {
	db *gorm.DB
}

func NewTenantService() *TenantService {
	return &TenantService{
		db: database.GetDB(),
	}
}

// TenantStats 租户统计信息
type TenantStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Trialing int64 `json:"trialing"`
	PastDue  int64 `json:"past_due"`
}

// Create 开通租户
// 同一事务内完成：租户记录、默认门店、owner角色、默认权限矩阵种子
func (s *TenantService) Create(name, code, planTier string, ownerID uuid.UUID) (*models.Tenant, error) {
	if err := s.ValidateCreateParams(name, code); err != nil {
		return nil, err
	}
	if planTier == "" {
		planTier = models.PlanTierBasic
	}

	// 检查代码是否重复
	var count int64
	s.db.Model(&models.Tenant{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("租户代码已存在")
	}

	trialEndsAt := time.Now().AddDate(0, 0, defaultTrialDays)
	tenant := &models.Tenant{
		Name:               name,
		Code:               code,
		PlanTier:           planTier,
		Status:             models.TenantStatusActive,
		SubscriptionStatus: models.SubscriptionTrialing,
		TrialEndsAt:        &trialEndsAt,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}

		// 默认门店
		location := &models.Location{
			TenantID:  tenant.ID,
			Name:      "主门店",
			IsDefault: true,
			Status:    models.LocationStatusActive,
		}
		if err := tx.Create(location).Error; err != nil {
			return err
		}

		// 开通人即owner
		assignment := &models.RoleAssignment{
			UserID:   ownerID,
			TenantID: tenant.ID,
			Role:     string(engine.RoleOwner),
			IsActive: true,
		}
		if err := tx.Create(assignment).Error; err != nil {
			return err
		}

		// 默认权限矩阵写入为租户种子，之后租户可自行定制
		return seedDefaultRolePermissions(tx, tenant.ID)
	})
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

// ValidateCreateParams 验证创建参数
func (s *TenantService) ValidateCreateParams(name, code string) error {
	if name == "" || code == "" {
		return fmt.Errorf("租户名称和代码不能为空")
	}
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("租户名称不能超过100个字符")
	}
	if len(code) > 50 {
		return fmt.Errorf("租户代码不能超过50个字符")
	}
	return nil
}

// GetByID 根据ID获取租户
func (s *TenantService) GetByID(id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.First(&tenant, "id = ?", id).Error
	return &tenant, err
}

// GetWithFiltersAndPage 组合查询（分页版本）
func (s *TenantService) GetWithFiltersAndPage(status, keyword string, page, pageSize int) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := s.db.Model(&models.Tenant{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR code LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&tenants).Error
	if err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

// Update 更新租户基础信息
func (s *TenantService) Update(id uuid.UUID, name, currency, planTier string) (*models.Tenant, error) {
	tenant, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != "" {
		if utf8.RuneCountInString(name) > 100 {
			return nil, fmt.Errorf("租户名称不能超过100个字符")
		}
		updates["name"] = name
	}
	if currency != "" {
		if len(currency) != 3 {
			return nil, fmt.Errorf("货币代码必须是3位")
		}
		updates["currency"] = currency
	}
	if planTier != "" {
		updates["plan_tier"] = planTier
	}

	if len(updates) > 0 {
		if err := s.db.Model(tenant).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return tenant, nil
}

// UpdateSubscription 更新订阅状态（支付回调/后台操作）
func (s *TenantService) UpdateSubscription(id uuid.UUID, status string, trialEndsAt *time.Time) (*models.Tenant, error) {
	switch status {
	case models.SubscriptionTrialing, models.SubscriptionActive, models.SubscriptionPastDue, models.SubscriptionCanceled:
	default:
		return nil, fmt.Errorf("无效的订阅状态: %s", status)
	}

	tenant, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"subscription_status": status}
	if trialEndsAt != nil {
		updates["trial_ends_at"] = trialEndsAt
	}
	if err := s.db.Model(tenant).Updates(updates).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetStats 租户统计
func (s *TenantService) GetStats() (*TenantStats, error) {
	stats := &TenantStats{}
	if err := s.db.Model(&models.Tenant{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	s.db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusActive).Count(&stats.Active)
	s.db.Model(&models.Tenant{}).Where("subscription_status = ?", models.SubscriptionTrialing).Count(&stats.Trialing)
	s.db.Model(&models.Tenant{}).Where("subscription_status = ?", models.SubscriptionPastDue).Count(&stats.PastDue)
	return stats, nil
}

// MarkExpiredTrialsPastDue 把宽限期已结束的试用租户标记为past_due
// 由定时任务调用，返回受影响的租户数
func (s *TenantService) MarkExpiredTrialsPastDue(graceDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -graceDays)
	result := s.db.Model(&models.Tenant{}).
		Where("subscription_status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?",
			models.SubscriptionTrialing, cutoff).
		Update("subscription_status", models.SubscriptionPastDue)
	return result.RowsAffected, result.Error
}

// TenantInfo 会话解析所需的订阅信息
func (s *TenantService) TenantInfo(ctx context.Context, tenantID uuid.UUID) (*engine.TenantInfo, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "id = ?", tenantID).Error; err != nil {
		return nil, err
	}
	return &engine.TenantInfo{
		ID:                 tenant.ID,
		Name:               tenant.Name,
		Currency:           tenant.Currency,
		SubscriptionStatus: tenant.SubscriptionStatus,
		TrialEndsAt:        tenant.TrialEndsAt,
	}, nil
}
