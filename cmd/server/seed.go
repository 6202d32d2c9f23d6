package main

import (
	"fmt"
	"time"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"
	"salonhub/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 1. 创建默认管理员用户
	admin, err := createDefaultAdmin(db)
	if err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	// 2. 创建演示租户（管理员为owner）
	if err := createDemoTenant(db, admin); err != nil {
		return fmt.Errorf("创建演示租户失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultAdmin 创建默认管理员用户
func createDefaultAdmin(db *gorm.DB) (*models.User, error) {
	var existing models.User
	err := db.Where("email = ?", "admin@salonhub.local").First(&existing).Error
	if err == nil {
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	admin := &models.User{
		AuthSubject:            "admin@salonhub.local",
		Email:                  "admin@salonhub.local",
		Name:                   "系统管理员",
		Status:                 models.UserStatusActive,
		HasCompletedOnboarding: true,
		RequiresPasswordChange: true,
	}
	if err := admin.SetPassword("Admin@123"); err != nil {
		return nil, err
	}
	if err := db.Create(admin).Error; err != nil {
		return nil, err
	}

	logger.GetLogger().Info("默认管理员创建成功（首次登录需修改密码）")
	return admin, nil
}

// createDemoTenant 创建演示租户：默认门店、owner角色、默认权限矩阵
func createDemoTenant(db *gorm.DB, owner *models.User) error {
	var count int64
	db.Model(&models.Tenant{}).Where("code = ?", "demo").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("演示租户已存在，跳过创建")
		return nil
	}

	trialEndsAt := time.Now().AddDate(0, 0, 14)
	tenant := &models.Tenant{
		Name:               "演示沙龙",
		Code:               "demo",
		PlanTier:           models.PlanTierBasic,
		Status:             models.TenantStatusActive,
		SubscriptionStatus: models.SubscriptionTrialing,
		TrialEndsAt:        &trialEndsAt,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}

		location := &models.Location{
			TenantID:  tenant.ID,
			Name:      "主门店",
			IsDefault: true,
			Status:    models.LocationStatusActive,
		}
		if err := tx.Create(location).Error; err != nil {
			return err
		}

		assignment := &models.RoleAssignment{
			UserID:   owner.ID,
			TenantID: tenant.ID,
			Role:     string(engine.RoleOwner),
			IsActive: true,
		}
		if err := tx.Create(assignment).Error; err != nil {
			return err
		}

		// 默认权限矩阵种子（owner不落库）
		for _, module := range engine.Catalog() {
			for _, role := range engine.AllRoles() {
				if role == engine.RoleOwner {
					continue
				}
				allowed, _ := engine.DefaultAllowed(role, module)
				rule := &models.RolePermission{
					TenantID: tenant.ID,
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
	})
	if err != nil {
		return err
	}

	logger.GetLogger().Info("演示租户创建成功")
	return nil
}
