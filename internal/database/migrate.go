package database

import (
	"salonhub/internal/models"
	"salonhub/pkg/logger"
)

// Migrate 执行数据库迁移
func Migrate() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := DB.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.RoleAssignment{},
		&models.Location{},
		&models.StaffLocationAssignment{},
		&models.RolePermission{},
		&models.UserPermissionOverride{},
		&models.UserContext{},
		&models.AuditLog{},
	)

	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")

	// 每个新租户的默认权限矩阵在租户创建时写入，见 services.TenantService

	return nil
}
