package services

import (
	"context"
	"encoding/json"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditService 审计日志落库与查询
type AuditService struct {
	db *gorm.DB
}

func NewAuditService() *AuditService {
	return &AuditService{
		db: database.GetDB(),
	}
}

// Write 落库一条审计记录
// metadata中的user_id（合法UUID时）提升为独立列便于检索
func (s *AuditService) Write(ctx context.Context, entry engine.AuditEntry) error {
	var metadata datatypes.JSON
	if entry.Metadata != nil {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = data
	}

	var userID *uuid.UUID
	if raw, ok := entry.Metadata["user_id"].(string); ok {
		if parsed, err := uuid.Parse(raw); err == nil {
			userID = &parsed
		}
	}

	row := &models.AuditLog{
		TenantID:   entry.TenantID,
		UserID:     userID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadata,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// GetWithFiltersAndPage 审计日志查询（分页）
func (s *AuditService) GetWithFiltersAndPage(tenantID uuid.UUID, action string, userID *uuid.UUID, page, pageSize int) ([]*models.AuditLog, int64, error) {
	var logs []*models.AuditLog
	var total int64

	query := s.db.Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)
	if action != "" {
		query = query.Where("action = ?", action)
	}
	if userID != nil {
		query = query.Where("user_id = ?", userID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
