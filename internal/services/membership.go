package services

import (
	"fmt"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"
	"salonhub/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MembershipService 用户-租户角色管理
type MembershipService struct {
	db    *gorm.DB
	audit *engine.Emitter
}

func NewMembershipService() *MembershipService {
	return &MembershipService{
		db:    database.GetDB(),
		audit: engine.NewEmitter(NewAuditService(), logger.GetLogger()),
	}
}

// AssignRole 设置用户在租户内的角色
// 每个(用户,租户)对至多一条记录：已有则改角色并激活，没有则新建
func (s *MembershipService) AssignRole(tenantID, userID uuid.UUID, role string, actorID uuid.UUID) (*models.RoleAssignment, error) {
	r := engine.Role(role)
	if !r.Valid() {
		return nil, fmt.Errorf("无效的角色: %s", role)
	}

	// owner只能有一个：改派owner前确认租户内没有其他激活owner
	if r == engine.RoleOwner {
		var count int64
		s.db.Model(&models.RoleAssignment{}).
			Where("tenant_id = ? AND role = ? AND is_active = ? AND user_id <> ?",
				tenantID, string(engine.RoleOwner), true, userID).
			Count(&count)
		if count > 0 {
			return nil, fmt.Errorf("租户已有owner")
		}
	}

	var assignment models.RoleAssignment
	err := s.db.Where("user_id = ? AND tenant_id = ?", userID, tenantID).First(&assignment).Error
	if err == gorm.ErrRecordNotFound {
		assignment = models.RoleAssignment{
			UserID:   userID,
			TenantID: tenantID,
			Role:     role,
			IsActive: true,
		}
		err = s.db.Create(&assignment).Error
	} else if err == nil {
		err = s.db.Model(&assignment).Updates(map[string]interface{}{
			"role":      role,
			"is_active": true,
		}).Error
		assignment.Role = role
		assignment.IsActive = true
	}
	if err != nil {
		return nil, err
	}

	s.audit.Log(tenantID, models.AuditActionRoleChange, "role_assignment", assignment.ID.String(), map[string]interface{}{
		"user_id":  userID.String(),
		"actor_id": actorID.String(),
		"role":     role,
	})
	return &assignment, nil
}

// RevokeRole 停用用户在租户内的角色（停用而非删除）
func (s *MembershipService) RevokeRole(tenantID, userID uuid.UUID, actorID uuid.UUID) error {
	var assignment models.RoleAssignment
	if err := s.db.Where("user_id = ? AND tenant_id = ?", userID, tenantID).First(&assignment).Error; err != nil {
		return err
	}
	if assignment.Role == string(engine.RoleOwner) {
		return fmt.Errorf("不能停用owner，请先转移所有权")
	}
	if err := s.db.Model(&assignment).Update("is_active", false).Error; err != nil {
		return err
	}

	s.audit.Log(tenantID, models.AuditActionRoleChange, "role_assignment", assignment.ID.String(), map[string]interface{}{
		"user_id":  userID.String(),
		"actor_id": actorID.String(),
		"revoked":  true,
	})
	return nil
}

// GetRole 用户在租户内的激活角色
func (s *MembershipService) GetRole(tenantID, userID uuid.UUID) (engine.Role, error) {
	var assignment models.RoleAssignment
	err := s.db.Where("user_id = ? AND tenant_id = ? AND is_active = ?", userID, tenantID, true).
		First(&assignment).Error
	if err != nil {
		return "", err
	}
	return engine.Role(assignment.Role), nil
}

// ListByTenantWithPage 租户成员列表（分页）
func (s *MembershipService) ListByTenantWithPage(tenantID uuid.UUID, role string, page, pageSize int) ([]*models.RoleAssignment, int64, error) {
	var assignments []*models.RoleAssignment
	var total int64

	query := s.db.Model(&models.RoleAssignment{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true)
	if role != "" {
		query = query.Where("role = ?", role)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("User").Order("created_at ASC").
		Offset(offset).Limit(pageSize).Find(&assignments).Error
	if err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}
