package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService() *UserService {
	return &UserService{
		db: database.GetDB(),
	}
}

// Create 创建用户
func (s *UserService) Create(authSubject, email, name, password string, phone *string) (*models.User, error) {
	if email == "" || name == "" {
		return nil, fmt.Errorf("邮箱和姓名不能为空")
	}
	if authSubject == "" {
		authSubject = email
	}

	var count int64
	s.db.Model(&models.User{}).Where("email = ? OR auth_subject = ?", email, authSubject).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("邮箱或认证主体已存在")
	}

	user := &models.User{
		AuthSubject: authSubject,
		Email:       email,
		Name:        name,
		Phone:       phone,
		Status:      models.UserStatusActive,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, "id = ?", id).Error
	return &user, err
}

// GetByEmail 根据邮箱获取用户
func (s *UserService) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	return &user, err
}

// GetWithFiltersAndPage 组合查询（分页版本）
func (s *UserService) GetWithFiltersAndPage(status, keyword string, page, pageSize int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.db.Model(&models.User{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR email LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update 更新用户资料
func (s *UserService) Update(id uuid.UUID, name string, phone *string) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if phone != nil {
		updates["phone"] = phone
	}
	if len(updates) > 0 {
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return user, nil
}

// UpdateStatus 更新用户状态
func (s *UserService) UpdateStatus(id uuid.UUID, status string) error {
	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusLocked:
	default:
		return fmt.Errorf("无效的用户状态: %s", status)
	}
	return s.db.Model(&models.User{}).Where("id = ?", id).Update("status", status).Error
}

// ChangePassword 修改密码
func (s *UserService) ChangePassword(id uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if !user.CheckPassword(oldPassword) {
		return fmt.Errorf("原密码不正确")
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("新密码长度不能少于8位")
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	return s.db.Model(user).Updates(map[string]interface{}{
		"password_hash":            user.PasswordHash,
		"requires_password_change": false,
	}).Error
}

// CompleteOnboarding 标记完成引导
func (s *UserService) CompleteOnboarding(id uuid.UUID) error {
	return s.db.Model(&models.User{}).Where("id = ?", id).
		Update("has_completed_onboarding", true).Error
}

// RecordLogin 记录登录时间
func (s *UserService) RecordLogin(id uuid.UUID) error {
	now := time.Now()
	return s.db.Model(&models.User{}).Where("id = ?", id).
		Update("last_login_at", now).Error
}

// ========== 会话解析接口实现 ==========

// Profile 加载用户档案
func (s *UserService) Profile(ctx context.Context, userID uuid.UUID) (*engine.Profile, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, engine.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return toProfile(&user), nil
}

// CreateProfile 档案自愈：认证通过但档案缺失时创建最小档案
// auth_subject上的唯一约束仲裁并发创建：冲突方重新读取已有记录
func (s *UserService) CreateProfile(ctx context.Context, userID uuid.UUID) (*engine.Profile, error) {
	user := &models.User{
		BaseModel:              models.BaseModel{ID: userID},
		AuthSubject:            userID.String(),
		Email:                  fmt.Sprintf("user-%s@pending.local", userID),
		Name:                   "新用户",
		Status:                 models.UserStatusActive,
		RequiresPasswordChange: true,
	}
	if err := user.SetPassword(uuid.NewString()); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		// 并发自愈：另一请求已创建，读取已有记录
		var existing models.User
		if ferr := s.db.WithContext(ctx).First(&existing, "id = ?", userID).Error; ferr == nil {
			return toProfile(&existing), nil
		}
		return nil, err
	}
	return toProfile(user), nil
}

// Memberships 用户的租户成员关系（仅is_active记录，角色非法的记录跳过）
func (s *UserService) Memberships(ctx context.Context, userID uuid.UUID) ([]engine.Membership, error) {
	var rows []struct {
		TenantID   uuid.UUID
		TenantName string
		Role       string
	}
	err := s.db.WithContext(ctx).
		Table("role_assignments").
		Select("role_assignments.tenant_id, tenants.name AS tenant_name, role_assignments.role").
		Joins("JOIN tenants ON tenants.id = role_assignments.tenant_id").
		Where("role_assignments.user_id = ? AND role_assignments.is_active = ? AND tenants.status = ?",
			userID, true, models.TenantStatusActive).
		Order("role_assignments.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	memberships := make([]engine.Membership, 0, len(rows))
	for _, row := range rows {
		role := engine.Role(row.Role)
		if !role.Valid() {
			continue
		}
		memberships = append(memberships, engine.Membership{
			TenantID:   row.TenantID,
			TenantName: row.TenantName,
			Role:       role,
		})
	}
	return memberships, nil
}

func toProfile(user *models.User) *engine.Profile {
	return &engine.Profile{
		ID:                     user.ID,
		Email:                  user.Email,
		Name:                   user.Name,
		HasCompletedOnboarding: user.HasCompletedOnboarding,
		RequiresPasswordChange: user.RequiresPasswordChange,
	}
}
