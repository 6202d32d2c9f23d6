package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User 用户模型（认证身份 + 档案）
type User struct {
	BaseModel
	// 外部认证主体标识，档案自愈时的唯一约束由它仲裁并发创建
	AuthSubject            string     `json:"auth_subject" gorm:"unique;not null;size:100;index"`
	Email                  string     `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash           string     `json:"-" gorm:"not null;size:255"`
	Name                   string     `json:"name" gorm:"not null;size:100"`
	Phone                  *string    `json:"phone" gorm:"size:20"`
	Status                 string     `json:"status" gorm:"default:'active';size:20"`
	HasCompletedOnboarding bool       `json:"has_completed_onboarding" gorm:"default:false"`
	RequiresPasswordChange bool       `json:"requires_password_change" gorm:"default:false"`
	LastLoginAt            *time.Time `json:"last_login_at"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// SetPassword 设置密码 - 数据操作方法
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码 - 数据操作方法
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
