package models

import (
	"errors"
	"strings"

	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@bannerhub.local"
	defaultAdminPassword = "admin12345"
)

// SeedDefaultPositions 投放位表为空时写入初始投放位
func SeedDefaultPositions(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Position{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	positions := DefaultPositions()
	if err := db.Create(&positions).Error; err != nil {
		return err
	}
	logger.Infow("default_positions_seeded", "count", len(positions))
	return nil
}

// EnsureDefaultAdmin 确保默认管理员账号存在，返回该账号
// 角色绑定由授权模块负责
func EnsureDefaultAdmin(db *gorm.DB, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = defaultAdminEmail
	}

	var existing User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if password == "" {
		password = defaultAdminPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	admin := &User{
		Name:         strings.SplitN(email, "@", 2)[0],
		Email:        email,
		PasswordHash: string(hash),
		Status:       constants.UserStatusActive,
	}
	if err := db.Create(admin).Error; err != nil {
		return nil, err
	}

	if password == defaultAdminPassword {
		logger.Warnw("default_admin_created_with_default_password", "email", email)
		logger.Warnw("default_admin_password_change_required", "email", email)
	} else {
		logger.Warnw("default_admin_created", "email", email, "password_hidden", true)
	}
	return admin, nil
}
