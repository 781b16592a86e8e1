package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bannerhub/internal/cache"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"

	"github.com/jinzhu/copier"
)

// CreateUserInput 管理员创建用户输入
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Roles    []string
}

// UpdateUserInput 更新用户输入，nil 表示不修改
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Status   *string
	Roles    []string
}

// IsEmpty 是否未提供任何字段
func (in UpdateUserInput) IsEmpty() bool {
	return in.Name == nil && in.Email == nil && in.Password == nil && in.Status == nil && in.Roles == nil
}

type userProfilePatch struct {
	Name   string
	Email  string
	Status string
}

// UserService 用户管理服务
type UserService struct {
	users   repository.UserRepository
	auth    *AuthService
	roles   RoleManager
	banners *BannerService
}

// NewUserService 创建用户服务
func NewUserService(users repository.UserRepository, auth *AuthService, roles RoleManager, banners *BannerService) *UserService {
	return &UserService{users: users, auth: auth, roles: roles, banners: banners}
}

// Me 当前用户及角色
func (s *UserService) Me(actor Actor) (*models.User, error) {
	user, err := s.users.GetByID(actor.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.withRoles(user)
}

// Create 管理员创建用户，角色缺省为 user
func (s *UserService) Create(input CreateUserInput) (*models.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	roles, err := s.normalizeRoles(input.Roles)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []string{constants.RoleUser}
	}
	if err := s.auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := s.auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{}
	if err := copier.Copy(user, &input); err != nil {
		return nil, err
	}
	user.Email = email
	user.Name = defaultUserName(input.Name, email)
	user.PasswordHash = hash
	user.Status = constants.UserStatusActive
	user.Roles = nil
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	if err := s.roles.SetUserRoles(user.ID, roles); err != nil {
		return nil, err
	}
	user.Roles = roles
	logger.Infow("user_created", "user_id", user.ID, "roles", roles)
	return user, nil
}

// List 分页列表
func (s *UserService) List(filter repository.UserListFilter) ([]models.User, int64, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	users, total, err := s.users.List(filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range users {
		roles, err := s.roles.GetUserRoles(users[i].ID)
		if err != nil {
			return nil, 0, err
		}
		users[i].Roles = roles
	}
	return users, total, nil
}

// Get 按数字 ID 或邮箱查询
func (s *UserService) Get(term string) (*models.User, error) {
	user, err := s.resolve(term)
	if err != nil {
		return nil, err
	}
	return s.withRoles(user)
}

// UpdateSelf 用户修改自己的资料，管理员需走管理接口，非管理员不可改角色
func (s *UserService) UpdateSelf(actor Actor, input UpdateUserInput) (*models.User, error) {
	if actor.IsAdmin() {
		return nil, ErrSelfUpdateByAdmin
	}
	if input.Roles != nil || input.Status != nil {
		return nil, ErrRoleChangeDenied
	}
	user, err := s.users.GetByID(actor.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.apply(user, input)
}

// UpdateByAdmin 管理员修改其他用户，不可修改自己，不可修改其他管理员的角色
func (s *UserService) UpdateByAdmin(actor Actor, term string, input UpdateUserInput) (*models.User, error) {
	user, err := s.resolve(term)
	if err != nil {
		return nil, err
	}
	if user.ID == actor.ID {
		return nil, ErrTargetIsSelf
	}
	if input.Roles != nil {
		targetRoles, err := s.roles.GetUserRoles(user.ID)
		if err != nil {
			return nil, err
		}
		if containsRole(targetRoles, constants.RoleAdmin) {
			return nil, ErrAdminProtected
		}
	}
	return s.apply(user, input)
}

// DeleteSelf 用户注销自己，管理员不可
func (s *UserService) DeleteSelf(actor Actor) error {
	if actor.IsAdmin() {
		return ErrSelfDeleteByAdmin
	}
	user, err := s.users.GetByID(actor.ID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	return s.remove(user)
}

// DeleteByAdmin 管理员删除用户，不可删除自己或其他管理员
func (s *UserService) DeleteByAdmin(actor Actor, term string) error {
	user, err := s.resolve(term)
	if err != nil {
		return err
	}
	if user.ID == actor.ID {
		return fmt.Errorf("%w: cannot delete own account", ErrForbidden)
	}
	roles, err := s.roles.GetUserRoles(user.ID)
	if err != nil {
		return err
	}
	if containsRole(roles, constants.RoleAdmin) {
		return ErrAdminProtected
	}
	return s.remove(user)
}

func (s *UserService) apply(user *models.User, input UpdateUserInput) (*models.User, error) {
	if input.IsEmpty() {
		return nil, ErrEmptyUserUpdate
	}

	var patch userProfilePatch
	if input.Name != nil {
		patch.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		email, err := normalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			existing, err := s.users.GetByEmail(email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, ErrEmailExists
			}
		}
		patch.Email = email
	}
	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		if status != constants.UserStatusActive && status != constants.UserStatusDisabled {
			return nil, fmt.Errorf("%w: status", ErrInvalidInput)
		}
		patch.Status = status
	}

	var roles []string
	if input.Roles != nil {
		normalized, err := s.normalizeRoles(input.Roles)
		if err != nil {
			return nil, err
		}
		if len(normalized) == 0 {
			return nil, fmt.Errorf("%w: roles cannot be empty", ErrInvalidInput)
		}
		roles = normalized
	}

	invalidate := false
	if input.Password != nil {
		if err := s.auth.ValidatePassword(*input.Password); err != nil {
			return nil, err
		}
		hash, err := s.auth.HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		invalidate = true
	}
	if patch.Status != "" && patch.Status != user.Status {
		invalidate = true
	}

	if err := copier.CopyWithOption(user, &patch, copier.Option{IgnoreEmpty: true}); err != nil {
		return nil, err
	}
	if invalidate {
		now := time.Now()
		user.TokenVersion++
		user.TokenInvalidBefore = &now
	}
	user.Roles = nil
	if err := s.users.Update(user); err != nil {
		return nil, err
	}
	if roles != nil {
		if err := s.roles.SetUserRoles(user.ID, roles); err != nil {
			return nil, err
		}
	}
	if err := cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user)); err != nil {
		logger.Warnw("user_auth_state_refresh_failed", "user_id", user.ID, "error", err)
	}
	logger.Infow("user_updated", "user_id", user.ID, "token_invalidated", invalidate)
	return s.withRoles(user)
}

func (s *UserService) remove(user *models.User) error {
	if s.banners != nil {
		removed, err := s.banners.DeleteByOwner(user.ID)
		if err != nil {
			return err
		}
		if removed > 0 {
			logger.Infow("user_banners_deleted", "user_id", user.ID, "count", removed)
		}
	}
	if err := s.users.Delete(user.ID); err != nil {
		return err
	}
	if err := s.roles.RemoveUser(user.ID); err != nil {
		return err
	}
	_ = cache.DelUserAuthState(context.Background(), user.ID)
	logger.Infow("user_deleted", "user_id", user.ID)
	return nil
}

func (s *UserService) resolve(term string) (*models.User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrUserNotFound
	}
	var (
		user *models.User
		err  error
	)
	if id, parseErr := strconv.ParseUint(term, 10, 64); parseErr == nil {
		user, err = s.users.GetByID(uint(id))
	} else {
		user, err = s.users.GetByEmail(term)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) withRoles(user *models.User) (*models.User, error) {
	roles, err := s.roles.GetUserRoles(user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

func (s *UserService) normalizeRoles(roles []string) ([]string, error) {
	seen := make(map[string]struct{}, len(roles))
	result := make([]string, 0, len(roles))
	for _, raw := range roles {
		role := strings.ToLower(strings.TrimSpace(raw))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		exists, err := s.roles.RoleExists(role)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}
	return result, nil
}

func containsRole(roles []string, target string) bool {
	for _, role := range roles {
		if strings.EqualFold(role, target) {
			return true
		}
	}
	return false
}
