package authz

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	userPrefix      = "user:"
	rolePrefix      = "role:"
	// roleAnchor 角色登记锚点：g(role:x, role:__anchor__) 表示角色 x 已定义
	roleAnchor = "role:__anchor__"
)

// ErrUnavailable 授权服务未初始化
var ErrUnavailable = errors.New("authz service unavailable")

// ErrUnknownRole 角色未定义
var ErrUnknownRole = errors.New("authz role is not defined")

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 路由授权策略，Object 为去掉 /api/v1 的 gin 路由模板
type Policy struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

// Service 基于 casbin 的角色授权
// 用户以 user:<id> 分组到 role:<name>，角色之间可继承
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务，策略持久化在 casbin_rule 表
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// EnforceUser 判断用户能否以 act 访问路由 obj
func (s *Service) EnforceUser(userID uint, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(userSubject(userID), NormalizeObject(obj), strings.ToUpper(strings.TrimSpace(act)))
}

// RoleExists 角色是否已定义
func (s *Service) RoleExists(role string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	subject, err := roleSubject(role)
	if err != nil {
		return false, err
	}
	return s.enforcer.HasNamedGroupingPolicy("g", subject, roleAnchor)
}

// ListRoles 已定义的角色名（不含前缀）
func (s *Service) ListRoles() ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 1, roleAnchor)
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	roles := make([]string, 0, len(rules))
	for _, rule := range rules {
		roles = append(roles, strings.TrimPrefix(rule[0], rolePrefix))
	}
	sort.Strings(roles)
	return roles, nil
}

// GrantRolePolicy 定义角色（如不存在）并授予路由权限
func (s *Service) GrantRolePolicy(role, object, action string) error {
	subject, err := s.defineRole(role)
	if err != nil {
		return err
	}
	action = strings.ToUpper(strings.TrimSpace(action))
	if action == "" {
		return errors.New("action is required")
	}
	if _, err := s.enforcer.AddPolicy(subject, NormalizeObject(object), action); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// SetUserRoles 覆盖用户角色；任一角色未定义时不做任何修改
func (s *Service) SetUserRoles(userID uint, roles []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if userID == 0 {
		return errors.New("user id is required")
	}
	subjects := make([]string, 0, len(roles))
	for _, role := range roles {
		exists, err := s.RoleExists(role)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		subject, _ := roleSubject(role)
		subjects = append(subjects, subject)
	}

	user := userSubject(userID)
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, user); err != nil {
		return fmt.Errorf("clear user roles failed: %w", err)
	}
	for _, subject := range subjects {
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", user, subject); err != nil {
			return fmt.Errorf("assign user role failed: %w", err)
		}
	}
	return s.enforcer.BuildRoleLinks()
}

// RemoveUser 删除用户的全部角色绑定
func (s *Service) RemoveUser(userID uint) error {
	if err := s.ready(); err != nil {
		return err
	}
	removed, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, userSubject(userID))
	if err != nil {
		return fmt.Errorf("remove user roles failed: %w", err)
	}
	if removed {
		return s.enforcer.BuildRoleLinks()
	}
	return nil
}

// GetUserRoles 用户直接绑定的角色名，按字母排序
func (s *Service) GetUserRoles(userID uint) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	linked, err := s.enforcer.GetRolesForUser(userSubject(userID))
	if err != nil {
		return nil, fmt.Errorf("get user roles failed: %w", err)
	}
	roles := make([]string, 0, len(linked))
	for _, role := range linked {
		if strings.HasPrefix(role, rolePrefix) && role != roleAnchor {
			roles = append(roles, strings.TrimPrefix(role, rolePrefix))
		}
	}
	sort.Strings(roles)
	return roles, nil
}

// HasRole 用户是否直接拥有角色（不计继承）
func (s *Service) HasRole(userID uint, role string) (bool, error) {
	roles, err := s.GetUserRoles(userID)
	if err != nil {
		return false, err
	}
	target := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(role), rolePrefix))
	for _, item := range roles {
		if item == target {
			return true, nil
		}
	}
	return false, nil
}

// defineRole 登记角色，已存在时直接返回
func (s *Service) defineRole(role string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	subject, err := roleSubject(role)
	if err != nil {
		return "", err
	}
	added, err := s.enforcer.AddNamedGroupingPolicy("g", subject, roleAnchor)
	if err != nil {
		return "", fmt.Errorf("define role failed: %w", err)
	}
	if added {
		if err := s.enforcer.BuildRoleLinks(); err != nil {
			return "", err
		}
	}
	return subject, nil
}

func userSubject(userID uint) string {
	return userPrefix + strconv.FormatUint(uint64(userID), 10)
}

// roleSubject 角色名转 casbin 主体，统一小写
func roleSubject(role string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(role), rolePrefix)))
	if name == "" {
		return "", errors.New("role is required")
	}
	subject := rolePrefix + name
	if subject == roleAnchor {
		return "", errors.New("reserved role is not allowed")
	}
	return subject, nil
}

// NormalizeObject 去掉 /api/v1 前缀，得到策略中的路由模板
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	return normalized
}
