package authz

import (
	"fmt"
	"strings"

	"github.com/bannerhub/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
// advertiser 继承 user，admin 继承 advertiser
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleUser,
			Policies: []Policy{
				{Object: "/me", Action: "GET"},
				{Object: "/users/me", Action: "PATCH"},
				{Object: "/users/me", Action: "DELETE"},
				{Object: "/banners", Action: "GET"},
				{Object: "/banners/:id", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleAdvertiser,
			Inherits: []string{constants.RoleUser},
			Policies: []Policy{
				{Object: "/banners", Action: "POST"},
				{Object: "/banners/:id", Action: "PATCH"},
				{Object: "/banners/:id", Action: "DELETE"},
			},
		},
		{
			Role:     constants.RoleAdmin,
			Inherits: []string{constants.RoleAdvertiser},
			Policies: []Policy{
				{Object: "/users", Action: "*"},
				{Object: "/users/:term", Action: "*"},
				{Object: "/positions", Action: "POST"},
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 登记预置角色、继承关系与路由策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.defineRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := roleSubject(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role %s to %s failed: %w", role, parentRole, err)
			}
		}
		for _, policy := range seed.Policies {
			action := strings.ToUpper(strings.TrimSpace(policy.Action))
			if action == "" {
				return fmt.Errorf("builtin policy for %s has no action", role)
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return s.enforcer.BuildRoleLinks()
}
