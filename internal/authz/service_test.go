package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bannerhub/internal/constants"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceUserWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("editor", "/banners/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetUserRoles(1, []string{"editor"}); err != nil {
		t.Fatalf("set user roles failed: %v", err)
	}

	allow, err := svc.EnforceUser(1, "/api/v1/banners/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceUser(1, "/api/v1/banners/42", "DELETE")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetUserRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := svc.SetUserRoles(2, []string{constants.RoleAdvertiser}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetUserRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != constants.RoleAdvertiser {
		t.Fatalf("roles want [advertiser], got=%v", roles)
	}

	if err := svc.SetUserRoles(2, []string{constants.RoleUser}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	isAdvertiser, err := svc.HasRole(2, constants.RoleAdvertiser)
	if err != nil {
		t.Fatalf("has role failed: %v", err)
	}
	if isAdvertiser {
		t.Fatalf("expected advertiser role replaced")
	}

	allow, err := svc.EnforceUser(2, "/banners", "POST")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("plain user should not create banners")
	}

	if err := svc.RemoveUser(2); err != nil {
		t.Fatalf("remove user failed: %v", err)
	}
	roles, err = svc.GetUserRoles(2)
	if err != nil {
		t.Fatalf("get roles after removal failed: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("roles should be empty after removal, got=%v", roles)
	}
}

func TestSetUserRolesRejectsUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := svc.SetUserRoles(5, []string{constants.RoleUser}); err != nil {
		t.Fatalf("set user roles failed: %v", err)
	}
	err := svc.SetUserRoles(5, []string{constants.RoleAdvertiser, "superuser"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("want ErrUnknownRole, got %v", err)
	}
	roles, err := svc.GetUserRoles(5)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != constants.RoleUser {
		t.Fatalf("roles should be unchanged after rejection, got %v", roles)
	}
}

func TestNilServiceIsUnavailable(t *testing.T) {
	var svc *Service
	if _, err := svc.EnforceUser(1, "/me", "GET"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/banners/:id", want: "/banners/:id"},
		{in: "/banners/:id", want: "/banners/:id"},
		{in: "users/me", want: "/users/me"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	for i := 0; i < 2; i++ {
		if err := svc.BootstrapBuiltinRoles(); err != nil {
			t.Fatalf("bootstrap builtin roles failed: %v", err)
		}
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{}
	for _, role := range constants.BuiltinRoles {
		wantRoles[role] = true
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}
	exists, err := svc.RoleExists("superuser")
	if err != nil {
		t.Fatalf("role exists failed: %v", err)
	}
	if exists {
		t.Fatalf("unknown role should not exist")
	}

	if err := svc.SetUserRoles(3, []string{constants.RoleAdmin}); err != nil {
		t.Fatalf("set user roles failed: %v", err)
	}
	if err := svc.SetUserRoles(4, []string{constants.RoleAdvertiser}); err != nil {
		t.Fatalf("set user roles failed: %v", err)
	}

	cases := []struct {
		userID uint
		obj    string
		act    string
		want   bool
	}{
		{3, "/api/v1/me", "GET", true},
		{3, "/api/v1/users/:term", "DELETE", true},
		{3, "/api/v1/admin/lifecycle/run", "POST", true},
		{4, "/api/v1/banners/:id", "PATCH", true},
		{4, "/api/v1/users/me", "PATCH", true},
		{4, "/api/v1/users", "GET", false},
		{4, "/api/v1/positions", "POST", false},
		{4, "/api/v1/admin/lifecycle/run", "POST", false},
	}
	for _, tc := range cases {
		allow, err := svc.EnforceUser(tc.userID, tc.obj, tc.act)
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", tc.act, tc.obj, err)
		}
		if allow != tc.want {
			t.Fatalf("enforce user=%d %s %s want %v got %v", tc.userID, tc.act, tc.obj, tc.want, allow)
		}
	}
}
