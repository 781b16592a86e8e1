package router

import (
	"regexp"
	"strings"
	"sync"

	"github.com/bannerhub/internal/logger"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	roleNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,31}$`)
	registerOnce     sync.Once
	registerValidErr error
)

// RegisterValidators 在 gin 的校验引擎上注册自定义规则
func RegisterValidators() error {
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		registerValidErr = engine.RegisterValidation("role_name", validateRoleName)
		if registerValidErr != nil {
			logger.Errorw("router_register_validator_failed", "tag", "role_name", "error", registerValidErr)
		}
	})
	return registerValidErr
}

func validateRoleName(fl validator.FieldLevel) bool {
	return roleNamePattern.MatchString(strings.ToLower(strings.TrimSpace(fl.Field().String())))
}
