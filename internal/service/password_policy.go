package service

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/bannerhub/internal/config"
)

const ruleMinLength = "min_length"

// passwordPolicyError 密码未满足的第一条规则，errors.Is 匹配 ErrWeakPassword
type passwordPolicyError struct {
	rule string
	min  int
}

func (e passwordPolicyError) Error() string {
	if e.rule == ruleMinLength {
		return fmt.Sprintf("password must be at least %d characters", e.min)
	}
	return "password must contain " + e.rule
}

func (e passwordPolicyError) Is(target error) bool { return target == ErrWeakPassword }

// Rule 未满足的规则名
func (e passwordPolicyError) Rule() string { return e.rule }

type charClass struct {
	required bool
	name     string
	match    func(rune) bool
}

func isSpecial(r rune) bool {
	return !unicode.IsUpper(r) && !unicode.IsLower(r) && !unicode.IsDigit(r)
}

// validatePassword 按长度、大写、小写、数字、特殊字符的顺序检查
func validatePassword(policy config.PasswordPolicyConfig, password string) error {
	if policy.MinLength > 0 && utf8.RuneCountInString(password) < policy.MinLength {
		return passwordPolicyError{rule: ruleMinLength, min: policy.MinLength}
	}
	classes := []charClass{
		{policy.RequireUpper, "an uppercase letter", unicode.IsUpper},
		{policy.RequireLower, "a lowercase letter", unicode.IsLower},
		{policy.RequireNumber, "a digit", unicode.IsDigit},
		{policy.RequireSpecial, "a special character", isSpecial},
	}
	for _, class := range classes {
		if class.required && !containsRune(password, class.match) {
			return passwordPolicyError{rule: class.name}
		}
	}
	return nil
}

func containsRune(s string, match func(rune) bool) bool {
	for _, r := range s {
		if match(r) {
			return true
		}
	}
	return false
}
