package shared

import (
	"errors"

	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// MappedError 业务错误到接口错误响应的映射
type MappedError struct {
	Target error
	Code   int
	Key    string
}

// AuthErrorRules 认证相关错误
var AuthErrorRules = []MappedError{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.invalid_credentials"},
	{Target: service.ErrInvalidToken, Code: response.CodeUnauthorized, Key: "error.invalid_token"},
	{Target: service.ErrUserDisabled, Code: response.CodeUnauthorized, Key: "error.user_disabled"},
}

// UserErrorRules 用户管理错误
var UserErrorRules = []MappedError{
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound, Key: "error.user_not_found"},
	{Target: service.ErrEmailExists, Code: response.CodeConflict, Key: "error.email_exists"},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest, Key: "error.email_invalid"},
	{Target: service.ErrWeakPassword, Code: response.CodeBadRequest, Key: "error.password_weak"},
	{Target: service.ErrUnknownRole, Code: response.CodeBadRequest, Key: "error.role_unknown"},
	{Target: service.ErrSelfUpdateByAdmin, Code: response.CodeBadRequest, Key: "error.self_update_admin"},
	{Target: service.ErrSelfDeleteByAdmin, Code: response.CodeBadRequest, Key: "error.self_delete_admin"},
	{Target: service.ErrTargetIsSelf, Code: response.CodeBadRequest, Key: "error.target_is_self"},
	{Target: service.ErrRoleChangeDenied, Code: response.CodeForbidden, Key: "error.role_change_denied"},
	{Target: service.ErrAdminProtected, Code: response.CodeForbidden, Key: "error.admin_protected"},
	{Target: service.ErrEmptyUserUpdate, Code: response.CodeBadRequest, Key: "error.user_update_empty"},
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: service.ErrForbidden, Code: response.CodeForbidden, Key: "error.forbidden"},
}

// PositionErrorRules 投放位错误
var PositionErrorRules = []MappedError{
	{Target: service.ErrPositionExists, Code: response.CodeConflict, Key: "error.position_exists"},
	{Target: service.ErrInvalidPositionInput, Code: response.CodeBadRequest, Key: "error.position_invalid"},
}

// BannerErrorRules Banner 分配与图片错误
var BannerErrorRules = []MappedError{
	{Target: service.ErrBannerNotFound, Code: response.CodeNotFound, Key: "error.banner_not_found"},
	{Target: service.ErrUnauthorized, Code: response.CodeForbidden, Key: "error.banner_forbidden"},
	{Target: service.ErrEmptyBannerUpdate, Code: response.CodeBadRequest, Key: "error.banner_update_empty"},
	{Target: service.ErrInvalidDestinationLink, Code: response.CodeBadRequest, Key: "error.banner_link_invalid"},
	{Target: service.ErrInvalidDateRange, Code: response.CodeBadRequest, Key: "error.banner_date_range"},
	{Target: service.ErrInvalidRenewalPolicy, Code: response.CodeBadRequest, Key: "error.banner_renewal_invalid"},
	{Target: service.ErrPositionNotFound, Code: response.CodeBadRequest, Key: "error.position_not_found"},
	{Target: service.ErrDisplayOrderRequired, Code: response.CodeBadRequest, Key: "error.display_order_required"},
	{Target: service.ErrDisplayOrderOutOfRange, Code: response.CodeBadRequest, Key: "error.display_order_range"},
	{Target: service.ErrCapacityExceeded, Code: response.CodeConflict, Key: "error.banner_capacity"},
	{Target: service.ErrDisplayOrderConflict, Code: response.CodeConflict, Key: "error.display_order_conflict"},
	{Target: service.ErrSlotBusy, Code: response.CodeServiceUnavailable, Key: "error.slot_busy"},
	{Target: service.ErrImageRequired, Code: response.CodeBadRequest, Key: "error.image_required"},
	{Target: service.ErrImageTooLarge, Code: response.CodeBadRequest, Key: "error.image_too_large"},
	{Target: service.ErrImageTypeNotAllowed, Code: response.CodeBadRequest, Key: "error.image_type_not_allowed"},
	{Target: service.ErrImageInvalid, Code: response.CodeBadRequest, Key: "error.image_invalid"},
	{Target: service.ErrImageUploadFailed, Code: response.CodeInternal, Key: "error.image_upload_failed"},
	{Target: service.ErrInvalidInput, Code: response.CodeBadRequest, Key: "error.bad_request"},
}

// RespondMappedError 按规则映射错误，未命中时使用兜底码并记录原始错误
// 分配被拒绝时在 data 中附带 reason 与 detail
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if !errors.Is(err, rule.Target) {
			continue
		}
		var allocErr *service.AllocationError
		if errors.As(err, &allocErr) {
			data := gin.H{}
			if allocErr.Reason != "" {
				data["reason"] = allocErr.Reason
			}
			if allocErr.Detail != "" {
				data["detail"] = allocErr.Detail
			}
			if rule.Code >= response.CodeInternal {
				RequestLog(c).Errorw("handler_error", "code", rule.Code, "error", err)
			}
			response.ErrorWithData(c, rule.Code, Message(rule.Key), data)
			return
		}
		var logged error
		if rule.Code >= response.CodeInternal {
			logged = err
		}
		RespondError(c, rule.Code, rule.Key, logged)
		return
	}
	RespondError(c, fallbackCode, fallbackKey, err)
}

// ConcatRules 合并多组映射规则
func ConcatRules(groups ...[]MappedError) []MappedError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]MappedError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
