package service

import (
	"errors"
	"fmt"
)

// 通用错误
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserDisabled       = errors.New("user disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password does not satisfy policy")
	ErrUnknownRole        = errors.New("unknown role")
	ErrSelfUpdateByAdmin  = errors.New("admin must update own account through the admin endpoint")
	ErrSelfDeleteByAdmin  = errors.New("admin cannot delete own account")
	ErrTargetIsSelf       = errors.New("cannot target own account")
	ErrRoleChangeDenied   = errors.New("role change not allowed")
	ErrAdminProtected     = errors.New("admin accounts cannot be modified by other admins")
	ErrEmptyUserUpdate    = errors.New("no fields to update")
)

// 投放位错误
var (
	ErrPositionExists       = errors.New("position already exists")
	ErrInvalidPositionInput = errors.New("invalid position")
)

// 图片与邮件错误
var (
	ErrImageRequired             = errors.New("image file is required")
	ErrImageTooLarge             = errors.New("image exceeds size limit")
	ErrImageTypeNotAllowed       = errors.New("image type not allowed")
	ErrImageInvalid              = errors.New("image cannot be decoded")
	ErrImageUploadFailed         = errors.New("image upload failed")
	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")
	ErrOwnerEmailMissing         = errors.New("banner owner has no email")
)

// Banner 分配校验错误种类
var (
	ErrInvalidDateRange       = errors.New("end_date must be after start_date")
	ErrInvalidRenewalPolicy   = errors.New("invalid renewal policy")
	ErrPositionNotFound       = errors.New("position not found")
	ErrCapacityExceeded       = errors.New("position capacity exceeded")
	ErrDisplayOrderRequired   = errors.New("display_order is required")
	ErrDisplayOrderOutOfRange = errors.New("display_order out of range")
	ErrDisplayOrderConflict   = errors.New("display_order already taken")
	ErrUnauthorized           = errors.New("not allowed to modify this banner")
	ErrBannerNotFound         = errors.New("banner not found")
	ErrInvalidDestinationLink = errors.New("destination_link must be an absolute http(s) url")
	ErrEmptyBannerUpdate      = errors.New("at least one field or a file is required")
	ErrSlotBusy               = errors.New("position is being allocated, retry later")
)

// AllocationError Banner 分配被拒绝，Kind 为上面的错误种类之一
type AllocationError struct {
	Kind   error
	Reason string
	Detail string
}

func (e *AllocationError) Error() string {
	if e == nil || e.Kind == nil {
		return "allocation rejected"
	}
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

// Unwrap 支持 errors.Is 判断错误种类
func (e *AllocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func reject(kind error, reason, detail string) *AllocationError {
	return &AllocationError{Kind: kind, Reason: reason, Detail: detail}
}

// AllocationReason 提取拒绝原因，非分配错误返回空串
func AllocationReason(err error) string {
	var allocErr *AllocationError
	if errors.As(err, &allocErr) {
		return allocErr.Reason
	}
	return ""
}
