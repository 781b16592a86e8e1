package shared

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate 日期格式错误
var ErrInvalidDate = errors.New("invalid date")

// ParseDate 解析 2006-01-02 或 RFC3339，日期按 UTC 零点处理，空串返回 nil
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.UTC); err == nil {
		return &t, nil
	}
	return nil, ErrInvalidDate
}

// ParseOptionalInt 解析可选整数，空串返回 nil
func ParseOptionalInt(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseOptionalUint 解析可选正整数 ID，空串返回 nil
func ParseOptionalUint(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(v)
	return &id, nil
}
