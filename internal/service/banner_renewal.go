package service

import (
	"strings"
	"time"

	"github.com/bannerhub/internal/constants"
)

// 续期策略拒绝原因
const (
	ReasonUnknownStrategy        = "unknown_strategy"
	ReasonPeriodWithEndDate      = "period_with_end_date"
	ReasonInvalidPeriod          = "invalid_period"
	ReasonManualRequiresEndDate  = "manual_requires_end_date"
	ReasonDisplayOrderNotAllowed = "display_order_not_allowed"
)

// RenewalPolicy 续期策略：ManualRenewal 或 AutomaticRenewal
type RenewalPolicy interface {
	Strategy() string
	isRenewalPolicy()
}

// ManualRenewal 手动续期，必须有结束时间
type ManualRenewal struct {
	EndDate time.Time
}

// Strategy 策略名
func (ManualRenewal) Strategy() string { return constants.RenewalStrategyManual }

func (ManualRenewal) isRenewalPolicy() {}

// AutomaticRenewal 自动续期，按周期滚动且无结束时间
type AutomaticRenewal struct {
	PeriodDays int
}

// Strategy 策略名
func (AutomaticRenewal) Strategy() string { return constants.RenewalStrategyAutomatic }

func (AutomaticRenewal) isRenewalPolicy() {}

// NextStart 下一次续期的开始时间
func (p AutomaticRenewal) NextStart(start time.Time) time.Time {
	return start.AddDate(0, 0, p.PeriodDays)
}

// ParseRenewalPolicy 校验策略、周期与结束时间的组合
func ParseRenewalPolicy(strategy string, period *int, endDate *time.Time) (RenewalPolicy, error) {
	normalized := strings.ToLower(strings.TrimSpace(strategy))
	if normalized != constants.RenewalStrategyManual && normalized != constants.RenewalStrategyAutomatic {
		return nil, reject(ErrInvalidRenewalPolicy, ReasonUnknownStrategy, strategy)
	}
	if period != nil && endDate != nil {
		return nil, reject(ErrInvalidRenewalPolicy, ReasonPeriodWithEndDate, "")
	}
	if normalized == constants.RenewalStrategyAutomatic {
		if period == nil || !isAllowedRenewalPeriod(*period) {
			return nil, reject(ErrInvalidRenewalPolicy, ReasonInvalidPeriod, "period must be one of 30, 60, 90")
		}
		return AutomaticRenewal{PeriodDays: *period}, nil
	}
	if endDate == nil {
		return nil, reject(ErrInvalidRenewalPolicy, ReasonManualRequiresEndDate, "")
	}
	return ManualRenewal{EndDate: *endDate}, nil
}

func isAllowedRenewalPeriod(days int) bool {
	for _, allowed := range constants.RenewalPeriodsDays {
		if days == allowed {
			return true
		}
	}
	return false
}
