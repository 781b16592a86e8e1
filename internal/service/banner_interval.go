package service

import "time"

// Interval 投放时间区间，End 为空表示不限期
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Valid 结束时间必须晚于开始时间
func (i Interval) Valid() bool {
	return i.End == nil || i.End.After(i.Start)
}

// Overlaps 判断与已存区间是否重叠：stored.Start <= i.End(∞) 且 (stored.End 为空 或 stored.End >= i.Start)
func (i Interval) Overlaps(stored Interval) bool {
	if i.End != nil && stored.Start.After(*i.End) {
		return false
	}
	if stored.End != nil && stored.End.Before(i.Start) {
		return false
	}
	return true
}

// Contains 判断时间点是否落在区间内
func (i Interval) Contains(t time.Time) bool {
	if t.Before(i.Start) {
		return false
	}
	return i.End == nil || !t.After(*i.End)
}
