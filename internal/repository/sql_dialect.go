package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// positionLockNamespace 投放位咨询锁的命名空间（pg_advisory_xact_lock 第一个参数）
const positionLockNamespace int32 = 0x42484e52

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

func isPostgresDialect(dialect string) bool {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}

// advisoryXactLockSQL 返回事务级咨询锁语句，不支持的方言返回空串。
func advisoryXactLockSQL(dialect string) string {
	if isPostgresDialect(dialect) {
		return "SELECT pg_advisory_xact_lock(?, ?)"
	}
	return ""
}

// applyOverlap 追加区间重叠条件：已存开始 <= 新结束（无结束视为无穷）且（已存结束为空或 >= 新开始）。
func applyOverlap(query *gorm.DB, start time.Time, end *time.Time) *gorm.DB {
	if end != nil {
		query = query.Where("start_date <= ?", end.UTC())
	}
	return query.Where("(end_date IS NULL OR end_date >= ?)", start.UTC())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
