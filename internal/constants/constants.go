package constants

// 续期策略常量
const (
	RenewalStrategyManual    = "manual"
	RenewalStrategyAutomatic = "automatic"
)

// RenewalPeriodsDays 自动续期允许的周期（天）
var RenewalPeriodsDays = []int{30, 60, 90}

// 角色常量
const (
	RoleAdmin      = "admin"
	RoleAdvertiser = "advertiser"
	RoleUser       = "user"
)

// BuiltinRoles 系统预置角色
var BuiltinRoles = []string{RoleAdmin, RoleAdvertiser, RoleUser}

// 队列相关常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskBannerWarnExpiring  = "banner:lifecycle:warn_expiring"
	TaskBannerDeleteExpired = "banner:lifecycle:delete_expired"
	TaskBannerAutoRenew     = "banner:lifecycle:auto_renew"
)

// 生命周期默认参数
const (
	DefaultExpiryWarnDays = 3
	DefaultLifecycleCron  = "0 1 * * *"
)

// 图片存储目录
const (
	ImageFolderBanners = "banners"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
