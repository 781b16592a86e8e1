package repository

import "time"

// BannerListFilter 查询 Banner 列表的过滤条件
type BannerListFilter struct {
	Page       int
	PageSize   int
	PositionID uint
	UserID     uint
}

// ActiveBannerFilter 查询当前展示中 Banner 的条件
type ActiveBannerFilter struct {
	PositionID uint
	Now        time.Time // start_date <= Now
	Today      time.Time // end_date >= Today
}

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page     int
	PageSize int
	Keyword  string
	Status   string
}
