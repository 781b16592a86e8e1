package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"

	"gorm.io/gorm"
)

// BannerRepository Banner 数据访问接口
type BannerRepository interface {
	WithTx(tx *gorm.DB) BannerRepository
	Transaction(fn func(tx *gorm.DB) error) error
	GetByID(id string) (*models.Banner, error)
	Create(banner *models.Banner) error
	Updates(id string, updates map[string]interface{}) error
	DeleteByID(id string) error
	DeleteByUser(userID uint) (int64, error)
	List(filter BannerListFilter) ([]models.Banner, int64, error)
	ListActive(filter ActiveBannerFilter) ([]models.Banner, error)
	ListByUser(userID uint) ([]models.Banner, error)
	CountOverlapping(positionID uint, start time.Time, end *time.Time, excludeID string) (int64, error)
	CountOverlappingWithDisplayOrder(positionID uint, displayOrder int, start time.Time, end *time.Time, excludeID string) (int64, error)
	FindExpiringWithinDays(today time.Time, days int) ([]models.Banner, error)
	FindExpiredBefore(date time.Time) ([]models.Banner, error)
	FindPendingAutoRenewal() ([]models.Banner, error)
	MarkNotified(id string) error
	UpdateRenewalDate(id string, newStart time.Time) error
}

// GormBannerRepository GORM 实现
type GormBannerRepository struct {
	db *gorm.DB
}

// NewBannerRepository 创建 Banner 仓库
func NewBannerRepository(db *gorm.DB) *GormBannerRepository {
	return &GormBannerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBannerRepository) WithTx(tx *gorm.DB) BannerRepository {
	if tx == nil {
		return r
	}
	return &GormBannerRepository{db: tx}
}

// Transaction 执行事务
func (r *GormBannerRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// GetByID 根据 ID 获取 Banner（含投放位与用户）
func (r *GormBannerRepository) GetByID(id string) (*models.Banner, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var banner models.Banner
	if err := r.db.Preload("Position").Preload("User").Where("id = ?", id).First(&banner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &banner, nil
}

// Create 创建 Banner
func (r *GormBannerRepository) Create(banner *models.Banner) error {
	return r.db.Omit("Position", "User").Create(banner).Error
}

// Updates 按字段局部更新，空集合视为无操作
func (r *GormBannerRepository) Updates(id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Banner{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteByID 删除 Banner
func (r *GormBannerRepository) DeleteByID(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Banner{}).Error
}

// DeleteByUser 删除用户的全部 Banner
func (r *GormBannerRepository) DeleteByUser(userID uint) (int64, error) {
	result := r.db.Where("user_id = ?", userID).Delete(&models.Banner{})
	return result.RowsAffected, result.Error
}

// List Banner 列表
func (r *GormBannerRepository) List(filter BannerListFilter) ([]models.Banner, int64, error) {
	query := r.db.Model(&models.Banner{})
	if filter.PositionID != 0 {
		query = query.Where("position_id = ?", filter.PositionID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var banners []models.Banner
	if err := query.Scopes(paginate(filter.Page, filter.PageSize)).Preload("Position").Preload("User").Order("created_at DESC, id ASC").Find(&banners).Error; err != nil {
		return nil, 0, err
	}
	return banners, total, nil
}

// ListActive 当前展示中的 Banner，按投放位与显示顺序排序
func (r *GormBannerRepository) ListActive(filter ActiveBannerFilter) ([]models.Banner, error) {
	query := r.db.Model(&models.Banner{}).
		Where("start_date <= ?", filter.Now.UTC()).
		Where("(end_date IS NULL OR end_date >= ?)", filter.Today.UTC())
	if filter.PositionID != 0 {
		query = query.Where("position_id = ?", filter.PositionID)
	}

	var banners []models.Banner
	if err := query.Preload("Position").Order("position_id ASC, display_order ASC, start_date ASC").Find(&banners).Error; err != nil {
		return nil, err
	}
	return banners, nil
}

// ListByUser 获取用户的全部 Banner
func (r *GormBannerRepository) ListByUser(userID uint) ([]models.Banner, error) {
	var banners []models.Banner
	if err := r.db.Where("user_id = ?", userID).Find(&banners).Error; err != nil {
		return nil, err
	}
	return banners, nil
}

// CountOverlapping 统计投放位内与区间重叠的 Banner 数量
func (r *GormBannerRepository) CountOverlapping(positionID uint, start time.Time, end *time.Time, excludeID string) (int64, error) {
	query := r.overlapQuery(positionID, start, end, excludeID)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountOverlappingWithDisplayOrder 统计投放位内同显示顺序且区间重叠的 Banner 数量
func (r *GormBannerRepository) CountOverlappingWithDisplayOrder(positionID uint, displayOrder int, start time.Time, end *time.Time, excludeID string) (int64, error) {
	query := r.overlapQuery(positionID, start, end, excludeID).Where("display_order = ?", displayOrder)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormBannerRepository) overlapQuery(positionID uint, start time.Time, end *time.Time, excludeID string) *gorm.DB {
	query := r.db.Model(&models.Banner{}).Where("position_id = ?", positionID)
	if id := strings.TrimSpace(excludeID); id != "" {
		query = query.Where("id <> ?", id)
	}
	return applyOverlap(query, start, end)
}

// FindExpiringWithinDays 查找在 [today, today+days+1) 内到期且未提醒的 Banner
func (r *GormBannerRepository) FindExpiringWithinDays(today time.Time, days int) ([]models.Banner, error) {
	if days < 0 {
		days = 0
	}
	from := startOfDay(today)
	to := from.AddDate(0, 0, days+1)

	var banners []models.Banner
	err := r.db.Preload("User").
		Where("end_date IS NOT NULL").
		Where("end_date >= ? AND end_date < ?", from.UTC(), to.UTC()).
		Where("notified = ?", false).
		Order("end_date ASC").
		Find(&banners).Error
	if err != nil {
		return nil, err
	}
	return banners, nil
}

// FindExpiredBefore 查找结束时间早于指定时间的 Banner
func (r *GormBannerRepository) FindExpiredBefore(date time.Time) ([]models.Banner, error) {
	var banners []models.Banner
	err := r.db.Preload("User").
		Where("end_date IS NOT NULL AND end_date < ?", date.UTC()).
		Order("end_date ASC").
		Find(&banners).Error
	if err != nil {
		return nil, err
	}
	return banners, nil
}

// FindPendingAutoRenewal 查找自动续期且无结束时间的 Banner
func (r *GormBannerRepository) FindPendingAutoRenewal() ([]models.Banner, error) {
	var banners []models.Banner
	err := r.db.Preload("User").
		Where("renewal_strategy = ?", constants.RenewalStrategyAutomatic).
		Where("end_date IS NULL").
		Order("start_date ASC").
		Find(&banners).Error
	if err != nil {
		return nil, err
	}
	return banners, nil
}

// MarkNotified 标记已发送到期提醒
func (r *GormBannerRepository) MarkNotified(id string) error {
	return r.db.Model(&models.Banner{}).Where("id = ?", id).Update("notified", true).Error
}

// UpdateRenewalDate 滚动开始时间并清空结束时间
func (r *GormBannerRepository) UpdateRenewalDate(id string, newStart time.Time) error {
	return r.db.Model(&models.Banner{}).Where("id = ?", id).Updates(map[string]interface{}{
		"start_date": newStart.UTC(),
		"end_date":   nil,
	}).Error
}
