package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"

	"gorm.io/gorm"
)

// Actor 已认证的调用方
type Actor struct {
	ID    uint
	Email string
	Roles []string
}

// HasRole 判断是否拥有角色
func (a Actor) HasRole(role string) bool {
	for _, item := range a.Roles {
		if strings.EqualFold(item, role) {
			return true
		}
	}
	return false
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool {
	return a.HasRole(constants.RoleAdmin)
}

// BannerRequest 创建/更新请求，nil 字段表示未提供
type BannerRequest struct {
	DestinationLink *string
	PositionID      *uint
	StartDate       *time.Time
	EndDate         *time.Time
	RenewalStrategy *string
	RenewalPeriod   *int
	DisplayOrder    *int
}

// IsEmpty 是否未提供任何字段
func (r BannerRequest) IsEmpty() bool {
	return r.DestinationLink == nil &&
		r.PositionID == nil &&
		r.StartDate == nil &&
		r.EndDate == nil &&
		r.RenewalStrategy == nil &&
		r.RenewalPeriod == nil &&
		r.DisplayOrder == nil
}

// BannerPatch 更新校验结果
// Updates 仅包含请求提供（或因策略切换而被清空）的字段，Merged 为合并后的完整记录
type BannerPatch struct {
	Existing *models.Banner
	Merged   models.Banner
	Updates  map[string]interface{}
}

// BannerValidator Banner 分配校验器
// 无状态，仓库在事务中通过 WithTx 重新绑定
type BannerValidator struct {
	banners   repository.BannerRepository
	positions repository.PositionRepository
	now       func() time.Time
}

// NewBannerValidator 创建校验器
func NewBannerValidator(banners repository.BannerRepository, positions repository.PositionRepository) *BannerValidator {
	return &BannerValidator{banners: banners, positions: positions, now: time.Now}
}

// WithTx 绑定事务
func (v *BannerValidator) WithTx(tx *gorm.DB) *BannerValidator {
	if tx == nil {
		return v
	}
	return &BannerValidator{
		banners:   v.banners.WithTx(tx),
		positions: v.positions.WithTx(tx),
		now:       v.now,
	}
}

// WithClock 替换时钟
func (v *BannerValidator) WithClock(now func() time.Time) *BannerValidator {
	if now == nil {
		return v
	}
	return &BannerValidator{banners: v.banners, positions: v.positions, now: now}
}

// ValidateCreate 校验新建请求并返回待持久化的规范记录
func (v *BannerValidator) ValidateCreate(req BannerRequest, actor Actor, image StoredImage) (*models.Banner, error) {
	link, err := normalizeDestinationLink(req.DestinationLink)
	if err != nil {
		return nil, err
	}

	start := v.now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}
	end := utcPtr(req.EndDate)
	if !(Interval{Start: start, End: end}).Valid() {
		return nil, reject(ErrInvalidDateRange, "", "")
	}

	strategy := constants.RenewalStrategyManual
	if req.RenewalStrategy != nil {
		strategy = *req.RenewalStrategy
	}
	policy, err := ParseRenewalPolicy(strategy, req.RenewalPeriod, end)
	if err != nil {
		return nil, err
	}

	var positionID uint
	if req.PositionID != nil {
		positionID = *req.PositionID
	}
	position, err := v.resolvePosition(positionID)
	if err != nil {
		return nil, err
	}

	window := Interval{Start: start, End: end}
	if err := v.checkCapacity(position, window, ""); err != nil {
		return nil, err
	}
	order, err := v.checkDisplayOrder(position, req.DisplayOrder, window, "")
	if err != nil {
		return nil, err
	}

	banner := &models.Banner{
		ImageURL:        image.URL,
		ImagePublicID:   image.PublicID,
		DestinationLink: link,
		StartDate:       start,
		EndDate:         end,
		RenewalStrategy: policy.Strategy(),
		PositionID:      position.ID,
		UserID:          actor.ID,
		DisplayOrder:    order,
	}
	if auto, ok := policy.(AutomaticRenewal); ok {
		period := auto.PeriodDays
		banner.RenewalPeriod = &period
	}
	return banner, nil
}

// ValidateUpdate 校验局部更新，未提供的字段沿用现有值参与校验
func (v *BannerValidator) ValidateUpdate(bannerID string, req BannerRequest, actor Actor, image *StoredImage) (*BannerPatch, error) {
	existing, err := v.banners.GetByID(bannerID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBannerAccess(existing, actor); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	merged := *existing
	merged.Position = nil
	merged.User = nil

	if req.DestinationLink != nil {
		link, err := normalizeDestinationLink(req.DestinationLink)
		if err != nil {
			return nil, err
		}
		merged.DestinationLink = link
		updates["destination_link"] = link
	}
	if req.StartDate != nil {
		merged.StartDate = req.StartDate.UTC()
		updates["start_date"] = merged.StartDate
	}

	strategy := existing.RenewalStrategy
	if req.RenewalStrategy != nil {
		strategy = strings.ToLower(strings.TrimSpace(*req.RenewalStrategy))
	}
	strategyChanged := strategy != existing.RenewalStrategy

	switch {
	case req.EndDate != nil:
		merged.EndDate = utcPtr(req.EndDate)
		updates["end_date"] = *merged.EndDate
	case strategyChanged && strategy == constants.RenewalStrategyAutomatic && existing.EndDate != nil:
		// 切换为自动续期时不继承旧的结束时间
		merged.EndDate = nil
		updates["end_date"] = nil
	}
	switch {
	case req.RenewalPeriod != nil:
		period := *req.RenewalPeriod
		merged.RenewalPeriod = &period
	case strategyChanged && existing.RenewalPeriod != nil:
		merged.RenewalPeriod = nil
	}

	if !(Interval{Start: merged.StartDate, End: merged.EndDate}).Valid() {
		return nil, reject(ErrInvalidDateRange, "", "")
	}
	policy, err := ParseRenewalPolicy(strategy, merged.RenewalPeriod, merged.EndDate)
	if err != nil {
		return nil, err
	}
	merged.RenewalStrategy = policy.Strategy()
	if req.RenewalStrategy != nil {
		updates["renewal_strategy"] = merged.RenewalStrategy
	}
	if req.RenewalPeriod != nil || (strategyChanged && existing.RenewalPeriod != nil) {
		if merged.RenewalPeriod == nil {
			updates["renewal_period"] = nil
		} else {
			updates["renewal_period"] = *merged.RenewalPeriod
		}
	}

	positionID := existing.PositionID
	if req.PositionID != nil {
		positionID = *req.PositionID
	}
	position, err := v.resolvePosition(positionID)
	if err != nil {
		return nil, err
	}
	positionChanged := position.ID != existing.PositionID
	merged.PositionID = position.ID
	if req.PositionID != nil {
		updates["position_id"] = position.ID
	}

	window := Interval{Start: merged.StartDate, End: merged.EndDate}
	if err := v.checkCapacity(position, window, existing.ID); err != nil {
		return nil, err
	}

	requestedOrder := req.DisplayOrder
	if requestedOrder == nil && !positionChanged && position.AllowsDisplayOrder() {
		requestedOrder = existing.DisplayOrder
	}
	order, err := v.checkDisplayOrder(position, requestedOrder, window, existing.ID)
	if err != nil {
		return nil, err
	}
	merged.DisplayOrder = order
	switch {
	case req.DisplayOrder != nil:
		updates["display_order"] = *order
	case positionChanged && existing.DisplayOrder != nil && order == nil:
		updates["display_order"] = nil
	}

	if image != nil {
		merged.ImageURL = image.URL
		merged.ImagePublicID = image.PublicID
		updates["image_url"] = image.URL
		updates["image_public_id"] = image.PublicID
	}

	return &BannerPatch{Existing: existing, Merged: merged, Updates: updates}, nil
}

func (v *BannerValidator) resolvePosition(positionID uint) (*models.Position, error) {
	if positionID == 0 {
		return nil, reject(ErrPositionNotFound, "", "position_id is required")
	}
	position, err := v.positions.GetForUpdate(positionID)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, reject(ErrPositionNotFound, "", fmt.Sprintf("position %d does not exist", positionID))
	}
	return position, nil
}

func (v *BannerValidator) checkCapacity(position *models.Position, window Interval, excludeID string) error {
	count, err := v.banners.CountOverlapping(position.ID, window.Start, window.End, excludeID)
	if err != nil {
		return err
	}
	if count >= int64(position.MaxBanners) {
		return reject(ErrCapacityExceeded, "", fmt.Sprintf("position %q allows %d banners at a time", position.Name, position.MaxBanners))
	}
	return nil
}

func (v *BannerValidator) checkDisplayOrder(position *models.Position, order *int, window Interval, excludeID string) (*int, error) {
	if !position.AllowsDisplayOrder() {
		if order != nil {
			return nil, reject(ErrDisplayOrderOutOfRange, ReasonDisplayOrderNotAllowed, fmt.Sprintf("position %q has a single slot", position.Name))
		}
		return nil, nil
	}
	if order == nil {
		return nil, reject(ErrDisplayOrderRequired, "", fmt.Sprintf("position %q has %d slots", position.Name, position.MaxBanners))
	}
	value := *order
	if value < 1 || value > position.MaxBanners {
		return nil, reject(ErrDisplayOrderOutOfRange, "", fmt.Sprintf("display_order must be between 1 and %d", position.MaxBanners))
	}
	count, err := v.banners.CountOverlappingWithDisplayOrder(position.ID, value, window.Start, window.End, excludeID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, reject(ErrDisplayOrderConflict, "", fmt.Sprintf("display_order %d is taken in this window", value))
	}
	return &value, nil
}

// authorizeBannerAccess Banner 必须存在且调用方为所有者或管理员
func authorizeBannerAccess(banner *models.Banner, actor Actor) error {
	if banner == nil {
		return reject(ErrBannerNotFound, "", "")
	}
	if actor.IsAdmin() || banner.IsOwnedBy(actor.ID) {
		return nil
	}
	return reject(ErrUnauthorized, "", "")
}

func normalizeDestinationLink(raw *string) (string, error) {
	if raw == nil {
		return "", reject(ErrInvalidDestinationLink, "", "destination_link is required")
	}
	link := strings.TrimSpace(*raw)
	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", reject(ErrInvalidDestinationLink, "", "")
	}
	return link, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
