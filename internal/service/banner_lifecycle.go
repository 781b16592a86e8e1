package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"
)

// Notifier 生命周期通知发送
type Notifier interface {
	SendExpiringNotice(to, link string, daysLeft int) error
	SendExpiredNotice(to, link string) error
	SendRenewalNotice(to, link string) error
}

// LifecycleReport 单个任务的执行统计
type LifecycleReport struct {
	Candidates int `json:"candidates"`
	Processed  int `json:"processed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// LifecycleSummary 三个任务的执行统计
type LifecycleSummary struct {
	WarnExpiring  LifecycleReport `json:"warn_expiring"`
	DeleteExpired LifecycleReport `json:"delete_expired"`
	AutoRenew     LifecycleReport `json:"auto_renew"`
}

// LifecycleService Banner 到期提醒、过期清理与自动续期
// 单条记录失败只记录日志，不影响其他记录
// 同一进程内定时、启动、手动与队列触发的执行互斥，避免重复提醒
type LifecycleService struct {
	runMu    sync.Mutex
	banners  repository.BannerRepository
	notifier Notifier
	images   ImageStore
	warnDays int
	location *time.Location
	now      func() time.Time
}

// NewLifecycleService 创建生命周期服务，images 可为空
func NewLifecycleService(banners repository.BannerRepository, notifier Notifier, images ImageStore, cfg config.LifecycleConfig) *LifecycleService {
	warnDays := cfg.WarnDays
	if warnDays <= 0 {
		warnDays = constants.DefaultExpiryWarnDays
	}
	return &LifecycleService{
		banners:  banners,
		notifier: notifier,
		images:   images,
		warnDays: warnDays,
		location: cfg.Location(),
		now:      time.Now,
	}
}

// WithClock 替换时钟
func (s *LifecycleService) WithClock(now func() time.Time) *LifecycleService {
	if now != nil {
		s.now = now
	}
	return s
}

// Location 生命周期任务使用的时区
func (s *LifecycleService) Location() *time.Location {
	return s.location
}

// RunAll 依次执行三个任务，查询失败的任务返回错误但不阻止后续任务
func (s *LifecycleService) RunAll(ctx context.Context) (LifecycleSummary, error) {
	var (
		summary  LifecycleSummary
		firstErr error
	)
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	var err error
	summary.WarnExpiring, err = s.warnExpiring(ctx)
	keep(err)
	summary.DeleteExpired, err = s.deleteExpired(ctx)
	keep(err)
	summary.AutoRenew, err = s.autoRenew(ctx)
	keep(err)
	return summary, firstErr
}

// WarnExpiring 提醒即将到期的 Banner 所有者并标记已提醒
func (s *LifecycleService) WarnExpiring(ctx context.Context) (LifecycleReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.warnExpiring(ctx)
}

// DeleteExpired 删除结束时间早于今天零点的 Banner 并通知所有者
func (s *LifecycleService) DeleteExpired(ctx context.Context) (LifecycleReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.deleteExpired(ctx)
}

// AutoRenew 自动续期周期已过的 Banner：通知后将开始时间滚动到续期日
func (s *LifecycleService) AutoRenew(ctx context.Context) (LifecycleReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.autoRenew(ctx)
}

func (s *LifecycleService) warnExpiring(ctx context.Context) (LifecycleReport, error) {
	today := startOfDayIn(s.now(), s.location)
	banners, err := s.banners.FindExpiringWithinDays(today, s.warnDays)
	if err != nil {
		logger.Errorw("banner_lifecycle_warn_fetch_failed", "error", err)
		return LifecycleReport{}, err
	}

	report := LifecycleReport{Candidates: len(banners)}
	for i := range banners {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		banner := &banners[i]
		email := ownerEmail(banner)
		if email == "" {
			logger.Warnw("banner_lifecycle_owner_without_email", "banner_id", banner.ID, "user_id", banner.UserID)
			report.Skipped++
			continue
		}
		daysLeft := daysUntil(today, *banner.EndDate, s.location)
		if err := s.notifier.SendExpiringNotice(email, banner.DestinationLink, daysLeft); err != nil {
			logger.Warnw("banner_lifecycle_warn_send_failed", "banner_id", banner.ID, "error", err)
			report.Failed++
			continue
		}
		if err := s.banners.MarkNotified(banner.ID); err != nil {
			logger.Warnw("banner_lifecycle_mark_notified_failed", "banner_id", banner.ID, "error", err)
			report.Failed++
			continue
		}
		report.Processed++
	}
	logger.Infow("banner_lifecycle_warn_done", "candidates", report.Candidates, "processed", report.Processed, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (s *LifecycleService) deleteExpired(ctx context.Context) (LifecycleReport, error) {
	today := startOfDayIn(s.now(), s.location)
	banners, err := s.banners.FindExpiredBefore(today)
	if err != nil {
		logger.Errorw("banner_lifecycle_expired_fetch_failed", "error", err)
		return LifecycleReport{}, err
	}

	report := LifecycleReport{Candidates: len(banners)}
	for i := range banners {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		banner := &banners[i]
		if err := s.banners.DeleteByID(banner.ID); err != nil {
			logger.Warnw("banner_lifecycle_delete_failed", "banner_id", banner.ID, "error", err)
			report.Failed++
			continue
		}
		s.discardImage(ctx, banner)

		email := ownerEmail(banner)
		if email == "" {
			logger.Warnw("banner_lifecycle_owner_without_email", "banner_id", banner.ID, "user_id", banner.UserID)
			report.Skipped++
			continue
		}
		if err := s.notifier.SendExpiredNotice(email, banner.DestinationLink); err != nil {
			logger.Warnw("banner_lifecycle_expired_send_failed", "banner_id", banner.ID, "error", err)
			report.Failed++
			continue
		}
		report.Processed++
	}
	logger.Infow("banner_lifecycle_expired_done", "candidates", report.Candidates, "processed", report.Processed, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (s *LifecycleService) autoRenew(ctx context.Context) (LifecycleReport, error) {
	now := s.now()
	banners, err := s.banners.FindPendingAutoRenewal()
	if err != nil {
		logger.Errorw("banner_lifecycle_renewal_fetch_failed", "error", err)
		return LifecycleReport{}, err
	}

	report := LifecycleReport{Candidates: len(banners)}
	for i := range banners {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		banner := &banners[i]
		if banner.RenewalPeriod == nil || *banner.RenewalPeriod <= 0 {
			report.Skipped++
			continue
		}
		renewalDate := AutomaticRenewal{PeriodDays: *banner.RenewalPeriod}.NextStart(banner.StartDate)
		if !renewalDate.Before(now) {
			report.Skipped++
			continue
		}
		email := ownerEmail(banner)
		if email == "" {
			logger.Warnw("banner_lifecycle_owner_without_email", "banner_id", banner.ID, "user_id", banner.UserID)
			report.Skipped++
			continue
		}
		if err := s.notifier.SendRenewalNotice(email, banner.DestinationLink); err != nil {
			logger.Warnw("banner_lifecycle_renewal_send_failed", "banner_id", banner.ID, "error", err)
			report.Failed++
			continue
		}
		if err := s.banners.UpdateRenewalDate(banner.ID, renewalDate); err != nil {
			logger.Warnw("banner_lifecycle_renewal_update_failed", "banner_id", banner.ID, "error", err)
			report.Failed++
			continue
		}
		report.Processed++
	}
	logger.Infow("banner_lifecycle_renewal_done", "candidates", report.Candidates, "processed", report.Processed, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (s *LifecycleService) discardImage(ctx context.Context, banner *models.Banner) {
	if s.images == nil || banner.ImagePublicID == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageCleanupTimeout)
	defer cancel()
	if err := s.images.Delete(cleanupCtx, banner.ImagePublicID); err != nil {
		logger.Warnw("banner_lifecycle_image_cleanup_failed", "banner_id", banner.ID, "error", err)
	}
}

func ownerEmail(banner *models.Banner) string {
	if banner == nil || banner.User == nil {
		return ""
	}
	return strings.TrimSpace(banner.User.Email)
}

// daysUntil 按自然日计算剩余天数
func daysUntil(today, end time.Time, loc *time.Location) int {
	endDay := startOfDayIn(end, loc)
	days := int(math.Round(endDay.Sub(today).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}
