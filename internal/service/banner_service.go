package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bannerhub/internal/cache"
	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"

	"gorm.io/gorm"
)

const imageCleanupTimeout = 10 * time.Second

// BannerService Banner 业务服务
type BannerService struct {
	banners    repository.BannerRepository
	validator  *BannerValidator
	inspector  *ImageInspector
	images     ImageStore
	locker     SlotLocker
	allocation config.AllocationConfig
	location   *time.Location
	now        func() time.Time
}

// NewBannerService 创建 Banner 服务
func NewBannerService(
	banners repository.BannerRepository,
	positions repository.PositionRepository,
	images ImageStore,
	locker SlotLocker,
	cfg *config.Config,
) *BannerService {
	if locker == nil {
		locker = NewLocalSlotLocker(cfg.Allocation.LockWait())
	}
	return &BannerService{
		banners:    banners,
		validator:  NewBannerValidator(banners, positions),
		inspector:  NewImageInspector(cfg.Upload),
		images:     images,
		locker:     locker,
		allocation: cfg.Allocation,
		location:   cfg.Lifecycle.Location(),
		now:        time.Now,
	}
}

// Create 上传图片后在投放位锁与事务内校验并写入，失败时删除已上传图片
func (s *BannerService) Create(ctx context.Context, req BannerRequest, actor Actor, upload *ImageUpload) (*models.Banner, error) {
	if upload == nil {
		return nil, ErrImageRequired
	}
	stored, err := s.storeImage(ctx, upload)
	if err != nil {
		return nil, err
	}

	var positionID uint
	if req.PositionID != nil {
		positionID = *req.PositionID
	}
	var created *models.Banner
	err = s.withPositionLock(ctx, positionID, func() error {
		return s.banners.Transaction(func(tx *gorm.DB) error {
			banner, err := s.validator.WithTx(tx).WithClock(s.now).ValidateCreate(req, actor, stored)
			if err != nil {
				return err
			}
			if err := s.banners.WithTx(tx).Create(banner); err != nil {
				return err
			}
			created = banner
			return nil
		})
	})
	if err != nil {
		s.discardImage(stored.PublicID, "create_failed")
		return nil, err
	}

	logger.Infow("banner_created", "banner_id", created.ID, "position_id", created.PositionID, "user_id", created.UserID)
	return s.reload(created.ID)
}

// Update 局部更新，可替换图片；新图片在失败时删除，旧图片在提交后删除
func (s *BannerService) Update(ctx context.Context, id string, req BannerRequest, actor Actor, upload *ImageUpload) (*models.Banner, error) {
	existing, err := s.banners.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBannerAccess(existing, actor); err != nil {
		return nil, err
	}

	var stored *StoredImage
	if upload != nil {
		image, err := s.storeImage(ctx, upload)
		if err != nil {
			return nil, err
		}
		stored = &image
	}

	positionID := existing.PositionID
	if req.PositionID != nil {
		positionID = *req.PositionID
	}
	var patch *BannerPatch
	err = s.withPositionLock(ctx, positionID, func() error {
		return s.banners.Transaction(func(tx *gorm.DB) error {
			result, err := s.validator.WithTx(tx).WithClock(s.now).ValidateUpdate(id, req, actor, stored)
			if err != nil {
				return err
			}
			if err := s.banners.WithTx(tx).Updates(id, result.Updates); err != nil {
				return err
			}
			patch = result
			return nil
		})
	})
	if err != nil {
		if stored != nil {
			s.discardImage(stored.PublicID, "update_failed")
		}
		return nil, err
	}

	if stored != nil && patch.Existing.ImagePublicID != "" && patch.Existing.ImagePublicID != stored.PublicID {
		s.discardImage(patch.Existing.ImagePublicID, "replaced")
	}
	logger.Infow("banner_updated", "banner_id", id, "fields", len(patch.Updates))
	return s.reload(id)
}

// Delete 删除 Banner，图片删除失败仅记录日志
func (s *BannerService) Delete(ctx context.Context, id string, actor Actor) error {
	existing, err := s.banners.GetByID(id)
	if err != nil {
		return err
	}
	if err := authorizeBannerAccess(existing, actor); err != nil {
		return err
	}
	if err := s.banners.DeleteByID(id); err != nil {
		return err
	}
	s.discardImage(existing.ImagePublicID, "deleted")
	logger.Infow("banner_deleted", "banner_id", id, "actor_id", actor.ID)
	return nil
}

// Get 获取 Banner，仅所有者或管理员可见
func (s *BannerService) Get(id string, actor Actor) (*models.Banner, error) {
	banner, err := s.banners.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBannerAccess(banner, actor); err != nil {
		return nil, err
	}
	return banner, nil
}

// List 分页列表，非管理员只能看到自己的 Banner
func (s *BannerService) List(filter repository.BannerListFilter, actor Actor) ([]models.Banner, int64, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.ID
	}
	return s.banners.List(filter)
}

// ListActive 公开的在投 Banner
func (s *BannerService) ListActive(positionID uint) ([]models.Banner, error) {
	now := s.now()
	return s.banners.ListActive(repository.ActiveBannerFilter{
		PositionID: positionID,
		Now:        now,
		Today:      startOfDayIn(now, s.location),
	})
}

// DeleteByOwner 删除用户的全部 Banner 并尽量清理图片
func (s *BannerService) DeleteByOwner(userID uint) (int64, error) {
	owned, err := s.banners.ListByUser(userID)
	if err != nil {
		return 0, err
	}
	removed, err := s.banners.DeleteByUser(userID)
	if err != nil {
		return 0, err
	}
	for _, banner := range owned {
		s.discardImage(banner.ImagePublicID, "owner_deleted")
	}
	return removed, nil
}

func (s *BannerService) storeImage(ctx context.Context, upload *ImageUpload) (StoredImage, error) {
	ext, _, err := s.inspector.Inspect(upload)
	if err != nil {
		return StoredImage{}, err
	}
	uploadCtx, cancel := context.WithTimeout(ctx, s.allocation.UploadTimeout())
	defer cancel()
	stored, err := s.images.Upload(uploadCtx, upload, ext)
	if err != nil {
		logger.Warnw("banner_image_upload_failed", "filename", upload.Filename, "error", err)
		return StoredImage{}, fmt.Errorf("%w: %v", ErrImageUploadFailed, err)
	}
	return stored, nil
}

func (s *BannerService) withPositionLock(ctx context.Context, positionID uint, fn func() error) error {
	if positionID == 0 {
		return fn()
	}
	release, err := s.locker.Lock(ctx, positionID)
	if err != nil {
		if errors.Is(err, cache.ErrSlotLockTimeout) {
			return ErrSlotBusy
		}
		return err
	}
	defer release()
	return fn()
}

// discardImage 脱离请求上下文删除图片
func (s *BannerService) discardImage(publicID, reason string) {
	if publicID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), imageCleanupTimeout)
	defer cancel()
	if err := s.images.Delete(ctx, publicID); err != nil {
		logger.Warnw("banner_image_cleanup_failed", "public_id", publicID, "reason", reason, "error", err)
	}
}

func (s *BannerService) reload(id string) (*models.Banner, error) {
	banner, err := s.banners.GetByID(id)
	if err != nil {
		return nil, err
	}
	if banner == nil {
		return nil, reject(ErrBannerNotFound, "", "")
	}
	return banner, nil
}

func startOfDayIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
