package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"

	"gorm.io/gorm"
)

type fakeImageStore struct {
	mu        sync.Mutex
	uploadErr error
	uploads   []string
	deleted   []string
	seq       int
}

func (f *fakeImageStore) Upload(ctx context.Context, upload *ImageUpload, ext string) (StoredImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return StoredImage{}, f.uploadErr
	}
	f.seq++
	publicID := fmt.Sprintf("banners/img-%d%s", f.seq, ext)
	f.uploads = append(f.uploads, publicID)
	return StoredImage{URL: "https://cdn.example.com/" + publicID, PublicID: publicID}, nil
}

func (f *fakeImageStore) Delete(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

func (f *fakeImageStore) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png failed: %v", err)
	}
	return buf.Bytes()
}

func testUpload(t *testing.T) *ImageUpload {
	data := testPNG(t)
	return &ImageUpload{Filename: "banner.png", ContentType: "image/png", Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func newTestBannerService(db *gorm.DB, store ImageStore) *BannerService {
	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxSize:           5 * 1024 * 1024,
			AllowedTypes:      []string{"image/png", "image/jpeg", "image/webp"},
			AllowedExtensions: []string{".png", ".jpg", ".jpeg", ".webp"},
		},
		Allocation: config.AllocationConfig{UploadTimeoutSeconds: 2, LockWaitSeconds: 5},
	}
	svc := NewBannerService(repository.NewBannerRepository(db), repository.NewPositionRepository(db), store, NewLocalSlotLocker(cfg.Allocation.LockWait()), cfg)
	svc.now = func() time.Time { return date(2025, 1, 1) }
	return svc
}

func TestBannerServiceCreateStoresImage(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	store := &fakeImageStore{}
	svc := newTestBannerService(db, store)

	banner, err := svc.Create(context.Background(), manualRequest(testPositionFloating, date(2025, 1, 1), date(2025, 2, 1)), Actor{ID: owner.ID}, testUpload(t))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if banner.ImageURL != "https://cdn.example.com/banners/img-1.png" {
		t.Fatalf("unexpected image url: %s", banner.ImageURL)
	}
	if banner.Position == nil || banner.Position.ID != testPositionFloating {
		t.Fatalf("position should be preloaded: %+v", banner.Position)
	}
	if len(store.deletedIDs()) != 0 {
		t.Fatalf("successful create must keep image")
	}
}

func TestBannerServiceCreateRollsBackImageOnRejection(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 2, 1)})
	store := &fakeImageStore{}
	svc := newTestBannerService(db, store)

	_, err := svc.Create(context.Background(), manualRequest(testPositionFloating, date(2025, 1, 15), date(2025, 3, 1)), Actor{ID: owner.ID}, testUpload(t))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}
	deleted := store.deletedIDs()
	if len(deleted) != 1 || deleted[0] != "banners/img-1.png" {
		t.Fatalf("uploaded image should be deleted, got %v", deleted)
	}
}

func TestBannerServiceCreateUploadFailure(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	store := &fakeImageStore{uploadErr: context.DeadlineExceeded}
	svc := newTestBannerService(db, store)

	_, err := svc.Create(context.Background(), manualRequest(testPositionFloating, date(2025, 1, 1), date(2025, 2, 1)), Actor{ID: owner.ID}, testUpload(t))
	if !errors.Is(err, ErrImageUploadFailed) {
		t.Fatalf("want ErrImageUploadFailed, got %v", err)
	}
	var count int64
	if err := db.Model(&models.Banner{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("nothing should be persisted, got %d", count)
	}

	if _, err := svc.Create(context.Background(), manualRequest(testPositionFloating, date(2025, 1, 1), date(2025, 2, 1)), Actor{ID: owner.ID}, nil); !errors.Is(err, ErrImageRequired) {
		t.Fatalf("want ErrImageRequired, got %v", err)
	}

	bad := &ImageUpload{Filename: "banner.png", Size: 4, Content: bytes.NewReader([]byte("text"))}
	if _, err := svc.Create(context.Background(), manualRequest(testPositionFloating, date(2025, 1, 1), date(2025, 2, 1)), Actor{ID: owner.ID}, bad); !errors.Is(err, ErrImageTypeNotAllowed) {
		t.Fatalf("want ErrImageTypeNotAllowed, got %v", err)
	}
}

func TestBannerServiceUpdateReplacesImage(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	existing := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 2, 1), ImagePublicID: "banners/old.png"})
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2025, 3, 1), EndDate: datePtr(2025, 4, 1)})
	store := &fakeImageStore{}
	svc := newTestBannerService(db, store)
	actor := Actor{ID: owner.ID}

	updated, err := svc.Update(context.Background(), existing.ID, BannerRequest{DestinationLink: ptr("https://example.com/new")}, actor, testUpload(t))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.DestinationLink != "https://example.com/new" || updated.ImagePublicID != "banners/img-1.png" {
		t.Fatalf("unexpected banner after update: %+v", updated)
	}
	if deleted := store.deletedIDs(); len(deleted) != 1 || deleted[0] != "banners/old.png" {
		t.Fatalf("old image should be deleted after commit, got %v", deleted)
	}

	_, err = svc.Update(context.Background(), existing.ID, BannerRequest{EndDate: datePtr(2025, 3, 15)}, actor, testUpload(t))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}
	deleted := store.deletedIDs()
	if len(deleted) != 2 || deleted[1] != "banners/img-2.png" {
		t.Fatalf("new image should be deleted on failure, got %v", deleted)
	}

	reloaded, err := svc.Get(existing.ID, actor)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reloaded.ImagePublicID != "banners/img-1.png" || !reloaded.EndDate.Equal(date(2025, 2, 1)) {
		t.Fatalf("failed update must not change the banner: %+v", reloaded)
	}
}

func TestBannerServiceDeleteAndOwnership(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	other := createServiceTestUser(t, db, "other@example.com")
	existing := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 2, 1), ImagePublicID: "banners/a.png"})
	store := &fakeImageStore{}
	svc := newTestBannerService(db, store)

	if err := svc.Delete(context.Background(), existing.ID, Actor{ID: other.ID}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Get(existing.ID, Actor{ID: other.ID}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on get, got %v", err)
	}
	if err := svc.Delete(context.Background(), existing.ID, Actor{ID: owner.ID}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Delete(context.Background(), existing.ID, Actor{ID: owner.ID}); !errors.Is(err, ErrBannerNotFound) {
		t.Fatalf("want ErrBannerNotFound, got %v", err)
	}
	if deleted := store.deletedIDs(); len(deleted) != 1 || deleted[0] != "banners/a.png" {
		t.Fatalf("image should be deleted, got %v", deleted)
	}
}

func TestBannerServiceListScopesNonAdmin(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	other := createServiceTestUser(t, db, "other@example.com")
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionSidebar, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 2, 1), DisplayOrder: ptr(1)})
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionSidebar, UserID: other.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 2, 1), DisplayOrder: ptr(2)})
	svc := newTestBannerService(db, &fakeImageStore{})

	_, total, err := svc.List(repository.BannerListFilter{Page: 1, PageSize: 10}, Actor{ID: owner.ID, Roles: []string{constants.RoleAdvertiser}})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("advertiser should see own banners only, got %d", total)
	}
	_, total, err = svc.List(repository.BannerListFilter{Page: 1, PageSize: 10}, Actor{ID: other.ID, Roles: []string{constants.RoleAdmin}})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("admin should see all banners, got %d", total)
	}

	active, err := svc.ListActive(0)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active banners want 2, got %d", len(active))
	}
}

func TestBannerServiceConcurrentCreateRespectsCapacity(t *testing.T) {
	db := setupServiceTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	owner := createServiceTestUser(t, db, "owner@example.com")
	store := &fakeImageStore{}
	svc := newTestBannerService(db, store)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), manualRequest(testPositionFloating, date(2025, 1, 1), date(2025, 2, 1)), Actor{ID: owner.ID}, testUpload(t))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != workers-1 {
		t.Fatalf("want 1 success and %d rejections, got %d/%d", workers-1, succeeded, rejected)
	}
	if len(store.deletedIDs()) != workers-1 {
		t.Fatalf("rejected uploads should be cleaned up, got %d", len(store.deletedIDs()))
	}
}
