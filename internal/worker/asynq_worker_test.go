package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/provider"
	"github.com/bannerhub/internal/queue"
	"github.com/bannerhub/internal/repository"
	"github.com/bannerhub/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu       sync.Mutex
	expiring []string
	expired  []string
	renewed  []string
}

func (n *recordingNotifier) SendExpiringNotice(to, link string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expiring = append(n.expiring, to+" "+link)
	return nil
}

func (n *recordingNotifier) SendExpiredNotice(to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, to+" "+link)
	return nil
}

func (n *recordingNotifier) SendRenewalNotice(to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.renewed = append(n.renewed, to+" "+link)
	return nil
}

func setupWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := models.SeedDefaultPositions(db); err != nil {
		t.Fatalf("seed positions failed: %v", err)
	}
	return db
}

func newWorkerTestConsumer(t *testing.T, db *gorm.DB, notifier service.Notifier, now time.Time) *Consumer {
	t.Helper()
	lifecycle := service.NewLifecycleService(repository.NewBannerRepository(db), notifier, nil, config.LifecycleConfig{Enabled: true})
	lifecycle.WithClock(func() time.Time { return now })
	return NewConsumer(&provider.Container{LifecycleService: lifecycle})
}

func insertWorkerTestBanner(t *testing.T, db *gorm.DB, userID uint, link string, start time.Time, end *time.Time, position uint) {
	t.Helper()
	banner := &models.Banner{
		ImageURL:        "https://cdn.example.com/a.png",
		DestinationLink: link,
		StartDate:       start,
		EndDate:         end,
		RenewalStrategy: constants.RenewalStrategyManual,
		PositionID:      position,
		UserID:          userID,
	}
	if err := db.Create(banner).Error; err != nil {
		t.Fatalf("insert banner failed: %v", err)
	}
}

func TestConsumerRunsLifecycleDuties(t *testing.T) {
	db := setupWorkerTestDB(t)
	owner := &models.User{Name: "owner", Email: "owner@example.com", PasswordHash: "hash", Status: constants.UserStatusActive}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	soon := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
	gone := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	insertWorkerTestBanner(t, db, owner.ID, "https://example.com/soon", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &soon, 1)
	insertWorkerTestBanner(t, db, owner.ID, "https://example.com/gone", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), &gone, 2)

	notifier := &recordingNotifier{}
	consumer := newWorkerTestConsumer(t, db, notifier, time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	for _, taskType := range queue.LifecycleTaskTypes {
		task, err := queue.NewLifecycleTask(taskType, queue.LifecyclePayload{Trigger: "manual"})
		if err != nil {
			t.Fatalf("new task failed: %v", err)
		}
		if err := mux.ProcessTask(context.Background(), task); err != nil {
			t.Fatalf("process %s failed: %v", taskType, err)
		}
	}

	if len(notifier.expiring) != 1 || notifier.expiring[0] != "owner@example.com https://example.com/soon" {
		t.Fatalf("unexpected expiring notices: %v", notifier.expiring)
	}
	if len(notifier.expired) != 1 || notifier.expired[0] != "owner@example.com https://example.com/gone" {
		t.Fatalf("unexpected expired notices: %v", notifier.expired)
	}
	var remaining int64
	if err := db.Model(&models.Banner{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count banners failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expired banner should be deleted, remaining %d", remaining)
	}
}

func TestConsumerRejectsMalformedPayload(t *testing.T) {
	db := setupWorkerTestDB(t)
	consumer := newWorkerTestConsumer(t, db, &recordingNotifier{}, time.Now())
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	err := mux.ProcessTask(context.Background(), asynq.NewTask(queue.TaskBannerAutoRenew, []byte("{")))
	if err == nil {
		t.Fatalf("malformed payload should fail")
	}
}

func TestConsumerWithoutLifecycleServiceIsNoop(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task, _ := queue.NewLifecycleTask(queue.TaskBannerWarnExpiring, queue.LifecyclePayload{})
	if err := consumer.handleWarnExpiring(context.Background(), task); err != nil {
		t.Fatalf("nil lifecycle service should be skipped, got %v", err)
	}
}
