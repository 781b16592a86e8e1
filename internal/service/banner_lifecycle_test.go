package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendExpiringNotice(to, link string, daysLeft int) error {
	return m.Called(to, link, daysLeft).Error(0)
}

func (m *mockNotifier) SendExpiredNotice(to, link string) error {
	return m.Called(to, link).Error(0)
}

func (m *mockNotifier) SendRenewalNotice(to, link string) error {
	return m.Called(to, link).Error(0)
}

// spyBannerRepository 记录 MarkNotified 调用，其余方法走真实仓库
type spyBannerRepository struct {
	repository.BannerRepository
	mock.Mock
}

func (s *spyBannerRepository) MarkNotified(id string) error {
	s.Called(id)
	return s.BannerRepository.MarkNotified(id)
}

func newTestLifecycle(db *gorm.DB, notifier Notifier, now time.Time) (*LifecycleService, *spyBannerRepository) {
	spy := &spyBannerRepository{BannerRepository: repository.NewBannerRepository(db)}
	svc := NewLifecycleService(spy, notifier, nil, config.LifecycleConfig{WarnDays: constants.DefaultExpiryWarnDays})
	svc.now = func() time.Time { return now }
	return svc, spy
}

func TestWarnExpiringIncludesBoundaryDayAndMarksOnce(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	target := insertServiceTestBanner(t, db, models.Banner{
		PositionID:      testPositionFloating,
		UserID:          owner.ID,
		DestinationLink: "https://example.com/soon",
		StartDate:       date(2025, 1, 1),
		EndDate:         datePtr(2025, 1, 13),
	})
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFooter, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 1, 20), DisplayOrder: ptr(1)})

	notifier := &mockNotifier{}
	notifier.On("SendExpiringNotice", "owner@example.com", "https://example.com/soon", 3).Return(nil).Once()
	svc, spy := newTestLifecycle(db, notifier, time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC))
	spy.On("MarkNotified", target.ID).Return()

	report, err := svc.WarnExpiring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LifecycleReport{Candidates: 1, Processed: 1}, report)
	notifier.AssertExpectations(t)
	spy.AssertNumberOfCalls(t, "MarkNotified", 1)

	report, err = svc.WarnExpiring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Candidates, "notified banners must not be warned again")
	spy.AssertNumberOfCalls(t, "MarkNotified", 1)
}

func TestWarnExpiringSkipsOwnerWithoutEmailAndKeepsFailuresIsolated(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	silent := createServiceTestUser(t, db, "silent@example.com")
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", silent.ID).Update("email", "").Error)

	first := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionSidebar, UserID: owner.ID, DestinationLink: "https://example.com/a", StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 1, 11), DisplayOrder: ptr(1)})
	second := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionSidebar, UserID: owner.ID, DestinationLink: "https://example.com/b", StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 1, 12), DisplayOrder: ptr(2)})
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionSidebar, UserID: silent.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 1, 12), DisplayOrder: ptr(3)})

	notifier := &mockNotifier{}
	notifier.On("SendExpiringNotice", "owner@example.com", "https://example.com/a", 1).Return(errors.New("smtp down"))
	notifier.On("SendExpiringNotice", "owner@example.com", "https://example.com/b", 2).Return(nil)
	svc, spy := newTestLifecycle(db, notifier, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	spy.On("MarkNotified", mock.Anything).Return()

	report, err := svc.WarnExpiring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LifecycleReport{Candidates: 3, Processed: 1, Skipped: 1, Failed: 1}, report)
	spy.AssertCalled(t, "MarkNotified", second.ID)
	spy.AssertNotCalled(t, "MarkNotified", first.ID)
}

func TestDeleteExpiredRemovesAndNotifies(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	expired := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, DestinationLink: "https://example.com/old", StartDate: date(2024, 12, 1), EndDate: datePtr(2025, 1, 9)})
	endsToday := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFooter, UserID: owner.ID, StartDate: date(2024, 12, 1), EndDate: datePtr(2025, 1, 10), DisplayOrder: ptr(1)})

	notifier := &mockNotifier{}
	notifier.On("SendExpiredNotice", "owner@example.com", "https://example.com/old").Return(nil).Once()
	svc, _ := newTestLifecycle(db, notifier, time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))

	report, err := svc.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LifecycleReport{Candidates: 1, Processed: 1}, report)
	notifier.AssertExpectations(t)

	repo := repository.NewBannerRepository(db)
	gone, err := repo.GetByID(expired.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	kept, err := repo.GetByID(endsToday.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept, "a banner ending today is still live")
}

func TestDeleteExpiredCountsNotifyFailureAfterDelete(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	expired := insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2024, 12, 1), EndDate: datePtr(2025, 1, 1)})

	notifier := &mockNotifier{}
	notifier.On("SendExpiredNotice", mock.Anything, mock.Anything).Return(ErrEmailServiceDisabled)
	svc, _ := newTestLifecycle(db, notifier, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))

	report, err := svc.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LifecycleReport{Candidates: 1, Failed: 1}, report)
	gone, err := repository.NewBannerRepository(db).GetByID(expired.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAutoRenewRollsStartForward(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	due := insertServiceTestBanner(t, db, models.Banner{
		PositionID:      testPositionFloating,
		UserID:          owner.ID,
		DestinationLink: "https://example.com/auto",
		StartDate:       date(2024, 12, 1),
		RenewalStrategy: constants.RenewalStrategyAutomatic,
		RenewalPeriod:   ptr(30),
	})
	notDue := insertServiceTestBanner(t, db, models.Banner{
		PositionID:      testPositionFooter,
		UserID:          owner.ID,
		StartDate:       date(2025, 1, 5),
		RenewalStrategy: constants.RenewalStrategyAutomatic,
		RenewalPeriod:   ptr(30),
		DisplayOrder:    ptr(1),
	})
	insertServiceTestBanner(t, db, models.Banner{
		PositionID:      testPositionSidebar,
		UserID:          owner.ID,
		StartDate:       date(2024, 1, 1),
		RenewalStrategy: constants.RenewalStrategyAutomatic,
		DisplayOrder:    ptr(1),
	})

	notifier := &mockNotifier{}
	notifier.On("SendRenewalNotice", "owner@example.com", "https://example.com/auto").Return(nil).Once()
	svc, _ := newTestLifecycle(db, notifier, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))

	report, err := svc.AutoRenew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LifecycleReport{Candidates: 3, Processed: 1, Skipped: 2}, report)
	notifier.AssertExpectations(t)

	repo := repository.NewBannerRepository(db)
	renewed, err := repo.GetByID(due.ID)
	require.NoError(t, err)
	assert.True(t, renewed.StartDate.Equal(date(2024, 12, 31)), "start should roll to %v, got %v", date(2024, 12, 31), renewed.StartDate)
	assert.Nil(t, renewed.EndDate)

	untouched, err := repo.GetByID(notDue.ID)
	require.NoError(t, err)
	assert.True(t, untouched.StartDate.Equal(date(2025, 1, 5)))
}

func TestRunAllReportsEachDuty(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2024, 12, 1), EndDate: datePtr(2025, 1, 2)})
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFooter, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 1, 11), DisplayOrder: ptr(1)})

	notifier := &mockNotifier{}
	notifier.On("SendExpiringNotice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendExpiredNotice", mock.Anything, mock.Anything).Return(nil)
	svc, spy := newTestLifecycle(db, notifier, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	spy.On("MarkNotified", mock.Anything).Return()

	summary, err := svc.RunAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.WarnExpiring.Processed)
	assert.Equal(t, 1, summary.DeleteExpired.Processed)
	assert.Equal(t, 0, summary.AutoRenew.Candidates)
}

// gatedNotifier 第一次到期提醒阻塞到 gate 关闭，用于制造并发执行
type gatedNotifier struct {
	mu      sync.Mutex
	sent    int
	entered chan struct{}
	gate    chan struct{}
}

func (n *gatedNotifier) SendExpiringNotice(string, string, int) error {
	select {
	case n.entered <- struct{}{}:
	default:
	}
	<-n.gate
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return nil
}

func (n *gatedNotifier) SendExpiredNotice(string, string) error { return nil }

func (n *gatedNotifier) SendRenewalNotice(string, string) error { return nil }

func TestConcurrentRunsWarnOnce(t *testing.T) {
	db := setupServiceTestDB(t)
	owner := createServiceTestUser(t, db, "owner@example.com")
	insertServiceTestBanner(t, db, models.Banner{PositionID: testPositionFloating, UserID: owner.ID, StartDate: date(2025, 1, 1), EndDate: datePtr(2025, 1, 12)})

	notifier := &gatedNotifier{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	svc := NewLifecycleService(repository.NewBannerRepository(db), notifier, nil, config.LifecycleConfig{WarnDays: constants.DefaultExpiryWarnDays})
	svc.WithClock(func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.RunAll(context.Background())
	}()
	<-notifier.entered
	go func() {
		defer wg.Done()
		_, _ = svc.WarnExpiring(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(notifier.gate)
	wg.Wait()

	assert.Equal(t, 1, notifier.sent)
}

func TestDaysUntil(t *testing.T) {
	loc, err := time.LoadLocation("America/Argentina/Buenos_Aires")
	if err != nil {
		loc = time.FixedZone("ART", -3*3600)
	}
	today := startOfDayIn(time.Date(2025, 1, 10, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, 3, daysUntil(today, time.Date(2025, 1, 13, 23, 0, 0, 0, loc), loc))
	assert.Equal(t, 0, daysUntil(today, time.Date(2025, 1, 9, 0, 0, 0, 0, loc), loc))
}
