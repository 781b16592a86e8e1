package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

func setupReconcileConfig(t *testing.T, name string) (*config.Config, *gorm.DB) {
	t.Helper()
	previous := models.DB
	t.Cleanup(func() { models.DB = previous })

	dsn := "file:" + name + "?mode=memory&cache=shared"
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

	cfg, err := config.LoadFrom(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = dsn
	cfg.Redis.Enabled = false
	cfg.Queue.Enabled = false
	cfg.Upload.LocalDir = t.TempDir()
	return cfg, db
}

func TestReconcileDeletesExpiredAndPrintsReport(t *testing.T) {
	cfg, db := setupReconcileConfig(t, "reconcile_delete")
	owner := &models.User{Name: "owner", Email: "owner@example.com", PasswordHash: "hash", Status: constants.UserStatusActive}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	end := time.Now().UTC().AddDate(0, 0, -5)
	banner := &models.Banner{
		ImageURL:        "https://cdn.example.com/a.png",
		DestinationLink: "https://example.com/a",
		StartDate:       end.AddDate(0, -1, 0),
		EndDate:         &end,
		RenewalStrategy: constants.RenewalStrategyManual,
		PositionID:      1,
		UserID:          owner.ID,
	}
	if err := db.Create(banner).Error; err != nil {
		t.Fatalf("insert banner failed: %v", err)
	}

	var out bytes.Buffer
	if err := reconcile(context.Background(), cfg, "delete_expired", &out); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	var report service.LifecycleReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not json: %v\n%s", err, out.String())
	}
	if report.Candidates != 1 {
		t.Fatalf("candidates want 1, got %+v", report)
	}
	var remaining int64
	if err := db.Model(&models.Banner{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count banners failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expired banner should be deleted, remaining=%d", remaining)
	}
}

func TestReconcileRejectsUnknownDuty(t *testing.T) {
	cfg, _ := setupReconcileConfig(t, "reconcile_unknown")
	var out bytes.Buffer
	if err := reconcile(context.Background(), cfg, "purge", &out); err == nil {
		t.Fatalf("unknown duty should fail")
	}
	if out.Len() != 0 {
		t.Fatalf("no report expected on failure, got %s", out.String())
	}
}
