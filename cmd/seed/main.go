package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/bannerhub/internal/app"
	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/provider"
	"github.com/bannerhub/internal/service"

	"github.com/joho/godotenv"
)

type seedUser struct {
	name     string
	email    string
	password string
	role     string
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	// 开发数据，禁止在生产环境执行
	if cfg.Server.Mode == "release" {
		stdLog.Printf("server.mode=release，拒绝写入开发数据")
		os.Exit(1)
	}

	// 连接数据库并写入投放位
	if err := app.InitDatabase(cfg); err != nil {
		stdLog.Fatalf("Failed to init database: %v", err)
	}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		stdLog.Fatalf("Failed to build container: %v", err)
	}
	if err := app.EnsureAdmin(cfg, container); err != nil {
		stdLog.Fatalf("Failed to ensure admin: %v", err)
	}

	users := []seedUser{
		{name: "Anunciante Demo", email: "advertiser@bannerhub.local", password: "advertiser123", role: constants.RoleAdvertiser},
		{name: "Usuario Demo", email: "user@bannerhub.local", password: "user12345", role: constants.RoleUser},
	}
	for _, u := range users {
		existing, err := container.UserRepo.GetByEmail(u.email)
		if err != nil {
			stdLog.Printf("Failed to check user %s: %v", u.email, err)
			continue
		}
		if existing != nil {
			stdLog.Printf("User already exists: %s", u.email)
			continue
		}
		created, err := container.UserService.Create(service.CreateUserInput{
			Name:     u.name,
			Email:    u.email,
			Password: u.password,
			Roles:    []string{u.role},
		})
		if err != nil {
			stdLog.Printf("Failed to create user %s: %v", u.email, err)
			continue
		}
		stdLog.Printf("Created user: %s (id=%d, role=%s)", created.Email, created.ID, u.role)
	}

	positions, err := container.PositionService.List()
	if err != nil {
		stdLog.Fatalf("Failed to list positions: %v", err)
	}
	for _, p := range positions {
		stdLog.Printf("Position %d: %s (slug=%s, max_banners=%d)", p.ID, p.Name, p.Slug, p.MaxBanners)
	}
	if err := seedBanners(container, positions); err != nil {
		stdLog.Printf("Failed to seed banners: %v", err)
	}
	stdLog.Printf("Seed completed")
}

// seedBanners 为演示广告主写入示例 Banner，已有 Banner 时跳过
func seedBanners(container *provider.Container, positions []models.Position) error {
	stdLog := logger.StdLogger()
	advertiser, err := container.UserRepo.GetByEmail("advertiser@bannerhub.local")
	if err != nil || advertiser == nil {
		return err
	}
	existing, err := container.BannerRepo.ListByUser(advertiser.ID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		stdLog.Printf("Advertiser already has %d banners", len(existing))
		return nil
	}

	actor := service.Actor{ID: advertiser.ID, Email: advertiser.Email, Roles: []string{constants.RoleAdvertiser}}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, position := range positions {
		link := "https://bannerhub.local/promo/" + position.Slug
		positionID := position.ID
		req := service.BannerRequest{DestinationLink: &link, PositionID: &positionID, StartDate: &today}
		if position.AllowsDisplayOrder() {
			order := 1
			period := 30
			strategy := constants.RenewalStrategyAutomatic
			req.DisplayOrder = &order
			req.RenewalStrategy = &strategy
			req.RenewalPeriod = &period
		} else {
			end := today.AddDate(0, 0, 30)
			strategy := constants.RenewalStrategyManual
			req.EndDate = &end
			req.RenewalStrategy = &strategy
		}
		upload, err := placeholderImage(position.Slug)
		if err != nil {
			return err
		}
		banner, err := container.BannerService.Create(context.Background(), req, actor, upload)
		if err != nil {
			stdLog.Printf("Failed to create banner on %s: %v", position.Name, err)
			continue
		}
		stdLog.Printf("Created banner %s on %s (%s)", banner.ID, position.Name, banner.RenewalStrategy)
	}
	return nil
}

// placeholderImage 生成纯色占位图
func placeholderImage(name string) (*service.ImageUpload, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 16))
	fill := color.RGBA{R: 30, G: 110, B: 200, A: 255}
	for x := 0; x < 64; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &service.ImageUpload{
		Filename:    name + ".png",
		ContentType: "image/png",
		Size:        int64(buf.Len()),
		Content:     bytes.NewReader(buf.Bytes()),
	}, nil
}
