package service

import (
	"fmt"
	"strings"

	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/repository"

	"github.com/gosimple/slug"
)

// CreatePositionInput 创建投放位输入
type CreatePositionInput struct {
	Name       string
	MaxBanners int
}

// PositionService 投放位服务
type PositionService struct {
	repo repository.PositionRepository
}

// NewPositionService 创建投放位服务
func NewPositionService(repo repository.PositionRepository) *PositionService {
	return &PositionService{repo: repo}
}

// List 投放位列表
func (s *PositionService) List() ([]models.Position, error) {
	return s.repo.List()
}

// Create 创建投放位，容量创建后不可修改
func (s *PositionService) Create(input CreatePositionInput) (*models.Position, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPositionInput)
	}
	if input.MaxBanners < 1 {
		return nil, fmt.Errorf("%w: max_banners must be at least 1", ErrInvalidPositionInput)
	}
	existing, err := s.repo.GetByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPositionExists
	}

	position := &models.Position{Name: name, Slug: slug.Make(name), MaxBanners: input.MaxBanners}
	if err := s.repo.Create(position); err != nil {
		return nil, err
	}
	logger.Infow("position_created", "position_id", position.ID, "slug", position.Slug, "max_banners", position.MaxBanners)
	return position, nil
}
