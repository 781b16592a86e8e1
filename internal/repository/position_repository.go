package repository

import (
	"errors"
	"strings"

	"github.com/bannerhub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PositionRepository 投放位数据访问接口
type PositionRepository interface {
	WithTx(tx *gorm.DB) PositionRepository
	GetByID(id uint) (*models.Position, error)
	GetForUpdate(id uint) (*models.Position, error)
	GetByName(name string) (*models.Position, error)
	List() ([]models.Position, error)
	Create(position *models.Position) error
}

// GormPositionRepository GORM 实现
type GormPositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository 创建投放位仓库
func NewPositionRepository(db *gorm.DB) *GormPositionRepository {
	return &GormPositionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPositionRepository) WithTx(tx *gorm.DB) PositionRepository {
	if tx == nil {
		return r
	}
	return &GormPositionRepository{db: tx}
}

// GetByID 根据 ID 获取投放位
func (r *GormPositionRepository) GetByID(id uint) (*models.Position, error) {
	if id == 0 {
		return nil, nil
	}
	var position models.Position
	if err := r.db.First(&position, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// GetForUpdate 在事务内锁定投放位
// postgres 额外获取事务级咨询锁，sqlite 依赖数据库级写锁
func (r *GormPositionRepository) GetForUpdate(id uint) (*models.Position, error) {
	if id == 0 {
		return nil, nil
	}
	if lockSQL := advisoryXactLockSQL(dbDialectName(r.db)); lockSQL != "" {
		if err := r.db.Exec(lockSQL, positionLockNamespace, int32(id)).Error; err != nil {
			return nil, err
		}
	}
	var position models.Position
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&position, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// GetByName 根据名称获取投放位
func (r *GormPositionRepository) GetByName(name string) (*models.Position, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	var position models.Position
	if err := r.db.Where("name = ?", name).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &position, nil
}

// List 投放位列表
func (r *GormPositionRepository) List() ([]models.Position, error) {
	var positions []models.Position
	if err := r.db.Order("id ASC").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// Create 创建投放位
func (r *GormPositionRepository) Create(position *models.Position) error {
	return r.db.Create(position).Error
}
