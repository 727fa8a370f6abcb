package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hireline/recruiting-core/internal/model"
)

type CityRepository interface {
	GetByID(ctx context.Context, id string) (*model.City, error)
	Create(ctx context.Context, city *model.City) error
	List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.City, int64, error)
}

type GormCityRepository struct {
	db *gorm.DB
}

func NewGormCityRepository(db *gorm.DB) *GormCityRepository {
	return &GormCityRepository{db: db}
}

func (r *GormCityRepository) GetByID(ctx context.Context, id string) (*model.City, error) {
	var c model.City
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCityRepository) Create(ctx context.Context, city *model.City) error {
	return r.db.WithContext(ctx).Create(city).Error
}

func (r *GormCityRepository) List(ctx context.Context, onlyActive bool, limit, offset int) ([]model.City, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.City{})
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var cities []model.City
	if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&cities).Error; err != nil {
		return nil, 0, err
	}
	return cities, total, nil
}
