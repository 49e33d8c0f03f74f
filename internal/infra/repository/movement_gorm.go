package repository

import (
	"context"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"

	"gorm.io/gorm"
)

type movementGormRepository struct {
	db *gorm.DB
}

func NewMovementGormRepository(db *gorm.DB) repo.MovementRepository {
	return &movementGormRepository{db: db}
}

func (r *movementGormRepository) Create(ctx context.Context, m model.StockMovement) error {
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *movementGormRepository) List(ctx context.Context, f repo.MovementFilter) ([]model.StockMovement, error) {
	q := r.db.WithContext(ctx).Model(&model.StockMovement{})

	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.Direction != nil {
		q = q.Where("direction = ?", *f.Direction)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var moves []model.StockMovement
	err := q.Order("id DESC").Limit(limit).Offset(f.Offset).Find(&moves).Error
	return moves, err
}

func (r *movementGormRepository) DetachProduct(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Where("product_id = ?", productID).
		Update("product_id", nil).Error
}
