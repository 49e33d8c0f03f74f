package repository

import (
	"context"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"

	"gorm.io/gorm"
)

type lossReportGormRepository struct {
	db *gorm.DB
}

func NewLossReportGormRepository(db *gorm.DB) repo.LossReportRepository {
	return &lossReportGormRepository{db: db}
}

func (r *lossReportGormRepository) Create(ctx context.Context, l model.LossReport) error {
	return r.db.WithContext(ctx).Create(&l).Error
}

func (r *lossReportGormRepository) List(ctx context.Context, f repo.LossReportFilter) ([]model.LossReport, error) {
	q := r.db.WithContext(ctx).Model(&model.LossReport{})

	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var reports []model.LossReport
	err := q.Order("id DESC").Limit(limit).Offset(f.Offset).Find(&reports).Error
	return reports, err
}

func (r *lossReportGormRepository) DetachProduct(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).Model(&model.LossReport{}).
		Where("product_id = ?", productID).
		Update("product_id", nil).Error
}
