package repository

import (
	"context"
	"errors"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"

	"gorm.io/gorm"
)

type batchGormRepository struct {
	db *gorm.DB
}

func NewBatchGormRepository(db *gorm.DB) repo.BatchRepository {
	return &batchGormRepository{db: db}
}

func (r *batchGormRepository) Create(ctx context.Context, b model.Batch) (model.Batch, error) {
	if err := r.db.WithContext(ctx).Create(&b).Error; err != nil {
		return model.Batch{}, err
	}
	return b, nil
}

func (r *batchGormRepository) FindByID(ctx context.Context, id int64) (model.Batch, error) {
	var b model.Batch
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Batch{}, repo.ErrNotFound
	}
	return b, err
}

func (r *batchGormRepository) ListByProductID(ctx context.Context, productID int64) ([]model.Batch, error) {
	var batches []model.Batch
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("expires_at ASC NULLS LAST, created_at ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

// 消費順：期限の早いロットから。期限なしは最後、同着は作成順。
func (r *batchGormRepository) ListActiveFIFO(ctx context.Context, productID int64) ([]model.Batch, error) {
	var batches []model.Batch
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND quantity > 0", productID).
		Order("expires_at ASC NULLS LAST, created_at ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

func (r *batchGormRepository) SumActive(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Batch{}).
		Where("product_id = ? AND quantity > 0", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// 残量が足りるときだけ減らす（負数にはさせない）。
func (r *batchGormRepository) DecrementIfEnough(ctx context.Context, batchID int64, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Batch{}).
		Where("id = ? AND quantity >= ?", batchID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *batchGormRepository) DeleteByProductID(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).Delete(&model.Batch{}, "product_id = ?", productID).Error
}
