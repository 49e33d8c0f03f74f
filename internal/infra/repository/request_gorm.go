package repository

import (
	"context"
	"errors"
	"time"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"

	"gorm.io/gorm"
)

type requestGormRepository struct {
	db *gorm.DB
}

func NewRequestGormRepository(db *gorm.DB) repo.RequestRepository {
	return &requestGormRepository{db: db}
}

func (r *requestGormRepository) Create(ctx context.Context, req model.AdjustmentRequest) error {
	return r.db.WithContext(ctx).Create(&req).Error
}

func (r *requestGormRepository) FindByID(ctx context.Context, id string) (model.AdjustmentRequest, error) {
	var req model.AdjustmentRequest
	err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AdjustmentRequest{}, repo.ErrNotFound
	}
	return req, err
}

func (r *requestGormRepository) ListPending(ctx context.Context, f repo.PendingRequestFilter) ([]model.AdjustmentRequest, error) {
	q := r.db.WithContext(ctx).Model(&model.AdjustmentRequest{}).
		Where("state = ?", model.RequestStatePending)

	if f.Kind != nil {
		q = q.Where("kind = ?", *f.Kind)
	}

	// 新しい順
	q = q.Order("created_at DESC")

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var reqs []model.AdjustmentRequest
	err := q.Limit(limit).Offset(f.Offset).Find(&reqs).Error
	return reqs, err
}

func (r *requestGormRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AdjustmentRequest{}).
		Where("state = ?", model.RequestStatePending).
		Count(&count).Error
	return count, err
}

func (r *requestGormRepository) LatestAccessByRequesterSince(ctx context.Context, requesterID string, since time.Time) (model.AdjustmentRequest, bool, error) {
	var req model.AdjustmentRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND kind = ? AND created_at >= ?",
			requesterID, model.RequestKindAccess, since).
		Order("created_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.AdjustmentRequest{}, false, nil
	}
	if err != nil {
		return model.AdjustmentRequest{}, false, err
	}
	return req, true, nil
}

func (r *requestGormRepository) ListApprovedAccessSince(ctx context.Context, since time.Time) ([]model.AdjustmentRequest, error) {
	var reqs []model.AdjustmentRequest
	err := r.db.WithContext(ctx).
		Where("kind = ? AND state = ? AND created_at >= ?",
			model.RequestKindAccess, model.RequestStateApproved, since).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// pendingのときだけ終端へ更新する。RowsAffected=0なら誰かが先に処理済み。
func (r *requestGormRepository) ResolveIfPending(ctx context.Context, id string, state model.RequestState, resolvedBy string, reason *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.AdjustmentRequest{}).
		Where("id = ? AND state = ?", id, model.RequestStatePending).
		Updates(map[string]any{
			"state":         state,
			"resolved_by":   resolvedBy,
			"resolved_at":   at,
			"reject_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 承認済みaccessの取り消し。approved以外では何もしない。
func (r *requestGormRepository) RevokeIfApproved(ctx context.Context, id string, resolvedBy string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.AdjustmentRequest{}).
		Where("id = ? AND kind = ? AND state = ?",
			id, model.RequestKindAccess, model.RequestStateApproved).
		Updates(map[string]any{
			"state":       model.RequestStateRejected,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *requestGormRepository) DetachProduct(ctx context.Context, productID int64) error {
	return r.db.WithContext(ctx).Model(&model.AdjustmentRequest{}).
		Where("product_id = ?", productID).
		Update("product_id", nil).Error
}
