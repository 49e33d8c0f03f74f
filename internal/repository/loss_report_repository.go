package repository

import (
	"context"
	"time"

	"comedor/internal/domain/model"
)

type LossReportFilter struct {
	ProductID *int64
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// 損失報告の永続化。
type LossReportRepository interface {
	Create(ctx context.Context, l model.LossReport) error
	List(ctx context.Context, f LossReportFilter) ([]model.LossReport, error)
	DetachProduct(ctx context.Context, productID int64) error
}
