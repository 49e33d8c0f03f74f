package repository

import (
	"context"
	"time"

	"comedor/internal/domain/model"
)

type MovementFilter struct {
	ProductID *int64
	Direction *model.MovementDirection
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// 台帳の移動記録。レポート出力用の読み取りと追記だけ。
type MovementRepository interface {
	Create(ctx context.Context, m model.StockMovement) error
	List(ctx context.Context, f MovementFilter) ([]model.StockMovement, error)
	DetachProduct(ctx context.Context, productID int64) error
}
