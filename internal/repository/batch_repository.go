package repository

import (
	"context"

	"comedor/internal/domain/model"
)

// ロットの永続化。数量の更新は条件付き減算だけを公開し、
// 任意の書き換えはできないようにする。
type BatchRepository interface {
	Create(ctx context.Context, b model.Batch) (model.Batch, error)
	FindByID(ctx context.Context, id int64) (model.Batch, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.Batch, error)

	// ListActiveFIFOは残量のあるロットを消費順で返す。
	// 期限の早い順、期限なしは最後、同時刻は作成順。
	ListActiveFIFO(ctx context.Context, productID int64) ([]model.Batch, error)

	// SumActiveは現在庫（残量の合計）。
	SumActive(ctx context.Context, productID int64) (int64, error)

	// DecrementIfEnoughは残量が足りるときだけ減らす。足りなければfalse。
	DecrementIfEnough(ctx context.Context, batchID int64, qty int64) (bool, error)

	// DeleteByProductIDは商品削除の最終段でロット行ごと消す。
	DeleteByProductID(ctx context.Context, productID int64) error
}
