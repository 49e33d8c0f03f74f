package repository

import (
	"context"
	"time"

	"comedor/internal/domain/model"
)

// 未処理一覧の絞り込み条件。
type PendingRequestFilter struct {
	Kind   *model.RequestKind
	Limit  int
	Offset int
}

// 調整依頼の永続化。状態遷移は条件付き更新だけを公開し、
// 二重処理をDB側の比較で弾く。
type RequestRepository interface {
	Create(ctx context.Context, r model.AdjustmentRequest) error
	FindByID(ctx context.Context, id string) (model.AdjustmentRequest, error)

	ListPending(ctx context.Context, f PendingRequestFilter) ([]model.AdjustmentRequest, error)
	CountPending(ctx context.Context) (int64, error)

	// LatestAccessByRequesterSinceはsince以降に作られた本人の
	// access依頼のうち最新1件。ポーリングの問い合わせ先。
	LatestAccessByRequesterSince(ctx context.Context, requesterID string, since time.Time) (model.AdjustmentRequest, bool, error)

	// ListApprovedAccessSinceはsince以降に承認されたaccess依頼（有効な入場許可）。
	ListApprovedAccessSince(ctx context.Context, since time.Time) ([]model.AdjustmentRequest, error)

	// ResolveIfPendingはstate=pendingのときだけ終端状態へ更新する。
	// 更新できなければfalse（誰かが先に処理済み）。
	ResolveIfPending(ctx context.Context, id string, state model.RequestState, resolvedBy string, reason *string, at time.Time) (bool, error)

	// RevokeIfApprovedはkind=accessかつstate=approvedのときだけ
	// rejectedへ落とす（入場許可の取り消し）。
	RevokeIfApproved(ctx context.Context, id string, resolvedBy string, at time.Time) (bool, error)

	// DetachProductは商品削除時にproduct_idをnilへ切り離す。
	DetachProduct(ctx context.Context, productID int64) error
}
