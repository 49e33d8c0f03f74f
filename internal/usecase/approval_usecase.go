package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"comedor/internal/domain/model"
	"comedor/internal/notify"
	"comedor/internal/push"
	repo "comedor/internal/repository"
)

// ApprovalUsecase は依頼の終端遷移（承認・却下・取り消し）。
// 遷移の本体はDBの条件付き更新で、二重処理は必ずどちらか一方だけが勝つ。
type ApprovalUsecase struct {
	tx        repo.TransactionManager
	notifier  notify.Scheduler
	clock     Clock
	publisher push.Publisher
}

func NewApprovalUsecase(tx repo.TransactionManager, notifier notify.Scheduler, clock Clock, publisher push.Publisher) *ApprovalUsecase {
	return &ApprovalUsecase{tx: tx, notifier: notifier, clock: clock, publisher: publisher}
}

type RejectInput struct {
	Reason string `json:"reason"`
}

// Approve はpending→approvedの遷移と台帳反映を1トランザクションで行う。
// 台帳反映（在庫不足など）が失敗したら遷移ごと巻き戻り、依頼はpendingのまま残る。
func (u *ApprovalUsecase) Approve(ctx context.Context, actor model.Principal, requestID string) (RequestOutput, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return RequestOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if requestID == "" {
		return RequestOutput{}, NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	now := u.clock.Now()
	var (
		resolved model.AdjustmentRequest
		product  model.Product
		batch    model.Batch
		hasBatch bool
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		req, err := r.Requests().FindByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "request not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if req.State != model.RequestStatePending {
			return conflict("request already resolved", ErrInvalidState)
		}

		// 先に遷移を取りに行く。負けたら誰かが処理済み。
		ok, err := r.Requests().ResolveIfPending(ctx, requestID, model.RequestStateApproved, actor.ID, nil, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return conflict("request already resolved", ErrInvalidState)
		}

		switch req.Kind {
		case model.RequestKindEntry:
			payload, err := req.EntryPayload()
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "corrupt payload")
			}
			productID, err := ensureProductTx(ctx, r, payload)
			if err != nil {
				return err
			}
			product, batch, err = addBatchTx(ctx, r, actor, batchInput{
				ProductID: productID,
				Quantity:  payload.Quantity,
				ExpiresAt: payload.ExpiresAt,
				Supplier:  payload.Supplier,
			})
			if err != nil {
				return err
			}
			hasBatch = true

		case model.RequestKindExit:
			payload, err := req.ExitPayload()
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "corrupt payload")
			}
			if _, err := consumeFIFOTx(ctx, r, actor, payload.ProductID, payload.Quantity, payload.Students, payload.Teachers); err != nil {
				return err
			}

		case model.RequestKindLoss:
			payload, err := req.LossPayload()
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "corrupt payload")
			}
			if err := reportLossTx(ctx, r, actor, req.RequesterID, req.RequesterName, payload.BatchID, payload.Quantity, payload.Reason); err != nil {
				return err
			}

		case model.RequestKindAccess:
			// 台帳への反映なし。状態そのものが入場許可。

		default:
			return NewHTTPError(http.StatusInternalServerError, "unknown kind")
		}

		recordID := requestID
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionApproveRequest,
			Description: fmt.Sprintf("request approved: kind=%s requester=%s", req.Kind, req.RequesterName),
			TableName:   model.AuditTableRequests,
			RecordID:    &recordID,
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		resolved = req
		resolved.State = model.RequestStateApproved
		resolved.ResolvedBy = &actor.ID
		resolved.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return RequestOutput{}, err
	}

	if hasBatch {
		_ = u.notifier.ScheduleExpiryReminders(ctx, &product, &batch)
	}
	u.publish(push.EventUpdate, requestID)
	return toRequestOutput(resolved), nil
}

// Reject はpending→rejectedの遷移。在庫系の依頼には理由を必須とする
// （accessの却下は理由なしでよい）。
func (u *ApprovalUsecase) Reject(ctx context.Context, actor model.Principal, requestID string, in RejectInput) (RequestOutput, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return RequestOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if requestID == "" {
		return RequestOutput{}, NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	reason := strings.TrimSpace(in.Reason)
	now := u.clock.Now()

	var resolved model.AdjustmentRequest
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		req, err := r.Requests().FindByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "request not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if req.Kind != model.RequestKindAccess && reason == "" {
			return NewHTTPError(http.StatusBadRequest, "reason required")
		}
		if req.State != model.RequestStatePending {
			return conflict("request already resolved", ErrInvalidState)
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		ok, err := r.Requests().ResolveIfPending(ctx, requestID, model.RequestStateRejected, actor.ID, reasonPtr, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return conflict("request already resolved", ErrInvalidState)
		}

		recordID := requestID
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionRejectRequest,
			Description: fmt.Sprintf("request rejected: kind=%s reason=%s", req.Kind, reason),
			TableName:   model.AuditTableRequests,
			RecordID:    &recordID,
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		resolved = req
		resolved.State = model.RequestStateRejected
		resolved.RejectReason = reasonPtr
		resolved.ResolvedBy = &actor.ID
		resolved.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return RequestOutput{}, err
	}

	u.publish(push.EventUpdate, requestID)
	return toRequestOutput(resolved), nil
}

// RevokeAccess は承認済みの入場許可をrejectedへ落とす。
// approved以外からは遷移しない（pendingはRejectを使う）。
func (u *ApprovalUsecase) RevokeAccess(ctx context.Context, actor model.Principal, requestID string) error {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if requestID == "" {
		return NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	now := u.clock.Now()
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		req, err := r.Requests().FindByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "request not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if req.Kind != model.RequestKindAccess {
			return conflict("not an access request", ErrInvalidState)
		}

		ok, err := r.Requests().RevokeIfApproved(ctx, requestID, actor.ID, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return conflict("request is not approved", ErrInvalidState)
		}

		recordID := requestID
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionRevokeAccess,
			Description: fmt.Sprintf("access revoked: requester=%s", req.RequesterName),
			TableName:   model.AuditTableRequests,
			RecordID:    &recordID,
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.publish(push.EventUpdate, requestID)
	return nil
}

func (u *ApprovalUsecase) publish(t push.EventType, id string) {
	if u.publisher == nil {
		return
	}
	u.publisher.Publish(push.Event{
		Table:    "adjustment_requests",
		Type:     t,
		RecordID: id,
		At:       u.clock.Now(),
	})
}

// ensureProductTx はentry承認時の商品解決。未登録なら新規作成する。
func ensureProductTx(ctx context.Context, r repo.TxRepos, payload model.EntryPayload) (int64, error) {
	p, err := r.Products().FindByName(ctx, payload.Name)
	if err == nil {
		return p.ID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	created, err := r.Products().Create(ctx, model.Product{
		Name:       payload.Name,
		Unit:       payload.Unit,
		CategoryID: payload.CategoryID,
	})
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return created.ID, nil
}
