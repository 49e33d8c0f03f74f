package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"comedor/internal/domain/model"
	"comedor/internal/push"
	repo "comedor/internal/repository"
)

// テスト差し替え用の時計とID発行。
type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}

// 入力payloadの検証。実装はinternal/validator。
type RequestValidator interface {
	ValidateCreate(in CreateRequestInput) error
}

// RequestUsecase は調整依頼の作成と照会。状態を変えるのはApprovalUsecase。
type RequestUsecase struct {
	tx        repo.TransactionManager
	validator RequestValidator
	idGen     IDGenerator
	clock     Clock
	publisher push.Publisher
}

func NewRequestUsecase(tx repo.TransactionManager, v RequestValidator, idGen IDGenerator, clock Clock, publisher push.Publisher) *RequestUsecase {
	return &RequestUsecase{tx: tx, validator: v, idGen: idGen, clock: clock, publisher: publisher}
}

type CreateRequestInput struct {
	Kind  model.RequestKind   `json:"kind"`
	Entry *model.EntryPayload `json:"entry,omitempty"`
	Exit  *model.ExitPayload  `json:"exit,omitempty"`
	Loss  *model.LossPayload  `json:"loss,omitempty"`
}

type RequestOutput struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	RequesterName string     `json:"requester_name"`
	ProductID     *int64     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Kind          string     `json:"kind"`
	Quantity      *int64     `json:"quantity"`
	State         string     `json:"state"`
	RejectReason  *string    `json:"reject_reason"`
	ResolvedBy    *string    `json:"resolved_by"`
	ResolvedAt    *time.Time `json:"resolved_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AccessStateOutput struct {
	State     string  `json:"state"`
	RequestID *string `json:"request_id,omitempty"`
}

func (u *RequestUsecase) Create(ctx context.Context, actor model.Principal, in CreateRequestInput) (RequestOutput, error) {
	if actor.ID == "" {
		return RequestOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.validator.ValidateCreate(in); err != nil {
		return RequestOutput{}, NewHTTPError(http.StatusBadRequest, err.Error())
	}

	now := u.clock.Now()
	req := model.AdjustmentRequest{
		ID:          u.idGen.NewID(),
		RequesterID: actor.ID,
		Kind:        in.Kind,
		State:       model.RequestStatePending,
		CreatedAt:   now,
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if prof, err := r.Profiles().FindByID(ctx, actor.ID); err == nil {
			req.RequesterName = prof.Name
		}

		switch in.Kind {
		case model.RequestKindEntry:
			payload, err := model.EncodePayload(in.Entry)
			if err != nil {
				return NewHTTPError(http.StatusBadRequest, "invalid payload")
			}
			req.Payload = payload
			req.ProductName = in.Entry.Name
			req.Quantity = &in.Entry.Quantity
			// 既存商品への入庫ならIDを引いておく（新規商品はnilのまま）
			if p, err := r.Products().FindByName(ctx, in.Entry.Name); err == nil {
				req.ProductID = &p.ID
			} else if !errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

		case model.RequestKindExit:
			p, err := r.Products().FindByID(ctx, in.Exit.ProductID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return NewHTTPError(http.StatusNotFound, "product not found")
				}
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			payload, err := model.EncodePayload(in.Exit)
			if err != nil {
				return NewHTTPError(http.StatusBadRequest, "invalid payload")
			}
			req.Payload = payload
			req.ProductID = &p.ID
			req.ProductName = p.Name
			req.Quantity = &in.Exit.Quantity

		case model.RequestKindLoss:
			b, err := r.Batches().FindByID(ctx, in.Loss.BatchID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return NewHTTPError(http.StatusNotFound, "batch not found")
				}
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			p, err := r.Products().FindByID(ctx, b.ProductID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			payload, err := model.EncodePayload(in.Loss)
			if err != nil {
				return NewHTTPError(http.StatusBadRequest, "invalid payload")
			}
			req.Payload = payload
			req.ProductID = &b.ProductID
			req.ProductName = p.Name
			req.Quantity = &in.Loss.Quantity

		case model.RequestKindAccess:
			// 同日の生きているaccess依頼が既にあれば二重申請を弾く
			latest, found, err := r.Requests().LatestAccessByRequesterSince(ctx, actor.ID, startOfDay(now))
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if found && latest.State != model.RequestStateRejected {
				return conflict("access request already active today", ErrInvalidState)
			}
			req.Payload = "{}"

		default:
			return NewHTTPError(http.StatusBadRequest, "unknown kind")
		}

		if err := r.Requests().Create(ctx, req); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		recordID := req.ID
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionCreateRequest,
			Description: fmt.Sprintf("request created: kind=%s product=%s", req.Kind, req.ProductName),
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
		return RequestOutput{}, err
	}

	u.publishRequest(push.EventInsert, req.ID)
	return toRequestOutput(req), nil
}

// ListPending は承認者向けの未処理一覧。
func (u *RequestUsecase) ListPending(ctx context.Context, actor model.Principal, f repo.PendingRequestFilter) ([]RequestOutput, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	var outs []RequestOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		reqs, err := r.Requests().ListPending(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = make([]RequestOutput, 0, len(reqs))
		for _, req := range reqs {
			outs = append(outs, toRequestOutput(req))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// CountPending はバッジ表示用の未処理件数。
func (u *RequestUsecase) CountPending(ctx context.Context, actor model.Principal) (int64, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return 0, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var count int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		count, err = r.Requests().CountPending(ctx)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AccessStateToday はポーリングの応答。本人の当日access依頼の最新状態を返す。
// 依頼が無ければnone。
func (u *RequestUsecase) AccessStateToday(ctx context.Context, actor model.Principal) (AccessStateOutput, error) {
	if actor.ID == "" {
		return AccessStateOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var out AccessStateOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		latest, found, err := r.Requests().LatestAccessByRequesterSince(ctx, actor.ID, startOfDay(u.clock.Now()))
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !found {
			out = AccessStateOutput{State: "none"}
			return nil
		}
		id := latest.ID
		out = AccessStateOutput{State: string(latest.State), RequestID: &id}
		return nil
	})
	if err != nil {
		return AccessStateOutput{}, err
	}
	return out, nil
}

// ListActiveAccess は当日の有効な入場許可（取り消し対象の一覧）。
func (u *RequestUsecase) ListActiveAccess(ctx context.Context, actor model.Principal) ([]RequestOutput, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	var outs []RequestOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		reqs, err := r.Requests().ListApprovedAccessSince(ctx, startOfDay(u.clock.Now()))
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = make([]RequestOutput, 0, len(reqs))
		for _, req := range reqs {
			outs = append(outs, toRequestOutput(req))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

func (u *RequestUsecase) publishRequest(t push.EventType, id string) {
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

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func toRequestOutput(r model.AdjustmentRequest) RequestOutput {
	return RequestOutput{
		ID:            r.ID,
		RequesterID:   r.RequesterID,
		RequesterName: r.RequesterName,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		Kind:          string(r.Kind),
		Quantity:      r.Quantity,
		State:         string(r.State),
		RejectReason:  r.RejectReason,
		ResolvedBy:    r.ResolvedBy,
		ResolvedAt:    r.ResolvedAt,
		CreatedAt:     r.CreatedAt,
	}
}
