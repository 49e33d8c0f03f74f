package model

import (
	"encoding/json"
	"errors"
	"time"
)

// 調整依頼の種別。
type RequestKind string

const (
	RequestKindEntry  RequestKind = "entry"  // 入庫
	RequestKindExit   RequestKind = "exit"   // 出庫（FIFO消費）
	RequestKindLoss   RequestKind = "loss"   // 損失報告
	RequestKindAccess RequestKind = "access" // 当日の在庫操作アクセス
)

// 依頼の状態。pendingから終端（approved/rejected）へ一度だけ遷移する。
type RequestState string

const (
	RequestStatePending  RequestState = "pending"
	RequestStateApproved RequestState = "approved"
	RequestStateRejected RequestState = "rejected"
)

var ErrPayloadKindMismatch = errors.New("payload kind mismatch")

// 在庫調整・アクセスの依頼。payloadは種別ごとの型付きデータをJSONで保持する。
type AdjustmentRequest struct {
	ID            string `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID   string `gorm:"type:uuid;not null;index" json:"requester_id"`
	RequesterName string `gorm:"type:varchar(255);not null" json:"requester_name"`

	// 新規商品のentry依頼はまだ商品が無いのでnil。
	ProductID   *int64 `gorm:"index" json:"product_id"`
	ProductName string `gorm:"type:varchar(255)" json:"product_name"`

	Kind     RequestKind  `gorm:"type:varchar(20);not null;index" json:"kind"`
	Quantity *int64       `json:"quantity"`
	Payload  string       `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	State    RequestState `gorm:"type:varchar(20);not null;index" json:"state"`

	RejectReason *string    `gorm:"type:text" json:"reject_reason"`
	ResolvedBy   *string    `gorm:"type:uuid" json:"resolved_by"`
	ResolvedAt   *time.Time `json:"resolved_at"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

// entry依頼のpayload。商品が未登録の場合はNameで新規作成される。
type EntryPayload struct {
	Name       string     `json:"name"`
	Unit       string     `json:"unit"`
	CategoryID *int64     `json:"category_id"`
	Quantity   int64      `json:"quantity"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Supplier   string     `json:"supplier"`
}

// exit依頼のpayload。受益者数は報告用のレコードに転記される。
type ExitPayload struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	Students  int64 `json:"students"`
	Teachers  int64 `json:"teachers"`
}

// loss依頼のpayload。
type LossPayload struct {
	BatchID  int64  `json:"batch_id"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

func EncodePayload(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r AdjustmentRequest) EntryPayload() (EntryPayload, error) {
	var p EntryPayload
	if r.Kind != RequestKindEntry {
		return p, ErrPayloadKindMismatch
	}
	err := json.Unmarshal([]byte(r.Payload), &p)
	return p, err
}

func (r AdjustmentRequest) ExitPayload() (ExitPayload, error) {
	var p ExitPayload
	if r.Kind != RequestKindExit {
		return p, ErrPayloadKindMismatch
	}
	err := json.Unmarshal([]byte(r.Payload), &p)
	return p, err
}

func (r AdjustmentRequest) LossPayload() (LossPayload, error) {
	var p LossPayload
	if r.Kind != RequestKindLoss {
		return p, ErrPayloadKindMismatch
	}
	err := json.Unmarshal([]byte(r.Payload), &p)
	return p, err
}
