package model

import "time"

// 監査対象の操作種別。
type AuditAction string

const (
	AuditActionCreateProduct  AuditAction = "CREATE_PRODUCT"
	AuditActionUpdateProduct  AuditAction = "UPDATE_PRODUCT"
	AuditActionDeleteProduct  AuditAction = "DELETE_PRODUCT"
	AuditActionAddBatch       AuditAction = "ADD_BATCH"
	AuditActionConsumeStock   AuditAction = "CONSUME_STOCK"
	AuditActionReportLoss     AuditAction = "REPORT_LOSS"
	AuditActionCreateRequest  AuditAction = "CREATE_REQUEST"
	AuditActionApproveRequest AuditAction = "APPROVE_REQUEST"
	AuditActionRejectRequest  AuditAction = "REJECT_REQUEST"
	AuditActionRevokeAccess   AuditAction = "REVOKE_ACCESS"
)

// 対象テーブルのラベル。
type AuditTable string

const (
	AuditTableProducts AuditTable = "products"
	AuditTableBatches  AuditTable = "batches"
	AuditTableRequests AuditTable = "adjustment_requests"
	AuditTableLosses   AuditTable = "loss_reports"
)

// 監査ログ。「誰が」「何を」「どの対象に」を残す。追記専用で、
// 対象レコードが後から削除されてもログは消さない（RecordIDが孤児になるだけ）。
type AuditLog struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Action      AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`
	Description string      `gorm:"type:text;not null" json:"description"`
	TableName   AuditTable  `gorm:"type:varchar(50);not null;index" json:"table_name"`
	RecordID    *string     `gorm:"type:varchar(64);index" json:"record_id"`

	ActorID    string `gorm:"type:uuid;not null;index" json:"actor_id"`
	ActorEmail string `gorm:"type:varchar(255)" json:"actor_email"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
