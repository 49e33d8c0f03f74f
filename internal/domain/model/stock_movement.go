package model

import "time"

// 在庫移動の向き。
type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

// 台帳の移動記録。出庫は消費したロット数に関係なく1操作1行
// （受益者数の組ごと）。レポート集計用で、残量の真実はBatchが持つ。
type StockMovement struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   *int64            `gorm:"index" json:"product_id"`
	ProductName string            `gorm:"type:varchar(255);not null" json:"product_name"`
	Direction   MovementDirection `gorm:"type:varchar(10);not null;index" json:"direction"`
	Quantity    int64             `gorm:"not null" json:"quantity"`
	Unit        string            `gorm:"type:varchar(30)" json:"unit"`

	// 出庫時の受益者数。
	Students int64 `gorm:"not null;default:0" json:"students"`
	Teachers int64 `gorm:"not null;default:0" json:"teachers"`

	// 入庫時の入荷元。
	Supplier string `gorm:"type:varchar(255)" json:"supplier"`

	ActorID   string    `gorm:"type:uuid;not null" json:"actor_id"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
