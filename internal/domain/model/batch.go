package model

import "time"

// 入荷ロット。数量は作成時に一度だけ設定され、以後は消費・損失でしか減らない。
// 追加入荷は必ず新しいBatchを作る（既存ロットへの積み増しはしない）。
// 数量0になっても監査のため行は残す。
type Batch struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`

	// nilは「期限なし」（非fungible商品）。
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`

	// 入荷元（仕入先・提供団体）の表示名。
	Supplier string `gorm:"type:varchar(255)" json:"supplier"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// Activeは消費対象（残量あり）かどうか。
func (b Batch) Active() bool {
	return b.Quantity > 0
}
