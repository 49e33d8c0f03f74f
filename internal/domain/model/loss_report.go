package model

import "time"

// 損失報告。ロットの減算と同一トランザクションで作成される。
// ProductIDは商品削除時にnilへ切り離される（報告自体は残る）。
type LossReport struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID     int64  `gorm:"not null;index" json:"batch_id"`
	ProductID   *int64 `gorm:"index" json:"product_id"`
	ProductName string `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity    int64  `gorm:"not null" json:"quantity"`
	Unit        string `gorm:"type:varchar(30)" json:"unit"`
	Reason      string `gorm:"type:text;not null" json:"reason"`

	ReporterID   string `gorm:"type:uuid;not null;index" json:"reporter_id"`
	ReporterName string `gorm:"type:varchar(255)" json:"reporter_name"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
