package model

import "time"

// 食材・物品マスタ。在庫の実数はBatch側に持つ（Productは数量を持たない）。
type Product struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Unit       string `gorm:"type:varchar(30);not null" json:"unit"`
	CategoryID *int64 `gorm:"index" json:"category_id"`
	SupplierID *int64 `gorm:"index" json:"supplier_id"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// Fungibleは賞味期限管理の対象かどうか。falseの商品ロットは期限を持たない。
type Category struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Fungible bool   `gorm:"not null;default:true" json:"fungible"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 仕入先マスタ。
type Supplier struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
