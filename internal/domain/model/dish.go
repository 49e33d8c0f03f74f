package model

import "time"

// 献立。1皿分の材料はDishIngredientで持つ。
type Dish struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`

	Ingredients []DishIngredient `gorm:"foreignKey:DishID" json:"ingredients,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 献立の材料リンク。商品削除時はProductIDをnilへ切り離す。
type DishIngredient struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	DishID       int64  `gorm:"not null;index" json:"dish_id"`
	ProductID    *int64 `gorm:"index" json:"product_id"`
	SuggestedQty int64  `gorm:"not null" json:"suggested_qty"`
}
