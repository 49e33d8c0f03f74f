package repository

import (
	"context"

	"comedor/internal/domain/model"
)

// 献立の永続化。
type DishRepository interface {
	List(ctx context.Context) ([]model.Dish, error)
	FindByID(ctx context.Context, id int64) (model.Dish, error)
	ListIngredients(ctx context.Context, dishID int64) ([]model.DishIngredient, error)
	DetachProduct(ctx context.Context, productID int64) error
}

// プロフィールの読み取り。書き込みは認証基盤側の責務。
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (model.Profile, error)
}
