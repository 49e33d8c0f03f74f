package repository

import (
	"context"
	"errors"

	"comedor/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindByName(ctx context.Context, name string) (model.Product, error)

	// FindByIDForUpdateは行ロック付き取得。同一商品への
	// 在庫チェック→減算を直列化するために使う。
	FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error

	// Deleteは物理削除。依存参照の切り離しはusecase側が先に行う。
	Delete(ctx context.Context, id int64) error
}

// カテゴリの永続化。
type CategoryRepository interface {
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id int64) (model.Category, error)
	Create(ctx context.Context, c model.Category) (model.Category, error)
}

// 仕入先の永続化。
type SupplierRepository interface {
	List(ctx context.Context) ([]model.Supplier, error)
	Create(ctx context.Context, s model.Supplier) (model.Supplier, error)
}
