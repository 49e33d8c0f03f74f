package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"comedor/internal/domain/model"
	"comedor/internal/notify"
	repo "comedor/internal/repository"
)

// ProductUsecase は商品マスタの管理。削除は依存参照の切り離しを伴う。
type ProductUsecase struct {
	tx       repo.TransactionManager
	notifier notify.Scheduler
}

func NewProductUsecase(tx repo.TransactionManager, notifier notify.Scheduler) *ProductUsecase {
	return &ProductUsecase{tx: tx, notifier: notifier}
}

type ProductInput struct {
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	CategoryID *int64 `json:"category_id"`
	SupplierID *int64 `json:"supplier_id"`
}

type ProductOutput struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Unit              string     `json:"unit"`
	CategoryID        *int64     `json:"category_id"`
	CategoryName      string     `json:"category_name,omitempty"`
	Stock             int64      `json:"stock"`
	NearestExpiration *time.Time `json:"nearest_expiration"`
	CreatedAt         time.Time  `json:"created_at"`
}

type ProductListOutput struct {
	Items []ProductOutput `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// List は在庫量と直近の賞味期限を載せた商品一覧。
func (u *ProductUsecase) List(ctx context.Context, q repo.ProductListQuery) (ProductListOutput, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	var out ProductListOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		products, total, err := r.Products().List(ctx, q)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items := make([]ProductOutput, 0, len(products))
		for _, p := range products {
			sum, err := r.Batches().SumActive(ctx, p.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			batches, err := r.Batches().ListActiveFIFO(ctx, p.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			item := toProductOutput(p)
			item.Stock = sum
			if len(batches) > 0 {
				item.NearestExpiration = batches[0].ExpiresAt
			}
			items = append(items, item)
		}

		out = ProductListOutput{Items: items, Total: total, Page: q.Page, Limit: q.Limit}
		return nil
	})
	if err != nil {
		return ProductListOutput{}, err
	}
	return out, nil
}

func (u *ProductUsecase) Get(ctx context.Context, id int64) (ProductOutput, error) {
	if id <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		sum, err := r.Batches().SumActive(ctx, id)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		batches, err := r.Batches().ListActiveFIFO(ctx, id)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = toProductOutput(p)
		out.Stock = sum
		if len(batches) > 0 {
			out.NearestExpiration = batches[0].ExpiresAt
		}
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

func (u *ProductUsecase) Create(ctx context.Context, actor model.Principal, in ProductInput) (ProductOutput, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return ProductOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 255 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid name")
	}
	if strings.TrimSpace(in.Unit) == "" {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "unit required")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByName(ctx, name); err == nil {
			return NewHTTPError(http.StatusConflict, "product name already exists")
		} else if !errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		created, err := r.Products().Create(ctx, model.Product{
			Name:       name,
			Unit:       in.Unit,
			CategoryID: in.CategoryID,
			SupplierID: in.SupplierID,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		recordID := strconv.FormatInt(created.ID, 10)
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionCreateProduct,
			Description: fmt.Sprintf("product created: %s", name),
			TableName:   model.AuditTableProducts,
			RecordID:    &recordID,
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toProductOutput(created)
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

func (u *ProductUsecase) Update(ctx context.Context, actor model.Principal, id int64, in ProductInput) (ProductOutput, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return ProductOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if id <= 0 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 255 {
		return ProductOutput{}, NewHTTPError(http.StatusBadRequest, "invalid name")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 別商品と同名は不可
		if other, err := r.Products().FindByName(ctx, name); err == nil && other.ID != id {
			return NewHTTPError(http.StatusConflict, "product name already exists")
		} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		p.Name = name
		p.Unit = in.Unit
		p.CategoryID = in.CategoryID
		p.SupplierID = in.SupplierID
		if err := r.Products().Update(ctx, p); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		recordID := strconv.FormatInt(id, 10)
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionUpdateProduct,
			Description: fmt.Sprintf("product updated: %s", name),
			TableName:   model.AuditTableProducts,
			RecordID:    &recordID,
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

// Delete は商品の物理削除。残量が残っている間は拒否する。
// 依頼・損失報告・移動記録・献立材料の参照をnilへ切り離してから
// ロット行を消し、最後に商品を消す。
func (u *ProductUsecase) Delete(ctx context.Context, actor model.Principal, id int64) error {
	if !actor.Role.AtLeast(model.RoleSuperAdmin) {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if id <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var batchIDs []int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		sum, err := r.Batches().SumActive(ctx, id)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if sum > 0 {
			return conflict("product still has stock", ErrInvalidState)
		}

		if err := r.Requests().DetachProduct(ctx, id); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Losses().DetachProduct(ctx, id); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Movements().DetachProduct(ctx, id); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Dishes().DetachProduct(ctx, id); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		batches, err := r.Batches().ListByProductID(ctx, id)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		batchIDs = batchIDs[:0]
		for _, b := range batches {
			batchIDs = append(batchIDs, b.ID)
		}
		if err := r.Batches().DeleteByProductID(ctx, id); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Products().Delete(ctx, id); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		recordID := strconv.FormatInt(id, 10)
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Action:      model.AuditActionDeleteProduct,
			Description: fmt.Sprintf("product deleted: %s", p.Name),
			TableName:   model.AuditTableProducts,
			RecordID:    &recordID,
			ActorID:     actor.ID,
			ActorEmail:  actor.Email,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 消えたロットのリマインダーは残さない。失敗しても削除は確定済み。
	for _, bID := range batchIDs {
		_ = u.notifier.CancelForBatch(ctx, bID)
	}
	return nil
}

func (u *ProductUsecase) ListCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		cats, err = r.Categories().List(ctx)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cats, nil
}

func (u *ProductUsecase) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	var sups []model.Supplier
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		sups, err = r.Suppliers().List(ctx)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sups, nil
}

// CreateSupplier は入庫フォームの仕入先候補を増やす。
func (u *ProductUsecase) CreateSupplier(ctx context.Context, actor model.Principal, name string) (model.Supplier, error) {
	if !actor.Role.AtLeast(model.RoleSupervisor) {
		return model.Supplier{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Supplier{}, NewHTTPError(http.StatusBadRequest, "name is required")
	}

	var sup model.Supplier
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		sup, err = r.Suppliers().Create(ctx, model.Supplier{Name: name})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return model.Supplier{}, err
	}
	return sup, nil
}

func toProductOutput(p model.Product) ProductOutput {
	out := ProductOutput{
		ID:         p.ID,
		Name:       p.Name,
		Unit:       p.Unit,
		CategoryID: p.CategoryID,
		CreatedAt:  p.CreatedAt,
	}
	if p.Category != nil {
		out.CategoryName = p.Category.Name
	}
	return out
}
