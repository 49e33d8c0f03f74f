package repository

import (
	"context"

	repo "comedor/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	products   repo.ProductRepository
	categories repo.CategoryRepository
	suppliers  repo.SupplierRepository
	batches    repo.BatchRepository
	requests   repo.RequestRepository
	losses     repo.LossReportRepository
	movements  repo.MovementRepository
	auditLogs  repo.AuditLogRepository
	dishes     repo.DishRepository
	profiles   repo.ProfileRepository
}

func (r *txReposGorm) Products() repo.ProductRepository    { return r.products }
func (r *txReposGorm) Categories() repo.CategoryRepository { return r.categories }
func (r *txReposGorm) Suppliers() repo.SupplierRepository  { return r.suppliers }
func (r *txReposGorm) Batches() repo.BatchRepository       { return r.batches }
func (r *txReposGorm) Requests() repo.RequestRepository    { return r.requests }
func (r *txReposGorm) Losses() repo.LossReportRepository   { return r.losses }
func (r *txReposGorm) Movements() repo.MovementRepository  { return r.movements }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository  { return r.auditLogs }
func (r *txReposGorm) Dishes() repo.DishRepository         { return r.dishes }
func (r *txReposGorm) Profiles() repo.ProfileRepository    { return r.profiles }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			products:   NewProductGormRepository(tx),
			categories: NewCategoryGormRepository(tx),
			suppliers:  NewSupplierGormRepository(tx),
			batches:    NewBatchGormRepository(tx),
			requests:   NewRequestGormRepository(tx),
			losses:     NewLossReportGormRepository(tx),
			movements:  NewMovementGormRepository(tx),
			auditLogs:  NewAuditLogGormRepository(tx),
			dishes:     NewDishGormRepository(tx),
			profiles:   NewProfileGormRepository(tx),
		}
		return fn(r)
	})
}
