package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"comedor/internal/domain/model"
	repo "comedor/internal/repository"
)

// =====================
// In-memory store（clone-commitでトランザクションを再現）
// =====================

type memData struct {
	products   map[int64]model.Product
	categories map[int64]model.Category
	suppliers  map[int64]model.Supplier
	batches    map[int64]model.Batch
	requests   map[string]model.AdjustmentRequest
	losses     []model.LossReport
	movements  []model.StockMovement
	auditLogs  []model.AuditLog
	dishes     map[int64]model.Dish
	ingredents []model.DishIngredient
	profiles   map[string]model.Profile
	nextID     int64
}

func newMemData() *memData {
	return &memData{
		products:   map[int64]model.Product{},
		categories: map[int64]model.Category{},
		suppliers:  map[int64]model.Supplier{},
		batches:    map[int64]model.Batch{},
		requests:   map[string]model.AdjustmentRequest{},
		dishes:     map[int64]model.Dish{},
		profiles:   map[string]model.Profile{},
		nextID:     1,
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.dishes {
		c.dishes[k] = v
	}
	for k, v := range d.profiles {
		c.profiles[k] = v
	}
	c.losses = append([]model.LossReport(nil), d.losses...)
	c.movements = append([]model.StockMovement(nil), d.movements...)
	c.auditLogs = append([]model.AuditLog(nil), d.auditLogs...)
	c.ingredents = append([]model.DishIngredient(nil), d.ingredents...)
	c.nextID = d.nextID
	return c
}

func (d *memData) newID() int64 {
	id := d.nextID
	d.nextID++
	return id
}

// memTx はfnが成功したときだけcloneをコミットする。
type memTx struct {
	data *memData
}

func newMemTx() *memTx {
	return &memTx{data: newMemData()}
}

func (tm *memTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	work := tm.data.clone()
	if err := fn(&memRepos{d: work}); err != nil {
		return err
	}
	tm.data = work
	return nil
}

type memRepos struct {
	d *memData
}

func (r *memRepos) Products() repo.ProductRepository    { return &memProductRepo{d: r.d} }
func (r *memRepos) Categories() repo.CategoryRepository { return &memCategoryRepo{d: r.d} }
func (r *memRepos) Suppliers() repo.SupplierRepository  { return &memSupplierRepo{d: r.d} }
func (r *memRepos) Batches() repo.BatchRepository       { return &memBatchRepo{d: r.d} }
func (r *memRepos) Requests() repo.RequestRepository    { return &memRequestRepo{d: r.d} }
func (r *memRepos) Losses() repo.LossReportRepository   { return &memLossRepo{d: r.d} }
func (r *memRepos) Movements() repo.MovementRepository  { return &memMovementRepo{d: r.d} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository  { return &memAuditRepo{d: r.d} }
func (r *memRepos) Dishes() repo.DishRepository         { return &memDishRepo{d: r.d} }
func (r *memRepos) Profiles() repo.ProfileRepository    { return &memProfileRepo{d: r.d} }

// ---- products ----

type memProductRepo struct{ d *memData }

func (r *memProductRepo) List(_ context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var all []model.Product
	for _, p := range r.d.products {
		if q.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *q.CategoryID) {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, int64(len(all)), nil
}

func (r *memProductRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	p, ok := r.d.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProductRepo) FindByName(_ context.Context, name string) (model.Product, error) {
	for _, p := range r.d.products {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Product{}, repo.ErrNotFound
}

func (r *memProductRepo) FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *memProductRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	p.ID = r.d.newID()
	r.d.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) Update(_ context.Context, p model.Product) error {
	if _, ok := r.d.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	r.d.products[p.ID] = p
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, id int64) error {
	delete(r.d.products, id)
	return nil
}

// ---- categories ----

type memCategoryRepo struct{ d *memData }

func (r *memCategoryRepo) List(_ context.Context) ([]model.Category, error) {
	var all []model.Category
	for _, c := range r.d.categories {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *memCategoryRepo) FindByID(_ context.Context, id int64) (model.Category, error) {
	c, ok := r.d.categories[id]
	if !ok {
		return model.Category{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *memCategoryRepo) Create(_ context.Context, c model.Category) (model.Category, error) {
	c.ID = r.d.newID()
	r.d.categories[c.ID] = c
	return c, nil
}

type memSupplierRepo struct{ d *memData }

func (r *memSupplierRepo) List(_ context.Context) ([]model.Supplier, error) {
	var all []model.Supplier
	for _, s := range r.d.suppliers {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (r *memSupplierRepo) Create(_ context.Context, s model.Supplier) (model.Supplier, error) {
	s.ID = r.d.newID()
	r.d.suppliers[s.ID] = s
	return s, nil
}

// ---- batches ----

type memBatchRepo struct{ d *memData }

func (r *memBatchRepo) Create(_ context.Context, b model.Batch) (model.Batch, error) {
	b.ID = r.d.newID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	r.d.batches[b.ID] = b
	return b, nil
}

func (r *memBatchRepo) FindByID(_ context.Context, id int64) (model.Batch, error) {
	b, ok := r.d.batches[id]
	if !ok {
		return model.Batch{}, repo.ErrNotFound
	}
	return b, nil
}

func (r *memBatchRepo) ListByProductID(_ context.Context, productID int64) ([]model.Batch, error) {
	var all []model.Batch
	for _, b := range r.d.batches {
		if b.ProductID == productID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *memBatchRepo) ListActiveFIFO(_ context.Context, productID int64) ([]model.Batch, error) {
	var all []model.Batch
	for _, b := range r.d.batches {
		if b.ProductID == productID && b.Quantity > 0 {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		bi, bj := all[i], all[j]
		switch {
		case bi.ExpiresAt == nil && bj.ExpiresAt != nil:
			return false
		case bi.ExpiresAt != nil && bj.ExpiresAt == nil:
			return true
		case bi.ExpiresAt != nil && bj.ExpiresAt != nil && !bi.ExpiresAt.Equal(*bj.ExpiresAt):
			return bi.ExpiresAt.Before(*bj.ExpiresAt)
		case !bi.CreatedAt.Equal(bj.CreatedAt):
			return bi.CreatedAt.Before(bj.CreatedAt)
		default:
			return bi.ID < bj.ID
		}
	})
	return all, nil
}

func (r *memBatchRepo) SumActive(_ context.Context, productID int64) (int64, error) {
	var sum int64
	for _, b := range r.d.batches {
		if b.ProductID == productID && b.Quantity > 0 {
			sum += b.Quantity
		}
	}
	return sum, nil
}

func (r *memBatchRepo) DecrementIfEnough(_ context.Context, batchID int64, qty int64) (bool, error) {
	b, ok := r.d.batches[batchID]
	if !ok || b.Quantity < qty {
		return false, nil
	}
	b.Quantity -= qty
	r.d.batches[batchID] = b
	return true, nil
}

func (r *memBatchRepo) DeleteByProductID(_ context.Context, productID int64) error {
	for id, b := range r.d.batches {
		if b.ProductID == productID {
			delete(r.d.batches, id)
		}
	}
	return nil
}

// ---- requests ----

type memRequestRepo struct{ d *memData }

func (r *memRequestRepo) Create(_ context.Context, req model.AdjustmentRequest) error {
	if _, ok := r.d.requests[req.ID]; ok {
		return fmt.Errorf("duplicate id")
	}
	r.d.requests[req.ID] = req
	return nil
}

func (r *memRequestRepo) FindByID(_ context.Context, id string) (model.AdjustmentRequest, error) {
	req, ok := r.d.requests[id]
	if !ok {
		return model.AdjustmentRequest{}, repo.ErrNotFound
	}
	return req, nil
}

func (r *memRequestRepo) ListPending(_ context.Context, f repo.PendingRequestFilter) ([]model.AdjustmentRequest, error) {
	var all []model.AdjustmentRequest
	for _, req := range r.d.requests {
		if req.State != model.RequestStatePending {
			continue
		}
		if f.Kind != nil && req.Kind != *f.Kind {
			continue
		}
		all = append(all, req)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r *memRequestRepo) CountPending(_ context.Context) (int64, error) {
	var n int64
	for _, req := range r.d.requests {
		if req.State == model.RequestStatePending {
			n++
		}
	}
	return n, nil
}

func (r *memRequestRepo) LatestAccessByRequesterSince(_ context.Context, requesterID string, since time.Time) (model.AdjustmentRequest, bool, error) {
	var latest model.AdjustmentRequest
	found := false
	for _, req := range r.d.requests {
		if req.Kind != model.RequestKindAccess || req.RequesterID != requesterID {
			continue
		}
		if req.CreatedAt.Before(since) {
			continue
		}
		if !found || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
			found = true
		}
	}
	return latest, found, nil
}

func (r *memRequestRepo) ListApprovedAccessSince(_ context.Context, since time.Time) ([]model.AdjustmentRequest, error) {
	var all []model.AdjustmentRequest
	for _, req := range r.d.requests {
		if req.Kind == model.RequestKindAccess && req.State == model.RequestStateApproved && !req.CreatedAt.Before(since) {
			all = append(all, req)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r *memRequestRepo) ResolveIfPending(_ context.Context, id string, state model.RequestState, resolvedBy string, reason *string, at time.Time) (bool, error) {
	req, ok := r.d.requests[id]
	if !ok || req.State != model.RequestStatePending {
		return false, nil
	}
	req.State = state
	req.RejectReason = reason
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &at
	r.d.requests[id] = req
	return true, nil
}

func (r *memRequestRepo) RevokeIfApproved(_ context.Context, id string, resolvedBy string, at time.Time) (bool, error) {
	req, ok := r.d.requests[id]
	if !ok || req.Kind != model.RequestKindAccess || req.State != model.RequestStateApproved {
		return false, nil
	}
	req.State = model.RequestStateRejected
	req.ResolvedBy = &resolvedBy
	req.ResolvedAt = &at
	r.d.requests[id] = req
	return true, nil
}

func (r *memRequestRepo) DetachProduct(_ context.Context, productID int64) error {
	for id, req := range r.d.requests {
		if req.ProductID != nil && *req.ProductID == productID {
			req.ProductID = nil
			r.d.requests[id] = req
		}
	}
	return nil
}

// ---- losses / movements / audit ----

type memLossRepo struct{ d *memData }

func (r *memLossRepo) Create(_ context.Context, l model.LossReport) error {
	l.ID = r.d.newID()
	r.d.losses = append(r.d.losses, l)
	return nil
}

func (r *memLossRepo) List(_ context.Context, _ repo.LossReportFilter) ([]model.LossReport, error) {
	return append([]model.LossReport(nil), r.d.losses...), nil
}

func (r *memLossRepo) DetachProduct(_ context.Context, productID int64) error {
	for i := range r.d.losses {
		if r.d.losses[i].ProductID != nil && *r.d.losses[i].ProductID == productID {
			r.d.losses[i].ProductID = nil
		}
	}
	return nil
}

type memMovementRepo struct{ d *memData }

func (r *memMovementRepo) Create(_ context.Context, m model.StockMovement) error {
	m.ID = r.d.newID()
	r.d.movements = append(r.d.movements, m)
	return nil
}

func (r *memMovementRepo) List(_ context.Context, _ repo.MovementFilter) ([]model.StockMovement, error) {
	return append([]model.StockMovement(nil), r.d.movements...), nil
}

func (r *memMovementRepo) DetachProduct(_ context.Context, productID int64) error {
	for i := range r.d.movements {
		if r.d.movements[i].ProductID != nil && *r.d.movements[i].ProductID == productID {
			r.d.movements[i].ProductID = nil
		}
	}
	return nil
}

type memAuditRepo struct{ d *memData }

func (r *memAuditRepo) Create(_ context.Context, log model.AuditLog) error {
	log.ID = r.d.newID()
	r.d.auditLogs = append(r.d.auditLogs, log)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var all []model.AuditLog
	for _, l := range r.d.auditLogs {
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		all = append(all, l)
	}
	return all, nil
}

// ---- dishes / profiles ----

type memDishRepo struct{ d *memData }

func (r *memDishRepo) List(_ context.Context) ([]model.Dish, error) {
	var all []model.Dish
	for _, d := range r.d.dishes {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *memDishRepo) FindByID(_ context.Context, id int64) (model.Dish, error) {
	d, ok := r.d.dishes[id]
	if !ok {
		return model.Dish{}, repo.ErrNotFound
	}
	return d, nil
}

func (r *memDishRepo) ListIngredients(_ context.Context, dishID int64) ([]model.DishIngredient, error) {
	var all []model.DishIngredient
	for _, ing := range r.d.ingredents {
		if ing.DishID == dishID {
			all = append(all, ing)
		}
	}
	return all, nil
}

func (r *memDishRepo) DetachProduct(_ context.Context, productID int64) error {
	for i := range r.d.ingredents {
		if r.d.ingredents[i].ProductID != nil && *r.d.ingredents[i].ProductID == productID {
			r.d.ingredents[i].ProductID = nil
		}
	}
	return nil
}

type memProfileRepo struct{ d *memData }

func (r *memProfileRepo) FindByID(_ context.Context, id string) (model.Profile, error) {
	p, ok := r.d.profiles[id]
	if !ok {
		return model.Profile{}, repo.ErrNotFound
	}
	return p, nil
}

// =====================
// テスト用の部品
// =====================

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type seqIDGen struct {
	n int
}

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", g.n)
}
