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
	"comedor/internal/push"
	repo "comedor/internal/repository"
)

// LedgerUsecase は在庫台帳への直接操作（入庫・FIFO消費・損失）。
// 承認を経ない分、呼び出せるのはWORKER以上に限る。
type LedgerUsecase struct {
	tx        repo.TransactionManager
	notifier  notify.Scheduler
	publisher push.Publisher
}

func NewLedgerUsecase(tx repo.TransactionManager, notifier notify.Scheduler, publisher push.Publisher) *LedgerUsecase {
	return &LedgerUsecase{tx: tx, notifier: notifier, publisher: publisher}
}

type AddBatchInput struct {
	ProductID int64      `json:"product_id"`
	Quantity  int64      `json:"quantity"`
	ExpiresAt *time.Time `json:"expires_at"`
	Supplier  string     `json:"supplier"`
}

type BatchOutput struct {
	ID        int64      `json:"id"`
	ProductID int64      `json:"product_id"`
	Quantity  int64      `json:"quantity"`
	ExpiresAt *time.Time `json:"expires_at"`
	Supplier  string     `json:"supplier"`
	CreatedAt time.Time  `json:"created_at"`
}

type ConsumeInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	Students  int64 `json:"students"`
	Teachers  int64 `json:"teachers"`
}

type ConsumeOutput struct {
	ProductID int64 `json:"product_id"`
	Consumed  int64 `json:"consumed"`
	Remaining int64 `json:"remaining"`
}

type ReportLossInput struct {
	BatchID  int64  `json:"batch_id"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

type StockOutput struct {
	ProductID         int64      `json:"product_id"`
	Quantity          int64      `json:"quantity"`
	NearestExpiration *time.Time `json:"nearest_expiration"`
}

func (u *LedgerUsecase) AddBatch(ctx context.Context, actor model.Principal, in AddBatchInput) (BatchOutput, error) {
	if !actor.Role.AtLeast(model.RoleWorker) {
		return BatchOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if in.ProductID <= 0 {
		return BatchOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity <= 0 {
		return BatchOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}

	var (
		batch   model.Batch
		product model.Product
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		product, batch, err = addBatchTx(ctx, r, actor, batchInput{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			ExpiresAt: in.ExpiresAt,
			Supplier:  in.Supplier,
		})
		return err
	})
	if err != nil {
		return BatchOutput{}, err
	}

	// リマインダー予約は台帳確定に影響させない
	_ = u.notifier.ScheduleExpiryReminders(ctx, &product, &batch)
	u.publish("batches", push.EventInsert, strconv.FormatInt(batch.ID, 10))

	return toBatchOutput(batch), nil
}

func (u *LedgerUsecase) Consume(ctx context.Context, actor model.Principal, in ConsumeInput) (ConsumeOutput, error) {
	if !actor.Role.AtLeast(model.RoleWorker) {
		return ConsumeOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if in.ProductID <= 0 {
		return ConsumeOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity <= 0 {
		return ConsumeOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}
	if in.Students < 0 || in.Teachers < 0 {
		return ConsumeOutput{}, NewHTTPError(http.StatusBadRequest, "beneficiary counts must not be negative")
	}

	var remaining int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		remaining, err = consumeFIFOTx(ctx, r, actor, in.ProductID, in.Quantity, in.Students, in.Teachers)
		return err
	})
	if err != nil {
		return ConsumeOutput{}, err
	}

	u.publish("batches", push.EventUpdate, strconv.FormatInt(in.ProductID, 10))

	return ConsumeOutput{
		ProductID: in.ProductID,
		Consumed:  in.Quantity,
		Remaining: remaining,
	}, nil
}

func (u *LedgerUsecase) ReportLoss(ctx context.Context, actor model.Principal, in ReportLossInput) error {
	if !actor.Role.AtLeast(model.RoleWorker) {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if in.BatchID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid batch_id")
	}
	if in.Quantity <= 0 {
		return NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return reportLossTx(ctx, r, actor, actor.ID, "", in.BatchID, in.Quantity, in.Reason)
	})
	if err != nil {
		return err
	}

	u.publish("batches", push.EventUpdate, strconv.FormatInt(in.BatchID, 10))
	return nil
}

// Stock は商品の現在庫と直近の賞味期限。
func (u *LedgerUsecase) Stock(ctx context.Context, productID int64) (StockOutput, error) {
	if productID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	var out StockOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		sum, err := r.Batches().SumActive(ctx, productID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		batches, err := r.Batches().ListActiveFIFO(ctx, productID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		out = StockOutput{ProductID: productID, Quantity: sum}
		if len(batches) > 0 {
			out.NearestExpiration = batches[0].ExpiresAt
		}
		return nil
	})
	if err != nil {
		return StockOutput{}, err
	}
	return out, nil
}

// ListBatches は商品のロット一覧（残量0も含む）。
func (u *LedgerUsecase) ListBatches(ctx context.Context, productID int64) ([]BatchOutput, error) {
	if productID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}

	var outs []BatchOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		batches, err := r.Batches().ListByProductID(ctx, productID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		outs = make([]BatchOutput, 0, len(batches))
		for _, b := range batches {
			outs = append(outs, toBatchOutput(b))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// ServeDish は献立1件を人数分まとめてFIFO消費する。
// 材料のどれか1つでも在庫不足なら全体をロールバックする。
func (u *LedgerUsecase) ServeDish(ctx context.Context, actor model.Principal, dishID, servings, students, teachers int64) error {
	if !actor.Role.AtLeast(model.RoleWorker) {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if dishID <= 0 || servings <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid dish or servings")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Dishes().FindByID(ctx, dishID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		ingredients, err := r.Dishes().ListIngredients(ctx, dishID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		for _, ing := range ingredients {
			if ing.ProductID == nil {
				// 商品削除で切り離された材料は飛ばす
				continue
			}
			if _, err := consumeFIFOTx(ctx, r, actor, *ing.ProductID, ing.SuggestedQty*servings, students, teachers); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	u.publish("batches", push.EventUpdate, strconv.FormatInt(dishID, 10))
	return nil
}

// ListMovements はレポート用の移動記録一覧。
func (u *LedgerUsecase) ListMovements(ctx context.Context, actor model.Principal, f repo.MovementFilter) ([]model.StockMovement, error) {
	if !actor.Role.AtLeast(model.RoleWorker) {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}

	var moves []model.StockMovement
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		moves, err = r.Movements().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moves, nil
}

// ListLosses は損失報告の一覧。
func (u *LedgerUsecase) ListLosses(ctx context.Context, actor model.Principal, f repo.LossReportFilter) ([]model.LossReport, error) {
	if !actor.Role.AtLeast(model.RoleWorker) {
		return nil, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 100
	}

	var losses []model.LossReport
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		losses, err = r.Losses().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return losses, nil
}

// ListDishes は献立一覧（材料つき）。
func (u *LedgerUsecase) ListDishes(ctx context.Context) ([]model.Dish, error) {
	var dishes []model.Dish
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		dishes, err = r.Dishes().List(ctx)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dishes, nil
}

func (u *LedgerUsecase) publish(table string, t push.EventType, recordID string) {
	if u.publisher == nil {
		return
	}
	u.publisher.Publish(push.Event{
		Table:    table,
		Type:     t,
		RecordID: recordID,
		At:       time.Now(),
	})
}

func toBatchOutput(b model.Batch) BatchOutput {
	return BatchOutput{
		ID:        b.ID,
		ProductID: b.ProductID,
		Quantity:  b.Quantity,
		ExpiresAt: b.ExpiresAt,
		Supplier:  b.Supplier,
		CreatedAt: b.CreatedAt,
	}
}

type batchInput struct {
	ProductID int64
	Quantity  int64
	ExpiresAt *time.Time
	Supplier  string
}

// addBatchTx は入庫の台帳反映。商品行をロックしたうえで
// ロット追加・移動記録・監査ログを同一トランザクションで書く。
func addBatchTx(ctx context.Context, r repo.TxRepos, actor model.Principal, in batchInput) (model.Product, model.Batch, error) {
	product, err := r.Products().FindByIDForUpdate(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, model.Batch{}, NewHTTPError(http.StatusNotFound, "product not found")
		}
		return model.Product{}, model.Batch{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	// カテゴリ未設定は期限管理ありとして扱う
	fungible := true
	if product.CategoryID != nil {
		cat, err := r.Categories().FindByID(ctx, *product.CategoryID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, model.Batch{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err == nil {
			fungible = cat.Fungible
		}
	}

	expiresAt := in.ExpiresAt
	if !fungible {
		// 期限管理しない商品は常に期限なしへ正規化
		expiresAt = nil
	} else if expiresAt == nil {
		return model.Product{}, model.Batch{}, NewHTTPError(http.StatusBadRequest, "expiration date required for perishable products")
	}

	batch, err := r.Batches().Create(ctx, model.Batch{
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		ExpiresAt: expiresAt,
		Supplier:  in.Supplier,
	})
	if err != nil {
		return model.Product{}, model.Batch{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if err := r.Movements().Create(ctx, model.StockMovement{
		ProductID:   &product.ID,
		ProductName: product.Name,
		Direction:   model.MovementIn,
		Quantity:    in.Quantity,
		Unit:        product.Unit,
		Supplier:    in.Supplier,
		ActorID:     actor.ID,
	}); err != nil {
		return model.Product{}, model.Batch{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	recordID := strconv.FormatInt(batch.ID, 10)
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Action:      model.AuditActionAddBatch,
		Description: fmt.Sprintf("add batch: %s x%d", product.Name, in.Quantity),
		TableName:   model.AuditTableBatches,
		RecordID:    &recordID,
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
	}); err != nil {
		return model.Product{}, model.Batch{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return product, batch, nil
}

// consumeFIFOTx は期限の早いロットから順に減らす。合計が足りなければ
// 1件も減らさずErrInsufficientStockで失敗する。残量を返す。
func consumeFIFOTx(ctx context.Context, r repo.TxRepos, actor model.Principal, productID, qty, students, teachers int64) (int64, error) {
	// 同一商品のチェック→減算を直列化する行ロック
	product, err := r.Products().FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, NewHTTPError(http.StatusNotFound, "product not found")
		}
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	batches, err := r.Batches().ListActiveFIFO(ctx, productID)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var total int64
	for _, b := range batches {
		total += b.Quantity
	}
	if total < qty {
		return 0, conflict("insufficient stock", ErrInsufficientStock)
	}

	remaining := qty
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		ok, err := r.Batches().DecrementIfEnough(ctx, b.ID, take)
		if err != nil {
			return 0, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			// 行ロック下では起きないはずだが、起きたら全体を巻き戻す
			return 0, conflict("insufficient stock", ErrInsufficientStock)
		}
		remaining -= take
	}

	if err := r.Movements().Create(ctx, model.StockMovement{
		ProductID:   &product.ID,
		ProductName: product.Name,
		Direction:   model.MovementOut,
		Quantity:    qty,
		Unit:        product.Unit,
		Students:    students,
		Teachers:    teachers,
		ActorID:     actor.ID,
	}); err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	recordID := strconv.FormatInt(productID, 10)
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Action:      model.AuditActionConsumeStock,
		Description: fmt.Sprintf("consume: %s x%d", product.Name, qty),
		TableName:   model.AuditTableBatches,
		RecordID:    &recordID,
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
	}); err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return total - qty, nil
}

// reportLossTx は特定ロットからの損失計上。減算と報告は同一トランザクション。
// 報告者（reporter）と操作者（actor）は承認経由では別人になる。
func reportLossTx(ctx context.Context, r repo.TxRepos, actor model.Principal, reporterID, reporterName string, batchID, qty int64, reason string) error {
	batch, err := r.Batches().FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "batch not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	product, err := r.Products().FindByIDForUpdate(ctx, batch.ProductID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	ok, err := r.Batches().DecrementIfEnough(ctx, batchID, qty)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !ok {
		return conflict("insufficient stock in batch", ErrInsufficientStock)
	}

	if reporterName == "" {
		if prof, err := r.Profiles().FindByID(ctx, reporterID); err == nil {
			reporterName = prof.Name
		}
	}

	if err := r.Losses().Create(ctx, model.LossReport{
		BatchID:      batchID,
		ProductID:    &product.ID,
		ProductName:  product.Name,
		Quantity:     qty,
		Unit:         product.Unit,
		Reason:       reason,
		ReporterID:   reporterID,
		ReporterName: reporterName,
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	recordID := strconv.FormatInt(batchID, 10)
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Action:      model.AuditActionReportLoss,
		Description: fmt.Sprintf("loss: %s x%d (%s)", product.Name, qty, reason),
		TableName:   model.AuditTableLosses,
		RecordID:    &recordID,
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return nil
}
