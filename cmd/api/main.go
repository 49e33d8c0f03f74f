package main

import (
	"time"

	"comedor/internal/config"
	"comedor/internal/domain/model"
	"comedor/internal/handler"
	"comedor/internal/infra/db"
	infraRepo "comedor/internal/infra/repository"
	"comedor/internal/notify"
	"comedor/internal/push"
	"comedor/internal/server"
	"comedor/internal/usecase"
	"comedor/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		panic(err)
	}
	if err := gormDB.AutoMigrate(
		&model.Category{},
		&model.Supplier{},
		&model.Product{},
		&model.Batch{},
		&model.AdjustmentRequest{},
		&model.LossReport{},
		&model.StockMovement{},
		&model.AuditLog{},
		&model.Profile{},
		&model.Dish{},
		&model.DishIngredient{},
	); err != nil {
		panic(err)
	}

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	hub := push.NewHub()
	defer hub.Close()
	notifier := notify.NewLogScheduler(log.New("notify"))

	//Transaction manager（repoはtx内で作り直される）
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//Usecase生成
	ledgerUC := usecase.NewLedgerUsecase(txm, notifier, hub)
	requestUC := usecase.NewRequestUsecase(txm, validator.NewRequestValidator(), idGen, clock, hub)
	approvalUC := usecase.NewApprovalUsecase(txm, notifier, clock, hub)
	productUC := usecase.NewProductUsecase(txm, notifier)
	auditUC := usecase.NewAuditUsecase(txm)

	//Handler生成
	productH := handler.NewProductHandler(productUC)
	inventoryH := handler.NewInventoryHandler(ledgerUC)
	requestH := handler.NewRequestHandler(requestUC, approvalUC)
	auditH := handler.NewAuditHandler(auditUC)
	eventsH := handler.NewEventsHandler(hub)

	//Server起動
	e := server.New(cfg, productH, inventoryH, requestH, auditH, eventsH)
	if err := server.Start(e, ":"+cfg.Port); err != nil {
		e.Logger.Fatal(err)
	}
}
