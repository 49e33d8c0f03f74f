package handler

import (
	"net/http"
	"strconv"
	"time"

	"comedor/internal/domain/model"
	"comedor/internal/middleware"
	repo "comedor/internal/repository"
	"comedor/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 在庫台帳のAPI（ロット・消費・損失・レポート）
type InventoryHandler struct {
	uc *usecase.LedgerUsecase
}

// DI
func NewInventoryHandler(uc *usecase.LedgerUsecase) *InventoryHandler {
	return &InventoryHandler{uc: uc}
}

func (h *InventoryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/products/:id/stock", h.stock)
	g.GET("/products/:id/batches", h.listBatches)
	g.GET("/dishes", h.listDishes)

	worker := middleware.RequireRole(model.RoleWorker)
	g.POST("/products/:id/batches", h.addBatch, worker)
	g.POST("/consume", h.consume, worker)
	g.POST("/losses", h.reportLoss, worker)
	g.POST("/dishes/:id/serve", h.serveDish, worker)
	g.GET("/losses", h.listLosses, worker)
	g.GET("/movements", h.listMovements, worker)
}

func (h *InventoryHandler) stock(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.Stock(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) listBatches(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.ListBatches(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) addBatch(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var in usecase.AddBatchInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	in.ProductID = id

	out, err := h.uc.AddBatch(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *InventoryHandler) consume(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	var in usecase.ConsumeInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Consume(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) reportLoss(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	var in usecase.ReportLossInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.ReportLoss(c.Request().Context(), actor, in); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}

type serveDishRequest struct {
	Servings int64 `json:"servings"`
	Students int64 `json:"students"`
	Teachers int64 `json:"teachers"`
}

func (h *InventoryHandler) serveDish(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var in serveDishRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := h.uc.ServeDish(c.Request().Context(), actor, id, in.Servings, in.Students, in.Teachers); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *InventoryHandler) listDishes(c echo.Context) error {
	out, err := h.uc.ListDishes(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) listLosses(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	f := repo.LossReportFilter{}
	if v := c.QueryParam("product_id"); v != "" {
		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
		}
		f.ProductID = &x
	}
	var parseErr error
	f.From, parseErr = parseTimeParam(c.QueryParam("from"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	f.To, parseErr = parseTimeParam(c.QueryParam("to"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	out, err := h.uc.ListLosses(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) listMovements(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	f := repo.MovementFilter{}
	if v := c.QueryParam("product_id"); v != "" {
		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
		}
		f.ProductID = &x
	}
	if v := c.QueryParam("direction"); v != "" {
		d := model.MovementDirection(v)
		if d != model.MovementIn && d != model.MovementOut {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid direction"})
		}
		f.Direction = &d
	}
	var parseErr error
	f.From, parseErr = parseTimeParam(c.QueryParam("from"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	f.To, parseErr = parseTimeParam(c.QueryParam("to"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	out, err := h.uc.ListMovements(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// RFC3339または日付だけの形式を受ける
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
