package handler

import (
	"net/http"
	"strconv"

	"comedor/internal/domain/model"
	"comedor/internal/middleware"
	repo "comedor/internal/repository"
	"comedor/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 監査ログの照会API
type AuditHandler struct {
	uc *usecase.AuditUsecase
}

func NewAuditHandler(uc *usecase.AuditUsecase) *AuditHandler {
	return &AuditHandler{uc: uc}
}

func (h *AuditHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/audit-logs", h.list, middleware.RequireRole(model.RoleSupervisor))
}

func (h *AuditHandler) list(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	f := repo.AuditLogFilter{}
	if v := c.QueryParam("actor_id"); v != "" {
		f.ActorID = &v
	}
	if v := c.QueryParam("action"); v != "" {
		a := model.AuditAction(v)
		f.Action = &a
	}
	if v := c.QueryParam("table"); v != "" {
		t := model.AuditTable(v)
		f.TableName = &t
	}
	if v := c.QueryParam("record_id"); v != "" {
		f.RecordID = &v
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		f.Limit = l
	}
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid offset"})
		}
		f.Offset = o
	}
	var parseErr error
	f.CreatedFrom, parseErr = parseTimeParam(c.QueryParam("from"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	f.CreatedTo, parseErr = parseTimeParam(c.QueryParam("to"))
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}

	out, err := h.uc.List(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
