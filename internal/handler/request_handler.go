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

// 調整依頼・承認のAPI
type RequestHandler struct {
	requests  *usecase.RequestUsecase
	approvals *usecase.ApprovalUsecase
}

// DI
func NewRequestHandler(requests *usecase.RequestUsecase, approvals *usecase.ApprovalUsecase) *RequestHandler {
	return &RequestHandler{requests: requests, approvals: approvals}
}

func (h *RequestHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/requests", h.create)
	g.GET("/requests/access/today", h.accessToday)

	supervisor := middleware.RequireRole(model.RoleSupervisor)
	g.GET("/requests/pending", h.listPending, supervisor)
	g.GET("/requests/pending/count", h.countPending, supervisor)
	g.GET("/requests/access/active", h.listActiveAccess, supervisor)
	g.POST("/requests/:id/approve", h.approve, supervisor)
	g.POST("/requests/:id/reject", h.reject, supervisor)
	g.POST("/requests/:id/revoke", h.revoke, supervisor)
}

func (h *RequestHandler) create(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	var in usecase.CreateRequestInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.requests.Create(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ポーリングの応答。クライアントはこの結果だけを真実として扱う。
func (h *RequestHandler) accessToday(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.requests.AccessStateToday(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) listPending(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	f := repo.PendingRequestFilter{}
	if v := c.QueryParam("kind"); v != "" {
		k := model.RequestKind(v)
		switch k {
		case model.RequestKindEntry, model.RequestKindExit, model.RequestKindLoss, model.RequestKindAccess:
			f.Kind = &k
		default:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid kind"})
		}
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

	out, err := h.requests.ListPending(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) countPending(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	count, err := h.requests.CountPending(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

func (h *RequestHandler) listActiveAccess(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.requests.ListActiveAccess(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) approve(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.approvals.Approve(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) reject(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	var in usecase.RejectInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.approvals.Reject(c.Request().Context(), actor, c.Param("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RequestHandler) revoke(c echo.Context) error {
	actor, err := principalFromContext(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.approvals.RevokeAccess(c.Request().Context(), actor, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}
