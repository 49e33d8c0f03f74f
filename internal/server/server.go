package server

import (
	"net/http"

	"comedor/internal/config"
	"comedor/internal/handler"
	"comedor/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// New はルートを組み立てたEchoを返す。/healthz以外はすべてJWT必須。
func New(
	cfg config.Config,
	productH *handler.ProductHandler,
	inventoryH *handler.InventoryHandler,
	requestH *handler.RequestHandler,
	auditH *handler.AuditHandler,
	eventsH *handler.EventsHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("", middleware.AuthJWT(cfg))
	productH.RegisterRoutes(api)
	inventoryH.RegisterRoutes(api)
	requestH.RegisterRoutes(api)
	auditH.RegisterRoutes(api)
	eventsH.RegisterRoutes(api)

	return e
}

func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}
