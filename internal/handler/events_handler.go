package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"comedor/internal/push"

	"github.com/labstack/echo/v4"
)

// 変更通知のSSE配信。クライアント同期のpushチャネルになる。
// 配信はbest-effortで、取りこぼしはポーリング側が拾う。
type EventsHandler struct {
	source push.Source
}

func NewEventsHandler(source push.Source) *EventsHandler {
	return &EventsHandler{source: source}
}

func (h *EventsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/events", h.stream)
}

func (h *EventsHandler) stream(c echo.Context) error {
	table := c.QueryParam("table")
	if table == "" {
		table = "adjustment_requests"
	}

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := h.source.Subscribe(table)
	defer cancel()

	// 接続維持のためのkeep-aliveコメント
	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: change\ndata: %s\n\n", data); err != nil {
				return nil
			}
			res.Flush()

		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
