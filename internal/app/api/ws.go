package api

import (
	"context"
	"net/http"
	"time"

	"vitstts/internal/app/notifications"
	"vitstts/pkg/ws"

	"github.com/gorilla/websocket"
)

// wsHandler streams settings, roster, strip control and redraw events. A chat_id query
// parameter limits chat scoped events to that chat.
func (api *API) wsHandler(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")

	logger := api.logger.With("chat_id", chatID)

	wsConn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade websocket connection", "err", err)
		return
	}

	wsClient, done := ws.NewWsClient(wsConn, logger)

	defer func() {
		logger.Debug("closing websocket connection")
		wsClient.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := api.notifications.Subscribe(ctx, chatID)

	if err := wsClient.SendJSON(&notifications.Event{
		Type:     notifications.EventSettings,
		Settings: api.ext.Settings().Snapshot(),
	}); err != nil {
		logger.Error("failed to send settings", "err", err)
		return
	}

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			if err := wsClient.SendJSON(event); err != nil {
				logger.Debug("failed to send event", "err", err)
				return
			}
		case <-ticker.C:
			if err := wsClient.Send(&ws.Message{MsgType: websocket.PingMessage}); err != nil {
				return
			}
		}
	}
}
