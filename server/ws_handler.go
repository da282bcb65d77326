package server

import (
	"context"
	"encoding/json"
	"net/http"

	"playdeck/cache"
	"playdeck/core/player"
	"playdeck/core/session"
	"playdeck/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Controllers connect from arbitrary origins on the LAN.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionWSHandler upgrades a controller connection, advertises the custom
// commands and pumps playback events until the controller disconnects.
func (h *APIHandler) SessionWSHandler(w http.ResponseWriter, r *http.Request) {
	username, err := GetUsernameFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &session.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 64),
		User: username,
	}
	h.hub.Register(client)

	go client.WritePump()

	// Handshake: advertise the commands this session accepts.
	hello := session.Hello(player.AdvertisedCommands())
	if data, err := json.Marshal(hello); err == nil {
		client.Enqueue(data)
	}

	client.ReadPump(r.Context(), func(ctx context.Context, action string, args json.RawMessage) interface{} {
		return h.svc.DispatchCommand(ctx, action, args)
	})

	// ReadPump returned: the controller is gone. The request context is
	// dead at this point, so the preference lookup gets a fresh one.
	h.onControllerGone(context.Background())
}

// onControllerGone stops playback when the last controller detaches and the
// persisted stop-on-disconnect preference asks for it.
func (h *APIHandler) onControllerGone(ctx context.Context) {
	if h.hub.ClientCount() > 0 {
		return
	}
	if !h.store.GetBool(ctx, cache.KeyStopOnTaskRemoved, false) {
		return
	}
	if h.svc.Status().Playing {
		logger.Info("last controller detached, stopping playback")
		h.svc.Pause()
	}
}
