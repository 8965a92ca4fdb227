package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/uid"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// EventsHandler streams committed economy events over a websocket.
type EventsHandler struct {
	hub        *service.Hub
	bufferSize int
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

// NewEventsHandler creates a new events handler. Origins are not checked:
// the stream sits behind API key authentication.
func NewEventsHandler(hub *service.Hub, bufferSize int, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		hub:        hub,
		bufferSize: bufferSize,
		log:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// eventFilter keeps events for one player and/or a set of kinds.
type eventFilter struct {
	player uuid.UUID
	kinds  map[model.EventKind]struct{}
}

func parseFilter(r *http.Request) eventFilter {
	var f eventFilter
	q := r.URL.Query()
	if id, ok := uid.ParsePlayer(q.Get("player")); ok {
		f.player = id
	}
	if raw := q.Get("kinds"); raw != "" {
		f.kinds = map[model.EventKind]struct{}{}
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				f.kinds[model.EventKind(k)] = struct{}{}
			}
		}
	}
	return f
}

func (f eventFilter) match(e model.Event) bool {
	if f.player != uuid.Nil && e.Player != f.player && e.Other != f.player {
		return false
	}
	if f.kinds != nil {
		if _, ok := f.kinds[e.Kind]; !ok {
			return false
		}
	}
	return true
}

// Stream handles GET /api/v1/events. Optional query parameters: player
// (UUID) and kinds (comma separated event kinds).
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	// Subscribe before the handshake completes so no event committed after
	// the client sees the upgrade is missed.
	events, cancelSub := h.hub.Subscribe(h.bufferSize)
	defer cancelSub()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(time.Second))
					cancel()
					return
				}
				if !filter.match(e) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(e); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Reader loop. Clients only send control frames; anything else is ignored.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	<-done
	h.log.Debug("event stream closed", "remote", r.RemoteAddr)
}
