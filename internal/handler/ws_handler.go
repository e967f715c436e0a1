package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Sirojiddin1dev/carinfopro/internal/config"
	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/hub"
	"github.com/Sirojiddin1dev/carinfopro/internal/service"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
	"github.com/Sirojiddin1dev/carinfopro/pkg/middleware"
)

type WSHandler struct {
	service  service.ChatService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler builds the chat socket handler. The read limit is raised as
// needed so that any message of up to maxMessageLength runes is accepted.
func NewWSHandler(svc service.ChatService, wsCfg config.WebSocketConfig, maxMessageLength int) *WSHandler {
	wsCfg = wsCfg.ForMessageLength(maxMessageLength)
	return &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(wsCfg.AllowedOrigins),
		},
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/chat/:room_id", h.HandleWebSocket)
}

// HandleWebSocket upgrades first so that refusals can be reported with an
// application close code. The session then runs on this goroutine until
// the connection ends.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	roomID := c.Param("room_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.NewString()
	ctx := log.With(context.WithoutCancel(c.Request.Context()),
		log.FieldRoomID, roomID,
		log.FieldSessionID, clientID,
	)
	l := log.Ctx(ctx)

	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c)
	}

	client := hub.NewClient(clientID, conn, h.wsCfg)
	session, err := h.service.Connect(ctx, service.ConnectRequest{
		RoomID:        roomID,
		Token:         token,
		VisitorSecret: c.Query("visitor"),
	}, client)
	if err != nil {
		code, reason := closeFor(err)
		l.Info().Int("close_code", code).Msg("connection refused")
		hub.Reject(conn, code, reason, h.wsCfg.WriteWait)
		return
	}

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		if err := h.service.HandleMessage(ctx, session, client, data); err != nil {
			l.Warn().Err(err).Msg("message not delivered")
		}
	})

	h.service.Disconnect(ctx, session, client)
}

func closeFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		return domain.CloseForbidden, "forbidden"
	default:
		return domain.CloseRoomNotFound, "room not found"
	}
}

// originChecker allows any origin when allowed is empty. Requests without
// an Origin header are not from browsers and are let through.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
