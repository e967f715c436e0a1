package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sirojiddin1dev/carinfopro/internal/domain"
	"github.com/Sirojiddin1dev/carinfopro/internal/service"
	"github.com/Sirojiddin1dev/carinfopro/pkg/log"
	"github.com/Sirojiddin1dev/carinfopro/pkg/middleware"
	"github.com/Sirojiddin1dev/carinfopro/pkg/response"
)

// Handler handles the REST side of the chat.
type Handler struct {
	roomService    service.RoomService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(roomService service.RoomService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		roomService:    roomService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	chat := r.Group("/api/v1/chat")
	{
		// Visitors start chats from a public profile page.
		chat.POST("/start", h.StartChat)

		chat.GET("/rooms", h.authMiddleware.RequireAuth(), h.ListRooms)
		chat.GET("/rooms/:room_id/messages", h.authMiddleware.OptionalAuth(), h.History)
		chat.DELETE("/rooms/:room_id", h.authMiddleware.RequireAuth(), h.DeactivateRoom)
	}
}

// StartChat opens a room with a profile owner.
func (h *Handler) StartChat(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.StartChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind start chat request")
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.roomService.StartChat(ctx, &req)
	if err != nil {
		h.writeError(c, err, "failed to start chat")
		return
	}

	response.Created(c, resp)
}

// ListRooms lists the caller's rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.roomService.ListRooms(ctx, middleware.GetUserID(c))
	if err != nil {
		h.writeError(c, err, "failed to list rooms")
		return
	}

	response.Success(c, gin.H{"rooms": rooms})
}

// History returns a page of a room's messages.
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()

	var q domain.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.roomService.History(ctx, c.Param("room_id"), middleware.GetUserID(c), &q)
	if err != nil {
		h.writeError(c, err, "failed to load history")
		return
	}

	response.Success(c, page)
}

// DeactivateRoom closes one of the caller's rooms.
func (h *Handler) DeactivateRoom(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.roomService.Deactivate(ctx, c.Param("room_id"), middleware.GetUserID(c)); err != nil {
		h.writeError(c, err, "failed to deactivate room")
		return
	}

	response.Success(c, gin.H{"message": "room deactivated"})
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, "access to this room is denied")
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidCursor):
		response.BadRequest(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldRoomID, c.Param("room_id")).Msg(msg)
		response.InternalError(c, msg)
	}
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RegisterHealth mounts GET /health. Every pinger must succeed for a 200.
func RegisterHealth(r *gin.Engine, pingers ...Pinger) {
	r.GET("/health", func(c *gin.Context) {
		for _, p := range pingers {
			if err := p.PingContext(c.Request.Context()); err != nil {
				l := log.Ctx(c.Request.Context())
				l.Warn().Err(err).Msg("health check failed")
				response.Error(c, http.StatusServiceUnavailable, "UNAVAILABLE", "dependency unavailable")
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	})
}
