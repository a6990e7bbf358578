package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
)

// TokenVerifier turns a session token into its user
type TokenVerifier interface {
	ValidateToken(tokenString string) (*models.User, error)
}

// Handler handles WebSocket HTTP upgrade requests
type Handler struct {
	hub            *Hub
	auth           TokenVerifier
	originPatterns []string
}

var roomIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// NewHandler creates a new WebSocket handler. origins are the allowed
// browser origins; "*" or an empty list disables the origin check.
func NewHandler(hub *Hub, auth TokenVerifier, origins []string) *Handler {
	h := &Handler{hub: hub, auth: auth}
	for _, o := range origins {
		if o == "*" {
			h.originPatterns = nil
			break
		}
		h.originPatterns = append(h.originPatterns, strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://"))
	}
	return h
}

// HandleWebSocket handles WebSocket upgrade requests.
// Authentication is done via JWT token in query param: ?token=...
// or via Authorization header: Bearer <token>
func (h *Handler) HandleWebSocket(c *gin.Context) {
	user, err := h.authenticateRequest(c)
	if err != nil {
		logger.Log.Debug("WebSocket auth failed", logger.WithIP(c.ClientIP()), zap.Error(err))
		util.RespondWithAPIError(c, apierrors.Unauthorized(err.Error()))
		return
	}
	if user.IsBanned {
		util.RespondWithAPIError(c, apierrors.Banned(user.BannedReason))
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: len(h.originPatterns) == 0,
		OriginPatterns:     h.originPatterns,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", logger.WithUserID(user.ID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, user.ID, user.Username)
	client.IsAdmin = user.IsAdmin
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:   "connected",
		Message: "Welcome to Paddock",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"username":    user.Username,
			"server_time": time.Now().UTC().UnixMilli(),
			"session_id":  fmt.Sprintf("%p", client),
		},
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// authenticateRequest extracts and validates the token from the request
func (h *Handler) authenticateRequest(c *gin.Context) (*models.User, error) {
	tokenString := c.Query("token")

	if auth := c.GetHeader("Authorization"); auth != "" {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}

	if tokenString == "" {
		return nil, errors.New("no authentication token provided")
	}
	return h.auth.ValidateToken(tokenString)
}

// HandleMetrics returns WebSocket metrics (for monitoring)
func (h *Handler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket":    h.hub.GetMetrics(),
		"online_users": len(h.hub.GetOnlineUsers()),
		"timestamp":    time.Now().UTC(),
	})
}

// RegisterDefaultHandlers registers the chat room membership handlers
func (h *Handler) RegisterDefaultHandlers() {
	h.hub.RegisterHandler(MessageTypeChatJoin, func(client *Client, msg *Message) error {
		var room RoomPayload
		if err := msg.ParsePayload(&room); err != nil {
			return err
		}
		if !roomIDPattern.MatchString(room.RoomID) {
			return fmt.Errorf("invalid room id %q", room.RoomID)
		}

		room.Members = h.hub.Join(client, room.RoomID)
		logger.Log.Debug("Client joined room", logger.WithUserID(client.UserID), logger.WithRoom(room.RoomID))
		return client.Send(NewReply(msg, MessageTypeChatJoined, room))
	})

	h.hub.RegisterHandler(MessageTypeChatLeave, func(client *Client, msg *Message) error {
		var room RoomPayload
		if err := msg.ParsePayload(&room); err != nil {
			return err
		}

		room.Members = h.hub.Leave(client, room.RoomID)
		return client.Send(NewReply(msg, MessageTypeChatLeft, room))
	})
}

// NotifyNotification pushes a new inbox entry to every connection of userID
func (h *Handler) NotifyNotification(userID string, n *models.Notification) {
	h.hub.SendToUser(userID, NewMessage(MessageTypeNotification, n))
}

// UpdateNotificationCount sends the unread badge
func (h *Handler) UpdateNotificationCount(userID string, unread int64) {
	h.hub.SendToUser(userID, NewMessage(MessageTypeNotificationCount, NotificationCountPayload{
		Unread: unread,
	}))
}

// IsUserOnline reports whether userID has a live connection
func (h *Handler) IsUserOnline(userID string) bool {
	return h.hub.IsUserOnline(userID)
}

// Shutdown gracefully shuts down the WebSocket handler
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// GetHub returns the hub for external access
func (h *Handler) GetHub() *Hub {
	return h.hub
}
