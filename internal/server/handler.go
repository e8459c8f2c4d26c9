package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"streamroom/sdk/internal/chatroom"
	"streamroom/sdk/internal/moderation"
	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/storage"
	"streamroom/sdk/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow any origin; lock down per deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler wires the HTTP API of the room service.
type Handler struct {
	Storage  storage.Storage
	Backend  *transport.RedisBackend
	Hub      *Hub
	Filters  moderation.FilterSet
	Notifier *moderation.Notifier
	Secret   []byte
	BaseURL  string
}

func NewHandler(s storage.Storage, backend *transport.RedisBackend, hub *Hub, secret []byte) *Handler {
	return &Handler{Storage: s, Backend: backend, Hub: hub, Secret: secret}
}

// Register mounts all routes.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/token", h.CreateToken)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:room_id/history", h.History)
	r.POST("/rooms/:room_id/messages", h.PublishMessage)
	r.DELETE("/rooms/:room_id/messages/:message_id", h.DeleteMessage)
	r.POST("/rooms/:room_id/messages/:message_id/actions", h.CreateAction)
	r.DELETE("/rooms/:room_id/messages/:message_id/actions/:action_id", h.DeleteAction)
	r.POST("/rooms/:room_id/images", h.UploadImage)
	r.GET("/images/:image_id", h.ServeImage)
	r.POST("/rooms/:room_id/reports", h.CreateReport)
}

// bearerIdentity extracts the authenticated user from the Authorization
// header.
func (h *Handler) bearerIdentity(c *gin.Context) (userID, nickname string, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return "", "", false
	}
	userID, nickname, err := ParseToken(h.Secret, authHeader[7:])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return "", "", false
	}
	return userID, nickname, true
}

// CreateToken registers an anonymous user and returns a JWT for it.
func (h *Handler) CreateToken(c *gin.Context) {
	var req struct {
		Nickname  string `json:"nickname" binding:"required"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := models.User{Nickname: req.Nickname, AvatarURL: req.AvatarURL}
	if err := h.Storage.SaveUser(&user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}
	token, err := GenerateToken(h.Secret, user.ID, user.Nickname)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": user.ID})
}

// ServeWebSocket upgrades the connection and subscribes it to a room.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	roomID := c.Query("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &WSClient{
		Hub:    h.Hub,
		UserID: userID,
		RoomID: roomID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	h.Hub.RegisterCh <- client
	client.Run()
}

// CreateRoom opens a new chat room.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Title     string `json:"title"`
		ProgramID string `json:"program_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room := models.ChatRoom{
		RoomID:    uuid.NewString(),
		Title:     req.Title,
		ProgramID: req.ProgramID,
		IsActive:  true,
		StartedAt: time.Now(),
	}
	if err := h.Storage.SaveRoom(&room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}
	c.JSON(http.StatusCreated, room)
}

// PublishMessage accepts a raw event envelope, validates it and publishes it
// on the room channel. The response carries the assigned identity.
func (h *Handler) PublishMessage(c *gin.Context) {
	_, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	roomID := c.Param("room_id")

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := chatroom.DecodeEvent(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sent, err := h.Backend.Publish(c.Request.Context(), roomID, raw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish message"})
		return
	}

	if h.Filters.Intersects(ev.FilterReasons()) {
		h.Notifier.NotifyFiltered(roomID, ev.ChatMessage(roomID, time.UnixMilli(sent.Timetoken)))
	}

	c.JSON(http.StatusCreated, gin.H{"id": string(sent.ID), "timetoken": sent.Timetoken})
}

// DeleteMessage re-emits a published message under its deleted event tag.
func (h *Handler) DeleteMessage(c *gin.Context) {
	_, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	roomID := c.Param("room_id")
	messageID := c.Param("message_id")

	if _, err := h.Backend.PublishDeleted(c.Request.Context(), roomID, messageID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateAction attaches a reaction vote to a message.
func (h *Handler) CreateAction(c *gin.Context) {
	userID, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := h.Backend.PublishAction(c.Request.Context(), c.Param("room_id"), transport.MessageAction{
		MessageID: models.NormalizePubSubID(c.Param("message_id")),
		Type:      models.ActionTypeReaction,
		Value:     req.Value,
		SenderID:  userID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create action"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"action_id": action.ActionID})
}

// DeleteAction removes a reaction vote.
func (h *Handler) DeleteAction(c *gin.Context) {
	userID, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	err := h.Backend.RemoveAction(c.Request.Context(), c.Param("room_id"), transport.MessageAction{
		MessageID: models.NormalizePubSubID(c.Param("message_id")),
		ActionID:  c.Param("action_id"),
		Type:      models.ActionTypeReaction,
		SenderID:  userID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove action"})
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage stores image bytes and returns the remote reference for image
// messages.
func (h *Handler) UploadImage(c *gin.Context) {
	_, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty image"})
		return
	}

	id := uuid.NewString()
	if err := h.Storage.SaveImage(id, data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "url": h.BaseURL + "/images/" + id})
}

// ServeImage returns stored image bytes.
func (h *Handler) ServeImage(c *gin.Context) {
	data, err := h.Storage.GetImage(c.Param("image_id"))
	if errors.Is(err, storage.ErrImageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load image"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// CreateReport records a user report against a message.
func (h *Handler) CreateReport(c *gin.Context) {
	userID, _, ok := h.bearerIdentity(c)
	if !ok {
		return
	}
	var req struct {
		MessageID string `json:"message_id" binding:"required"`
		Reason    string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Storage.SaveReport(&models.ReportRecord{
		RoomID:     c.Param("room_id"),
		MessageID:  req.MessageID,
		ReporterID: userID,
		Reason:     req.Reason,
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
		return
	}
	c.Status(http.StatusCreated)
}

// History serves one page of the room's event log.
func (h *Handler) History(c *gin.Context) {
	roomID := c.Param("room_id")
	olderThan, _ := strconv.ParseInt(c.Query("older_than"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	hist, err := h.Backend.History(c.Request.Context(), roomID, olderThan, limit)
	if errors.Is(err, transport.ErrNoHistory) {
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{}, "oldest_timetoken": 0})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	messages := make([]gin.H, 0, len(hist.Messages))
	for _, m := range hist.Messages {
		messages = append(messages, gin.H{
			"pubsub_id": string(m.ID),
			"timetoken": m.Timetoken,
			"payload":   json.RawMessage(m.Payload),
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "oldest_timetoken": hist.OldestTimetoken})
}
