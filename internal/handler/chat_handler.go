package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/internal/middleware"
	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
	"github.com/amrelngm6/crm-flutter-sub001/prometheus"
)

// isParticipant is the access check for every room and message operation:
// a user may touch a room only if a participant row links them to it and
// the room belongs to their business. Rooms failing the check read as
// absent (404), indistinguishable from rooms that do not exist. A non-nil
// error means the check itself failed, not that access was denied.
func isParticipant(userID, roomID, businessID uint) (bool, error) {
	var count int64
	err := database.GetDB().Model(&model.ChatParticipant{}).
		Joins("JOIN chat_rooms ON chat_rooms.id = chat_participants.room_id").
		Where("chat_participants.room_id = ? AND chat_participants.user_id = ?", roomID, userID).
		Where("chat_rooms.business_id = ? AND chat_rooms.deleted_at IS NULL", businessID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// roomAccess parses the :id parameter and runs the participant check,
// writing the 404 or 500 response itself on failure. The bool result
// tells the handler whether to continue.
func roomAccess(c echo.Context, auth middleware.Auth) (uint, error, bool) {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, respondError(c, http.StatusNotFound, "Room not found"), false
	}
	member, err := isParticipant(auth.User.ID, uint(roomID), auth.User.BusinessID)
	if err != nil {
		logger.FromContext(c).Error("Failed to check room access", zap.Error(err))
		return 0, respondError(c, http.StatusInternalServerError, "Failed to retrieve room"), false
	}
	if !member {
		return 0, respondError(c, http.StatusNotFound, "Room not found"), false
	}
	return uint(roomID), nil, true
}

type messageResponse struct {
	ID        uint             `json:"id"`
	RoomID    uint             `json:"room_id"`
	Message   string           `json:"message"`
	Type      string           `json:"type"`
	SeenAt    *time.Time       `json:"seen_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Sender    *profileResponse `json:"sender,omitempty"`
}

func toMessageResponse(m model.ChatMessage) messageResponse {
	resp := messageResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Message:   m.Body,
		Type:      m.Type,
		SeenAt:    m.SeenAt,
		CreatedAt: m.CreatedAt,
	}
	if m.Sender.ID != 0 {
		p := toProfile(m.Sender)
		resp.Sender = &p
	}
	return resp
}

type roomResponse struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	IsDirect    bool             `json:"is_direct"`
	CreatedBy   uint             `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	LastMessage *messageResponse `json:"last_message,omitempty"`
	UnreadCount int64            `json:"unread_count"`
}

// ListRooms returns the rooms the caller participates in, newest activity
// first, each with its last message and unread count.
func ListRooms(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "list_rooms")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var rooms []model.ChatRoom
	if err := database.GetDB().
		Joins("JOIN chat_participants ON chat_participants.room_id = chat_rooms.id").
		Where("chat_participants.user_id = ? AND chat_rooms.business_id = ?", auth.User.ID, auth.User.BusinessID).
		Order("chat_rooms.updated_at desc").
		Find(&rooms).Error; err != nil {
		log.Error("Failed to retrieve rooms", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve rooms")
	}

	out := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp := roomResponse{
			ID:        room.ID,
			Name:      room.Name,
			IsDirect:  room.IsDirect,
			CreatedBy: room.CreatedBy,
			CreatedAt: room.CreatedAt,
		}

		var last model.ChatMessage
		err := database.GetDB().Preload("Sender").
			Where("room_id = ?", room.ID).
			Order("created_at desc").
			First(&last).Error
		switch {
		case err == nil:
			m := toMessageResponse(last)
			resp.LastMessage = &m
		case !errors.Is(err, gorm.ErrRecordNotFound):
			log.Error("Failed to load last message", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve rooms")
		}

		if err := database.GetDB().Model(&model.ChatMessage{}).
			Where("room_id = ? AND sender_id <> ? AND seen_at IS NULL", room.ID, auth.User.ID).
			Count(&resp.UnreadCount).Error; err != nil {
			log.Error("Failed to count unread messages", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve rooms")
		}

		out = append(out, resp)
	}

	return respondOK(c, "", echo.Map{"rooms": out})
}

type createRoomRequest struct {
	Name           string `json:"name" validate:"omitempty,max=150"`
	ParticipantIDs []uint `json:"participant_ids" validate:"required,min=1,dive,gt=0"`
	IsDirect       bool   `json:"is_direct"`
}

// CreateRoom creates a room and its participant rows. The room and the
// creator's moderator row commit together; a failure after the room
// insert rolls everything back so no orphan room can remain.
func CreateRoom(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "create_room")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req createRoomRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	// Only active staff of the caller's business can be added
	var memberIDs []uint
	if err := database.GetDB().Model(&model.User{}).
		Where("id IN ? AND business_id = ? AND active = ?", req.ParticipantIDs, auth.User.BusinessID, true).
		Pluck("id", &memberIDs).Error; err != nil {
		log.Error("Failed to resolve participants", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to create room")
	}

	room := model.ChatRoom{
		BusinessID: auth.User.BusinessID,
		Name:       req.Name,
		IsDirect:   req.IsDirect,
		CreatedBy:  auth.User.ID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		// Creator joins as moderator
		if err := tx.Create(&model.ChatParticipant{
			RoomID:      room.ID,
			UserID:      auth.User.ID,
			IsModerator: true,
		}).Error; err != nil {
			return err
		}
		for _, id := range memberIDs {
			if id == auth.User.ID {
				continue
			}
			if err := tx.Create(&model.ChatParticipant{
				RoomID: room.ID,
				UserID: id,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create room", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to create room")
	}

	log.Info("Room created",
		zap.Uint("room_id", room.ID),
		zap.Uint("business_id", room.BusinessID),
		zap.Int("participants", len(memberIDs)))
	return respondCreated(c, "Room created", room)
}

// GetRoom returns a room with its participants; participant-scoped.
func GetRoom(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "get_room")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	roomID, errResp, ok := roomAccess(c, auth)
	if !ok {
		return errResp
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var room model.ChatRoom
	if err := database.GetDB().First(&room, roomID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to retrieve room", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve room")
		}
		return respondError(c, http.StatusNotFound, "Room not found")
	}

	var participants []model.ChatParticipant
	if err := database.GetDB().Preload("User").
		Where("room_id = ?", room.ID).
		Find(&participants).Error; err != nil {
		log.Error("Failed to retrieve participants", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve room")
	}

	return respondOK(c, "", echo.Map{
		"room":         room,
		"participants": participants,
	})
}

// ListMessages returns a room's messages, newest first, paginated.
func ListMessages(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "list_messages")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	roomID, errResp, ok := roomAccess(c, auth)
	if !ok {
		return errResp
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var messages []model.ChatMessage
	if err := database.GetDB().Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at desc").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&messages).Error; err != nil {
		log.Error("Failed to retrieve messages", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve messages")
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageResponse(m))
	}

	return respondOK(c, "", echo.Map{
		"messages": out,
		"page":     page,
		"per_page": perPage,
	})
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text image file"`
}

// SendMessage appends a message to a room. Non-participants get 404, the
// same as for a room that does not exist.
func SendMessage(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "send_message")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	roomID, errResp, ok := roomAccess(c, auth)
	if !ok {
		return errResp
	}

	var req sendMessageRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	message := model.ChatMessage{
		RoomID:   uint(roomID),
		SenderID: auth.User.ID,
		Body:     req.Message,
		Type:     msgType,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&message).Error; err != nil {
		log.Error("Failed to send message", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to send message")
	}

	// Bump room activity so the room list sorts it first
	if err := database.GetDB().Model(&model.ChatRoom{}).
		Where("id = ?", roomID).
		Update("updated_at", time.Now()).Error; err != nil {
		log.Warn("Failed to bump room activity", zap.Error(err))
	}

	message.Sender = auth.User
	log.Info("Message sent",
		zap.Uint("room_id", uint(roomID)),
		zap.Uint("message_id", message.ID))
	return respondCreated(c, "Message sent", toMessageResponse(message))
}

// MarkRoomRead marks every unread message from other senders as seen.
// Idempotent: a second call updates zero rows and still succeeds.
func MarkRoomRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "mark_read")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	roomID, errResp, ok := roomAccess(c, auth)
	if !ok {
		return errResp
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	result := database.GetDB().Model(&model.ChatMessage{}).
		Where("room_id = ? AND sender_id <> ? AND seen_at IS NULL", roomID, auth.User.ID).
		Update("seen_at", time.Now())
	if result.Error != nil {
		log.Error("Failed to mark messages read", zap.Error(result.Error))
		return respondError(c, http.StatusInternalServerError, "Failed to mark messages read")
	}

	return respondOK(c, "Messages marked as read", echo.Map{
		"updated_count": result.RowsAffected,
	})
}

// UnreadCount returns the total unread messages across the caller's rooms
func UnreadCount(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "unread_count")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var count int64
	if err := database.GetDB().Model(&model.ChatMessage{}).
		Joins("JOIN chat_participants ON chat_participants.room_id = chat_messages.room_id").
		Where("chat_participants.user_id = ?", auth.User.ID).
		Where("chat_messages.sender_id <> ? AND chat_messages.seen_at IS NULL", auth.User.ID).
		Count(&count).Error; err != nil {
		log.Error("Failed to count unread messages", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to count unread messages")
	}

	return respondOK(c, "", echo.Map{"unread_count": count})
}

// ListStaff returns the active staff of the caller's business, excluding
// the caller, for starting new conversations.
func ListStaff(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("chat", "list_staff")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	if err := database.GetDB().
		Where("business_id = ? AND active = ? AND id <> ?", auth.User.BusinessID, true, auth.User.ID).
		Order("name asc").
		Find(&users).Error; err != nil {
		log.Error("Failed to retrieve staff", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve staff")
	}

	out := make([]profileResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toProfile(u))
	}

	return respondOK(c, "", echo.Map{"staff": out})
}
