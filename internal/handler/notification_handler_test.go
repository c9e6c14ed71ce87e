package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
)

func seedNotification(t *testing.T, businessID, userID uint, kind, title string) model.Notification {
	t.Helper()
	n := model.Notification{
		BusinessID: businessID,
		UserID:     userID,
		Type:       kind,
		Title:      title,
		Content:    "body of " + title,
	}
	require.NoError(t, database.GetDB().Create(&n).Error)
	return n
}

func TestListNotifications(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	bob := seedUser(t, business.ID, "bob@acme.test")

	seedNotification(t, business.ID, ann.ID, "invoice", "Invoice paid")
	read := seedNotification(t, business.ID, ann.ID, "chat", "New message")
	require.NoError(t, database.GetDB().Model(&read).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()}).Error)
	seedNotification(t, business.ID, bob.ID, "invoice", "Not yours")

	t.Run("lists only the caller's notifications", func(t *testing.T) {
		c, rec := newRequest(t, http.MethodGet, "/api/notifications", nil)
		authenticate(t, c, ann)

		require.NoError(t, ListNotifications(c))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decodeEnvelope(t, rec).Data["notifications"].([]interface{}), 2)
	})

	t.Run("filters unread via the status parameter", func(t *testing.T) {
		c, rec := newRequest(t, http.MethodGet, "/api/notifications?status=unread", nil)
		authenticate(t, c, ann)

		require.NoError(t, ListNotifications(c))
		list := decodeEnvelope(t, rec).Data["notifications"].([]interface{})
		require.Len(t, list, 1)
		require.Equal(t, "Invoice paid", list[0].(map[string]interface{})["title"])
	})

	t.Run("filters by type", func(t *testing.T) {
		c, rec := newRequest(t, http.MethodGet, "/api/notifications?type=chat", nil)
		authenticate(t, c, ann)

		require.NoError(t, ListNotifications(c))
		list := decodeEnvelope(t, rec).Data["notifications"].([]interface{})
		require.Len(t, list, 1)
		require.Equal(t, "New message", list[0].(map[string]interface{})["title"])
	})

	t.Run("rejects an unknown status value", func(t *testing.T) {
		c, rec := newRequest(t, http.MethodGet, "/api/notifications?status=archived", nil)
		authenticate(t, c, ann)

		require.NoError(t, ListNotifications(c))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestMarkNotificationRead(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	bob := seedUser(t, business.ID, "bob@acme.test")

	mine := seedNotification(t, business.ID, ann.ID, "chat", "Ping")
	theirs := seedNotification(t, business.ID, bob.ID, "chat", "Pong")

	mark := func(t *testing.T, id uint) int {
		c, rec := newRequest(t, http.MethodPost, "/api/notifications/:id/read", nil)
		authenticate(t, c, ann)
		withParam(c, "id", itoa(id))
		require.NoError(t, MarkNotificationRead(c))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, mark(t, mine.ID))

	var first model.Notification
	require.NoError(t, database.GetDB().First(&first, mine.ID).Error)
	require.True(t, first.Read)
	require.NotNil(t, first.ReadAt)

	// Monotonic: a second mark succeeds but read_at keeps its value
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, http.StatusOK, mark(t, mine.ID))

	var second model.Notification
	require.NoError(t, database.GetDB().First(&second, mine.ID).Error)
	require.Equal(t, first.ReadAt.UnixNano(), second.ReadAt.UnixNano())

	// Someone else's notification reads as absent
	require.Equal(t, http.StatusNotFound, mark(t, theirs.ID))
}

func TestMarkAllNotificationsRead(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	bob := seedUser(t, business.ID, "bob@acme.test")

	seedNotification(t, business.ID, ann.ID, "chat", "One")
	seedNotification(t, business.ID, ann.ID, "chat", "Two")
	already := seedNotification(t, business.ID, ann.ID, "chat", "Three")
	require.NoError(t, database.GetDB().Model(&already).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()}).Error)
	untouched := seedNotification(t, business.ID, bob.ID, "chat", "Bob's")

	c, rec := newRequest(t, http.MethodPost, "/api/notifications/read-all", nil)
	authenticate(t, c, ann)

	require.NoError(t, MarkAllNotificationsRead(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(2), decodeEnvelope(t, rec).Data["updated_count"].(float64))

	var fresh model.Notification
	require.NoError(t, database.GetDB().First(&fresh, untouched.ID).Error)
	require.False(t, fresh.Read)
}

func TestBulkDeleteNotifications(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	bob := seedUser(t, business.ID, "bob@acme.test")

	mineA := seedNotification(t, business.ID, ann.ID, "chat", "A")
	mineB := seedNotification(t, business.ID, ann.ID, "chat", "B")
	theirs := seedNotification(t, business.ID, bob.ID, "chat", "C")

	t.Run("deletes only the owned subset", func(t *testing.T) {
		c, rec := newRequest(t, http.MethodDelete, "/api/notifications", map[string]interface{}{
			"ids": []uint{mineA.ID, mineB.ID, theirs.ID},
		})
		authenticate(t, c, ann)

		require.NoError(t, BulkDeleteNotifications(c))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, float64(2), decodeEnvelope(t, rec).Data["deleted_count"].(float64))

		var count int64
		database.GetDB().Model(&model.Notification{}).Where("user_id = ?", bob.ID).Count(&count)
		require.Equal(t, int64(1), count)
	})

	t.Run("requires a non-empty id list", func(t *testing.T) {
		c, rec := newRequest(t, http.MethodDelete, "/api/notifications", map[string]interface{}{
			"ids": []uint{},
		})
		authenticate(t, c, ann)

		require.NoError(t, BulkDeleteNotifications(c))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestDeleteNotification(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	bob := seedUser(t, business.ID, "bob@acme.test")
	theirs := seedNotification(t, business.ID, bob.ID, "chat", "Bob's")

	c, rec := newRequest(t, http.MethodDelete, "/api/notifications/:id", nil)
	authenticate(t, c, ann)
	withParam(c, "id", itoa(theirs.ID))

	require.NoError(t, DeleteNotification(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationUnreadCountStorageFailure(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	seedNotification(t, business.ID, ann.ID, "chat", "Unread")

	c, rec := newRequest(t, http.MethodGet, "/api/notifications/unread-count", nil)
	authenticate(t, c, ann)
	breakDB(t)

	require.NoError(t, NotificationUnreadCount(c))
	// A failed count must not read as zero
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Nil(t, env.Data)
}

func TestNotificationStatistics(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")

	seedNotification(t, business.ID, ann.ID, "chat", "One")
	seedNotification(t, business.ID, ann.ID, "chat", "Two")
	read := seedNotification(t, business.ID, ann.ID, "invoice", "Three")
	require.NoError(t, database.GetDB().Model(&read).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()}).Error)

	c, rec := newRequest(t, http.MethodGet, "/api/notifications/statistics", nil)
	authenticate(t, c, ann)

	require.NoError(t, NotificationStatistics(c))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.Equal(t, float64(3), env.Data["total"])
	require.Equal(t, float64(2), env.Data["unread"])
	require.Equal(t, float64(1), env.Data["read"])
	require.Len(t, env.Data["by_type"].([]interface{}), 2)
}
