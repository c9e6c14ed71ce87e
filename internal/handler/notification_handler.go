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
	"github.com/amrelngm6/crm-flutter-sub001/internal/query"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/validate"
	"github.com/amrelngm6/crm-flutter-sub001/prometheus"
)

var notificationSortable = map[string]string{
	"created_at": "created_at",
	"type":       "type",
	"title":      "title",
}

// notificationScope narrows every notification query to the caller before
// any other filter; users cannot reach each other's rows even by id.
func notificationScope(db *gorm.DB, auth middleware.Auth) *gorm.DB {
	return db.Model(&model.Notification{}).
		Where("user_id = ? AND business_id = ?", auth.User.ID, auth.User.BusinessID)
}

// ListNotifications returns the caller's notifications with filters and
// pagination. `status` accepts read or unread; `type` filters by kind.
func ListNotifications(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "list")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	opts, err := query.Parse(c, notificationSortable, "created_at", "desc")
	if err != nil {
		if verrs, ok := err.(validate.Errors); ok {
			return respondValidation(c, verrs)
		}
		return respondError(c, http.StatusUnprocessableEntity, "Invalid query parameters")
	}

	base := notificationScope(database.GetDB(), auth)

	// read state rides on the shared status parameter
	switch opts.Status {
	case "":
	case "read":
		base = base.Where("read = ?", true)
	case "unread":
		base = base.Where("read = ?", false)
	default:
		return respondValidation(c, validate.Errors{"status": {"must be read or unread"}})
	}

	if t := c.QueryParam("type"); t != "" {
		base = base.Where("type = ?", t)
	}
	if opts.StartDate != nil {
		base = base.Where("created_at >= ?", *opts.StartDate)
	}
	if opts.EndDate != nil {
		base = base.Where("created_at < ?", opts.EndDate.AddDate(0, 0, 1))
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		base = base.Where("(title LIKE ? OR content LIKE ?)", pattern, pattern)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		log.Error("Failed to count notifications", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve notifications")
	}

	var notifications []model.Notification
	if err := base.Session(&gorm.Session{}).
		Order(opts.Sort()).
		Limit(opts.PerPage).
		Offset(opts.Offset()).
		Find(&notifications).Error; err != nil {
		log.Error("Failed to retrieve notifications", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve notifications")
	}

	return respondOK(c, "", echo.Map{
		"notifications": notifications,
		"meta":          opts.MetaFor(total),
	})
}

// GetNotification returns one of the caller's notifications
func GetNotification(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "get")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Notification not found")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var notification model.Notification
	if err := notificationScope(database.GetDB(), auth).
		Where("id = ?", id).
		First(&notification).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to retrieve notification", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve notification")
		}
		return respondError(c, http.StatusNotFound, "Notification not found")
	}

	return respondOK(c, "", notification)
}

// MarkNotificationRead marks one notification read. The transition is
// monotonic: an already-read notification keeps its original read_at and
// the call still succeeds.
func MarkNotificationRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "mark_read")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Notification not found")
	}

	var notification model.Notification
	if err := notificationScope(database.GetDB(), auth).
		Where("id = ?", id).
		First(&notification).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to retrieve notification", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to mark notification read")
		}
		return respondError(c, http.StatusNotFound, "Notification not found")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	// Only unread rows transition; re-marking is a no-op
	result := database.GetDB().Model(&model.Notification{}).
		Where("id = ? AND read = ?", notification.ID, false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	if result.Error != nil {
		log.Error("Failed to mark notification read", zap.Error(result.Error))
		return respondError(c, http.StatusInternalServerError, "Failed to mark notification read")
	}

	return respondOK(c, "Notification marked as read", nil)
}

// MarkAllNotificationsRead marks every unread notification of the caller
// as read and reports how many rows changed.
func MarkAllNotificationsRead(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "mark_all_read")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	result := notificationScope(database.GetDB(), auth).
		Where("read = ?", false).
		Updates(map[string]interface{}{"read": true, "read_at": time.Now()})
	if result.Error != nil {
		log.Error("Failed to mark notifications read", zap.Error(result.Error))
		return respondError(c, http.StatusInternalServerError, "Failed to mark notifications read")
	}

	return respondOK(c, "Notifications marked as read", echo.Map{
		"updated_count": result.RowsAffected,
	})
}

// DeleteNotification deletes one of the caller's notifications
func DeleteNotification(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "delete")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Notification not found")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().
		Where("id = ? AND user_id = ? AND business_id = ?", id, auth.User.ID, auth.User.BusinessID).
		Delete(&model.Notification{})
	if result.Error != nil {
		log.Error("Failed to delete notification", zap.Error(result.Error))
		return respondError(c, http.StatusInternalServerError, "Failed to delete notification")
	}
	if result.RowsAffected == 0 {
		return respondError(c, http.StatusNotFound, "Notification not found")
	}

	return respondOK(c, "Notification deleted", nil)
}

type bulkDeleteRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// BulkDeleteNotifications deletes the owned subset of the given ids. Ids
// belonging to other users are silently skipped; deleted_count reflects
// exactly the rows removed.
func BulkDeleteNotifications(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "bulk_delete")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req bulkDeleteRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().
		Where("id IN ? AND user_id = ? AND business_id = ?", req.IDs, auth.User.ID, auth.User.BusinessID).
		Delete(&model.Notification{})
	if result.Error != nil {
		log.Error("Failed to delete notifications", zap.Error(result.Error))
		return respondError(c, http.StatusInternalServerError, "Failed to delete notifications")
	}

	log.Info("Notifications deleted",
		zap.Uint("user_id", auth.User.ID),
		zap.Int64("deleted_count", result.RowsAffected))
	return respondOK(c, "Notifications deleted", echo.Map{
		"deleted_count": result.RowsAffected,
	})
}

// NotificationUnreadCount returns the caller's unread notification count
func NotificationUnreadCount(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "unread_count")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var count int64
	if err := notificationScope(database.GetDB(), auth).
		Where("read = ?", false).
		Count(&count).Error; err != nil {
		log.Error("Failed to count notifications", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to count notifications")
	}

	return respondOK(c, "", echo.Map{"unread_count": count})
}

// NotificationStatistics returns totals and per-type counts for the caller
func NotificationStatistics(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("notification", "statistics")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total, unread int64
	if err := notificationScope(database.GetDB(), auth).Count(&total).Error; err != nil {
		log.Error("Failed to aggregate notifications", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve statistics")
	}
	if err := notificationScope(database.GetDB(), auth).Where("read = ?", false).Count(&unread).Error; err != nil {
		log.Error("Failed to aggregate notifications", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve statistics")
	}

	type typeCount struct {
		Type  string `json:"type"`
		Count int64  `json:"count"`
	}
	var byType []typeCount
	if err := notificationScope(database.GetDB(), auth).
		Select("type, count(*) as count").
		Group("type").
		Scan(&byType).Error; err != nil {
		log.Error("Failed to aggregate notifications", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve statistics")
	}

	return respondOK(c, "", echo.Map{
		"total":   total,
		"unread":  unread,
		"read":    total - unread,
		"by_type": byType,
	})
}
