package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/internal/middleware"
	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/validate"
	"github.com/amrelngm6/crm-flutter-sub001/prometheus"
)

const feedLimit = 10

// feedItem is one entry of the recent-activity or upcoming feeds.
type feedItem struct {
	Type      string    `json:"type"`
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// quickAction is static metadata the mobile client renders as shortcuts.
type quickAction struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Route string `json:"route"`
}

var quickActions = []quickAction{
	{Key: "add_client", Label: "Add Client", Route: "/clients/new"},
	{Key: "new_chat", Label: "New Chat", Route: "/chat/rooms/new"},
	{Key: "add_task", Label: "Add Task", Route: "/tasks/new"},
	{Key: "notifications", Label: "Notifications", Route: "/notifications"},
}

// dashboardRange resolves the requested date range, defaulting to the
// current calendar month. End is exclusive.
func dashboardRange(c echo.Context) (time.Time, time.Time, error) {
	errs := validate.Errors{}
	now := time.Now()

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)

	if v := c.QueryParam("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("start_date", "must be a date in YYYY-MM-DD format")
		} else {
			start = t
		}
	}
	if v := c.QueryParam("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("end_date", "must be a date in YYYY-MM-DD format")
		} else {
			// Inclusive end date
			end = t.AddDate(0, 0, 1)
		}
	}

	if len(errs) > 0 {
		return time.Time{}, time.Time{}, errs
	}
	if !end.After(start) {
		errs.Add("end_date", "must not be before start_date")
		return time.Time{}, time.Time{}, errs
	}
	return start, end, nil
}

// GetDashboard assembles the dashboard buckets with fresh queries on
// every call; nothing here is cached.
func GetDashboard(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("dashboard", "get")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	start, end, err := dashboardRange(c)
	if err != nil {
		if verrs, ok := err.(validate.Errors); ok {
			return respondValidation(c, verrs)
		}
		return respondError(c, http.StatusUnprocessableEntity, "Invalid date range")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	db := database.GetDB()
	bizID := auth.User.BusinessID

	overview, ferr := overviewCounts(db, auth)
	if ferr != nil {
		log.Error("Failed to build overview", zap.Error(ferr))
		return respondError(c, http.StatusInternalServerError, "Failed to load dashboard")
	}

	activity, ferr := recentActivity(db, bizID)
	if ferr != nil {
		log.Error("Failed to build activity feed", zap.Error(ferr))
		return respondError(c, http.StatusInternalServerError, "Failed to load dashboard")
	}

	upcoming, ferr := upcomingEvents(db, bizID)
	if ferr != nil {
		log.Error("Failed to build upcoming feed", zap.Error(ferr))
		return respondError(c, http.StatusInternalServerError, "Failed to load dashboard")
	}

	perf, ferr := performance(db, bizID, start, end)
	if ferr != nil {
		log.Error("Failed to build performance block", zap.Error(ferr))
		return respondError(c, http.StatusInternalServerError, "Failed to load dashboard")
	}

	return respondOK(c, "", echo.Map{
		"overview":        overview,
		"recent_activity": activity,
		"upcoming":        upcoming,
		"performance":     perf,
		"quick_actions":   quickActions,
	})
}

// DashboardStatistics returns the period-over-period performance block on
// its own, with explicit date range support.
func DashboardStatistics(c echo.Context) error {
	prometheus.RecordOperation("dashboard", "statistics")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	start, end, err := dashboardRange(c)
	if err != nil {
		if verrs, ok := err.(validate.Errors); ok {
			return respondValidation(c, verrs)
		}
		return respondError(c, http.StatusUnprocessableEntity, "Invalid date range")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	perf, ferr := performance(database.GetDB(), auth.User.BusinessID, start, end)
	if ferr != nil {
		logger.FromContext(c).Error("Failed to build performance block", zap.Error(ferr))
		return respondError(c, http.StatusInternalServerError, "Failed to load statistics")
	}
	return respondOK(c, "", perf)
}

func countWhere(q *gorm.DB, businessID uint, conds ...interface{}) (int64, error) {
	var count int64
	q = q.Where("business_id = ?", businessID)
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	err := q.Count(&count).Error
	return count, err
}

// overviewCounts gathers the headline numbers; a failed count aborts the
// whole dashboard rather than reporting a fabricated zero.
func overviewCounts(db *gorm.DB, auth middleware.Auth) (echo.Map, error) {
	bizID := auth.User.BusinessID

	clients, err := countWhere(db.Model(&model.Client{}), bizID)
	if err != nil {
		return nil, err
	}

	activeLeads, err := countWhere(db.Model(&model.Lead{}), bizID,
		"status IN ?", []string{model.LeadStatusNew, model.LeadStatusContacted, model.LeadStatusQualified})
	if err != nil {
		return nil, err
	}

	pendingTasks, err := countWhere(db.Model(&model.Task{}), bizID, "status <> ?", model.TaskStatusCompleted)
	if err != nil {
		return nil, err
	}

	var unreadNotifications int64
	if err := db.Model(&model.Notification{}).
		Where("user_id = ? AND business_id = ? AND read = ?", auth.User.ID, bizID, false).
		Count(&unreadNotifications).Error; err != nil {
		return nil, err
	}

	var unreadMessages int64
	if err := db.Model(&model.ChatMessage{}).
		Joins("JOIN chat_participants ON chat_participants.room_id = chat_messages.room_id").
		Where("chat_participants.user_id = ?", auth.User.ID).
		Where("chat_messages.sender_id <> ? AND chat_messages.seen_at IS NULL", auth.User.ID).
		Count(&unreadMessages).Error; err != nil {
		return nil, err
	}

	return echo.Map{
		"clients":              clients,
		"active_leads":         activeLeads,
		"pending_tasks":        pendingTasks,
		"unread_notifications": unreadNotifications,
		"unread_messages":      unreadMessages,
	}, nil
}

// recentActivity merges the newest leads and clients into one feed sorted
// by creation time, newest first, truncated to feedLimit.
func recentActivity(db *gorm.DB, businessID uint) ([]feedItem, error) {
	var leads []model.Lead
	if err := db.Where("business_id = ?", businessID).
		Order("created_at desc").
		Limit(feedLimit).
		Find(&leads).Error; err != nil {
		return nil, err
	}

	var clients []model.Client
	if err := db.Where("business_id = ?", businessID).
		Order("created_at desc").
		Limit(feedLimit).
		Find(&clients).Error; err != nil {
		return nil, err
	}

	items := make([]feedItem, 0, len(leads)+len(clients))
	for _, l := range leads {
		items = append(items, feedItem{
			Type:      "lead",
			ID:        l.ID,
			Title:     l.Name,
			Subtitle:  l.Status,
			Timestamp: l.CreatedAt,
		})
	}
	for _, cl := range clients {
		items = append(items, feedItem{
			Type:      "client",
			ID:        cl.ID,
			Title:     cl.FirstName + " " + cl.LastName,
			Subtitle:  cl.Company,
			Timestamp: cl.CreatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if len(items) > feedLimit {
		items = items[:feedLimit]
	}
	return items, nil
}

// upcomingEvents merges open tasks and unpaid invoices by due date,
// soonest first, truncated to feedLimit.
func upcomingEvents(db *gorm.DB, businessID uint) ([]feedItem, error) {
	var tasks []model.Task
	if err := db.Where("business_id = ? AND status <> ? AND due_date IS NOT NULL", businessID, model.TaskStatusCompleted).
		Order("due_date asc").
		Limit(feedLimit).
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	var invoices []model.Invoice
	if err := db.Where("business_id = ? AND status <> ? AND due_date IS NOT NULL", businessID, model.InvoiceStatusPaid).
		Order("due_date asc").
		Limit(feedLimit).
		Find(&invoices).Error; err != nil {
		return nil, err
	}

	items := make([]feedItem, 0, len(tasks)+len(invoices))
	for _, t := range tasks {
		items = append(items, feedItem{
			Type:      "task",
			ID:        t.ID,
			Title:     t.Title,
			Subtitle:  t.Priority,
			Timestamp: *t.DueDate,
		})
	}
	for _, inv := range invoices {
		items = append(items, feedItem{
			Type:      "invoice",
			ID:        inv.ID,
			Title:     inv.Number,
			Subtitle:  inv.Status,
			Timestamp: *inv.DueDate,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	if len(items) > feedLimit {
		items = items[:feedLimit]
	}
	return items, nil
}

type periodCounts struct {
	NewClients     int64   `json:"new_clients"`
	NewLeads       int64   `json:"new_leads"`
	ConvertedLeads int64   `json:"converted_leads"`
	CompletedTasks int64   `json:"completed_tasks"`
	InvoicedTotal  float64 `json:"invoiced_total"`
}

// performance computes the requested period's counts and the immediately
// preceding period of the same length for comparison.
func performance(db *gorm.DB, businessID uint, start, end time.Time) (echo.Map, error) {
	length := end.Sub(start)
	prevStart := start.Add(-length)

	current, err := countsBetween(db, businessID, start, end)
	if err != nil {
		return nil, err
	}
	previous, err := countsBetween(db, businessID, prevStart, start)
	if err != nil {
		return nil, err
	}

	return echo.Map{
		"period": echo.Map{
			"start": start.Format("2006-01-02"),
			"end":   end.AddDate(0, 0, -1).Format("2006-01-02"),
		},
		"current":  current,
		"previous": previous,
	}, nil
}

func countsBetween(db *gorm.DB, businessID uint, start, end time.Time) (periodCounts, error) {
	var out periodCounts

	if err := db.Model(&model.Client{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, start, end).
		Count(&out.NewClients).Error; err != nil {
		return out, err
	}

	if err := db.Model(&model.Lead{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, start, end).
		Count(&out.NewLeads).Error; err != nil {
		return out, err
	}

	if err := db.Model(&model.Lead{}).
		Where("business_id = ? AND converted_at >= ? AND converted_at < ?", businessID, start, end).
		Count(&out.ConvertedLeads).Error; err != nil {
		return out, err
	}

	if err := db.Model(&model.Task{}).
		Where("business_id = ? AND completed_at >= ? AND completed_at < ?", businessID, start, end).
		Count(&out.CompletedTasks).Error; err != nil {
		return out, err
	}

	var total *float64
	if err := db.Model(&model.Invoice{}).
		Where("business_id = ? AND created_at >= ? AND created_at < ?", businessID, start, end).
		Select("SUM(total)").
		Scan(&total).Error; err != nil {
		return out, err
	}
	if total != nil {
		out.InvoicedTotal = *total
	}

	return out, nil
}
