package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
)

func TestGetDashboard(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	rival := seedBusiness(t, "Rival")
	ann := seedUser(t, business.ID, "ann@acme.test")

	seedClient(t, business.ID, "Bob", "Builder", "")
	seedClient(t, rival.ID, "Eve", "Sdropper", "")
	require.NoError(t, database.GetDB().Create(&model.Lead{
		BusinessID: business.ID, Name: "Hot Lead", Status: model.LeadStatusNew,
	}).Error)
	require.NoError(t, database.GetDB().Create(&model.Lead{
		BusinessID: business.ID, Name: "Cold Lead", Status: model.LeadStatusLost,
	}).Error)
	due := time.Now().Add(48 * time.Hour)
	require.NoError(t, database.GetDB().Create(&model.Task{
		BusinessID: business.ID, AssigneeID: ann.ID, Title: "Call back", DueDate: &due,
	}).Error)
	seedNotification(t, business.ID, ann.ID, "chat", "Unread")

	c, rec := newRequest(t, http.MethodGet, "/api/dashboard", nil)
	authenticate(t, c, ann)

	require.NoError(t, GetDashboard(c))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)

	overview := env.Data["overview"].(map[string]interface{})
	require.Equal(t, float64(1), overview["clients"])
	require.Equal(t, float64(1), overview["active_leads"])
	require.Equal(t, float64(1), overview["pending_tasks"])
	require.Equal(t, float64(1), overview["unread_notifications"])
	require.Equal(t, float64(0), overview["unread_messages"])

	// Activity merges leads and clients from this business only
	activity := env.Data["recent_activity"].([]interface{})
	require.Len(t, activity, 3)
	for _, raw := range activity {
		item := raw.(map[string]interface{})
		require.Contains(t, []string{"lead", "client"}, item["type"])
		require.NotEqual(t, "Eve Sdropper", item["title"])
	}

	upcoming := env.Data["upcoming"].([]interface{})
	require.Len(t, upcoming, 1)
	require.Equal(t, "task", upcoming[0].(map[string]interface{})["type"])

	require.NotEmpty(t, env.Data["quick_actions"])
	require.Contains(t, env.Data["performance"].(map[string]interface{}), "current")
}

func TestDashboardFeedsTruncateAtTen(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		lead := model.Lead{BusinessID: business.ID, Name: fmt.Sprintf("Lead %d", i), Status: model.LeadStatusNew}
		require.NoError(t, database.GetDB().Create(&lead).Error)
		database.GetDB().Model(&lead).Update("created_at", base.Add(time.Duration(i)*time.Minute))
	}
	for i := 0; i < 8; i++ {
		client := seedClient(t, business.ID, fmt.Sprintf("Client%d", i), "", "")
		database.GetDB().Model(&client).Update("created_at", base.Add(time.Duration(i)*time.Minute).Add(30*time.Second))
	}

	c, rec := newRequest(t, http.MethodGet, "/api/dashboard", nil)
	authenticate(t, c, ann)

	require.NoError(t, GetDashboard(c))
	require.Equal(t, http.StatusOK, rec.Code)

	activity := decodeEnvelope(t, rec).Data["recent_activity"].([]interface{})
	require.Len(t, activity, 10)

	// Newest first across both sources
	previous := time.Now().Add(time.Hour)
	for _, raw := range activity {
		item := raw.(map[string]interface{})
		ts, err := time.Parse(time.RFC3339Nano, item["timestamp"].(string))
		require.NoError(t, err)
		require.False(t, ts.After(previous))
		previous = ts
	}
}

func TestUpcomingOrdersByDueDate(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	client := seedClient(t, business.ID, "Bob", "Builder", "")

	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(72 * time.Hour)
	paid := time.Now().Add(2 * time.Hour)

	require.NoError(t, database.GetDB().Create(&model.Task{
		BusinessID: business.ID, AssigneeID: ann.ID, Title: "Later task", DueDate: &later,
	}).Error)
	require.NoError(t, database.GetDB().Create(&model.Invoice{
		BusinessID: business.ID, ClientID: client.ID, Number: "INV-1",
		Status: model.InvoiceStatusSent, DueDate: &soon,
	}).Error)
	// Paid invoices never show up, however close the due date
	require.NoError(t, database.GetDB().Create(&model.Invoice{
		BusinessID: business.ID, ClientID: client.ID, Number: "INV-2",
		Status: model.InvoiceStatusPaid, DueDate: &paid,
	}).Error)
	// Completed tasks are excluded too
	require.NoError(t, database.GetDB().Create(&model.Task{
		BusinessID: business.ID, AssigneeID: ann.ID, Title: "Done task",
		Status: model.TaskStatusCompleted, DueDate: &soon,
	}).Error)

	c, rec := newRequest(t, http.MethodGet, "/api/dashboard", nil)
	authenticate(t, c, ann)

	require.NoError(t, GetDashboard(c))
	upcoming := decodeEnvelope(t, rec).Data["upcoming"].([]interface{})

	require.Len(t, upcoming, 2)
	require.Equal(t, "invoice", upcoming[0].(map[string]interface{})["type"])
	require.Equal(t, "INV-1", upcoming[0].(map[string]interface{})["title"])
	require.Equal(t, "task", upcoming[1].(map[string]interface{})["type"])
}

func TestDashboardStatistics(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")
	client := seedClient(t, business.ID, "Bob", "Builder", "")

	require.NoError(t, database.GetDB().Create(&model.Invoice{
		BusinessID: business.ID, ClientID: client.ID, Number: "INV-1", Total: 1200,
	}).Error)
	require.NoError(t, database.GetDB().Create(&model.Invoice{
		BusinessID: business.ID, ClientID: client.ID, Number: "INV-2", Total: 800,
	}).Error)

	start := time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	end := time.Now().Format("2006-01-02")

	c, rec := newRequest(t, http.MethodGet, "/api/dashboard/statistics?start_date="+start+"&end_date="+end, nil)
	authenticate(t, c, ann)

	require.NoError(t, DashboardStatistics(c))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	current := env.Data["current"].(map[string]interface{})
	require.Equal(t, float64(1), current["new_clients"])
	require.Equal(t, float64(2000), current["invoiced_total"])

	previous := env.Data["previous"].(map[string]interface{})
	require.Equal(t, float64(0), previous["new_clients"])
}

func TestDashboardStorageFailure(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")

	c, rec := newRequest(t, http.MethodGet, "/api/dashboard", nil)
	authenticate(t, c, ann)
	breakDB(t)

	require.NoError(t, GetDashboard(c))
	// Broken storage must not render a dashboard full of zeroes
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, decodeEnvelope(t, rec).Success)
}

func TestDashboardRejectsBadDates(t *testing.T) {
	setupDB(t)
	business := seedBusiness(t, "Acme")
	ann := seedUser(t, business.ID, "ann@acme.test")

	c, rec := newRequest(t, http.MethodGet, "/api/dashboard?start_date=last-tuesday", nil)
	authenticate(t, c, ann)

	require.NoError(t, GetDashboard(c))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, decodeEnvelope(t, rec).Errors, "start_date")

	c, rec = newRequest(t, http.MethodGet, "/api/dashboard?start_date=2026-08-10&end_date=2026-08-01", nil)
	authenticate(t, c, ann)

	require.NoError(t, GetDashboard(c))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, decodeEnvelope(t, rec).Errors, "end_date")
}
