package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/internal/middleware"
	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/config"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/validate"
)

const testPassword = "super-secret-1"

// setupDB opens an isolated in-memory database for one test, migrates the
// schema and installs it as the handler-visible connection.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))

	database.Use(db)
	InitAuthHandler(&config.Config{
		Auth: config.AuthConfig{
			AccessTokenExpiration:  time.Hour,
			RefreshTokenExpiration: 24 * time.Hour,
			DefaultDeviceName:      "mobile",
		},
	})
	return db
}

func seedBusiness(t *testing.T, name string) model.Business {
	t.Helper()
	business := model.Business{Name: name, Active: true}
	require.NoError(t, database.GetDB().Create(&business).Error)
	return business
}

func seedUser(t *testing.T, businessID uint, email string) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{
		BusinessID: businessID,
		Email:      email,
		Password:   string(hash),
		Active:     true,
		Name:       "Test User",
	}
	require.NoError(t, database.GetDB().Create(&user).Error)
	return user
}

// newRequest builds an echo context with the project validator installed,
// mirroring how the server wires requests in production.
func newRequest(t *testing.T, method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = validate.New()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// authenticate issues a real access token for the user and places the
// resolved identity on the context the way BearerTokenMiddleware does.
func authenticate(t *testing.T, c echo.Context, user model.User) model.AccessToken {
	t.Helper()
	token := model.AccessToken{
		UserID:     user.ID,
		BusinessID: user.BusinessID,
		DeviceName: "test-device",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, database.GetDB().Create(&token).Error)
	c.Set("auth", middleware.Auth{User: user, Token: token})
	return token
}

// breakDB closes the underlying connection pool so every query after it
// fails, simulating a storage outage mid-request.
func breakDB(t *testing.T) {
	t.Helper()
	sqlDB, err := database.GetDB().DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func timePast() time.Time   { return time.Now().Add(-time.Hour) }
func timeFuture() time.Time { return time.Now().Add(time.Hour) }

type testEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Errors  map[string][]string    `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
