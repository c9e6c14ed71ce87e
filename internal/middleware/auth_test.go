package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))
	database.Use(db)
	return db
}

func seedUserWithToken(t *testing.T, db *gorm.DB) (model.User, model.AccessToken) {
	t.Helper()
	business := model.Business{Name: "Acme", Active: true}
	require.NoError(t, db.Create(&business).Error)
	user := model.User{BusinessID: business.ID, Email: "ann@acme.test", Active: true}
	require.NoError(t, db.Create(&user).Error)
	token := model.AccessToken{
		UserID:     user.ID,
		BusinessID: business.ID,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&token).Error)
	return user, token
}

func invoke(t *testing.T, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	handler := BearerTokenMiddleware(func(c echo.Context) error {
		reached = true
		auth, ok := CurrentAuth(c)
		require.True(t, ok)
		require.NotZero(t, auth.User.ID)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, reached
}

func TestBearerTokenMiddleware(t *testing.T) {
	db := setupDB(t)
	user, token := seedUserWithToken(t, db)

	t.Run("accepts a valid token", func(t *testing.T) {
		rec, reached := invoke(t, "Bearer "+token.Token)
		require.True(t, reached)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		rec, reached := invoke(t, "")
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a non-bearer scheme", func(t *testing.T) {
		rec, reached := invoke(t, "Basic dXNlcjpwYXNz")
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an unknown token", func(t *testing.T) {
		rec, reached := invoke(t, "Bearer not-a-real-token")
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		revoked := model.AccessToken{UserID: user.ID, BusinessID: user.BusinessID, ExpiresAt: time.Now().Add(time.Hour), Revoked: true}
		require.NoError(t, db.Create(&revoked).Error)

		rec, reached := invoke(t, "Bearer "+revoked.Token)
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		expired := model.AccessToken{UserID: user.ID, BusinessID: user.BusinessID, ExpiresAt: time.Now().Add(-time.Minute)}
		require.NoError(t, db.Create(&expired).Error)

		rec, reached := invoke(t, "Bearer "+expired.Token)
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a token of a deactivated user", func(t *testing.T) {
		require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("active", false).Error)
		t.Cleanup(func() {
			db.Model(&model.User{}).Where("id = ?", user.ID).Update("active", true)
		})

		rec, reached := invoke(t, "Bearer "+token.Token)
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestBearerTokenMiddlewareStorageFailure(t *testing.T) {
	db := setupDB(t)
	_, token := seedUserWithToken(t, db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec, reached := invoke(t, "Bearer "+token.Token)
	require.False(t, reached)
	// A failed token lookup is a 500, not an invalid-token 401
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCurrentAuthWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := CurrentAuth(c)
	require.False(t, ok)
}
