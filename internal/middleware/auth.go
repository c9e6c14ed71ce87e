package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
	"github.com/amrelngm6/crm-flutter-sub001/prometheus"
)

const authContextKey = "auth"

// Auth is the authenticated identity resolved for a request. Handlers
// receive it explicitly via CurrentAuth instead of looking up ambient
// globals; the business id always comes from the user row, never from
// request input.
type Auth struct {
	User  model.User
	Token model.AccessToken
}

// CurrentAuth returns the authenticated identity set by BearerTokenMiddleware.
func CurrentAuth(c echo.Context) (Auth, bool) {
	auth, ok := c.Get(authContextKey).(Auth)
	return auth, ok
}

// BearerTokenMiddleware validates opaque access tokens for protected endpoints
func BearerTokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing access token")
			prometheus.RecordAuthError("missing_token")
			return unauthorized(c, "Access token required")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Warn("Invalid token scheme")
			prometheus.RecordAuthError("invalid_scheme")
			return unauthorized(c, "Token must use Bearer scheme")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		defer prometheus.TrackDBOperation("query")(time.Now())

		// Resolve the opaque token to its row; no decoding involved
		var accessToken model.AccessToken
		if err := database.GetDB().Where("token = ? AND revoked = ?", tokenString, false).First(&accessToken).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error("Failed to resolve access token", zap.Error(err))
				return serverError(c)
			}
			log.Warn("Token not found or revoked", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return unauthorized(c, "The access token is invalid")
		}

		if accessToken.IsExpired() {
			log.Warn("Expired token", zap.String("token_id", accessToken.ID))
			prometheus.RecordAuthError("expired_token")
			return unauthorized(c, "The access token has expired")
		}

		var user model.User
		if err := database.GetDB().Where("id = ? AND active = ?", accessToken.UserID, true).First(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error("Failed to load token owner", zap.Error(err))
				return serverError(c)
			}
			log.Warn("Token owner not found or inactive",
				zap.Uint("user_id", accessToken.UserID),
				zap.Error(err))
			prometheus.RecordAuthError("inactive_user")
			return unauthorized(c, "The access token is invalid")
		}

		c.Set(authContextKey, Auth{User: user, Token: accessToken})

		// Update logger with identity information
		log = log.With(
			zap.Uint("user_id", user.ID),
			zap.Uint("business_id", user.BusinessID),
			zap.String("token_id", accessToken.ID),
		)
		c.Set("logger", log)

		return next(c)
	}
}

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"message": message,
	})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"success": false,
		"message": "Internal server error",
	})
}
