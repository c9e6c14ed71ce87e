package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/amrelngm6/crm-flutter-sub001/internal/middleware"
	"github.com/amrelngm6/crm-flutter-sub001/internal/model"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/config"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
	"github.com/amrelngm6/crm-flutter-sub001/pkg/logger"
	"github.com/amrelngm6/crm-flutter-sub001/prometheus"
)

// invalidCredentialsMessage is deliberately identical for unknown email,
// inactive user and wrong password so the response leaks nothing about
// which part failed.
const invalidCredentialsMessage = "Invalid credentials"

type authSettings struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	DefaultDevice string
}

var authConfig authSettings

// InitAuthHandler initializes the auth handlers with token lifetimes
func InitAuthHandler(cfg *config.Config) {
	authConfig = authSettings{
		AccessTTL:     cfg.Auth.AccessTokenExpiration,
		RefreshTTL:    cfg.Auth.RefreshTokenExpiration,
		DefaultDevice: cfg.Auth.DefaultDeviceName,
	}
}

type loginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	DeviceName string `json:"device_name"`
}

type profileResponse struct {
	ID         uint   `json:"id"`
	BusinessID uint   `json:"business_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Bio        string `json:"bio"`
	Position   string `json:"position"`
	AvatarURL  string `json:"avatar_url"`
}

func toProfile(u model.User) profileResponse {
	return profileResponse{
		ID:         u.ID,
		BusinessID: u.BusinessID,
		Email:      u.Email,
		Name:       u.Name,
		Phone:      u.Phone,
		Bio:        u.Bio,
		Position:   u.Position,
		AvatarURL:  u.AvatarURL,
	}
}

// issueTokenPair mints an access token and its paired refresh token for a
// user and device. The two inserts run on the connection it is given, so
// callers needing atomicity pass a transaction.
func issueTokenPair(db *gorm.DB, user model.User, deviceName string) (model.AccessToken, model.RefreshToken, error) {
	now := time.Now()

	access := model.AccessToken{
		UserID:     user.ID,
		BusinessID: user.BusinessID,
		DeviceName: deviceName,
		ExpiresAt:  now.Add(authConfig.AccessTTL),
	}
	if err := db.Create(&access).Error; err != nil {
		return model.AccessToken{}, model.RefreshToken{}, err
	}

	refresh := model.RefreshToken{
		AccessTokenID: access.ID,
		UserID:        user.ID,
		BusinessID:    user.BusinessID,
		DeviceName:    deviceName,
		ExpiresAt:     now.Add(authConfig.RefreshTTL),
	}
	if err := db.Create(&refresh).Error; err != nil {
		return model.AccessToken{}, model.RefreshToken{}, err
	}

	return access, refresh, nil
}

func tokenData(access model.AccessToken, refresh model.RefreshToken) echo.Map {
	return echo.Map{
		"access_token":  access.Token,
		"refresh_token": refresh.Token,
		"token_type":    "Bearer",
		"expires_in":    int(time.Until(access.ExpiresAt).Seconds()),
		"device_name":   access.DeviceName,
	}
}

// Login verifies an email/password pair and issues a token pair bound to
// the device name.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	if prometheus.LoginCounter != nil {
		prometheus.LoginCounter.Inc()
	}

	var req loginRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := database.GetDB().Where("email = ? AND active = ?", email, true).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to log in")
		}
		log.Warn("Login for unknown or inactive user", zap.String("email", email))
		prometheus.RecordAuthError("user_not_found")
		return respondError(c, http.StatusUnauthorized, invalidCredentialsMessage)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Login with wrong password", zap.String("email", email))
		prometheus.RecordAuthError("invalid_password")
		return respondError(c, http.StatusUnauthorized, invalidCredentialsMessage)
	}

	deviceName := strings.TrimSpace(req.DeviceName)
	if deviceName == "" {
		deviceName = authConfig.DefaultDevice
	}

	access, refresh, err := issueTokenPair(database.GetDB(), user, deviceName)
	if err != nil {
		log.Error("Failed to issue tokens", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to issue tokens")
	}

	prometheus.RecordTokenIssued("password", "access_token")
	prometheus.RecordTokenIssued("password", "refresh_token")

	log.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.Uint("business_id", user.BusinessID),
		zap.String("device_name", deviceName))

	data := tokenData(access, refresh)
	data["user"] = toProfile(user)
	return respondOK(c, "Login successful", data)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokens exchanges a refresh token for a new token pair. The old
// refresh token and its paired access token are revoked in the same
// transaction that creates the new pair, so a stolen stale refresh token
// cannot be replayed.
func RefreshTokens(c echo.Context) error {
	log := logger.FromContext(c)

	var req refreshRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var refresh model.RefreshToken
	if err := database.GetDB().Where("token = ? AND revoked = ?", req.RefreshToken, false).First(&refresh).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to look up refresh token", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to refresh tokens")
		}
		log.Warn("Unknown or revoked refresh token", zap.Error(err))
		prometheus.RecordAuthError("invalid_refresh_token")
		return respondError(c, http.StatusUnauthorized, "The refresh token is invalid")
	}

	if refresh.IsExpired() {
		log.Warn("Expired refresh token", zap.String("token_id", refresh.ID))
		prometheus.RecordAuthError("expired_refresh_token")
		return respondError(c, http.StatusUnauthorized, "The refresh token has expired")
	}

	var user model.User
	if err := database.GetDB().Where("id = ? AND active = ?", refresh.UserID, true).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to load refresh token owner", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to refresh tokens")
		}
		log.Warn("Refresh for unknown or inactive user", zap.Uint("user_id", refresh.UserID))
		prometheus.RecordAuthError("inactive_user")
		return respondError(c, http.StatusUnauthorized, "The refresh token is invalid")
	}

	var newAccess model.AccessToken
	var newRefresh model.RefreshToken

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.RefreshToken{}).Where("id = ?", refresh.ID).Update("revoked", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.AccessToken{}).Where("id = ?", refresh.AccessTokenID).Update("revoked", true).Error; err != nil {
			return err
		}
		var err error
		newAccess, newRefresh, err = issueTokenPair(tx, user, refresh.DeviceName)
		return err
	})
	if err != nil {
		log.Error("Failed to rotate tokens", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to refresh tokens")
	}

	if prometheus.TokensRefreshedCounter != nil {
		prometheus.TokensRefreshedCounter.Inc()
	}
	prometheus.RecordTokenRevoked("rotation")

	log.Info("Tokens rotated",
		zap.Uint("user_id", user.ID),
		zap.String("device_name", refresh.DeviceName))

	return respondOK(c, "Tokens refreshed", tokenData(newAccess, newRefresh))
}

// GetProfile returns the authenticated user's profile
func GetProfile(c echo.Context) error {
	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}
	return respondOK(c, "", toProfile(auth.User))
}

type updateProfileRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Bio       *string `json:"bio"`
	Position  *string `json:"position" validate:"omitempty,max=100"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,max=255"`
}

// UpdateProfile updates the authenticated user's profile fields
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req updateProfileRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	user := auth.User
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Position != nil {
		user.Position = *req.Position
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Save(&user).Error; err != nil {
		log.Error("Failed to update profile", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to update profile")
	}

	log.Info("Profile updated", zap.Uint("user_id", user.ID))
	return respondOK(c, "Profile updated", toProfile(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every other session. The token pair used to authenticate this
// request stays valid so the caller is not logged out.
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req changePasswordRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(auth.User.Password), []byte(req.CurrentPassword)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return respondError(c, http.StatusUnauthorized, "Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to change password")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).Where("id = ?", auth.User.ID).Update("password", string(hash)).Error; err != nil {
			return err
		}
		// Revoke every session except the one making this request
		if err := tx.Model(&model.AccessToken{}).
			Where("user_id = ? AND id <> ? AND revoked = ?", auth.User.ID, auth.Token.ID, false).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Model(&model.RefreshToken{}).
			Where("user_id = ? AND access_token_id <> ? AND revoked = ?", auth.User.ID, auth.Token.ID, false).
			Update("revoked", true).Error
	})
	if err != nil {
		log.Error("Failed to change password", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to change password")
	}

	prometheus.RecordTokenRevoked("password_change")
	log.Info("Password changed", zap.Uint("user_id", auth.User.ID))
	return respondOK(c, "Password changed", nil)
}

// Logout revokes the token pair presented on this request only; other
// device sessions stay active.
func Logout(c echo.Context) error {
	log := logger.FromContext(c)

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.AccessToken{}).Where("id = ?", auth.Token.ID).Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Model(&model.RefreshToken{}).
			Where("access_token_id = ?", auth.Token.ID).
			Update("revoked", true).Error
	})
	if err != nil {
		log.Error("Failed to revoke tokens", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to log out")
	}

	prometheus.RecordTokenRevoked("logout")
	log.Info("User logged out", zap.Uint("user_id", auth.User.ID), zap.String("token_id", auth.Token.ID))
	return respondOK(c, "Logged out", nil)
}

// LogoutAll revokes every token the user holds, across all devices.
func LogoutAll(c echo.Context) error {
	log := logger.FromContext(c)

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.AccessToken{}).
			Where("user_id = ? AND revoked = ?", auth.User.ID, false).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Model(&model.RefreshToken{}).
			Where("user_id = ? AND revoked = ?", auth.User.ID, false).
			Update("revoked", true).Error
	})
	if err != nil {
		log.Error("Failed to revoke tokens", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to log out")
	}

	prometheus.RecordTokenRevoked("logout_all")
	log.Info("All sessions revoked", zap.Uint("user_id", auth.User.ID))
	return respondOK(c, "Logged out from all devices", nil)
}
