package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amrelngm6/crm-flutter-sub001/pkg/database"
)

// Hello is a simple liveness endpoint
func Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "CRM Mobile API",
		"status":  "running",
	})
}

// HealthCheck reports service health; ?check=db also pings the database
func HealthCheck(c echo.Context) error {
	response := echo.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}

	if c.QueryParam("check") == "db" {
		sqlDB, err := database.GetDB().DB()
		if err != nil {
			response["status"] = "degraded"
			response["database"] = "unavailable"
			return c.JSON(http.StatusInternalServerError, response)
		}
		if err := sqlDB.Ping(); err != nil {
			response["status"] = "degraded"
			response["database"] = "unreachable"
			return c.JSON(http.StatusInternalServerError, response)
		}
		response["database"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}
