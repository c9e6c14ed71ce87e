package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amrelngm6/crm-flutter-sub001/pkg/validate"
)

// envelope is the uniform response wrapper for every endpoint.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func respondOK(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondCreated(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

func respondError(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Success: false, Message: message})
}

func respondValidation(c echo.Context, errs validate.Errors) error {
	return c.JSON(http.StatusUnprocessableEntity, envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// bindAndValidate decodes the request body and runs struct validation,
// writing the 422 response itself when validation fails. The bool result
// tells the handler whether to continue.
func bindAndValidate(c echo.Context, req interface{}) (error, bool) {
	if err := c.Bind(req); err != nil {
		return respondError(c, http.StatusUnprocessableEntity, "Invalid request body"), false
	}
	if err := c.Validate(req); err != nil {
		if verrs, ok := err.(validate.Errors); ok {
			return respondValidation(c, verrs), false
		}
		return respondError(c, http.StatusUnprocessableEntity, "Invalid request body"), false
	}
	return nil, true
}
