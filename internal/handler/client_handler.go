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

// clientSortable whitelists the sort_by values for client lists.
var clientSortable = map[string]string{
	"created_at": "created_at",
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"company":    "company",
	"status":     "status",
}

var clientSearchColumns = []string{"first_name", "last_name", "email", "phone", "company"}

type clientRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Company   string `json:"company" validate:"omitempty,max=150"`
	Status    string `json:"status" validate:"omitempty,oneof=lead active inactive"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
}

// ListClients returns the business's clients with search, filter, sort and
// pagination.
func ListClients(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "list")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	opts, err := query.Parse(c, clientSortable, "created_at", "desc")
	if err != nil {
		if verrs, ok := err.(validate.Errors); ok {
			return respondValidation(c, verrs)
		}
		return respondError(c, http.StatusUnprocessableEntity, "Invalid query parameters")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	base := database.GetDB().Model(&model.Client{}).
		Where("business_id = ?", auth.User.BusinessID).
		Scopes(opts.Filter(clientSearchColumns...))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		log.Error("Failed to count clients", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve clients")
	}

	var clients []model.Client
	if err := base.Session(&gorm.Session{}).
		Order(opts.Sort()).
		Limit(opts.PerPage).
		Offset(opts.Offset()).
		Find(&clients).Error; err != nil {
		log.Error("Failed to retrieve clients", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve clients")
	}

	return respondOK(c, "", echo.Map{
		"clients": clients,
		"meta":    opts.MetaFor(total),
	})
}

// GetClient returns a single client; ids outside the caller's business
// read as absent.
func GetClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "get")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var client model.Client
	if err := database.GetDB().
		Where("id = ? AND business_id = ?", id, auth.User.BusinessID).
		First(&client).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to retrieve client", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve client")
		}
		log.Warn("Client not found or outside business",
			zap.Uint64("client_id", id),
			zap.Uint("business_id", auth.User.BusinessID))
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	return respondOK(c, "", client)
}

// CreateClient creates a client in the caller's business
func CreateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "create")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req clientRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	status := req.Status
	if status == "" {
		status = model.ClientStatusActive
	}

	// Business id always comes from the authenticated user
	client := model.Client{
		BusinessID: auth.User.BusinessID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Company:    req.Company,
		Status:     status,
		Address:    req.Address,
		Notes:      req.Notes,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&client).Error; err != nil {
		log.Error("Failed to create client", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to create client")
	}

	log.Info("Client created",
		zap.Uint("client_id", client.ID),
		zap.Uint("business_id", client.BusinessID))
	return respondCreated(c, "Client created", client)
}

// UpdateClient updates a client in the caller's business
func UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "update")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	var client model.Client
	if err := database.GetDB().
		Where("id = ? AND business_id = ?", id, auth.User.BusinessID).
		First(&client).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to retrieve client", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to update client")
		}
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	var req clientRequest
	if err, ok := bindAndValidate(c, &req); !ok {
		return err
	}

	client.FirstName = req.FirstName
	client.LastName = req.LastName
	client.Email = req.Email
	client.Phone = req.Phone
	client.Company = req.Company
	if req.Status != "" {
		client.Status = req.Status
	}
	client.Address = req.Address
	client.Notes = req.Notes

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Save(&client).Error; err != nil {
		log.Error("Failed to update client", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to update client")
	}

	log.Info("Client updated", zap.Uint("client_id", client.ID))
	return respondOK(c, "Client updated", client)
}

// DeleteClient soft deletes a client in the caller's business
func DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "delete")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := database.GetDB().
		Where("id = ? AND business_id = ?", id, auth.User.BusinessID).
		Delete(&model.Client{})
	if result.Error != nil {
		log.Error("Failed to delete client", zap.Error(result.Error))
		return respondError(c, http.StatusInternalServerError, "Failed to delete client")
	}
	if result.RowsAffected == 0 {
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	log.Info("Client deleted", zap.Uint64("client_id", id))
	return respondOK(c, "Client deleted", nil)
}

// ListClientProjects returns the projects of one client
func ListClientProjects(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "projects")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	clientID, err := clientInBusiness(c, auth.User.BusinessID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to resolve client", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve projects")
		}
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var projects []model.Project
	if err := database.GetDB().
		Where("client_id = ? AND business_id = ?", clientID, auth.User.BusinessID).
		Order("created_at desc").
		Find(&projects).Error; err != nil {
		log.Error("Failed to retrieve projects", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve projects")
	}

	return respondOK(c, "", echo.Map{"projects": projects})
}

// ListClientInvoices returns the invoices of one client
func ListClientInvoices(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "invoices")

	auth, ok := middleware.CurrentAuth(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	clientID, err := clientInBusiness(c, auth.User.BusinessID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to resolve client", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Failed to retrieve invoices")
		}
		return respondError(c, http.StatusNotFound, "Client not found")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var invoices []model.Invoice
	if err := database.GetDB().
		Where("client_id = ? AND business_id = ?", clientID, auth.User.BusinessID).
		Order("created_at desc").
		Find(&invoices).Error; err != nil {
		log.Error("Failed to retrieve invoices", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Failed to retrieve invoices")
	}

	return respondOK(c, "", echo.Map{"invoices": invoices})
}

// clientInBusiness checks that the :id path parameter names a client of
// the given business and returns its id. A missing client reads as
// gorm.ErrRecordNotFound; any other error is a storage failure.
func clientInBusiness(c echo.Context, businessID uint) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, gorm.ErrRecordNotFound
	}
	var count int64
	if err := database.GetDB().Model(&model.Client{}).
		Where("id = ? AND business_id = ?", id, businessID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return uint(id), nil
}
