package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"custom-alerts-service/internal/db"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/models"
	"custom-alerts-service/internal/service"
)

type Handler struct {
	db     *db.DB
	logger *logging.Logger
	svc    *service.Service
}

func NewHandler(db *db.DB, logger *logging.Logger, svc *service.Service) *Handler {
	return &Handler{db: db, logger: logger, svc: svc}
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var alert models.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		h.logger.Errorf("Invalid request body for alert: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert.Normalize()
	if err := alert.Validate(); err != nil {
		h.logger.Errorf("Invalid alert definition: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.CreateAlert(c.Request.Context(), &alert); err != nil {
		h.logger.Errorf("Failed to create alert: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	h.logger.Infof("Created alert %d (%s)", alert.ID, alert.Name)
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	alert, err := h.db.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Failed to get alert %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

// GetAlerts lists alerts for the sites given in ?site_ids=1,2,3.
func (h *Handler) GetAlerts(c *gin.Context) {
	raw := c.Query("site_ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "site_ids is required"})
		return
	}

	var siteIDs []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid site_ids"})
			return
		}
		siteIDs = append(siteIDs, id)
	}

	alerts, err := h.db.GetAlertsForSites(c.Request.Context(), siteIDs)
	if err != nil {
		h.logger.Errorf("Failed to get alerts for sites %v: %v", siteIDs, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alerts"})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) UpdateAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	var alert models.Alert
	if err := c.ShouldBindJSON(&alert); err != nil {
		h.logger.Errorf("Invalid request body for alert %d: %v", id, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	alert.ID = id

	alert.Normalize()
	if err := alert.Validate(); err != nil {
		h.logger.Errorf("Invalid alert definition: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.UpdateAlert(c.Request.Context(), alert); err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Failed to update alert %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	h.logger.Infof("Updated alert %d", id)
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) DeleteAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := h.db.DeleteAlert(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Failed to delete alert %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	h.logger.Infof("Deleted alert %d", id)
	c.Status(http.StatusNoContent)
}

// RemovePhoneNumber strips a deactivated phone number from every alert.
func (h *Handler) RemovePhoneNumber(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number is required"})
		return
	}

	if err := h.db.RemovePhoneNumberFromAlerts(c.Request.Context(), req.PhoneNumber); err != nil {
		h.logger.Errorf("Failed to remove phone number: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove phone number"})
		return
	}

	c.Status(http.StatusNoContent)
}

// RemoveSite handles the cleanup hook for a deleted site: alert-site links
// and trigger history go, alert definitions stay.
func (h *Handler) RemoveSite(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid site id"})
		return
	}

	if err := h.db.RemoveSite(c.Request.Context(), id); err != nil {
		h.logger.Errorf("Failed to remove site %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove site"})
		return
	}

	h.logger.Infof("Removed site %d from all alerts", id)
	c.Status(http.StatusNoContent)
}

// GetTriggeredAlerts lists the trigger log for
// ?period=week&date=2026-08-24[&login=x].
func (h *Handler) GetTriggeredAlerts(c *gin.Context) {
	period, ok := parsePeriod(c)
	if !ok {
		return
	}

	triggered, err := h.db.TriggeredForPeriod(c.Request.Context(), period, c.Query("login"))
	if err != nil {
		h.logger.Errorf("Failed to get triggered alerts for %s: %v", period, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get triggered alerts"})
		return
	}

	c.JSON(http.StatusOK, triggered)
}

// QueueRun accepts a manual (period, site) run with the same semantics as a
// scheduler message. Both halves of the run are idempotent, so re-posting is
// harmless.
func (h *Handler) QueueRun(c *gin.Context) {
	var req struct {
		Period string `json:"period" binding:"required"`
		Date   string `json:"date" binding:"required"`
		SiteID int64  `json:"site_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period, date and site_id are required"})
		return
	}

	granularity := models.Granularity(req.Period)
	if !granularity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid period"})
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, want YYYY-MM-DD"})
		return
	}

	job := service.RunJob{
		RequestID: uuid.NewString(),
		Period:    models.NewPeriod(granularity, date),
		SiteID:    req.SiteID,
	}
	h.svc.QueueRun(job)

	c.JSON(http.StatusAccepted, gin.H{"request_id": job.RequestID})
}

func parsePeriod(c *gin.Context) (models.Period, bool) {
	granularity := models.Granularity(c.Query("period"))
	if !granularity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid period"})
		return models.Period{}, false
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, want YYYY-MM-DD"})
		return models.Period{}, false
	}
	return models.NewPeriod(granularity, date), true
}
