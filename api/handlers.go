package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ataxihosur-pookie/Milk-delivery-sub000/domain"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/engine"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/models"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/repository"
	"github.com/ataxihosur-pookie/Milk-delivery-sub000/utils"
)

const requestTimeout = 5 * time.Second

// StatusRequest is the body of both status update routes
type StatusRequest struct {
	Status     domain.DeliveryStatus `json:"status"`
	Notes      string                `json:"notes"`
	Quantity   *decimal.Decimal      `json:"quantity"`
	CustomerID string                `json:"customer_id"`
	Date       string                `json:"date"`
}

// AssignmentsRequest is the body of the assignments route
type AssignmentsRequest struct {
	CustomerIDs []string `json:"customer_ids"`
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError maps engine errors to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// dayQuery reads the required date query parameter
func dayQuery(c *gin.Context) (string, bool) {
	date := c.Query("date")
	if !utils.IsValidDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return "", false
	}
	return date, true
}

// addDailyAllocation appends an allocation row and generates the day's deliveries
func (s *Server) addDailyAllocation(c *gin.Context) {
	var cmd engine.AddDailyAllocationCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := s.engine.AddDailyAllocation(ctx, cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) recordPickup(c *gin.Context) {
	var cmd engine.RecordPickupCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := s.engine.RecordPickup(ctx, cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) getEffectiveAllocation(c *gin.Context) {
	date, ok := dayQuery(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	allocation, err := s.engine.EffectiveAllocation(ctx, c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, allocation)
}

func (s *Server) getDayLedger(c *gin.Context) {
	date, ok := dayQuery(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	ledger, err := s.engine.DayLedger(ctx, c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ledger)
}

func (s *Server) auditDay(c *gin.Context) {
	date, ok := dayQuery(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := s.engine.AuditDay(ctx, c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) assignCustomers(c *gin.Context) {
	var req AssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	partner, err := s.engine.AssignCustomersToPartner(ctx, engine.AssignCustomersCommand{
		PartnerID:   c.Param("id"),
		CustomerIDs: req.CustomerIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, partner)
}

func (s *Server) savePartner(c *gin.Context) {
	var partner models.DeliveryPartner
	if err := c.ShouldBindJSON(&partner); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	partner.ID = c.Param("id")

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.engine.SaveDeliveryPartner(ctx, &partner); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, partner)
}

func (s *Server) saveCustomer(c *gin.Context) {
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer.ID = c.Param("id")

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.engine.SaveCustomer(ctx, &customer); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

func (s *Server) listDeliveries(c *gin.Context) {
	filter := repository.DeliveryFilter{
		PartnerID:  c.Query("partner_id"),
		CustomerID: c.Query("customer_id"),
		Date:       c.Query("date"),
		Status:     domain.DeliveryStatus(c.Query("status")),
	}
	if filter.Status != "" && !utils.IsValidDeliveryStatus(string(filter.Status)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown delivery status"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	deliveries, err := s.engine.ListDeliveries(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}

	c.JSON(http.StatusOK, deliveries)
}

// updateDeliveryStatus accepts generated ids as well as legacy customer_partner_date ids
func (s *Server) updateDeliveryStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.applyStatus(c, engine.UpdateDeliveryStatusCommand{
		DeliveryID: c.Param("id"),
		Status:     req.Status,
		Notes:      req.Notes,
		Quantity:   req.Quantity,
	})
}

func (s *Server) updateDeliveryStatusByKey(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.applyStatus(c, engine.UpdateDeliveryStatusCommand{
		Key: &domain.DeliveryKey{
			CustomerID: req.CustomerID,
			PartnerID:  c.Param("id"),
			Date:       req.Date,
		},
		Status:   req.Status,
		Notes:    req.Notes,
		Quantity: req.Quantity,
	})
}

func (s *Server) applyStatus(c *gin.Context, cmd engine.UpdateDeliveryStatusCommand) {
	ctx, cancel := requestContext(c)
	defer cancel()

	delivery, err := s.engine.UpdateDeliveryStatus(ctx, cmd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, delivery)
}
