package v1

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/service"
	"github.com/iterahealth/activation-engine/pkg/metrics"
)

type ActivationHandler struct {
	activationSvc *service.ActivationService
	collector     *metrics.Collector
	log           *zap.Logger
}

func NewActivationHandler(activationSvc *service.ActivationService, collector *metrics.Collector, log *zap.Logger) *ActivationHandler {
	return &ActivationHandler{activationSvc: activationSvc, collector: collector, log: log}
}

type approveRequest struct {
	PatientIDs []uuid.UUID `json:"patient_ids" binding:"required,min=1"`
}

// Approve admits a batch of pending patients into the outreach funnel.
func (h *ActivationHandler) Approve(c *gin.Context) {
	var req approveRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := claimsFrom(c)
	approved, err := h.activationSvc.Approve(c.Request.Context(), req.PatientIDs, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"approved": approved,
		"count":    len(approved),
	})
}

func (h *ActivationHandler) Reject(c *gin.Context) {
	h.simpleTransition(c, h.activationSvc.Reject)
}

func (h *ActivationHandler) Reset(c *gin.Context) {
	h.simpleTransition(c, h.activationSvc.Reset)
}

func (h *ActivationHandler) DeviceShipped(c *gin.Context) {
	h.simpleTransition(c, h.activationSvc.MarkDeviceShipped)
}

func (h *ActivationHandler) Activate(c *gin.Context) {
	h.simpleTransition(c, h.activationSvc.MarkActive)
}

func (h *ActivationHandler) simpleTransition(
	c *gin.Context,
	fn func(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole, ip string) (*patient.Patient, error),
) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := claimsFrom(c)
	p, err := fn(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, p)
}

type logCallRequest struct {
	Outcome    string              `json:"outcome" binding:"required"`
	Notes      string              `json:"notes"`
	NextAction *patient.NextAction `json:"next_action"`
}

// LogCall records an outreach attempt and advances the escalation ladder.
// An appointment next-action books the slot atomically with the log entry.
func (h *ActivationHandler) LogCall(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req logCallRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := claimsFrom(c)
	cmd := &service.LogCallCommand{
		Outcome:     patient.Outcome(req.Outcome),
		Notes:       req.Notes,
		NextAction:  req.NextAction,
		PerformedBy: claims.Email,
	}

	p, err := h.activationSvc.LogCallOutcome(c.Request.Context(), id, cmd, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrSlotTaken) {
			h.collector.BookingConflicts.Inc()
		}
		respondServiceError(c, err)
		return
	}

	h.collector.CallOutcomesTotal.WithLabelValues(req.Outcome).Inc()
	if req.NextAction != nil && req.NextAction.Kind == patient.NextActionAppointment {
		h.collector.BookingsTotal.Inc()
	}

	respondOK(c, p)
}

type scheduleRequest struct {
	Date string `json:"date" binding:"required"` // YYYY-MM-DD
	Time string `json:"time" binding:"required"` // HH:MM
}

// Schedule books a consent-stage appointment directly, outside the call flow.
func (h *ActivationHandler) Schedule(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := claimsFrom(c)
	p, err := h.activationSvc.Schedule(c.Request.Context(), id, req.Date, req.Time, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		if errors.Is(err, service.ErrSlotTaken) {
			h.collector.BookingConflicts.Inc()
		}
		respondServiceError(c, err)
		return
	}

	h.collector.BookingsTotal.Inc()
	respondOK(c, p)
}

// AllowedEvents reports which transitions the patient's current status
// admits, for UI affordance gating.
func (h *ActivationHandler) AllowedEvents(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.activationSvc.GetPatient(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"status": p.Status,
		"events": patient.AllowedEvents(p.Status),
	})
}
