package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/caremanager"
	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/service"
)

type ScheduleHandler struct {
	activationSvc *service.ActivationService
	managerRepo   caremanager.Repository
	log           *zap.Logger
}

func NewScheduleHandler(activationSvc *service.ActivationService, managerRepo caremanager.Repository, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{activationSvc: activationSvc, managerRepo: managerRepo, log: log}
}

func (h *ScheduleHandler) ListCareManagers(c *gin.Context) {
	managers, err := h.managerRepo.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, managers)
}

// Slots lists a care manager's bookable slots for one day. Booked slots are
// included and flagged, so the caller can render the full grid.
func (h *ScheduleHandler) Slots(c *gin.Context) {
	managerID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	date := c.Query("date")
	if _, err := time.Parse(patient.DateLayout, date); err != nil {
		respondError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	exclude := uuid.Nil
	if raw := c.Query("exclude_patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "exclude_patient must be a valid UUID")
			return
		}
		exclude = id
	}

	slots, err := h.activationSvc.DaySlots(c.Request.Context(), managerID, date, exclude)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"date":  date,
		"slots": slots,
	})
}
