package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/domain/patient"
	"github.com/iterahealth/activation-engine/internal/service"
	"github.com/iterahealth/activation-engine/pkg/metrics"
)

type PatientHandler struct {
	eligibilitySvc *service.EligibilityService
	collector      *metrics.Collector
	log            *zap.Logger
}

func NewPatientHandler(eligibilitySvc *service.EligibilityService, collector *metrics.Collector, log *zap.Logger) *PatientHandler {
	return &PatientHandler{eligibilitySvc: eligibilitySvc, collector: collector, log: log}
}

type createPatientRequest struct {
	MRN           string `json:"mrn" binding:"required"`
	Name          string `json:"name" binding:"required"`
	DateOfBirth   string `json:"date_of_birth" binding:"required"` // YYYY-MM-DD
	Gender        string `json:"gender"`
	ZipCode       string `json:"zip_code"`
	Insurance     string `json:"insurance"`
	ProviderNPI   string `json:"provider_npi"`
	LastVisitDate string `json:"last_visit_date"` // YYYY-MM-DD, optional
	ICD10Codes    string `json:"icd10_codes"`     // comma-separated
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	HomePhone     string `json:"home_phone"`
}

func (h *PatientHandler) Create(c *gin.Context) {
	var req createPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	dob, err := time.Parse(patient.DateLayout, req.DateOfBirth)
	if err != nil {
		respondError(c, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
		return
	}

	var lastVisit *time.Time
	if req.LastVisitDate != "" {
		t, err := time.Parse(patient.DateLayout, req.LastVisitDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, "last_visit_date must be YYYY-MM-DD")
			return
		}
		lastVisit = &t
	}

	gender := patient.Gender(req.Gender)
	if gender == "" {
		gender = patient.GenderUnknown
	}

	claims := claimsFrom(c)
	cmd := &patient.CreatePatientCommand{
		MRN:            req.MRN,
		Name:           req.Name,
		DateOfBirth:    dob,
		Gender:         gender,
		ZipCode:        req.ZipCode,
		Insurance:      req.Insurance,
		ProviderNPI:    req.ProviderNPI,
		LastVisitDate:  lastVisit,
		ConditionCodes: patient.ParseCodes(req.ICD10Codes),
		Email:          req.Email,
		Phone:          req.Phone,
		HomePhone:      req.HomePhone,
		CreatedBy:      claims.UserID,
	}

	p, result, err := h.eligibilitySvc.RegisterPatient(c.Request.Context(), cmd, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.PatientsCreatedTotal.Inc()
	h.collector.EvaluationsTotal.WithLabelValues(string(result.StatusHint)).Inc()

	c.JSON(http.StatusCreated, APIResponse[any]{Data: gin.H{
		"patient":     p,
		"eligibility": result,
	}})
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.eligibilitySvc.GetPatient(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, p)
}

func (h *PatientHandler) List(c *gin.Context) {
	q := &patient.ListPatientsQuery{
		Search:      c.Query("search"),
		CareManager: c.Query("care_manager"),
		Page:        parseQueryInt(c, "page", 1),
		PageSize:    parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := patient.Status(raw)
		q.Status = &status
	}

	page, err := h.eligibilitySvc.ListPatients(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, page)
}

// Evaluate re-runs program eligibility against the patient's current
// diagnoses and visit history.
func (h *PatientHandler) Evaluate(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	claims := claimsFrom(c)
	result, err := h.eligibilitySvc.Evaluate(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.EvaluationsTotal.WithLabelValues(string(result.StatusHint)).Inc()
	respondOK(c, result)
}

func (h *PatientHandler) CallHistory(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.eligibilitySvc.GetPatient(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, p.CallHistory())
}
