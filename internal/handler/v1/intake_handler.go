package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iterahealth/activation-engine/internal/service"
	"github.com/iterahealth/activation-engine/pkg/metrics"
)

type IntakeHandler struct {
	intakeSvc *service.IntakeService
	collector *metrics.Collector
	log       *zap.Logger
	maxBytes  int64
}

func NewIntakeHandler(intakeSvc *service.IntakeService, collector *metrics.Collector, log *zap.Logger, maxBytes int64) *IntakeHandler {
	return &IntakeHandler{intakeSvc: intakeSvc, collector: collector, log: log, maxBytes: maxBytes}
}

// Import accepts a multipart CSV upload under the "file" field and registers
// every well-formed row.
func (h *IntakeHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing multipart file field \"file\"")
		return
	}

	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %d byte upload limit", h.maxBytes))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unable to read uploaded file")
		return
	}
	defer f.Close()

	claims := claimsFrom(c)
	summary, err := h.intakeSvc.ImportCSV(c.Request.Context(), f, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.collector.IntakeRowsTotal.WithLabelValues("imported").Add(float64(summary.Imported))
	h.collector.IntakeRowsTotal.WithLabelValues("skipped").Add(float64(summary.Skipped))

	h.log.Info("roster import",
		zap.String("file", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)

	respondOK(c, summary)
}
