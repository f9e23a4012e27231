package handlers

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/ingest"
	"weaponwatch/alerting/internal/models"
	"weaponwatch/alerting/internal/query"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AlertReader is the read side of the alert store.
type AlertReader interface {
	Get(id string) (models.Alert, error)
	List() iter.Seq[models.Alert]
}

// AlertService applies mutations through the ingestion pipeline.
type AlertService interface {
	Report(ctx context.Context, req models.CreateAlertRequest) (models.Alert, error)
	UpdateStatus(ctx context.Context, id string, status models.Status) (models.Alert, error)
}

type Acknowledger interface {
	Acknowledge(ctx context.Context, id string) (ingest.AckResult, error)
}

type AlertHandler struct {
	store   AlertReader
	service AlertService
	acker   Acknowledger
	logger  *zap.Logger
	now     func() time.Time
}

func NewAlertHandler(store AlertReader, service AlertService, acker Acknowledger, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{store: store, service: service, acker: acker, logger: logger, now: time.Now}
}

func (h *AlertHandler) List(ctx *gin.Context) {
	alerts, ok := h.selectAlerts(ctx)
	if !ok {
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	ctx.JSON(http.StatusOK, models.AlertListResponse{Alerts: alerts, Total: len(alerts)})
}

func (h *AlertHandler) Create(ctx *gin.Context) {
	var request models.CreateAlertRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
		return
	}
	if c := *request.Confidence; c < 0 || c > 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert data", "details": "confidence must be within [0,1]"})
		return
	}

	alert, err := h.service.Report(ctx.Request.Context(), request)
	if err != nil {
		writeError(ctx, "Failed to create alert", err)
		return
	}
	ctx.JSON(http.StatusCreated, alert)
}

func (h *AlertHandler) GetByID(ctx *gin.Context) {
	alert, err := h.store.Get(ctx.Param("id"))
	if err != nil {
		writeError(ctx, "Failed to get alert", err)
		return
	}
	ctx.JSON(http.StatusOK, alert)
}

func (h *AlertHandler) UpdateStatus(ctx *gin.Context) {
	var request models.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return
	}

	alert, err := h.service.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), request.Status)
	if err != nil {
		writeError(ctx, "Failed to update alert status", err)
		return
	}
	ctx.JSON(http.StatusOK, alert)
}

// Acknowledge acknowledges locally even when the remote relay fails; the
// relay failure is reported in the response body.
func (h *AlertHandler) Acknowledge(ctx *gin.Context) {
	result, err := h.acker.Acknowledge(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, "Failed to acknowledge alert", err)
		return
	}

	response := models.AcknowledgeResponse{Alert: result.Alert, RemoteRelayed: result.Relayed}
	if result.RemoteErr != nil {
		response.RemoteError = result.RemoteErr.Error()
	}
	ctx.JSON(http.StatusOK, response)
}

func (h *AlertHandler) Stats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, query.Aggregate(h.store.List()).Response())
}

func (h *AlertHandler) ExportCSV(ctx *gin.Context) {
	alerts, ok := h.selectAlerts(ctx)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := query.WriteCSV(&buf, alerts); err != nil {
		h.logger.Error("CSV export failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed", "details": err.Error()})
		return
	}
	h.attach(ctx, query.CSVFilename(h.now()), "text/csv; charset=utf-8", buf.Bytes())
}

func (h *AlertHandler) ExportXLSX(ctx *gin.Context) {
	alerts, ok := h.selectAlerts(ctx)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := query.WriteXLSX(&buf, alerts); err != nil {
		h.logger.Error("XLSX export failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed", "details": err.Error()})
		return
	}
	h.attach(ctx, query.XLSXFilename(h.now()), xlsxContentType, buf.Bytes())
}

func (h *AlertHandler) attach(ctx *gin.Context, filename, contentType string, data []byte) {
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Data(http.StatusOK, contentType, data)
	h.logger.Info("Alerts exported", zap.String("file", filename), zap.Int("bytes", len(data)))
}

// selectAlerts applies the q, severity, status and sort parameters. It
// writes a 400 and returns false on invalid parameters.
func (h *AlertHandler) selectAlerts(ctx *gin.Context) ([]models.Alert, bool) {
	filter := query.Filter{
		Search:   ctx.Query("q"),
		Severity: strings.ToLower(ctx.Query("severity")),
		Status:   strings.ToLower(ctx.Query("status")),
	}
	if constrained(filter.Severity) && !models.Severity(filter.Severity).Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid severity", "details": filter.Severity})
		return nil, false
	}
	if constrained(filter.Status) && !models.Status(filter.Status).Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": filter.Status})
		return nil, false
	}

	key, err := query.ParseSortKey(ctx.Query("sort"))
	if err != nil {
		writeError(ctx, "Invalid sort key", err)
		return nil, false
	}
	return query.Apply(h.store.List(), filter, key), true
}

func constrained(v string) bool {
	return v != "" && v != query.All
}
