package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opsdeck/kube-triage/internal/models"
	"github.com/opsdeck/kube-triage/internal/utils"
)

// Service defines the diagnosis operations the HTTP layer exposes.
type Service interface {
	Diagnose(ctx context.Context, req models.DiagnoseRequest) (models.DiagnosticsResult, error)
	ListDiagnostics(ctx context.Context, req models.ListDiagnosticsRequest) ([]models.DiagnosticsResult, error)
	GetPatterns(ctx context.Context, namespace string) ([]models.FailurePattern, error)
	SubmitFeedback(ctx context.Context, feedback models.Feedback) error
}

// Handler routes HTTP requests to the diagnostics service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler constructs the HTTP handler set.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register attaches all routes to the router.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/healthz", h.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/diagnose", h.diagnose)
		v1.GET("/history", h.history)
		v1.GET("/patterns", h.patterns)
		v1.POST("/feedback", h.feedback)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type diagnoseRequest struct {
	Namespace string `json:"namespace"`
}

func (h *Handler) diagnose(c *gin.Context) {
	var body diagnoseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	result, err := h.service.Diagnose(c.Request.Context(), models.DiagnoseRequest{Namespace: body.Namespace})
	if err != nil {
		h.logger.Error("diagnose request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "diagnosis failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) history(c *gin.Context) {
	req := models.ListDiagnosticsRequest{
		Namespace: c.Query("namespace"),
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		req.Limit = limit
	}

	results, err := h.service.ListDiagnostics(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("history request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list diagnosis history"})
		return
	}

	if v := c.Query("since"); v != "" {
		since, err := utils.ParseRFC3339(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		filtered := make([]models.DiagnosticsResult, 0, len(results))
		for _, r := range results {
			if r.CreatedAt.After(since) {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	c.JSON(http.StatusOK, gin.H{"diagnoses": results, "count": len(results)})
}

func (h *Handler) patterns(c *gin.Context) {
	patterns, err := h.service.GetPatterns(c.Request.Context(), c.Query("namespace"))
	if err != nil {
		h.logger.Error("patterns request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mine failure patterns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
}

type feedbackRequest struct {
	DiagnosisID string `json:"diagnosisId" binding:"required"`
	Helpful     bool   `json:"helpful"`
	Notes       string `json:"notes"`
}

func (h *Handler) feedback(c *gin.Context) {
	var body feedbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	feedback := models.Feedback{
		DiagnosisID: body.DiagnosisID,
		Helpful:     body.Helpful,
		Notes:       body.Notes,
	}
	if err := h.service.SubmitFeedback(c.Request.Context(), feedback); err != nil {
		h.logger.Error("feedback request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist feedback"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"diagnosisId": body.DiagnosisID, "accepted": true})
}
