package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"media-analyzer/internal/pipeline"
	"media-analyzer/internal/shared/server/middleware"
	"media-analyzer/internal/shared/server/respond"
	"media-analyzer/internal/tempfiles"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes. Intake middleware only guards POST /analyze.
func (h *Handler) RegisterRoutes(rg gin.IRouter, intake ...gin.HandlerFunc) {
	rg.POST("/analyze", append(intake, h.analyze)...)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

type analyzeRequest struct {
	FileID     string `json:"fileId"`
	AnalysisID string `json:"analysisId"`
	Filename   string `json:"filename"`
	IPFSHash   string `json:"ipfsHash"`
}

func (r analyzeRequest) id() string {
	if id := strings.TrimSpace(r.FileID); id != "" {
		return id
	}
	return strings.TrimSpace(r.AnalysisID)
}

func (h *Handler) analyze(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	var (
		job pipeline.AnalysisJob
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", []map[string]string{
				{"field": "file", "issue": "missing"},
			})
			return
		}
		analysisID := strings.TrimSpace(c.PostForm("fileId"))
		if analysisID == "" {
			analysisID = strings.TrimSpace(c.PostForm("analysisId"))
		}
		if analysisID == "" {
			analysisID = uuid.NewString()
		}
		f, ferr := fileHeader.Open()
		if ferr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unreadable upload", nil)
			return
		}
		defer f.Close()
		c.Set("analysisId", analysisID)
		job, err = h.Svc.SubmitUpload(ctx, analysisID, fileHeader.Filename, f)
	} else {
		var req analyzeRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "No data provided", nil)
			return
		}
		if req.id() == "" || strings.TrimSpace(req.Filename) == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "Missing required fields", []map[string]string{
				{"field": "fileId", "issue": "required"},
				{"field": "filename", "issue": "required"},
			})
			return
		}
		c.Set("analysisId", req.id())
		job, err = h.Svc.SubmitStaged(ctx, req.id(), req.Filename)
	}

	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrQueueFull):
			c.Header("Retry-After", "5")
			respond.Error(c, http.StatusServiceUnavailable, "queue_full", "analysis queue is full", nil)
		case errors.Is(err, pipeline.ErrQueueClosed):
			respond.Error(c, http.StatusServiceUnavailable, "shutting_down", "service is shutting down", nil)
		case errors.Is(err, tempfiles.ErrNotStaged):
			respond.Error(c, http.StatusNotFound, "not_found", "source file not staged", nil)
		case errors.Is(err, ErrAnalysisIDRequired), errors.Is(err, ErrSourceRequired):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to process analysis request", nil)
		}
		return
	}

	c.Set("statusTransition", "->queued")
	respond.JSON(c, http.StatusAccepted, gin.H{
		"success":    true,
		"message":    "Video queued for analysis",
		"file_id":    job.ID,
		"analysisId": job.ID,
		"runId":      job.RunID,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}
	c.Set("analysisId", analysisID)

	rec, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	records, err := h.Svc.List(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	if records == nil {
		records = []Record{}
	}
	respond.OK(c, gin.H{"items": records, "limit": limit})
}
