package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/feedback"
	"github.com/thyroid-risk-assessor/internal/middleware"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var errFeedbackDisabled = domain.NewAPIError(domain.ErrServiceUnavailable, "feedback store is not configured", "", "")

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"model_version":    s.deps.Schema.ModelVersion,
		"feedback_enabled": s.deps.Feedback != nil,
		"uptime":           time.Since(s.started).Round(time.Second).String(),
		"timestamp":        time.Now().UTC(),
	})
}

// handleSchema returns the accepted patient attributes
func (s *Server) handleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Schema)
}

// handleAssess validates a patient record and returns its assessment report
func (s *Server) handleAssess(c *gin.Context) {
	patient, err := s.deps.Parser.ParseJSON(c.Request.Body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	report, err := s.deps.Assessor.Assess(c.Request.Context(), patient)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

type feedbackRequest struct {
	AssessmentID       string  `json:"assessment_id" binding:"required"`
	ModelVersion       string  `json:"model_version"`
	SuggestedDiagnosis string  `json:"suggested_diagnosis" binding:"required"`
	Confidence         float64 `json:"confidence" binding:"gte=0,lte=1"`
	PhenotypeID        int     `json:"phenotype_id" binding:"gte=0"`
	ClinicianDiagnosis string  `json:"clinician_diagnosis" binding:"required"`
	Notes              string  `json:"notes" binding:"max=2000"`
}

// handleSubmitFeedback records a clinician's review of an assessment
func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		s.writeError(c, errFeedbackDisabled)
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeError(c, err)
			return
		}
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	fb := &feedback.Feedback{
		AssessmentID:       req.AssessmentID,
		ModelVersion:       req.ModelVersion,
		SuggestedDiagnosis: req.SuggestedDiagnosis,
		Confidence:         req.Confidence,
		PhenotypeID:        req.PhenotypeID,
		ClinicianDiagnosis: req.ClinicianDiagnosis,
		Notes:              req.Notes,
	}
	if err := s.deps.Feedback.Save(c.Request.Context(), fb); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, fb)
}

// handleListFeedback pages through recorded feedback, newest first
func (s *Server) handleListFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		s.writeError(c, errFeedbackDisabled)
		return
	}

	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	entries, err := s.deps.Feedback.List(ctx, limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.deps.Feedback.Count(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}

	c.JSON(http.StatusOK, gin.H{
		"feedback": entries,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleExportFeedback streams every feedback entry in the export format
func (s *Server) handleExportFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		s.writeError(c, errFeedbackDisabled)
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="feedback-export.json"`)
	c.Status(http.StatusOK)
	if err := s.deps.Feedback.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationKey)).
			Error("Feedback export failed")
	}
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return n, nil
}

// writeError renders err as an APIError envelope. Details are only exposed for caller errors.
func (s *Server) writeError(c *gin.Context, err error) {
	code, status := domain.Classify(err)
	requestID := c.GetString(middleware.CorrelationKey)

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		out := *apiErr
		out.RequestID = requestID
		out.Timestamp = time.Now().UTC()
		c.AbortWithStatusJSON(status, gin.H{"error": &out})
		return
	}

	details := ""
	if status < http.StatusInternalServerError {
		details = err.Error()
	} else {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": requestID,
			"code":           code,
		}).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, gin.H{"error": domain.NewAPIError(code, messageFor(code), details, requestID)})
}

func messageFor(code string) string {
	switch code {
	case domain.ErrValidation:
		return "invalid request"
	case domain.ErrModelInference:
		return "model inference failed"
	case domain.ErrConsistency:
		return "model artifacts are inconsistent"
	case domain.ErrRequestCancellation:
		return "request cancelled"
	case domain.ErrPayloadTooLarge:
		return "request body too large"
	default:
		return "internal server error"
	}
}
