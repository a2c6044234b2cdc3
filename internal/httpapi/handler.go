package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RamyaDR2005/Placement-PROJECT/internal/attendance"
	"github.com/RamyaDR2005/Placement-PROJECT/internal/auth"
)

// Handler exposes the attendance subsystem over HTTP.
type Handler struct {
	svc *attendance.Service
}

// New creates a handler.
func New(svc *attendance.Service) *Handler {
	return &Handler{svc: svc}
}

// ---------- Round status ----------

// RoundStatus returns the per-round status projection for the
// authenticated student, with a fresh QR token on every ACTIVE round.
func (h *Handler) RoundStatus(c *gin.Context) {
	claims, ok := auth.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	jobID := c.Param("jobID")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id required"})
		return
	}

	views, err := h.svc.RoundStatuses(c.Request.Context(), claims.Subject, jobID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "status resolution failed"})
		return
	}

	out := make([]gin.H, 0, len(views))
	for _, v := range views {
		row := gin.H{
			"roundId":    v.Round.ID,
			"roundName":  v.Round.Name,
			"roundOrder": v.Round.Order,
			"status":     v.Status,
		}
		if v.QRToken != "" {
			row["qrToken"] = v.QRToken
		}
		if v.Attendance != nil {
			row["attendance"] = gin.H{
				"markedAt": v.Attendance.MarkedAt,
				"outcome":  v.Attendance.Outcome,
			}
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, gin.H{"rounds": out})
}

// ---------- Scan ----------

type scanRequest struct {
	QRPayload string `json:"qrPayload" binding:"required"`
	JobID     string `json:"jobId"`
	Location  string `json:"location"`
}

// Scan accepts a decoded QR payload from an operator device.
func (h *Handler) Scan(c *gin.Context) {
	claims, ok := auth.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Scan(c.Request.Context(), attendance.OperatorRef{ID: claims.Subject}, attendance.ScanInput{
		QRPayload: req.QRPayload,
		JobFilter: req.JobID,
		Location:  req.Location,
	})
	if err != nil {
		h.writeScanError(c, err)
		return
	}
	h.writeScanResult(c, res)
}

// ---------- Confirm ----------

type confirmRequest struct {
	StudentID string  `json:"studentId" binding:"required"`
	JobID     string  `json:"jobId" binding:"required"`
	RoundID   *string `json:"roundId"`
	Location  string  `json:"location"`
}

// Confirm completes a two-phase scan with the tuple returned by a
// confirmation-required response.
func (h *Handler) Confirm(c *gin.Context) {
	claims, ok := auth.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Confirm(c.Request.Context(), attendance.OperatorRef{ID: claims.Subject}, attendance.ConfirmInput{
		StudentID: req.StudentID,
		JobID:     req.JobID,
		RoundID:   req.RoundID,
		Location:  req.Location,
	})
	if err != nil {
		h.writeScanError(c, err)
		return
	}
	if res.AlreadyAttended {
		h.writeScanResult(c, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Attendance confirmed",
		"markedAt": res.ScannedAt,
		"student":  res.Student,
		"job":      res.Job,
		"round":    res.Round,
	})
}

// ---------- Outcome ----------

type outcomeRequest struct {
	StudentID string  `json:"studentId" binding:"required"`
	JobID     string  `json:"jobId" binding:"required"`
	RoundID   *string `json:"roundId"`
	Outcome   string  `json:"outcome" binding:"required"`
}

// Outcome records passed/failed on an existing attendance record.
func (h *Handler) Outcome(c *gin.Context) {
	claims, ok := auth.Identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.SetOutcome(c.Request.Context(), attendance.OperatorRef{ID: claims.Subject}, req.StudentID, req.JobID, req.RoundID, req.Outcome)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, attendance.ErrInvalidOutcome):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNoAttendance):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "outcome write failed"})
	}
}

// ---------- Shared response shaping ----------

func (h *Handler) writeScanResult(c *gin.Context, res attendance.ScanResult) {
	if res.RequireConfirmation {
		c.JSON(http.StatusOK, gin.H{
			"success":             true,
			"requireConfirmation": true,
			"message":             "Confirm identity before marking attendance",
			"candidate":           res.Candidate,
			"student":             res.Student,
			"job":                 res.Job,
			"round":               res.Round,
		})
		return
	}
	if res.AlreadyAttended {
		c.JSON(http.StatusConflict, gin.H{
			"success":         false,
			"alreadyAttended": true,
			"message":         "Attendance already recorded",
			"student":         res.Student,
			"job":             res.Job,
			"round":           res.Round,
			"scannedAt":       res.ScannedAt,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Attendance recorded successfully",
		"student":   res.Student,
		"job":       res.Job,
		"round":     res.Round,
		"scannedAt": res.ScannedAt,
	})
}

func (h *Handler) writeScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidPayload), errors.Is(err, attendance.ErrLegacyDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrExpiredToken):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrUnknownQR):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrJobMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "this application is for a different job, re-scan under the correct filter"})
	case errors.Is(err, attendance.ErrRoundMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// Transient storage failure; eligible for operator retry,
		// never reported as a conflict.
		c.JSON(http.StatusBadGateway, gin.H{"error": "attendance store unavailable, retry"})
	}
}
