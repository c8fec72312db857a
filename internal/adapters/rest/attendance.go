package rest

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/attendance"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/logger"
)

type attendanceHandler struct {
	svc job.UseCase
	log *zap.Logger
}

type markAttendanceRequest struct {
	Code string `json:"code" binding:"required"`
}

type markAttendanceResponse struct {
	JobID    string `json:"jobId"`
	PersonID string `json:"personId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
}

type dailyResponse struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

type attendanceResponse struct {
	JobID      string          `json:"jobId"`
	PersonID   string          `json:"personId"`
	State      string          `json:"state"`
	Attendance []dailyResponse `json:"attendance"`
	Present    int             `json:"present"`
	Late       int             `json:"late"`
	Absent     int             `json:"absent"`
}

// markAttendance は QR コードで本日の出勤を記録します。
func (h *attendanceHandler) markAttendance(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())

	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	result, err := h.svc.MarkAttendance(c.Request.Context(), job.MarkAttendanceInput{
		PersonID: id.UserID,
		JobID:    c.Param("jobID"),
		Code:     req.Code,
	})
	if err != nil {
		h.fail(c, "mark_attendance", err)
		return
	}

	c.JSON(http.StatusOK, markAttendanceResponse{
		JobID:    result.JobID,
		PersonID: result.PersonID,
		Date:     attendance.FormatDate(result.Date),
		Status:   string(result.Status),
	})
}

// getAttendance は出勤記録を返します。personId を省略すると呼び出し元の記録です。
func (h *attendanceHandler) getAttendance(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())
	personID := strings.TrimSpace(c.Query("personId"))
	if personID == "" {
		personID = id.UserID
	}

	report, err := h.svc.GetAttendance(c.Request.Context(), job.GetAttendanceInput{
		ActorID:  id.UserID,
		JobID:    c.Param("jobID"),
		PersonID: personID,
	})
	if err != nil {
		h.fail(c, "get_attendance", err)
		return
	}

	resp := attendanceResponse{
		JobID:      report.Employee.JobID,
		PersonID:   report.Employee.PersonID,
		State:      string(report.Employee.State),
		Attendance: make([]dailyResponse, 0, len(report.Employee.Attendance)),
		Present:    report.Summary.Present,
		Late:       report.Summary.Late,
		Absent:     report.Summary.Absent,
	}
	for _, d := range report.Employee.Attendance {
		resp.Attendance = append(resp.Attendance, dailyResponse{Date: attendance.FormatDate(d.Date), Status: string(d.Status)})
	}
	c.JSON(http.StatusOK, resp)
}

// attendanceCode は QR 表示用の出勤コードを返します。
func (h *attendanceHandler) attendanceCode(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())

	code, err := h.svc.AttendanceCode(c.Request.Context(), id.UserID, c.Param("jobID"))
	if err != nil {
		h.fail(c, "attendance_code", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *attendanceHandler) fail(c *gin.Context, op string, err error) {
	code := httpStatus(err)
	msg := job.UserMessage(err)
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String(logger.FieldOperation, op),
			zap.String(logger.FieldJobID, c.Param("jobID")),
			zap.Error(err),
		)
	}
	c.JSON(code, gin.H{"error": msg})
}

func httpStatus(err error) int {
	switch {
	case errors.IsAny(err, job.ErrInvalidArgument, job.ErrInvalidDateRange, job.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.IsAny(err, job.ErrForbidden, job.ErrInvalidCode):
		return http.StatusForbidden
	case errors.IsAny(err, job.ErrAlreadyExists, job.ErrInvalidTransition, job.ErrSalaryAlreadyClaimed, job.ErrHeadcountExceeded):
		return http.StatusConflict
	case errors.Is(err, job.ErrRemoteFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
