package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

// ExportHandler exposes snapshot export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Personnel godoc
// @Summary Export the personnel snapshot as CSV
// @Tags Exports
// @Produce text/csv
// @Param program query string false "Program scope"
// @Success 200 {string} string "CSV"
// @Router /exports/personnel [get]
func (h *ExportHandler) Personnel(c *gin.Context) {
	data, err := h.exports.PersonnelCSV(c.Request.Context(), c.Query("program"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "personnel.csv", data)
}

// Students godoc
// @Summary Export the student snapshot as CSV
// @Tags Exports
// @Produce text/csv
// @Param program query string false "Program scope"
// @Success 200 {string} string "CSV"
// @Router /exports/students [get]
func (h *ExportHandler) Students(c *gin.Context) {
	data, err := h.exports.StudentsCSV(c.Request.Context(), c.Query("program"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "students.csv", data)
}

// Courses godoc
// @Summary Export the course snapshot as CSV
// @Tags Exports
// @Produce text/csv
// @Param program query string false "Program scope"
// @Success 200 {string} string "CSV"
// @Router /exports/courses [get]
func (h *ExportHandler) Courses(c *gin.Context) {
	data, err := h.exports.CoursesCSV(c.Request.Context(), c.Query("program"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "courses.csv", data)
}

// SchedulePDF godoc
// @Summary Export a student's schedule as PDF
// @Tags Exports
// @Produce application/pdf
// @Param code path string true "Student code"
// @Success 200 {string} string "PDF"
// @Router /exports/schedules/{code} [get]
func (h *ExportHandler) SchedulePDF(c *gin.Context) {
	data, err := h.exports.SchedulePDF(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="schedule.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func serveCSV(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}
