package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

// ScheduleHandler exposes student schedule endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// Get godoc
// @Summary A student's schedule
// @Tags Schedules
// @Produce json
// @Param code path string true "Student code"
// @Success 200 {object} response.Envelope
// @Router /schedules/{code} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.schedules.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Submit godoc
// @Summary Submit a course selection
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleSubmitRequest true "Selection"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Submit(c *gin.Context) {
	var req dto.ScheduleSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	schedule, err := h.schedules.Submit(c.Request.Context(), req.StudentCode, req.CourseCodes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Review godoc
// @Summary Accept or reject a submitted schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param code path string true "Student code"
// @Param payload body dto.ScheduleReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Router /schedules/{code}/review [post]
func (h *ScheduleHandler) Review(c *gin.Context) {
	var req dto.ScheduleReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	schedule, err := h.schedules.Review(c.Request.Context(), c.Param("code"), req.Accept, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Withdraw godoc
// @Summary Withdraw a schedule and release its seats
// @Tags Schedules
// @Produce json
// @Param code path string true "Student code"
// @Success 204
// @Router /schedules/{code} [delete]
func (h *ScheduleHandler) Withdraw(c *gin.Context) {
	if err := h.schedules.Withdraw(c.Request.Context(), c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
