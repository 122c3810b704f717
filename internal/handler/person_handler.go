package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

// PersonHandler exposes personnel endpoints.
type PersonHandler struct {
	persons *service.PersonService
}

// NewPersonHandler constructs PersonHandler.
func NewPersonHandler(persons *service.PersonService) *PersonHandler {
	return &PersonHandler{persons: persons}
}

// List godoc
// @Summary List personnel
// @Tags Personnel
// @Produce json
// @Param search query string false "Search by name or code"
// @Param role query string false "Filter by role tag"
// @Param program query string false "Filter by program"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /personnel [get]
func (h *PersonHandler) List(c *gin.Context) {
	var filter models.PersonFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Role = models.RoleTag(strings.ToUpper(c.Query("role")))
	filter.Program = c.Query("program")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	persons, total, err := h.persons.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, persons, pagination)
}

// Get godoc
// @Summary Personnel detail with role records
// @Tags Personnel
// @Produce json
// @Param code path string true "External code"
// @Success 200 {object} response.Envelope
// @Router /personnel/{code} [get]
func (h *PersonHandler) Get(c *gin.Context) {
	detail, err := h.persons.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Upsert godoc
// @Summary Create or update one personnel account
// @Tags Personnel
// @Accept json
// @Produce json
// @Param payload body dto.PersonUpsertRequest true "Personnel payload"
// @Success 200 {object} response.Envelope
// @Router /personnel [put]
func (h *PersonHandler) Upsert(c *gin.Context) {
	var req dto.PersonUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	detail, err := h.persons.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete one personnel account
// @Tags Personnel
// @Produce json
// @Param code path string true "External code"
// @Param program query string false "Restrict removal to one program"
// @Success 204
// @Router /personnel/{code} [delete]
func (h *PersonHandler) Delete(c *gin.Context) {
	if err := h.persons.Delete(c.Request.Context(), c.Param("code"), c.Query("program")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
