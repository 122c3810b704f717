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

// ImportHandler exposes snapshot reconciliation endpoints.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Upload godoc
// @Summary Reconcile a CSV snapshot
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV snapshot"
// @Param entity formData string true "PERSONNEL | STUDENTS | COURSES"
// @Param program formData string false "Program scope"
// @Param async formData bool false "Queue instead of running inline"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	var req dto.ImportRequest
	req.Entity = strings.ToUpper(strings.TrimSpace(c.PostForm("entity")))
	req.Program = strings.TrimSpace(c.PostForm("program"))
	req.Async = c.PostForm("async") == "true"

	entity := models.ImportEntity(req.Entity)
	if !models.ValidImportEntity(entity) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "entity must be PERSONNEL, STUDENTS or COURSES"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload"))
		return
	}
	defer file.Close()

	header, rows, err := h.imports.ParseSnapshot(file)
	if err != nil {
		response.Error(c, err)
		return
	}

	input := service.ImportInput{
		Entity:  entity,
		Header:  header,
		Rows:    rows,
		Program: req.Program,
	}
	if claims := claimsFromContext(c); claims != nil {
		input.RequestedBy = claims.PersonCode
	}

	if req.Async {
		run, err := h.imports.Enqueue(c.Request.Context(), input)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, run)
		return
	}

	summary, err := h.imports.RunSync(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// GetRun godoc
// @Summary Import run status
// @Tags Imports
// @Produce json
// @Param id path string true "Run id"
// @Success 200 {object} response.Envelope
// @Router /imports/runs/{id} [get]
func (h *ImportHandler) GetRun(c *gin.Context) {
	run, err := h.imports.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ListRuns godoc
// @Summary Recent import runs
// @Tags Imports
// @Produce json
// @Param limit query int false "Max runs"
// @Success 200 {object} response.Envelope
// @Router /imports/runs [get]
func (h *ImportHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.imports.ListRuns(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"pending": h.imports.Pending()}
	response.JSON(c, http.StatusOK, runs, nil, meta)
}
