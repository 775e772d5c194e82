package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushub/campushub-api/internal/middleware"
	"github.com/campushub/campushub-api/internal/models"
	"github.com/campushub/campushub-api/internal/service"
	appErrors "github.com/campushub/campushub-api/pkg/errors"
	"github.com/campushub/campushub-api/pkg/export"
	"github.com/campushub/campushub-api/pkg/response"
)

// GradeHandler exposes grade CRUD and report export endpoints.
type GradeHandler struct {
	service *service.GradeService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewGradeHandler creates a new handler.
func NewGradeHandler(svc *service.GradeService) *GradeHandler {
	return &GradeHandler{service: svc, csv: export.NewCSVExporter(), pdf: export.NewPDFExporter()}
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Filter by student"
// @Param subject query string false "Filter by subject"
// @Param term query string false "Filter by term"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		StudentID: c.Query("student_id"),
		Subject:   c.Query("subject"),
		Term:      c.Query("term"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
	}

	grades, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Get returns one grade entry.
func (h *GradeHandler) Get(c *gin.Context) {
	grade, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Create godoc
// @Summary Record a grade
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	var req models.CreateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	identity := middleware.Identity(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grade, err := h.service.Create(c.Request.Context(), req, identity.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Update adjusts score, weight or remarks on an entry.
func (h *GradeHandler) Update(c *gin.Context) {
	var req models.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	grade, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete removes an entry.
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Weighted grade averages
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param term query string false "Term"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{studentId}/summary [get]
func (h *GradeHandler) Summary(c *gin.Context) {
	summaries, err := h.service.Summary(c.Request.Context(), c.Param("studentId"), c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Report godoc
// @Summary Export a report card
// @Description Render the student's weighted averages as CSV or PDF
// @Tags Grades
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param term query string false "Term"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /grades/students/{studentId}/report [get]
func (h *GradeHandler) Report(c *gin.Context) {
	dataset, err := h.service.Report(c.Request.Context(), c.Param("studentId"), c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}

	serveDataset(c, dataset, h.csv, h.pdf, fmt.Sprintf("report-%s", c.Param("studentId")))
}

func serveDataset(c *gin.Context, dataset *export.Dataset, csv *export.CSVExporter, pdf *export.PDFExporter, filename string) {
	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, err := pdf.Render(*dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".pdf"))
		c.Data(http.StatusOK, "application/pdf", payload)
	case "csv":
		payload, err := csv.Render(*dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		c.Data(http.StatusOK, "text/csv", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
