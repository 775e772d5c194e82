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

// FinanceHandler exposes invoice and payment endpoints.
type FinanceHandler struct {
	service *service.FinanceService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewFinanceHandler creates a new handler.
func NewFinanceHandler(svc *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{service: svc, csv: export.NewCSVExporter(), pdf: export.NewPDFExporter()}
}

// Create godoc
// @Summary Post an invoice or payment
// @Tags Finance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateFinanceRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Router /finance [post]
func (h *FinanceHandler) Create(c *gin.Context) {
	identity := middleware.Identity(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateFinanceRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	record, err := h.service.Create(c.Request.Context(), req, identity.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List finance records
// @Tags Finance
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Filter by student"
// @Param type query string false "INVOICE or PAYMENT"
// @Param unpaid query bool false "Open invoices only"
// @Success 200 {object} response.Envelope
// @Router /finance [get]
func (h *FinanceHandler) List(c *gin.Context) {
	filter := models.FinanceFilter{
		StudentID: c.Query("student_id"),
		Unpaid:    c.Query("unpaid") == "true",
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
	}
	if recordType := c.Query("type"); recordType != "" {
		t := models.FinanceRecordType(recordType)
		filter.Type = &t
	}

	records, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get returns one finance record.
func (h *FinanceHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MarkPaid settles an open invoice.
func (h *FinanceHandler) MarkPaid(c *gin.Context) {
	record, err := h.service.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Summary godoc
// @Summary Outstanding balance
// @Tags Finance
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /finance/students/{studentId}/summary [get]
func (h *FinanceHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Statement godoc
// @Summary Export an account statement
// @Tags Finance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /finance/students/{studentId}/statement [get]
func (h *FinanceHandler) Statement(c *gin.Context) {
	dataset, err := h.service.Statement(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	serveDataset(c, dataset, h.csv, h.pdf, fmt.Sprintf("statement-%s", c.Param("studentId")))
}
