package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/reno-purchases/internal/application/service"
	"github.com/garyjia/reno-purchases/internal/container"
	"github.com/garyjia/reno-purchases/internal/domain/entity"
)

// maxUploadBytes bounds a single attachment upload
const maxUploadBytes = 20 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	projects     service.ProjectService
	attachments  service.AttachmentService
	invoices     service.InvoiceService
	confirmation service.ConfirmationService
	ledger       service.LedgerService
	health       HealthChecker
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *container.ServiceBundle, health HealthChecker, logger *zap.Logger) *Handlers {
	return &Handlers{
		projects:     services.Project,
		attachments:  services.Attachment,
		invoices:     services.Invoice,
		confirmation: services.Confirmation,
		ledger:       services.Ledger,
		health:       health,
		logger:       logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                               `json:"status"`
	Timestamp  string                               `json:"timestamp"`
	Components map[string]container.ComponentHealth `json:"components,omitempty"`
}

// CreateProjectRequest is the body of POST /projects
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// ExtractInvoiceRequest is the body of POST /invoices/extract
type ExtractInvoiceRequest struct {
	AttachmentID string `json:"attachmentId"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		report := h.health.Health(c.Request.Context())
		resp.Components = report.Components
		if !report.Overall {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: resp})
}

// CreateProject handles POST /api/v1/projects
func (h *Handlers) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	project, err := h.projects.CreateProject(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, "Create project", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: project})
}

// GetProject handles GET /api/v1/projects/:projectId
func (h *Handlers) GetProject(c *gin.Context) {
	project, err := h.projects.GetProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		h.fail(c, "Get project", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: project})
}

// CreateMaterial handles POST /api/v1/projects/:projectId/materials
func (h *Handlers) CreateMaterial(c *gin.Context) {
	var req service.CreateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	material, err := h.projects.CreateMaterial(c.Request.Context(), c.Param("projectId"), req)
	if err != nil {
		h.fail(c, "Create material", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: material})
}

// ListMaterials handles GET /api/v1/projects/:projectId/materials
func (h *Handlers) ListMaterials(c *gin.Context) {
	materials, err := h.projects.ListMaterials(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		h.fail(c, "List materials", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: materials})
}

// UploadAttachment handles multipart POST /api/v1/projects/:projectId/attachments
// with fields file, category and title.
func (h *Handlers) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		badRequest(c, fmt.Sprintf("file exceeds %d bytes", maxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, "Open upload", err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		h.fail(c, "Read upload", err)
		return
	}

	att, err := h.attachments.Upload(c.Request.Context(), c.Param("projectId"), service.UploadRequest{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Category: c.PostForm("category"),
		Title:    c.PostForm("title"),
		Content:  content,
	})
	if err != nil {
		h.fail(c, "Upload attachment", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: att})
}

// GetAttachment handles GET /api/v1/projects/:projectId/attachments/:attachmentId
func (h *Handlers) GetAttachment(c *gin.Context) {
	att, err := h.attachments.Get(c.Request.Context(), c.Param("projectId"), c.Param("attachmentId"))
	if err != nil {
		h.fail(c, "Get attachment", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: att})
}

// ExtractInvoice handles POST /api/v1/projects/:projectId/invoices/extract
func (h *Handlers) ExtractInvoice(c *gin.Context) {
	var req ExtractInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AttachmentID == "" {
		badRequest(c, "attachmentId is required")
		return
	}

	invoice, err := h.invoices.CreateFromExtraction(c.Request.Context(), c.Param("projectId"), req.AttachmentID,
		service.ExtractOptions{Provider: req.Provider, Model: req.Model})
	if err != nil {
		h.fail(c, "Extract invoice", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: invoice})
}

// ListInvoices handles GET /api/v1/projects/:projectId/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	invoices, err := h.invoices.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		h.fail(c, "List invoices", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoices})
}

// GetInvoice handles GET /api/v1/projects/:projectId/invoices/:invoiceId
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, err := h.invoices.Get(c.Request.Context(), c.Param("projectId"), c.Param("invoiceId"))
	if err != nil {
		h.fail(c, "Get invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// UpdateInvoice handles PUT /api/v1/projects/:projectId/invoices/:invoiceId
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var update service.InvoiceUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "invalid invoice document")
		return
	}

	invoice, err := h.invoices.Update(c.Request.Context(), c.Param("projectId"), c.Param("invoiceId"), update)
	if err != nil {
		h.fail(c, "Update invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// DeleteInvoice handles DELETE /api/v1/projects/:projectId/invoices/:invoiceId
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.invoices.Delete(c.Request.Context(), c.Param("projectId"), c.Param("invoiceId")); err != nil {
		h.fail(c, "Delete invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ForceSecondPass handles POST /api/v1/projects/:projectId/invoices/:invoiceId/second-pass
func (h *Handlers) ForceSecondPass(c *gin.Context) {
	invoice, err := h.invoices.ForceSecondPass(c.Request.Context(), c.Param("projectId"), c.Param("invoiceId"))
	if err != nil {
		h.fail(c, "Force second pass", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// ConfirmInvoice handles POST /api/v1/projects/:projectId/invoices/:invoiceId/confirm.
// The body is optional; without it no override is requested.
func (h *Handlers) ConfirmInvoice(c *gin.Context) {
	var review entity.InvoiceReview
	if err := c.ShouldBindJSON(&review); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid review body")
		return
	}

	invoice, err := h.confirmation.Confirm(c.Request.Context(), c.Param("projectId"), c.Param("invoiceId"), review)
	if err != nil {
		h.fail(c, "Confirm invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// ListLedger handles GET /api/v1/projects/:projectId/ledger?invoiceId=
func (h *Handlers) ListLedger(c *gin.Context) {
	entries, err := h.ledger.List(c.Request.Context(), c.Param("projectId"), c.Query("invoiceId"))
	if err != nil {
		h.fail(c, "List ledger", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ExportLedger handles GET /api/v1/projects/:projectId/ledger/export
func (h *Handlers) ExportLedger(c *gin.Context) {
	projectID := c.Param("projectId")
	content, err := h.ledger.ExportXLSX(c.Request.Context(), projectID)
	if err != nil {
		h.fail(c, "Export ledger", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%s.xlsx"`, projectID))
	c.Data(http.StatusOK, xlsxContentType, content)
}
