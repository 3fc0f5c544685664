package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-specform/internal/convert"
	specerrors "github.com/a3tai/mcp-specform/internal/errors"
	"github.com/a3tai/mcp-specform/internal/rules"
)

// uploadOverhead covers multipart framing and the text fields
const uploadOverhead = 1 << 20

// Handler holds the dependencies shared by all HTTP handlers
type Handler struct {
	service     *convert.Service
	version     string
	maxFileSize int64
}

// NewHandler creates a handler backed by service
func NewHandler(service *convert.Service, version string, maxFileSize int64) *Handler {
	return &Handler{
		service:     service,
		version:     version,
		maxFileSize: maxFileSize,
	}
}

// Convert fills the template from an uploaded PDF and returns the document.
// POST /api/v1/convert
//
// Multipart fields: file (the PDF), product_name, mode.
func (h *Handler) Convert(c *gin.Context) {
	req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.service.Convert(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	log.Printf("[%s] converted %s document for %q (%d bytes)",
		req.ID, result.Resolution.Mode, result.Fields[rules.FieldProduct], len(result.Data))

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.FileName}))
	c.Data(http.StatusOK, result.MIMEType, result.Data)
}

// Preview resolves the fields of an uploaded PDF without filling the template.
// POST /api/v1/preview
func (h *Handler) Preview(c *gin.Context) {
	req, err := h.readRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{RequestID: req.ID, PreviewResult: result})
}

// Modes lists the modes the active variant supports.
// GET /api/v1/modes
func (h *Handler) Modes(c *gin.Context) {
	modes := make([]string, 0, len(h.service.Modes()))
	for _, m := range h.service.Modes() {
		modes = append(modes, string(m))
	}
	sort.Strings(modes)

	c.JSON(http.StatusOK, ModesResponse{
		Variant:      h.service.Variant(),
		Strategy:     string(h.service.Strategy()),
		RulesVersion: h.service.RulesVersion(),
		Modes:        modes,
	})
}

// HealthCheck reports the API status and template availability.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Variant:  h.service.Variant(),
		Template: "available",
	}
	status := http.StatusOK
	if err := h.service.CheckTemplate(); err != nil {
		resp.Status = "degraded"
		resp.Template = "unavailable: " + specerrors.Normalize(err).Message
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

// readRequest reads the multipart form into a conversion request
func (h *Handler) readRequest(c *gin.Context) (convert.Request, error) {
	req := convert.Request{ID: RequestID(c)}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+uploadOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, specerrors.NewMissingInput(fmt.Sprintf("upload exceeds the maximum size of %d bytes", h.maxFileSize))
		}
		return req, specerrors.NewMissingInput("no PDF file was provided")
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		return req, specerrors.NewMissingInput("only .pdf files are accepted").WithContext(header.Filename)
	}

	req.PDF, err = io.ReadAll(file)
	if err != nil {
		return req, specerrors.NewMissingInput("failed to read uploaded file")
	}
	req.ProductName = c.Request.FormValue("product_name")
	req.Mode = strings.ToUpper(strings.TrimSpace(c.Request.FormValue("mode")))
	return req, nil
}

// fail writes err as an ErrorResponse with the status of its kind
func (h *Handler) fail(c *gin.Context, err error) {
	ce := specerrors.Normalize(err)
	code := StatusCode(ce.Kind)
	if code >= http.StatusInternalServerError {
		log.Printf("[%s] request failed: %v", RequestID(c), err)
	}

	c.JSON(code, ErrorResponse{
		Error:     strings.ToLower(ce.Kind.String()),
		Message:   ce.Message,
		Hint:      ce.Hint,
		Field:     ce.Field,
		Context:   ce.Context,
		Code:      code,
		RequestID: RequestID(c),
	})
}

// StatusCode maps an error kind to its HTTP status
func StatusCode(kind specerrors.ErrorKind) int {
	switch kind {
	case specerrors.KindMissingInput:
		return http.StatusBadRequest
	case specerrors.KindExtractionFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
