package httpapi

import (
	"github.com/a3tai/mcp-specform/internal/convert"
)

// ErrorResponse is the error format for every API failure
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Field     string `json:"field,omitempty"`
	Context   string `json:"context,omitempty"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by the health check endpoint
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Variant  string `json:"variant"`
	Template string `json:"template"`
}

// ModesResponse lists the modes of the active variant
type ModesResponse struct {
	Variant      string   `json:"variant"`
	Strategy     string   `json:"strategy"`
	RulesVersion int      `json:"rules_version"`
	Modes        []string `json:"modes"`
}

// PreviewResponse is a field mapping resolved without a template
type PreviewResponse struct {
	RequestID string `json:"request_id"`
	*convert.PreviewResult
}
