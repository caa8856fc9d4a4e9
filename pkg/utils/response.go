package utils

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/frostdev-ops/alert-engine/pkg/errors"
)

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
	Meta      interface{} `json:"meta,omitempty"`
}

// ErrorResponse represents an error response with request context
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	Code      int         `json:"code"`
	Timestamp string      `json:"timestamp"`
	Request   RequestInfo `json:"request"`
	Details   interface{} `json:"details,omitempty"`
}

// RequestInfo provides context about the failed request
type RequestInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *gin.Context, data interface{}) {
	SendStatus(c, http.StatusOK, data)
}

// SendStatus sends a successful response with an explicit status code
func SendStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendSuccessWithMeta sends a successful response with metadata
func SendSuccessWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Meta:      meta,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendError sends an error response with request context
func SendError(c *gin.Context, statusCode int, message string) {
	sendError(c, statusCode, message, nil)
}

// SendAppError maps err onto an API error and sends it
func SendAppError(c *gin.Context, err error) {
	appErr := apperrors.FromDomain(err)
	var details interface{}
	if appErr.Details != "" {
		details = appErr.Details
	}
	sendError(c, appErr.Code, appErr.Message, details)
}

func sendError(c *gin.Context, statusCode int, message string, details interface{}) {
	errorResponse := ErrorResponse{
		Success:   false,
		Error:     message,
		Code:      statusCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Request: RequestInfo{
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Query:  c.Request.URL.RawQuery,
		},
		Details: details,
	}

	if statusCode == http.StatusNotFound && details == nil {
		if suggestions := notFoundSuggestions(c.Request.URL.Path); len(suggestions) > 0 {
			errorResponse.Details = map[string]interface{}{
				"suggestions": suggestions,
			}
		}
	}

	c.JSON(statusCode, errorResponse)
}

var knownEndpoints = []string{
	"/health",
	"/metrics",
	"/ws",
	"/api/v1/rules",
	"/api/v1/alerts",
	"/api/v1/alerts/active",
	"/api/v1/alerts/history",
	"/api/v1/alerts/metrics",
	"/api/v1/suppressions",
	"/api/v1/incidents",
	"/api/v1/metrics/samples",
}

// notFoundSuggestions lists known endpoints sharing a path segment with path
func notFoundSuggestions(path string) []string {
	var segments []string
	for _, s := range strings.Split(strings.ToLower(path), "/") {
		if s != "" && s != "api" && s != "v1" {
			segments = append(segments, strings.TrimSuffix(s, "s"))
		}
	}

	var out []string
	for _, endpoint := range knownEndpoints {
		for _, s := range segments {
			if strings.Contains(endpoint, s) {
				out = append(out, endpoint)
				break
			}
		}
		if len(out) == 5 {
			break
		}
	}
	return out
}
