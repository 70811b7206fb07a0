package handler

import (
	"time"

	"github.com/yndnr/meshtls/internal/core/credential"
	"github.com/yndnr/meshtls/internal/core/reload"
	"github.com/yndnr/meshtls/internal/infra/buildinfo"
)

// Response is the standard API response envelope.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// HealthResponse is the body of GET /healthz and GET /readyz.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the data of GET /admin/v1/status.
type StatusResponse struct {
	Bundle *credential.Summary `json:"bundle,omitempty" yaml:"bundle,omitempty"`
	Reload reload.Stats        `json:"reload" yaml:"reload"`
	Build  buildinfo.Info      `json:"build" yaml:"build"`
	Uptime string              `json:"uptime" yaml:"uptime"`
}

// ReloadResponse is the data of POST /admin/v1/reload.
type ReloadResponse struct {
	// Queued is true when the reload was only requested.
	Queued bool                `json:"queued" yaml:"queued"`
	Bundle *credential.Summary `json:"bundle,omitempty" yaml:"bundle,omitempty"`
}

// ReloadFailure is the details of a failed synchronous reload.
type ReloadFailure struct {
	Reason         string `json:"reason"`
	ActiveBundleID string `json:"active_bundle_id,omitempty"`
}

// LogLevel is the body of PUT /admin/v1/log-level and the data of both
// log-level routes.
type LogLevel struct {
	Level string `json:"level" yaml:"level"`
}
