package model

import (
	errx "github.com/docsmith-core/server/internal/core/error"
)

// ToolStatus is the binary outcome of a flow-executing operation.
type ToolStatus string

const (
	StatusSuccess ToolStatus = "success"
	StatusError   ToolStatus = "error"
)

// ToolResponse is the contract every side-effecting flow operation returns.
// Consumers branch only on Status; Message is for humans, ErrorCode for
// machines.
type ToolResponse struct {
	Status    ToolStatus     `json:"status"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	ErrorCode errx.Code      `json:"error_code,omitempty"`
}

// SuccessResponse builds a success ToolResponse.
func SuccessResponse(message string, data map[string]any) *ToolResponse {
	return &ToolResponse{Status: StatusSuccess, Message: message, Data: data}
}

// ErrorResponse builds an error ToolResponse with a machine code.
func ErrorResponse(message string, code errx.Code) *ToolResponse {
	if code == "" {
		code = errx.CodeUnknownError
	}
	return &ToolResponse{Status: StatusError, Message: message, ErrorCode: code}
}

// ErrorResponseFrom converts a collaborator error into an error ToolResponse,
// preserving the machine code from the errx chain when present.
func ErrorResponseFrom(message string, err error) *ToolResponse {
	return &ToolResponse{Status: StatusError, Message: message, ErrorCode: errx.CodeOf(err)}
}

// DocumentID returns the generated document reference from Data, if any.
func (r *ToolResponse) DocumentID() string {
	if r == nil || r.Data == nil {
		return ""
	}
	if id, ok := r.Data["document_id"].(string); ok {
		return id
	}
	return ""
}
