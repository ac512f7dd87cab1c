package mcp

import (
	"fmt"

	lrerrors "github.com/localrag/localrag/internal/errors"
)

// JSON-RPC error codes used by the MCP tools.
const (
	ErrCodeFileNotFound    = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeInvalidParams   = -32602
	ErrCodeInternalError   = -32603
)

// MCPError is a protocol error with a JSON-RPC code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds an invalid-params protocol error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError translates internal errors into MCP protocol errors.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var coded *lrerrors.Error
	if !lrerrors.As(err, &coded) {
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}

	switch coded.Code {
	case lrerrors.ErrCodeFileNotFound, lrerrors.ErrCodeChunkNotFound:
		return &MCPError{Code: ErrCodeFileNotFound, Message: coded.Message}
	case lrerrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: coded.Message}
	case lrerrors.ErrCodeEmbedTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: coded.Message}
	case lrerrors.ErrCodeEmbedUnavailable:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: coded.Message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: coded.Message}
	}
}
