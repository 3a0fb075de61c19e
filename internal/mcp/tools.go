package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/lexcite/internal/indexer"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeRunInProgress   = -32002 // Another pipeline run is already active
	ErrorCodeValidationError = -32005 // Validation could not read its inputs
)

// maxErrors caps the error messages included in a run response
const maxErrors = 20

// handleRunPipeline handles the run_pipeline tool invocation
func (s *Server) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	names, err := getStringSlice(args, "stages")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid stages", map[string]interface{}{
			"param":  "stages",
			"reason": err.Error(),
		})
	}
	stages, err := indexer.ParseStages(names)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid stages", map[string]interface{}{
			"param":  "stages",
			"reason": err.Error(),
		})
	}

	stats, err := s.indexer.Run(ctx, stages)
	if errors.Is(err, indexer.ErrRunInProgress) {
		return nil, newMCPError(ErrorCodeRunInProgress, "a pipeline run is already in progress", nil)
	}

	response := map[string]interface{}{
		"completed": err == nil,
	}
	if stats != nil {
		response["run_id"] = stats.RunID
		response["partition"] = stats.Partition
		response["stages"] = stats.Stages
		response["duration_ms"] = stats.Duration.Milliseconds()
		if n := len(stats.ErrorMessages); n > maxErrors {
			response["errors"] = stats.ErrorMessages[:maxErrors]
			response["error_count"] = n
		} else if n > 0 {
			response["errors"] = stats.ErrorMessages
		}
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "pipeline failed", map[string]interface{}{
			"error":  err.Error(),
			"result": response,
		})
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handlePipelineStatus handles the pipeline_status tool invocation
func (s *Server) handlePipelineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexes, err := s.indexer.Status()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read indexes", map[string]interface{}{
			"error": err.Error(),
		})
	}

	consistent := true
	for _, c := range indexes {
		consistent = consistent && c.OK()
	}
	response := map[string]interface{}{
		"partition":  s.indexer.Partition().Name(),
		"running":    s.indexer.Running(),
		"consistent": consistent,
		"indexes":    indexes,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleValidateDataset handles the validate_dataset tool invocation
func (s *Server) handleValidateDataset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.validator.Run(ctx, s.indexer.Partition())
	if err != nil {
		return nil, newMCPError(ErrorCodeValidationError, "validation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"ok":     report.OK(),
		"report": report,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getStringSlice extracts an optional array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must contain only strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
}
