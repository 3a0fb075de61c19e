package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/lexcite/internal/indexer"
)

func stageNames() []string {
	names := make([]string, len(indexer.AllStages))
	for i, s := range indexer.AllStages {
		names[i] = string(s)
	}
	return names
}

// runPipelineTool returns the tool definition for run_pipeline
func runPipelineTool() mcp.Tool {
	return mcp.Tool{
		Name:        "run_pipeline",
		Description: "Run pipeline stages for the configured partition. Stages always run in pipeline order.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"stages": map[string]interface{}{
					"type":        "array",
					"description": "Stages to run. Omit to run every stage.",
					"items": map[string]interface{}{
						"type": "string",
						"enum": stageNames(),
					},
				},
			},
		},
	}
}

// pipelineStatusTool returns the tool definition for pipeline_status
func pipelineStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "pipeline_status",
		Description: "Report key counts and index/data consistency for every stage index",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// validateDatasetTool returns the tool definition for validate_dataset
func validateDatasetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "validate_dataset",
		Description: "Validate index files and retrieval stores and report acts needing review",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
