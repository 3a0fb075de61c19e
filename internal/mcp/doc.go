// Package mcp implements the Model Context Protocol (MCP) operator server
// for lexcite.
//
// The server exposes three tools:
//   - run_pipeline: run some or all pipeline stages
//   - pipeline_status: key counts and consistency of every stage index
//   - validate_dataset: the validator report
//
// # Basic Usage
//
// The server is started via the serve command and speaks JSON-RPC 2.0
// over stdio:
//
//	lexcite serve
//
// # Tool: run_pipeline
//
//	Request:
//	{
//	  "name": "run_pipeline",
//	  "arguments": {"stages": ["extract-acts", "transform-acts"]}
//	}
//
//	Response:
//	{
//	  "completed": true,
//	  "run_id": "6f0c6a1e-...",
//	  "partition": "all",
//	  "stages": [
//	    {"stage": "extract-acts", "pending": 12, "processed": 11, "failed": 1, "duration": 1200000000}
//	  ],
//	  "errors": ["act 4012: status 503"]
//	}
//
// Stages are reordered into pipeline order. Omitting stages runs all nine.
//
// # Tool: pipeline_status
//
//	Response:
//	{
//	  "partition": "all",
//	  "running": false,
//	  "consistent": true,
//	  "indexes": [
//	    {"name": "raw_questions", "partition": "all", "index_count": 1520, "data_count": 1520}
//	  ]
//	}
//
// # Tool: validate_dataset
//
// Returns {"ok": bool, "report": {...}} where the report lists inconsistent
// indexes, acts flagged for review, keyword artefacts, relation gaps and
// store count mismatches.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (unknown stage)
//   - -32603: Internal error (index read or write failure)
//   - -32002: Pipeline run in progress
//   - -32005: Validation could not read its inputs
//
// # Logging
//
// stdout is reserved for the protocol; the logger writes to stderr.
package mcp
