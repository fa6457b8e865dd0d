// Package schemas embeds the JSON Schemas for the artifacts the pipeline
// produces. Validation lives in internal/schemas.
package schemas

import "embed"

// Files holds every *.schema.json in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// TruthReport is the file name of the canonical report schema.
const TruthReport = "truth_report.schema.json"
