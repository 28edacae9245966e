// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so batch specifications validate the
// same way regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// BatchSpecSchema is the embedded batch-spec JSON schema.
//
//go:embed batch-spec.schema.json
var BatchSpecSchema []byte
