// Package schemasassets provides embedded JSON schemas.
//
// Schemas are embedded at compile time so manifest validation works in
// installed binaries regardless of the working directory.
package schemasassets

import _ "embed"

// JobManifestSchema is the embedded job-manifest JSON schema.
//
//go:embed job-manifest.schema.json
var JobManifestSchema []byte
