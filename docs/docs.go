// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package docs embeds the OpenAPI description of the quiz search HTTP API.
package docs

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document in YAML form.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
