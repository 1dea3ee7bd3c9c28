package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI document of the gateway.
//
//go:embed openapi.yaml
var OpenAPI []byte
