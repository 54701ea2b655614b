// Package config loads and validates the tenant configuration document.
//
// The document (JSON, or YAML by extension) describes one tenant backend:
//
//	{
//	  "id": 1, "type": "DB", "url": "sqlite://mem", "token": "t", "language": "en",
//	  "fields": {"id": "eid", "type": "category", "manufacturer": "brand", "model": "model",
//	             "condition": {"name": "status", "allowedValues": ["available"]}},
//	  "table": "items"
//	}
//
// API tenants replace "table" with an "endpoint" object holding auth, path,
// method and parameters.{query,path}. An optional endpoint.conditionEncoding
// (repeat, comma or brackets) selects how the allowed condition values are
// sent as a query parameter.
//
// Parse validates the untyped document first and only then builds the typed
// Config, so nothing downstream inspects raw document data.
package config
