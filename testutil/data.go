package testutil

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"testing"

	"github.com/Gondolav/inventory-connector/message"
)

// Items is a small inventory in the standard schema.
var Items = []message.Item{
	{ID: "1", Type: "Hospital bed", Manufacturer: "Bosch", Model: "Med231"},
	{ID: "2", Type: "Hospital bed", Manufacturer: "Bosch", Model: "Med232"},
	{ID: "3", Type: "Wheelchair", Manufacturer: "Invacare", Model: "Action3"},
	{ID: "4", Type: "Office chair", Manufacturer: "Ikea", Model: "Poang"},
}

// DBDocument returns a DB tenant configuration document.
func DBDocument(url string) map[string]any {
	return map[string]any{
		"id":       1,
		"type":     "DB",
		"url":      url,
		"token":    "t",
		"language": "en",
		"fields":   fieldsDocument(),
		"table":    "items",
	}
}

// APIDocument returns an API tenant configuration document whose endpoint
// is items/{id}/{param}.
func APIDocument(url string) map[string]any {
	return map[string]any{
		"id":       2,
		"type":     "API",
		"url":      url,
		"token":    "t",
		"language": "en",
		"fields":   fieldsDocument(),
		"endpoint": map[string]any{
			"auth":   "bearer",
			"path":   "items/{id}/{param}",
			"method": "GET",
			"parameters": map[string]any{
				"query": map[string]any{"limit": "50"},
				"path":  map[string]any{"id": "abc", "param": "value"},
			},
		},
	}
}

func fieldsDocument() map[string]any {
	return map[string]any{
		"id":           "eid",
		"type":         "category",
		"manufacturer": "brand",
		"model":        "model",
		"condition": map[string]any{
			"name":          "status",
			"allowedValues": []any{"available"},
		},
	}
}

// With returns a shallow copy of doc with the given top-level overrides.
// A nil value removes the key.
func With(doc map[string]any, overrides map[string]any) map[string]any {
	out := maps.Clone(doc)
	for k, v := range overrides {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// WriteConfig writes doc as JSON into a temporary file and returns its path.
func WriteConfig(t testing.TB, doc map[string]any) string {
	t.Helper()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tenant.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
