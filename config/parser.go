package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	errs "github.com/Gondolav/inventory-connector/errors"
)

// Format is the encoding of a configuration document.
type Format int

// Supported document formats
const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the format from the file extension; anything other
// than .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse loads, validates and builds the tenant configuration at path.
//
// A missing file yields an error matching errors.ErrConfigNotFound, an
// unreadable or undecodable one errors.ErrConfigUnreadable, and a document
// that breaks a rule a *ValidationError (matching errors.ErrInvalidConfig).
func Parse(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, errs.WrapFatal(err, "ConfigParser", "Parse", fmt.Sprintf("read %s", path))
	}
	return ParseBytes(data, FormatFromPath(path))
}

// ParseBytes validates and builds a configuration from an in-memory document.
func ParseBytes(data []byte, format Format) (*Config, error) {
	doc, err := decode(data, format)
	if err != nil {
		return nil, errs.WrapFatal(errs.Join(errs.ErrConfigUnreadable, err),
			"ConfigParser", "ParseBytes", "decode document")
	}

	cfg, verr := build(doc)
	if verr != nil {
		return nil, errs.WrapInvalid(verr, "ConfigParser", "ParseBytes", "validate document")
	}
	return cfg, nil
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func decode(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, errors.New("trailing data after JSON document")
		}
	}
	return doc, nil
}

func build(raw any) (*Config, *ValidationError) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("configuration document must be an object")
	}
	if verr := validate(doc); verr != nil {
		return nil, verr
	}

	id, verr := parseID(doc["id"])
	if verr != nil {
		return nil, verr
	}
	lang, verr := parseLanguage(doc["language"])
	if verr != nil {
		return nil, verr
	}
	url, ok := doc["url"].(string)
	if !ok {
		return nil, invalid("'url' must be a string")
	}
	token, ok := doc["token"].(string)
	if !ok {
		return nil, invalid("'token' must be a string")
	}

	cfg := &Config{
		ID:       id,
		Kind:     ConnectionKind(doc["type"].(string)),
		URL:      url,
		Token:    token,
		Language: lang,
		Fields:   buildFields(doc["fields"].(map[string]any)),
	}

	switch cfg.Kind {
	case KindDB:
		cfg.DB = &DBParams{Table: doc["table"].(string)}
	case KindAPI:
		endpoint, verr := buildEndpoint(doc["endpoint"].(map[string]any))
		if verr != nil {
			return nil, verr
		}
		cfg.API = endpoint
	}
	return cfg, nil
}

func buildFields(fields map[string]any) FieldMapping {
	condition := fields["condition"].(map[string]any)
	rawValues := condition["allowedValues"].([]any)
	values := make([]string, len(rawValues))
	for i, v := range rawValues {
		values[i] = v.(string)
	}

	return FieldMapping{
		ID:           fields["id"].(string),
		Type:         fields["type"].(string),
		Manufacturer: fields["manufacturer"].(string),
		Model:        fields["model"].(string),
		Condition: Condition{
			Name:          condition["name"].(string),
			AllowedValues: values,
		},
	}
}

func buildEndpoint(endpoint map[string]any) (*Endpoint, *ValidationError) {
	parameters := endpoint["parameters"].(map[string]any)
	query, verr := stringMap(parameters["query"], "parameters.query")
	if verr != nil {
		return nil, verr
	}
	path, verr := stringMap(parameters["path"], "parameters.path")
	if verr != nil {
		return nil, verr
	}
	encoding, verr := parseEncoding(endpoint["conditionEncoding"])
	if verr != nil {
		return nil, verr
	}

	return &Endpoint{
		Auth:              endpoint["auth"].(string),
		Path:              endpoint["path"].(string),
		Method:            HTTPMethod(endpoint["method"].(string)),
		QueryParams:       query,
		PathParams:        path,
		ConditionEncoding: encoding,
	}, nil
}
