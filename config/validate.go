package config

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	errs "github.com/Gondolav/inventory-connector/errors"
)

var (
	requiredKeys          = []string{"id", "type", "url", "token", "language", "fields"}
	requiredFieldKeys     = []string{"id", "type", "manufacturer", "model", "condition"}
	requiredConditionKeys = []string{"name", "allowedValues"}
	requiredEndpointKeys  = []string{"auth", "path", "method", "parameters"}
	requiredParameterKeys = []string{"query", "path"}

	placeholderRegex = regexp.MustCompile(`\{([^{}]*)\}`)
)

// ValidationError reports why a configuration document was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Unwrap lets errors.Is(err, errors.ErrInvalidConfig) match.
func (e *ValidationError) Unwrap() error {
	return errs.ErrInvalidConfig
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// validate checks the raw document. Rules run in order and stop at the first
// failure since later rules rely on the shape earlier ones establish.
func validate(doc map[string]any) *ValidationError {
	if missing(doc, requiredKeys) {
		return invalid("One of the required keys %s is missing", keyList(requiredKeys))
	}
	for _, key := range []string{"id", "url", "token"} {
		if isEmpty(doc[key]) {
			return invalid("Empty '%s' field", key)
		}
	}

	fields, verr := object(doc["fields"], "fields")
	if verr != nil {
		return verr
	}
	if missing(fields, requiredFieldKeys) {
		return invalid("One of the required keys %s is missing in 'fields'", keyList(requiredFieldKeys))
	}
	for _, key := range requiredFieldKeys[:4] {
		if s, ok := fields[key].(string); !ok || s == "" {
			return invalid("Field name 'fields.%s' must be a non-empty string", key)
		}
	}

	if verr := validateCondition(fields["condition"]); verr != nil {
		return verr
	}

	kind, _ := doc["type"].(string)
	switch ConnectionKind(kind) {
	case KindDB:
		return validateDB(doc)
	case KindAPI:
		return validateAPI(doc)
	default:
		return invalid("Unknown 'type' value: %v", doc["type"])
	}
}

func validateCondition(raw any) *ValidationError {
	condition, verr := object(raw, "condition")
	if verr != nil {
		return verr
	}
	if missing(condition, requiredConditionKeys) {
		return invalid("One of the required keys %s is missing in 'condition'", keyList(requiredConditionKeys))
	}
	if name, ok := condition["name"].(string); !ok || name == "" {
		return invalid("Empty 'name' field")
	}
	values, ok := condition["allowedValues"].([]any)
	if !ok || len(values) == 0 {
		return invalid("Empty 'allowedValues' field")
	}
	for _, v := range values {
		if s, ok := v.(string); !ok || s == "" {
			return invalid("'allowedValues' must only contain non-empty strings")
		}
	}
	return nil
}

func validateDB(doc map[string]any) *ValidationError {
	raw, ok := doc["table"]
	if !ok {
		return invalid("Key 'table' is missing")
	}
	if table, ok := raw.(string); !ok || table == "" {
		return invalid("Empty 'table' field")
	}
	return nil
}

func validateAPI(doc map[string]any) *ValidationError {
	raw, ok := doc["endpoint"]
	if !ok {
		return invalid("Key 'endpoint' is missing")
	}
	endpoint, verr := object(raw, "endpoint")
	if verr != nil {
		return verr
	}
	if missing(endpoint, requiredEndpointKeys) {
		return invalid("One of the required keys %s is missing in 'endpoint'", keyList(requiredEndpointKeys))
	}
	for _, key := range requiredEndpointKeys {
		if isEmpty(endpoint[key]) {
			return invalid("Empty '%s' field", key)
		}
	}
	for _, key := range []string{"auth", "path", "method"} {
		if _, ok := endpoint[key].(string); !ok {
			return invalid("'%s' must be a string", key)
		}
	}

	method := endpoint["method"].(string)
	if HTTPMethod(method) != MethodGET {
		return invalid("Unknown 'method' value: %s", method)
	}

	if raw, ok := endpoint["conditionEncoding"]; ok && raw != nil {
		if _, verr := parseEncoding(raw); verr != nil {
			return verr
		}
	}

	parameters, verr := object(endpoint["parameters"], "parameters")
	if verr != nil {
		return verr
	}
	if missing(parameters, requiredParameterKeys) {
		return invalid("One of the required keys %s is missing in 'parameters'", keyList(requiredParameterKeys))
	}
	if _, verr := stringMap(parameters["query"], "parameters.query"); verr != nil {
		return verr
	}
	pathParams, verr := stringMap(parameters["path"], "parameters.path")
	if verr != nil {
		return verr
	}

	return checkPathParams(endpoint["path"].(string), pathParams)
}

// checkPathParams enforces that the {name} placeholders of path and the
// declared path parameters are the same set, with no empty values.
func checkPathParams(path string, params map[string]string) *ValidationError {
	used := make(map[string]bool)
	for _, name := range Placeholders(path) {
		if _, ok := params[name]; !ok {
			return invalid("unknown path parameter %q in path %q", name, path)
		}
		used[name] = true
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if params[name] == "" || !used[name] {
			return invalid("unused or empty path parameter %q", name)
		}
	}
	return nil
}

// Placeholders returns the {name} tokens of path, segment by segment.
func Placeholders(path string) []string {
	var names []string
	for _, segment := range strings.Split(path, "/") {
		for _, m := range placeholderRegex.FindAllStringSubmatch(segment, -1) {
			names = append(names, m[1])
		}
	}
	return names
}

func parseEncoding(raw any) (ConditionEncoding, *ValidationError) {
	s, _ := raw.(string)
	switch enc := ConditionEncoding(strings.ToLower(s)); enc {
	case "":
		return EncodingRepeat, nil
	case EncodingRepeat, EncodingComma, EncodingBrackets:
		return enc, nil
	default:
		return "", invalid("Unknown 'conditionEncoding' value: %v", raw)
	}
}

func parseLanguage(raw any) (Language, *ValidationError) {
	s, _ := raw.(string)
	switch lang := Language(strings.ToLower(s)); lang {
	case LanguageEN, LanguageFR:
		return lang, nil
	default:
		return "", invalid("Unknown 'language' value: %v", raw)
	}
}

func parseID(raw any) (int64, *ValidationError) {
	switch v := raw.(type) {
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return id, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, invalid("'id' must be an integer, got %s", v)
		}
		return parseID(f)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalid("'id' out of range: %d", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) >= math.MaxInt64 {
			return 0, invalid("'id' must be an integer, got %v", v)
		}
		return int64(v), nil
	default:
		return 0, invalid("'id' must be an integer, got %v", raw)
	}
}

func object(raw any, name string) (map[string]any, *ValidationError) {
	if isEmpty(raw) {
		return nil, invalid("Empty '%s' field", name)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("'%s' must be an object", name)
	}
	return m, nil
}

// stringMap converts a parameter object to name->value. A null value stands
// for an empty mapping.
func stringMap(raw any, name string) (map[string]string, *ValidationError) {
	if raw == nil {
		return map[string]string{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("'%s' must be an object", name)
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := scalarString(v)
		if !ok {
			return nil, invalid("'%s.%s' must be a scalar value", name, k)
		}
		out[k] = s
	}
	return out, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func missing(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return true
		}
	}
	return false
}

// isEmpty mirrors the document notion of "empty": null, zero, false, or an
// empty string, list or object.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case uint64:
		return t == 0
	case float64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func keyList(keys []string) string {
	return "[" + strings.Join(keys, ", ") + "]"
}
