package config

import (
	"maps"
	"net/url"
	"slices"
)

// ConnectionKind selects the tenant backend variant.
type ConnectionKind string

// Supported connection kinds
const (
	KindDB  ConnectionKind = "DB"
	KindAPI ConnectionKind = "API"
)

// Language is the tenant's inventory language, used by the matcher.
type Language string

// Supported languages
const (
	LanguageEN Language = "en"
	LanguageFR Language = "fr"
)

// HTTPMethod is the method used for API backends.
type HTTPMethod string

// MethodGET is the only method API backends are queried with.
const MethodGET HTTPMethod = "GET"

// ConditionEncoding controls how the list of allowed condition values is
// sent to an API backend as a query parameter.
type ConditionEncoding string

// Condition encodings
const (
	// EncodingRepeat sends status=a&status=b
	EncodingRepeat ConditionEncoding = "repeat"
	// EncodingComma sends status=a,b
	EncodingComma ConditionEncoding = "comma"
	// EncodingBrackets sends status[]=a&status[]=b
	EncodingBrackets ConditionEncoding = "brackets"
)

// Condition is the categorical field used to filter backend records.
type Condition struct {
	Name          string
	AllowedValues []string
}

// FieldMapping maps the hub's standard field names to the tenant's native
// names. Names need not be distinct.
type FieldMapping struct {
	ID           string
	Type         string
	Manufacturer string
	Model        string
	Condition    Condition
}

// DBParams are the parameters of a relational backend.
type DBParams struct {
	Table string
}

// Endpoint describes a REST backend resource.
type Endpoint struct {
	Auth              string
	Path              string
	Method            HTTPMethod
	QueryParams       map[string]string
	PathParams        map[string]string
	ConditionEncoding ConditionEncoding
}

// Config is a validated tenant configuration. Exactly one of DB and API is
// set, according to Kind. A Config is not modified after Parse returns it;
// use Clone to derive a variant.
type Config struct {
	ID       int64
	Kind     ConnectionKind
	URL      string
	Token    string
	Language Language
	Fields   FieldMapping
	DB       *DBParams
	API      *Endpoint
}

// Table returns the DB table, or "" for API configurations.
func (c *Config) Table() string {
	if c.DB == nil {
		return ""
	}
	return c.DB.Table
}

// Endpoint returns a copy of the API endpoint and whether one is set.
func (c *Config) Endpoint() (Endpoint, bool) {
	if c.API == nil {
		return Endpoint{}, false
	}
	return c.API.clone(), true
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Fields.Condition.AllowedValues = slices.Clone(c.Fields.Condition.AllowedValues)
	if c.DB != nil {
		db := *c.DB
		out.DB = &db
	}
	if c.API != nil {
		api := c.API.clone()
		out.API = &api
	}
	return &out
}

func (e Endpoint) clone() Endpoint {
	e.QueryParams = maps.Clone(e.QueryParams)
	e.PathParams = maps.Clone(e.PathParams)
	return e
}

// ResolvedPath returns Path with every {name} placeholder replaced by the
// path-escaped value of PathParams[name].
func (e Endpoint) ResolvedPath() string {
	return placeholderRegex.ReplaceAllStringFunc(e.Path, func(token string) string {
		name := token[1 : len(token)-1]
		return url.PathEscape(e.PathParams[name])
	})
}
