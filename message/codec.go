package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	errs "github.com/Gondolav/inventory-connector/errors"
)

// QuerySchema is the JSON Schema every inbound query frame must satisfy.
const QuerySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "InventoryQuery",
  "type": "object",
  "properties": {
    "id":           {"type": ["string", "null"]},
    "type":         {"type": "string"},
    "manufacturer": {"type": "string"},
    "model":        {"type": "string"},
    "condition":    {"type": ["string", "null"]}
  },
  "required": ["type", "manufacturer", "model"],
  "additionalProperties": false
}`

var (
	querySchemaOnce sync.Once
	querySchema     *gojsonschema.Schema
	querySchemaErr  error
)

func compiledQuerySchema() (*gojsonschema.Schema, error) {
	querySchemaOnce.Do(func() {
		querySchema, querySchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(QuerySchema))
	})
	return querySchema, querySchemaErr
}

// DecodeQuery validates an inbound frame against QuerySchema and decodes it
// into an Item. Failures match errors.ErrInvalidData.
func DecodeQuery(data []byte) (Item, error) {
	schema, err := compiledQuerySchema()
	if err != nil {
		return Item{}, errs.WrapFatal(err, "Codec", "DecodeQuery", "compile query schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Item{}, errs.WrapInvalid(errs.Join(errs.ErrInvalidData, err),
			"Codec", "DecodeQuery", "parse query frame")
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return Item{}, errs.WrapInvalid(
			errs.Join(errs.ErrInvalidData, fmt.Errorf("%s", strings.Join(problems, "; "))),
			"Codec", "DecodeQuery", "validate query frame")
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, errs.WrapInvalid(errs.Join(errs.ErrInvalidData, err),
			"Codec", "DecodeQuery", "decode query frame")
	}
	return item, nil
}

// EncodeQuery encodes a query item as sent by the hub.
func EncodeQuery(item Item) ([]byte, error) {
	return json.Marshal(item)
}

// EncodeResponse encodes a reply frame.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, errs.Wrap(err, "Codec", "EncodeResponse", "marshal response")
	}
	return data, nil
}

// DecodeResponse decodes a reply frame.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, errs.WrapInvalid(errs.Join(errs.ErrInvalidData, err),
			"Codec", "DecodeResponse", "decode response frame")
	}
	return resp, nil
}
