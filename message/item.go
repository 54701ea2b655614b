// Package message defines the items exchanged with the hub and their wire
// encoding.
package message

import "strings"

// Standard field names used by the hub
const (
	FieldID           = "id"
	FieldType         = "type"
	FieldManufacturer = "manufacturer"
	FieldModel        = "model"
	FieldCondition    = "condition"
)

// StandardFields lists the hub's field names in canonical order.
var StandardFields = []string{FieldID, FieldType, FieldManufacturer, FieldModel, FieldCondition}

// Record is an untyped key/value record, in either the standard or a
// tenant's native schema.
type Record map[string]any

// Item is an inventory item in the hub's standard schema. ID and Condition
// are optional and omitted from the wire form when empty.
type Item struct {
	ID           string `json:"id,omitempty"`
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Condition    string `json:"condition,omitempty"`
}

// Record returns the standard-schema record of the item's non-empty fields.
func (i Item) Record() Record {
	rec := Record{
		FieldType:         i.Type,
		FieldManufacturer: i.Manufacturer,
		FieldModel:        i.Model,
	}
	if i.ID != "" {
		rec[FieldID] = i.ID
	}
	if i.Condition != "" {
		rec[FieldCondition] = i.Condition
	}
	return rec
}

// Sentence is the free-text form of the item used for similarity matching.
func (i Item) Sentence() string {
	return strings.Join(strings.Fields(i.Type+" "+i.Manufacturer+" "+i.Model), " ")
}
