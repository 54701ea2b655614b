// Package translate renames record keys between the hub's standard schema
// and a tenant's native schema.
package translate

import (
	"fmt"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
)

// KeyError reports a key with no mapping. It matches errors.ErrKeyNotFound.
type KeyError struct {
	Key       string
	Direction string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("no %s mapping for key %q", e.Direction, e.Key)
}

// Unwrap lets errors.Is(err, errors.ErrKeyNotFound) match.
func (e *KeyError) Unwrap() error {
	return errs.ErrKeyNotFound
}

// Translator holds the two key mappings derived from a FieldMapping. It is
// read-only after New and safe for concurrent use.
type Translator struct {
	standardToNative map[string]string
	nativeToStandard map[string]string
	nativeOrder      []string
}

// New derives both mappings from fields. When two standard fields share a
// native name, the native name maps back to the later standard field in
// id, type, manufacturer, model, condition order.
func New(fields config.FieldMapping) *Translator {
	natives := []string{fields.ID, fields.Type, fields.Manufacturer, fields.Model, fields.Condition.Name}

	t := &Translator{
		standardToNative: make(map[string]string, len(natives)),
		nativeToStandard: make(map[string]string, len(natives)),
	}
	for i, std := range message.StandardFields {
		t.standardToNative[std] = natives[i]
		t.nativeToStandard[natives[i]] = std
	}
	for _, std := range message.StandardFields {
		native := t.standardToNative[std]
		if t.nativeToStandard[native] == std {
			t.nativeOrder = append(t.nativeOrder, native)
		}
	}
	return t
}

// NativeName returns the tenant's name for a standard field.
func (t *Translator) NativeName(standard string) (string, error) {
	native, ok := t.standardToNative[standard]
	if !ok {
		return "", &KeyError{Key: standard, Direction: "standard-to-native"}
	}
	return native, nil
}

// FromStandard renames every key of rec to the native schema. Any key
// outside the standard schema fails with a *KeyError.
func (t *Translator) FromStandard(rec message.Record) (message.Record, error) {
	out, err := rename(rec, t.standardToNative, message.StandardFields, "standard-to-native")
	if err != nil {
		return nil, errs.Wrap(err, "Translator", "FromStandard", "translate record")
	}
	return out, nil
}

// ToStandard renames every key of rec to the standard schema. Any key the
// tenant mapping does not declare fails with a *KeyError.
func (t *Translator) ToStandard(rec message.Record) (message.Record, error) {
	out, err := rename(rec, t.nativeToStandard, t.nativeOrder, "native-to-standard")
	if err != nil {
		return nil, errs.Wrap(err, "Translator", "ToStandard", "translate record")
	}
	return out, nil
}

// rename walks keys in order so collisions resolve deterministically.
func rename(rec message.Record, mapping map[string]string, order []string, direction string) (message.Record, error) {
	for key := range rec {
		if _, ok := mapping[key]; !ok {
			return nil, &KeyError{Key: key, Direction: direction}
		}
	}

	out := make(message.Record, len(rec))
	for _, key := range order {
		if value, ok := rec[key]; ok {
			out[mapping[key]] = value
		}
	}
	return out, nil
}

// Item reads a backend record in the native schema into an Item. Type,
// manufacturer and model columns must be present; id and condition are
// optional. Extra columns are ignored.
func (t *Translator) Item(native message.Record) (message.Item, error) {
	var item message.Item
	targets := map[string]*string{
		message.FieldID:           &item.ID,
		message.FieldType:         &item.Type,
		message.FieldManufacturer: &item.Manufacturer,
		message.FieldModel:        &item.Model,
		message.FieldCondition:    &item.Condition,
	}

	for _, std := range message.StandardFields {
		column := t.standardToNative[std]
		value, ok := native[column]
		if !ok {
			if std == message.FieldID || std == message.FieldCondition {
				continue
			}
			return message.Item{}, errs.Wrap(&KeyError{Key: column, Direction: "record"},
				"Translator", "Item", "read "+std)
		}
		*targets[std] = stringify(value)
	}
	return item, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
