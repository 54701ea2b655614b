package translate

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/message"
)

func testFields() config.FieldMapping {
	return config.FieldMapping{
		ID:           "idn",
		Type:         "category",
		Manufacturer: "brand",
		Model:        "model",
		Condition:    config.Condition{Name: "status", AllowedValues: []string{"available"}},
	}
}

func TestFromStandard(t *testing.T) {
	tr := New(testFields())

	got, err := tr.FromStandard(message.Record{
		"id":           123,
		"type":         "Car",
		"manufacturer": "Ferrari",
		"model":        "GT",
		"condition":    "available",
	})
	require.NoError(t, err)
	assert.Equal(t, message.Record{
		"idn":      123,
		"category": "Car",
		"brand":    "Ferrari",
		"model":    "GT",
		"status":   "available",
	}, got)
}

func TestToStandard(t *testing.T) {
	tr := New(testFields())

	got, err := tr.ToStandard(message.Record{
		"idn":      123,
		"category": "Car",
		"brand":    "Ferrari",
		"model":    "GT",
		"status":   "available",
	})
	require.NoError(t, err)
	assert.Equal(t, message.Record{
		"id":           123,
		"type":         "Car",
		"manufacturer": "Ferrari",
		"model":        "GT",
		"condition":    "available",
	}, got)
}

func TestRoundTrip(t *testing.T) {
	tr := New(testFields())
	records := []message.Record{
		{"id": "1", "type": "Bed", "manufacturer": "Bosch", "model": "Med231", "condition": "available"},
		{"type": "Bed", "manufacturer": "Bosch", "model": "Med231"},
		{},
	}

	for _, rec := range records {
		native, err := tr.FromStandard(rec)
		require.NoError(t, err)
		back, err := tr.ToStandard(native)
		require.NoError(t, err)
		assert.Equal(t, rec, back)
	}
}

func TestUnknownKeys(t *testing.T) {
	tr := New(testFields())

	_, err := tr.FromStandard(message.Record{"type": "Bed", "colour": "red"})
	require.Error(t, err)
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "colour", keyErr.Key)
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
	assert.True(t, errs.IsInvalid(err))

	_, err = tr.ToStandard(message.Record{"type": "Bed"})
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "type", keyErr.Key)
}

func TestCollidingNativeNames(t *testing.T) {
	fields := testFields()
	fields.Model = "category"
	tr := New(fields)

	got, err := tr.ToStandard(message.Record{"category": "X", "brand": "B"})
	require.NoError(t, err)
	assert.Equal(t, message.Record{"model": "X", "manufacturer": "B"}, got)

	native, err := tr.FromStandard(message.Record{"type": "T", "model": "M"})
	require.NoError(t, err)
	assert.Equal(t, message.Record{"category": "M"}, native)

	item, err := tr.Item(message.Record{"category": "Bed", "brand": "Bosch"})
	require.NoError(t, err)
	assert.Equal(t, "Bed", item.Type)
	assert.Equal(t, "Bed", item.Model)
}

func TestNativeName(t *testing.T) {
	tr := New(testFields())

	name, err := tr.NativeName("condition")
	require.NoError(t, err)
	assert.Equal(t, "status", name)

	_, err = tr.NativeName("colour")
	assert.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestItem(t *testing.T) {
	tr := New(testFields())

	item, err := tr.Item(message.Record{
		"idn":      int64(7),
		"category": []byte("Bed"),
		"brand":    "Bosch",
		"model":    "Med231",
		"status":   "available",
		"price":    12.5,
	})
	require.NoError(t, err)
	assert.Equal(t, message.Item{ID: "7", Type: "Bed", Manufacturer: "Bosch", Model: "Med231", Condition: "available"}, item)

	item, err = tr.Item(message.Record{"category": "Bed", "brand": "Bosch", "model": json.Number("231"), "idn": nil})
	require.NoError(t, err)
	assert.Equal(t, "231", item.Model)
	assert.Empty(t, item.ID)
	assert.Empty(t, item.Condition)

	_, err = tr.Item(message.Record{"category": "Bed", "model": "Med231"})
	require.Error(t, err)
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "brand", keyErr.Key)
}

func TestConcurrentUse(t *testing.T) {
	tr := New(testFields())
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			native, err := tr.FromStandard(message.Record{"type": "Bed"})
			assert.NoError(t, err)
			_, err = tr.ToStandard(native)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
