package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lombard/internal/model"
)

func TestFieldsForIsOrderStable(t *testing.T) {
	reg := Default()

	for _, cat := range model.Categories() {
		first := reg.FieldsFor(cat)
		second := reg.FieldsFor(cat)
		require.NotEmpty(t, first, "category %s", cat)
		assert.Equal(t, first, second, "category %s", cat)
	}

	assert.Equal(t, []string{"brand", "model", "imei", "storage", "condition"}, reg.Keys(model.CategoryPhone))
}

func TestFieldsForSentinelAndUnknown(t *testing.T) {
	reg := Default()

	assert.Empty(t, reg.FieldsFor(model.CategoryAll))
	assert.Empty(t, reg.FieldsFor("Boat"))

	fields, err := reg.Lookup(model.CategoryAll)
	require.NoError(t, err)
	assert.Empty(t, fields)

	fields, err = reg.Lookup("Boat")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Empty(t, fields)
}

func TestFieldsForReturnsCopy(t *testing.T) {
	reg := Default()

	fields := reg.FieldsFor(model.CategoryPhone)
	fields[0].Options[0] = "Nokia"
	fields[0].Key = "changed"

	again := reg.FieldsFor(model.CategoryPhone)
	assert.Equal(t, "brand", again[0].Key)
	assert.Equal(t, "Redmi", again[0].Options[0])
}

func TestConditionOptionsDifferPerCategory(t *testing.T) {
	reg := Default()

	phone, ok := reg.Descriptor(model.CategoryPhone, "condition")
	require.True(t, ok)
	bicycle, ok := reg.Descriptor(model.CategoryBicycle, "condition")
	require.True(t, ok)

	assert.True(t, phone.HasOption("Eco Friendly"))
	assert.False(t, bicycle.HasOption("Eco Friendly"))
	assert.True(t, bicycle.HasOption("Needs Repair"))
}

func TestRegistryMatchesDetailVariants(t *testing.T) {
	reg := Default()
	for _, cat := range model.Categories() {
		assert.Equal(t, model.DetailKeys(cat), reg.Keys(cat), "category %s", cat)
	}
}

func TestNewRejectsInvalidLayouts(t *testing.T) {
	_, err := New(map[model.Category][]FieldDescriptor{
		model.CategoryPhone: {{Key: "imei", Input: InputText}, {Key: "imei", Input: InputText}},
	})
	assert.Error(t, err)

	_, err = New(map[model.Category][]FieldDescriptor{
		model.CategoryPhone: {{Key: "storage", Input: InputSelect}},
	})
	assert.Error(t, err)
}
