package schema

import "github.com/erazemk/lombard/internal/model"

var (
	phoneConditions = []string{"Like New", "Normal", "Eco Friendly", "Just For Parts"}
	itemConditions  = []string{"New", "Like New", "Used", "Needs Repair"}
)

// defaultFields is the field layout used by the shop.
var defaultFields = map[model.Category][]FieldDescriptor{
	model.CategoryPhone: {
		{Key: "brand", Label: "Brand", Input: InputSelect, Required: true,
			Options: []string{"Redmi", "Xiaomi", "Samsung", "iPhone", "Tecno", "Vivo", "Oppo", "Itel", "Realme", "Google Pixel"}},
		{Key: "model", Label: "Model", Input: InputText, Required: true},
		{Key: "imei", Label: "IMEI", Input: InputText, Required: true},
		{Key: "storage", Label: "Storage", Input: InputSelect, Required: true,
			Options: []string{"32GB", "64GB", "128GB", "256GB", "512GB", "1TB"}},
		{Key: "condition", Label: "Condition", Input: InputSelect, Required: true, Options: phoneConditions},
	},
	model.CategoryMotoBike: {
		{Key: "make", Label: "Make", Input: InputText},
		{Key: "year", Label: "Year", Input: InputNumber},
		{Key: "engine", Label: "Engine Power", Input: InputSelect, Required: true,
			Options: []string{"100", "110", "125", "135", "150"}},
		{Key: "plateNumber", Label: "Plate Number", Input: InputText, Required: true},
		{Key: "mileage", Label: "Mileage", Input: InputNumber, Required: true},
	},
	model.CategoryBicycle: {
		{Key: "type", Label: "Type", Input: InputText, Required: true},
		{Key: "frameSize", Label: "Frame Size", Input: InputText, Required: true},
		{Key: "gears", Label: "Gears", Input: InputNumber, Required: true},
		{Key: "wheelSize", Label: "Wheel Size", Input: InputText, Required: true},
		{Key: "serialNumber", Label: "Serial Number", Input: InputText, Required: true},
		{Key: "condition", Label: "Condition", Input: InputSelect, Required: true, Options: itemConditions},
	},
	model.CategoryWatches: {
		{Key: "watchBrand", Label: "Brand", Input: InputText, Required: true},
		{Key: "watchModel", Label: "Model", Input: InputText, Required: true},
		{Key: "movement", Label: "Movement", Input: InputText, Required: true},
		{Key: "material", Label: "Material", Input: InputText, Required: true},
		{Key: "serialNumber", Label: "Serial Number", Input: InputText, Required: true},
	},
	model.CategoryOthers: {
		{Key: "itemName", Label: "Item Name", Input: InputText, Required: true},
		{Key: "weight", Label: "Weight", Input: InputNumber, Required: true},
		{Key: "material2", Label: "Material", Input: InputText, Required: true},
		{Key: "color", Label: "Color", Input: InputText, Required: true},
		{Key: "condition", Label: "Condition", Input: InputSelect, Required: true, Options: itemConditions},
	},
}

// Default returns the shop's registry.
func Default() *Registry {
	r, err := New(defaultFields)
	if err != nil {
		panic("schema: invalid default registry: " + err.Error())
	}
	return r
}
