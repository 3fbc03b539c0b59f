package barcode

import "github.com/go-playground/validator/v10"

// RegisterValidation adds a "barcode" tag to v that accepts any string
// IsBookBarcode accepts.
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation("barcode", func(fl validator.FieldLevel) bool {
		return IsBookBarcode(Parse(fl.Field().String()))
	})
}
