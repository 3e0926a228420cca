package rules

import (
	"fmt"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// Extract returns the value of field in bag. ok is false when the receipt has
// no data for the field, which is distinct from a present empty string.
// An identifier outside the closed field set panics.
func Extract(field model.Field, bag model.FieldBag) (model.Value, bool) {
	if !field.Valid() {
		panic(fmt.Sprintf("rules: unknown field %q", string(field)))
	}
	v, ok := bag[field]
	return v, ok
}
