package cart

import "strings"

// SKU identifies an item in the catalog.
type SKU string

// The catalog is a fixed, closed set.
const (
	SKUApe    SKU = "APE"
	SKUPunk   SKU = "PUNK"
	SKUMeebit SKU = "MEEBIT"
)

var validSKUs = []SKU{SKUApe, SKUPunk, SKUMeebit}

// ValidSKUs returns the catalog in declaration order.
func ValidSKUs() []SKU {
	out := make([]SKU, len(validSKUs))
	copy(out, validSKUs)
	return out
}

// ParseSKU normalizes a raw item code and rejects codes outside the catalog.
func ParseSKU(value string) (SKU, error) {
	candidate := SKU(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range validSKUs {
		if candidate == s {
			return s, nil
		}
	}
	return "", &InvalidSKUError{Value: value, Valid: ValidSKUs()}
}
