package domain

import "github.com/shopspring/decimal"

// PriceScale and maxPrice mirror the NUMERIC(12, 2) price columns.
const PriceScale = 2

var maxPrice = decimal.New(1, 10)

// ValidPrice reports whether p is positive, has at most two decimal places and
// fits the stored precision. Anything else would be rounded or rejected by the
// database after validation.
func ValidPrice(p decimal.Decimal) bool {
	return p.IsPositive() && p.Exponent() >= -PriceScale && p.LessThan(maxPrice)
}
