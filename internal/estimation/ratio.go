package estimation

import "fmt"

// MonthsPerYear converts the monthly cold rent into annual rent.
const MonthsPerYear = 12

type DerivedMetrics struct {
	BuyPerArea  Result `json:"buy_per_area"`
	RentPerArea Result `json:"rent_per_area"`
	// BuyToRent is the number of years of annual rent that cover the purchase price.
	BuyToRent float64 `json:"buy_to_rent"`
	// RentToBuyPercent is annual rent as a percentage of the purchase price.
	RentToBuyPercent float64 `json:"rent_to_buy_percent"`
}

// Derive computes per-area prices and the buy/rent ratios. Rent is monthly.
func Derive(buy, rent Result, area float64) (DerivedMetrics, error) {
	if !(area > 0) {
		return DerivedMetrics{}, fmt.Errorf("%w: got %g", ErrInvalidArea, area)
	}

	annualRent := MonthsPerYear * rent.Point
	return DerivedMetrics{
		BuyPerArea:       perArea(buy, area),
		RentPerArea:      perArea(rent, area),
		BuyToRent:        buy.Point / annualRent,
		RentToBuyPercent: annualRent / buy.Point * 100,
	}, nil
}

func perArea(r Result, area float64) Result {
	return Result{
		Point: r.Point / area,
		Lower: r.Lower / area,
		Upper: r.Upper / area,
	}
}
