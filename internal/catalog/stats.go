package catalog

import "github.com/shopspring/decimal"

type CategoryStat struct {
	Count    int     `json:"count"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	AvgPrice float64 `json:"avg_price"`
}

// CategoryStats aggregates price figures per category, rounded to cents.
func CategoryStats(products []Product) map[string]CategoryStat {
	type acc struct {
		count    int
		min, max decimal.Decimal
		sum      decimal.Decimal
	}

	byCat := make(map[string]*acc)
	for _, p := range products {
		price := decimal.NewFromFloat(p.Price)
		a, ok := byCat[p.Category]
		if !ok {
			byCat[p.Category] = &acc{count: 1, min: price, max: price, sum: price}
			continue
		}
		a.count++
		a.sum = a.sum.Add(price)
		if price.LessThan(a.min) {
			a.min = price
		}
		if price.GreaterThan(a.max) {
			a.max = price
		}
	}

	out := make(map[string]CategoryStat, len(byCat))
	for cat, a := range byCat {
		avg := a.sum.Div(decimal.NewFromInt(int64(a.count)))
		out[cat] = CategoryStat{
			Count:    a.count,
			MinPrice: a.min.Round(2).InexactFloat64(),
			MaxPrice: a.max.Round(2).InexactFloat64(),
			AvgPrice: avg.Round(2).InexactFloat64(),
		}
	}
	return out
}
