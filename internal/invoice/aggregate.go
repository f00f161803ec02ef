package invoice

import (
	"cmp"
	"errors"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Sort keys accepted by Sort.
const (
	SortOriginal      = "Original"
	SortProjectID     = "Project ID"
	SortTotalPrice    = "Total price"
	SortTotalDiscount = "Total discount"
	SortFinalPrice    = "Final price"
)

// ErrUnknownSortKey is returned by Sort for a key that names no column.
var ErrUnknownSortKey = errors.New("invoice: unknown sort key")

// Row is the per-project summary shown on the invoice list.
type Row struct {
	ProjectID     string  `json:"Project ID"`
	TotalPrice    float64 `json:"Total price"`
	TotalDiscount float64 `json:"Total discount"`
	FinalPrice    float64 `json:"Final price"`
}

// DetailRow is one service of a project on the details view.
type DetailRow struct {
	Service       string  `json:"Service"`
	TotalPrice    float64 `json:"Total price"`
	TotalDiscount float64 `json:"Total discount"`
}

// Aggregate sums lines per project. Rows appear in the order each project
// was first seen. Sums are exact decimals of the stored values, so a listing
// reproduces the totals computed when the invoice was generated.
func Aggregate(lines []Line) []Row {
	type sums struct{ price, discount decimal.Decimal }
	order := lo.Uniq(lo.Map(lines, func(l Line, _ int) string { return l.ProjectID }))
	totals := make(map[string]*sums, len(order))
	for _, id := range order {
		totals[id] = &sums{}
	}
	for _, l := range lines {
		t := totals[l.ProjectID]
		t.price = t.price.Add(decimal.NewFromFloat(l.TotalPrice))
		t.discount = t.discount.Add(decimal.NewFromFloat(l.TotalDiscount))
	}
	return lo.Map(order, func(id string, _ int) Row {
		t := totals[id]
		return Row{
			ProjectID:     id,
			TotalPrice:    t.price.InexactFloat64(),
			TotalDiscount: t.discount.InexactFloat64(),
			FinalPrice:    t.price.Sub(t.discount).InexactFloat64(),
		}
	})
}

var numericColumns = map[string]func(Row) float64{
	SortTotalPrice:    func(r Row) float64 { return r.TotalPrice },
	SortTotalDiscount: func(r Row) float64 { return r.TotalDiscount },
	SortFinalPrice:    func(r Row) float64 { return r.FinalPrice },
}

// ValidSortKey reports whether Sort accepts key.
func ValidSortKey(key string) bool {
	if key == "" || key == SortOriginal || key == SortProjectID {
		return true
	}
	_, ok := numericColumns[key]
	return ok
}

// Sort returns a sorted copy of rows. "Original" (or an empty key) keeps
// the aggregation order, "Project ID" sorts ascending and the money columns
// sort descending. Ties keep their relative order.
func Sort(rows []Row, key string) ([]Row, error) {
	out := slices.Clone(rows)
	switch key {
	case "", SortOriginal:
		return out, nil
	case SortProjectID:
		slices.SortStableFunc(out, func(a, b Row) int { return cmp.Compare(a.ProjectID, b.ProjectID) })
		return out, nil
	}
	column, ok := numericColumns[key]
	if !ok {
		return nil, ErrUnknownSortKey
	}
	slices.SortStableFunc(out, func(a, b Row) int { return cmp.Compare(column(b), column(a)) })
	return out, nil
}

// Details lists the service totals of a project's lines.
func Details(lines []Line) []DetailRow {
	return lo.Map(lines, func(l Line, _ int) DetailRow {
		return DetailRow{Service: l.ServiceType, TotalPrice: l.TotalPrice, TotalDiscount: l.TotalDiscount}
	})
}
