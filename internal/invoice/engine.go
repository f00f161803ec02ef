package invoice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Input errors reported by Compute, always wrapped in *LineError.
var (
	ErrMissingPrice            = errors.New("invoice: service price missing")
	ErrMissingQuantity         = errors.New("invoice: service quantity missing")
	ErrMissingDiscountAmount   = errors.New("invoice: discount amount missing")
	ErrMissingDiscountQuantity = errors.New("invoice: discount quantity missing")
	ErrInvalidNumber           = errors.New("invoice: not a number")
)

var lineErrorMessages = map[error]string{
	ErrMissingPrice:            "Service price must be provided",
	ErrMissingQuantity:         "Service samples must be provided",
	ErrMissingDiscountAmount:   "Discount amount must be provided",
	ErrMissingDiscountQuantity: "Discounted sample number must be provided",
}

var hundred = decimal.NewFromInt(100)

// LineError ties an input error to the submitted line that caused it.
type LineError struct {
	Index   int
	Service string
	Field   string
	Err     error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (%s) %s: %v", e.Index, e.Service, e.Field, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Message is the user facing text for the error.
func (e *LineError) Message() string {
	if msg, ok := lineErrorMessages[e.Err]; ok {
		return msg
	}
	return fmt.Sprintf("%s of %q must be a number", e.Field, e.Service)
}

// LineInput is one service line as submitted on the invoice form. Values are
// kept as raw text; blank means not provided.
type LineInput struct {
	Service        string
	Qty            string
	Price          string
	DiscountReason string
	DiscountQty    string
	DiscountAmount string
}

func (in LineInput) isAllServicesDiscount() bool {
	return in.Service == AllServicesDiscount
}

// ComputedLine is a line with its totals resolved.
type ComputedLine struct {
	// Index is the position of the line on the submitted form.
	Index     int
	Service   string
	QtyText   string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Total     decimal.Decimal

	Discounted      bool
	DiscountReason  string
	DiscountQtyText string
	DiscountQty     decimal.Decimal
	// DiscountAmount is the per-unit discount actually applied. For the
	// all-services line it is the money value of the submitted percentage.
	DiscountAmount decimal.Decimal
	TotalDiscount  decimal.Decimal
}

// IsAllServicesDiscount reports whether c is the order-wide discount line.
func (c ComputedLine) IsAllServicesDiscount() bool {
	return c.Service == AllServicesDiscount
}

// Apply copies the computed values onto the persisted record.
func (c ComputedLine) Apply(l Line) Line {
	l.ServiceSampleNumber = c.Quantity.InexactFloat64()
	l.ServiceSamplePrice = c.UnitPrice.InexactFloat64()
	l.TotalPrice = c.Total.InexactFloat64()
	l.DiscountSampleNumber = c.DiscountQty.InexactFloat64()
	l.DiscountSampleAmount = c.DiscountAmount.InexactFloat64()
	l.DiscountReason = c.DiscountReason
	l.TotalDiscount = c.TotalDiscount.InexactFloat64()
	return l
}

// Result is the outcome of computing a whole invoice.
type Result struct {
	// Lines holds standard lines in submitted order followed by the
	// all-services discount lines.
	Lines         []ComputedLine
	GrandTotal    decimal.Decimal
	GrandDiscount decimal.Decimal
	Payable       decimal.Decimal
}

// Compute resolves line totals and discounts. Standard lines are computed
// first, in submitted order. All-services discount lines follow, so their
// percentage always applies to the complete grand total. exempt reports the
// services billed at a flat price; nil means none.
func Compute(inputs []LineInput, exempt func(service string) bool) (Result, error) {
	if exempt == nil {
		exempt = func(string) bool { return false }
	}
	res := Result{
		Lines:         make([]ComputedLine, 0, len(inputs)),
		GrandTotal:    decimal.Zero,
		GrandDiscount: decimal.Zero,
	}

	var deferred []int
	for i, in := range inputs {
		if in.isAllServicesDiscount() {
			deferred = append(deferred, i)
			continue
		}
		line, err := computeStandard(i, in, exempt)
		if err != nil {
			return Result{}, err
		}
		res.GrandTotal = res.GrandTotal.Add(line.Total)
		res.GrandDiscount = res.GrandDiscount.Add(line.TotalDiscount)
		res.Lines = append(res.Lines, line)
	}

	for _, i := range deferred {
		line, err := computeAllServices(i, inputs[i], res.GrandTotal)
		if err != nil {
			return Result{}, err
		}
		res.GrandDiscount = res.GrandDiscount.Add(line.TotalDiscount)
		res.Lines = append(res.Lines, line)
	}

	res.Payable = res.GrandTotal.Sub(res.GrandDiscount)
	return res, nil
}

func computeStandard(i int, in LineInput, exempt func(string) bool) (ComputedLine, error) {
	price, err := required(i, in.Service, "price", in.Price, ErrMissingPrice)
	if err != nil {
		return ComputedLine{}, err
	}
	qty, err := required(i, in.Service, "quantity", in.Qty, ErrMissingQuantity)
	if err != nil {
		return ComputedLine{}, err
	}
	price = price.Round(1)

	line := ComputedLine{
		Index:     i,
		Service:   in.Service,
		QtyText:   strings.TrimSpace(in.Qty),
		Quantity:  qty,
		UnitPrice: price,
		Total:     qty.Mul(price),
	}
	if exempt(in.Service) {
		line.Total = price
	}

	if !hasReason(in) {
		line.DiscountQtyText = strings.TrimSpace(in.DiscountQty)
		line.DiscountQty = lenient(in.DiscountQty)
		line.DiscountAmount = lenient(in.DiscountAmount)
		line.TotalDiscount = decimal.Zero
		return line, nil
	}
	amount, err := required(i, in.Service, "discount amount", in.DiscountAmount, ErrMissingDiscountAmount)
	if err != nil {
		return ComputedLine{}, err
	}
	dqty, err := required(i, in.Service, "discount quantity", in.DiscountQty, ErrMissingDiscountQuantity)
	if err != nil {
		return ComputedLine{}, err
	}
	line.Discounted = true
	line.DiscountReason = strings.TrimSpace(in.DiscountReason)
	line.DiscountQtyText = strings.TrimSpace(in.DiscountQty)
	line.DiscountQty = dqty
	line.DiscountAmount = amount
	line.TotalDiscount = dqty.Mul(amount)
	return line, nil
}

// computeAllServices treats the discount amount as a percentage of
// grandTotal. The line never contributes to the grand total itself.
func computeAllServices(i int, in LineInput, grandTotal decimal.Decimal) (ComputedLine, error) {
	line := ComputedLine{
		Index:           i,
		Service:         in.Service,
		QtyText:         strings.TrimSpace(in.Qty),
		Quantity:        lenient(in.Qty),
		UnitPrice:       lenient(in.Price),
		Total:           decimal.Zero,
		DiscountQtyText: "1.0",
		DiscountQty:     decimal.NewFromInt(1),
		DiscountAmount:  decimal.Zero,
		TotalDiscount:   decimal.Zero,
	}
	if !hasReason(in) {
		line.DiscountAmount = lenient(in.DiscountAmount)
		return line, nil
	}
	percent, err := required(i, in.Service, "discount amount", in.DiscountAmount, ErrMissingDiscountAmount)
	if err != nil {
		return ComputedLine{}, err
	}
	line.Discounted = true
	line.DiscountReason = strings.TrimSpace(in.DiscountReason)
	line.DiscountAmount = grandTotal.Mul(percent).Div(hundred).Round(1)
	line.TotalDiscount = line.DiscountQty.Mul(line.DiscountAmount)
	return line, nil
}

func hasReason(in LineInput) bool {
	return strings.TrimSpace(in.DiscountReason) != ""
}

func required(i int, service, field, raw string, missing error) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &LineError{Index: i, Service: service, Field: field, Err: missing}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &LineError{Index: i, Service: service, Field: field, Err: ErrInvalidNumber}
	}
	return d, nil
}

// lenient parses optional numbers; blank or malformed text is zero.
func lenient(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LegacyPercentDiscount reproduces the percentage shown when an invoice is
// reopened: the discount/total ratio is rounded to a whole number (half to
// even) before scaling by 100, so 0.1 shows as 0 and 0.6 as 100.
func LegacyPercentDiscount(totalDiscount, totalPriceSum float64) float64 {
	if totalPriceSum == 0 {
		return 0
	}
	ratio := decimal.NewFromFloat(totalDiscount).Div(decimal.NewFromFloat(totalPriceSum))
	return ratio.RoundBank(0).Mul(hundred).InexactFloat64()
}
