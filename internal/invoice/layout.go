package invoice

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/coreb-invoice/internal/pdf"
)

// Form geometry. Standard lines take two rows each (service, discount)
// starting at BaseServiceRow. The all-services discount line always sits at
// AllServicesDiscountRow regardless of how many services precede it.
const (
	BaseServiceRow         = 4
	RowStep                = 2
	AllServicesDiscountRow = 21
	BioRenderTitleRow      = 6
	BioRenderFirstRow      = 7
	unitEach               = "ea"
)

// FormHeader carries the order data printed above the line items.
type FormHeader struct {
	AccountNumber     string
	OrderNumber       string
	ManagerName       string
	PIName            string
	BioRenderAccounts string
	Date              time.Time
}

// Placement is where a computed line lands on the form.
type Placement struct {
	ServiceRow  int
	DiscountRow int
	Item        int
}

// Place returns the placement of the k-th standard line (0-based).
func Place(k int) Placement {
	row := BaseServiceRow + RowStep*k
	return Placement{ServiceRow: row, DiscountRow: row + 1, Item: 1 + RowStep*k}
}

// PlaceAllServices returns the placement of the all-services discount line
// that follows standardLines standard lines.
func PlaceAllServices(standardLines int) Placement {
	return Placement{
		ServiceRow:  AllServicesDiscountRow,
		DiscountRow: AllServicesDiscountRow + 1,
		Item:        1 + RowStep*standardLines,
	}
}

// OverlapsAllServices reports whether standard lines reach the row the
// all-services discount is written to.
func OverlapsAllServices(standardLines int) bool {
	if standardLines <= 0 {
		return false
	}
	return Place(standardLines-1).DiscountRow >= PlaceAllServices(standardLines).DiscountRow
}

// BuildFields lays a computed invoice out on the form fields.
func BuildFields(h FormHeader, res Result) pdf.Fields {
	fields := pdf.Fields{
		pdf.FieldDebitAccount: h.AccountNumber,
		pdf.FieldRequisition:  h.OrderNumber,
		pdf.FieldDate:         h.Date.Format(pdf.DateLayout),
		pdf.FieldCareOf:       h.ManagerName,
		pdf.FieldServiceFor:   "Service for " + h.PIName,
	}

	standard := 0
	for _, line := range res.Lines {
		if line.IsAllServicesDiscount() {
			continue
		}
		p := Place(standard)
		standard++
		row := pdf.Row(p.ServiceRow)
		fields[row.Item] = strconv.Itoa(p.Item)
		fields[row.Qty] = line.QtyText
		fields[row.Unit] = unitEach
		fields[row.Description] = line.Service
		fields[row.UnitCost] = "$ " + FormatAmount(line.UnitPrice)
		fields[row.Total] = "$ " + FormatAmount(line.Total)
		writeDiscount(fields, p, line)
	}

	next := standard
	for _, line := range res.Lines {
		if !line.IsAllServicesDiscount() {
			continue
		}
		writeDiscount(fields, PlaceAllServices(next), line)
		next++
	}

	fields[pdf.FieldGrandTotal] = "$ " + FormatAmount(res.Payable)

	if accounts := strings.TrimSpace(h.BioRenderAccounts); accounts != "" {
		fields[pdf.Row(BioRenderTitleRow).Description] = "License for"
		for i, account := range strings.Split(accounts, ",") {
			fields[pdf.Row(BioRenderFirstRow+i).Description] = strings.TrimSpace(account)
		}
	}
	return fields
}

func writeDiscount(fields pdf.Fields, p Placement, line ComputedLine) {
	if !line.Discounted {
		return
	}
	row := pdf.Row(p.DiscountRow)
	fields[row.Item] = strconv.Itoa(p.Item + 1)
	fields[row.Qty] = line.DiscountQtyText
	fields[row.Unit] = unitEach
	fields[row.Description] = line.DiscountReason
	fields[row.UnitCost] = "-$ " + FormatAmount(line.DiscountAmount)
	fields[row.Total] = "-$ " + FormatAmount(line.TotalDiscount)
}

// FormatAmount renders a money value with at least one decimal place:
// 150 becomes "150.0" and 12.25 stays "12.25".
func FormatAmount(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatFloat is FormatAmount for persisted values.
func FormatFloat(f float64) string {
	return FormatAmount(decimal.NewFromFloat(f))
}
