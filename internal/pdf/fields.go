// Package pdf describes the invoice form fields and renders filled forms.
package pdf

import (
	"context"
	"strconv"
	"strings"
)

// Header field names of the invoice form.
const (
	FieldDebitAccount   = "DEBIT ACCOUNTRow1"
	FieldRequisition    = "DEPT REQUISITION Row1"
	FieldDate           = "Date5_af_date"
	FieldCareOf         = "CARE OFRow1"
	FieldServiceFor     = "DESCRIPTIONRow2"
	FieldGrandTotal     = "TOTALGRAND TOTAL"
	DateLayout          = "01/02/2006"
	minRenderedFormRows = 22
)

// Fields maps form field names to the text written into them.
type Fields map[string]string

// Filler renders a filled-out invoice form.
type Filler interface {
	Fill(ctx context.Context, fields Fields) ([]byte, error)
}

// RowFields names the six cells of one table row of the form.
type RowFields struct {
	Item        string
	Qty         string
	Unit        string
	Description string
	UnitCost    string
	Total       string
}

var rowPrefixes = [...]string{"ITEM Row", "QTYRow", "UNITRow", "DESCRIPTIONRow", "UNIT COSTRow", "TOTALRow"}

// Row returns the field names of table row n.
func Row(n int) RowFields {
	s := strconv.Itoa(n)
	return RowFields{
		Item:        rowPrefixes[0] + s,
		Qty:         rowPrefixes[1] + s,
		Unit:        rowPrefixes[2] + s,
		Description: rowPrefixes[3] + s,
		UnitCost:    rowPrefixes[4] + s,
		Total:       rowPrefixes[5] + s,
	}
}

// Cells returns the row values in column order.
func (r RowFields) Cells(f Fields) [6]string {
	return [6]string{f[r.Item], f[r.Qty], f[r.Unit], f[r.Description], f[r.UnitCost], f[r.Total]}
}

// LastRow returns the highest table row referenced by f.
func (f Fields) LastRow() int {
	last := 0
	for key := range f {
		for _, prefix := range rowPrefixes {
			rest, ok := strings.CutPrefix(key, prefix)
			if !ok {
				continue
			}
			if n, err := strconv.Atoi(rest); err == nil && n > last {
				last = n
			}
		}
	}
	return last
}
