package invoice

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"
)

// ExportFilename is the download name of the CSV export.
const ExportFilename = "Invoices.csv"

type csvRow struct {
	ProjectID     string `csv:"Project ID"`
	TotalPrice    string `csv:"Total price"`
	TotalDiscount string `csv:"Total discount"`
	FinalPrice    string `csv:"Final price"`
}

// EncodeCSV renders rows with a "Project ID,Total price,Total discount,Final
// price" header. Empty input is rejected with ErrNothingToExport.
func EncodeCSV(rows []Row) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}
	records := lo.Map(rows, func(r Row, _ int) csvRow {
		return csvRow{
			ProjectID:     r.ProjectID,
			TotalPrice:    FormatFloat(r.TotalPrice),
			TotalDiscount: FormatFloat(r.TotalDiscount),
			FinalPrice:    FormatFloat(r.FinalPrice),
		}
	})
	var buf bytes.Buffer
	if err := gocsv.Marshal(records, &buf); err != nil {
		return nil, fmt.Errorf("encode invoices csv: %w", err)
	}
	return buf.Bytes(), nil
}
