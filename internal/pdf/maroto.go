package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var columnSizes = [6]int{1, 1, 1, 5, 2, 2}

var columnTitles = [6]string{"Item", "Qty", "Unit", "Description", "Unit cost", "Total"}

// MarotoFiller lays the named fields out on an invoice form grid.
type MarotoFiller struct {
	Title string
}

// Fill implements Filler.
func (m MarotoFiller) Fill(ctx context.Context, fields Fields) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title := m.Title
	if title == "" {
		title = "Interdepartmental Invoice"
	}

	doc := maroto.New(config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build())

	doc.AddRow(16, text.NewCol(12, title, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}))
	doc.AddRow(8,
		label(3, "Debit account"), value(3, fields[FieldDebitAccount]),
		label(3, "Dept requisition"), value(3, fields[FieldRequisition]),
	)
	doc.AddRow(8,
		label(3, "Date"), value(3, fields[FieldDate]),
		label(3, "Care of"), value(3, fields[FieldCareOf]),
	)
	doc.AddRow(6, col.New(12))

	header := make([]core.Col, 0, len(columnTitles))
	for i, t := range columnTitles {
		header = append(header, text.NewCol(columnSizes[i], t, props.Text{Size: 9, Style: fontstyle.Bold, Align: columnAlign(i)}))
	}
	doc.AddRow(8, header...)

	last := max(fields.LastRow(), minRenderedFormRows)
	for n := 1; n <= last; n++ {
		cells := Row(n).Cells(fields)
		row := make([]core.Col, 0, len(cells))
		for i, c := range cells {
			row = append(row, text.NewCol(columnSizes[i], c, props.Text{Size: 9, Align: columnAlign(i)}))
		}
		doc.AddRow(6, row...)
	}

	doc.AddRow(10,
		col.New(8),
		text.NewCol(2, "Grand total", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2}),
		text.NewCol(2, fields[FieldGrandTotal], props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 2}),
	)

	out, err := doc.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate: %w", err)
	}
	return out.GetBytes(), nil
}

func label(size int, s string) core.Col {
	return text.NewCol(size, s, props.Text{Size: 9, Style: fontstyle.Bold})
}

func value(size int, s string) core.Col {
	return text.NewCol(size, s, props.Text{Size: 9})
}

func columnAlign(i int) align.Type {
	if i >= 4 {
		return align.Right
	}
	return align.Left
}
