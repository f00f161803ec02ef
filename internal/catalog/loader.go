package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
)

// Decode reads a catalog CSV with a "Service" column and an optional "Price"
// column. Leading and trailing blanks are dropped from every cell.
func Decode(r io.Reader) (Catalog, error) {
	var rows []Entry
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("catalog: decode csv: %w", err)
	}
	out := make(Catalog, 0, len(rows))
	for _, row := range rows {
		row.Service = strings.TrimSpace(row.Service)
		row.Price = strings.TrimSpace(row.Price)
		if row.Service == "" {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// LoadFile decodes the catalog CSV at path.
func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// FileSource reads the price list and the flat-price list from disk on every
// call, so edits to the files apply to the next request.
type FileSource struct {
	ServicesPath    string
	NoUnitPricePath string
}

// Services loads the service price list.
func (s FileSource) Services(ctx context.Context) (Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(s.ServicesPath)
}

// Exemptions loads the services billed at a flat price. A missing file means
// no exemptions.
func (s FileSource) Exemptions(ctx context.Context) (Exemptions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.NoUnitPricePath) == "" {
		return Exemptions{}, nil
	}
	c, err := LoadFile(s.NoUnitPricePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Exemptions{}, nil
		}
		return nil, err
	}
	return NewExemptions(c), nil
}
