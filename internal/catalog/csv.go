package catalog

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV streams the catalog as CSV with a header row.
func WriteCSV(w io.Writer, parts []Part) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Name", "Category", "Price", "Stock Quantity"}); err != nil {
		return err
	}
	for _, p := range parts {
		rec := []string{p.ID, p.Name, p.Category, p.PriceString(), strconv.Itoa(p.StockQty)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
