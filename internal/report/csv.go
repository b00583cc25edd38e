package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

type CSV struct{}

func NewCSV() *CSV { return &CSV{} }

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Extension() string { return "csv" }

// Render writes the header line followed by one record per row
func (CSV) Render(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Headers); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("csv: write rows: %w", err)
	}
	return buf.Bytes(), nil
}
