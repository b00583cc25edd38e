// Package report renders ordered license and remittance lists as
// downloadable documents. It only formats; callers decide what is in scope.
package report

import (
	"fmt"
	"time"

	"compliance-tracker/internal/models"
)

// Formatter turns a table into document bytes
type Formatter interface {
	ContentType() string
	Extension() string
	Render(t Table) ([]byte, error)
}

// Supported format names
const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

// New returns the formatter for a format name
func New(format string) (Formatter, error) {
	switch format {
	case FormatPDF:
		return NewPDF(), nil
	case FormatCSV:
		return NewCSV(), nil
	}
	return nil, fmt.Errorf("unsupported report format: %q", format)
}

// Table is the format-neutral projection of a report. Widths are grid
// columns out of 12 and only matter to layout-aware formats.
type Table struct {
	Title       string
	GeneratedAt time.Time
	Headers     []string
	Widths      []int
	Rows        [][]string
}

const dateLayout = "2006-01-02"

func LicenseTable(licenses []models.License, generatedAt time.Time) Table {
	t := Table{
		Title:       "License Compliance Report",
		GeneratedAt: generatedAt,
		Headers:     []string{"Company", "License Type", "Issuing Body", "Issue Date", "Expiry Date", "Status"},
		Widths:      []int{2, 2, 2, 2, 2, 2},
		Rows:        make([][]string, 0, len(licenses)),
	}
	for _, l := range licenses {
		t.Rows = append(t.Rows, []string{
			companyName(l.Company),
			l.LicenseType,
			l.IssuingBody,
			l.IssueDate.Format(dateLayout),
			l.ExpiryDate.Format(dateLayout),
			string(l.Status),
		})
	}
	return t
}

func RemittanceTable(remittances []models.Remittance, generatedAt time.Time) Table {
	t := Table{
		Title:       "Remittance Report",
		GeneratedAt: generatedAt,
		Headers:     []string{"Company", "Remittance Type", "Period", "Amount", "Status"},
		Widths:      []int{3, 2, 2, 3, 2},
		Rows:        make([][]string, 0, len(remittances)),
	}
	for _, r := range remittances {
		amount := ""
		if r.Amount.Valid {
			amount = r.Amount.Decimal.StringFixed(2)
		}
		t.Rows = append(t.Rows, []string{
			companyName(r.Company),
			r.RemittanceType,
			r.Period,
			amount,
			string(r.Status),
		})
	}
	return t
}

func companyName(c *models.Company) string {
	if c == nil {
		return ""
	}
	return c.Name
}
