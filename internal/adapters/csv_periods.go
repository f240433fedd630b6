package adapters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"finmetrics/internal/core"
)

// Column names accepted in period uploads.
var (
	RequiredColumns = []string{"date", "revenue", "cogs", "opex"}
	OptionalColumns = []string{
		"ebitda", "net_income", "cash", "current_assets", "current_liabilities",
		"debt", "equity", "customers", "employees", "ar", "monthly_burn",
	}
)

var (
	ErrMissingColumn = errors.New("missing required column")
	// ErrNoData is returned for an upload with a header but no rows.
	ErrNoData = errors.New("No data found in CSV")
)

// ColumnError reports a required column that is absent or blank on a row.
type ColumnError struct {
	Row    int
	Column string
}

func (e *ColumnError) Error() string { return "Missing required column: " + e.Column }
func (e *ColumnError) Unwrap() error { return ErrMissingColumn }

// ValueError reports a cell that does not parse as a number.
type ValueError struct {
	Row    int
	Column string
	Value  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("Invalid numeric value %q in column %s (row %d)", e.Value, e.Column, e.Row)
}
func (e *ValueError) Unwrap() error { return core.ErrNonNumeric }

// ParsePeriodsCSV reads monthly periods from a headed CSV document. Header
// names are matched case-insensitively; unknown columns are ignored and blank
// optional cells stay absent.
func ParsePeriodsCSV(r io.Reader) ([]core.Period, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var periods []core.Period
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}

		row := csvRow{line: line, index: index, record: record}
		p, err := row.period()
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}

	if len(periods) == 0 {
		return nil, ErrNoData
	}
	return periods, nil
}

type csvRow struct {
	line   int
	index  map[string]int
	record []string
}

func (r csvRow) cell(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) period() (core.Period, error) {
	for _, col := range RequiredColumns {
		if r.cell(col) == "" {
			return core.Period{}, &ColumnError{Row: r.line, Column: col}
		}
	}

	p := core.Period{Date: r.cell("date")}
	var err error
	if p.Revenue, err = r.required("revenue"); err != nil {
		return core.Period{}, err
	}
	if p.COGS, err = r.required("cogs"); err != nil {
		return core.Period{}, err
	}
	if p.OpEx, err = r.required("opex"); err != nil {
		return core.Period{}, err
	}

	floats := []struct {
		col string
		dst *core.Optional[float64]
	}{
		{"ebitda", &p.EBITDA},
		{"net_income", &p.NetIncome},
		{"cash", &p.Cash},
		{"current_assets", &p.CurrentAssets},
		{"current_liabilities", &p.CurrentLiabilities},
		{"debt", &p.Debt},
		{"equity", &p.Equity},
		{"ar", &p.AccountsReceivable},
		{"monthly_burn", &p.MonthlyBurn},
	}
	for _, f := range floats {
		if *f.dst, err = r.optionalFloat(f.col); err != nil {
			return core.Period{}, err
		}
	}
	if p.Customers, err = r.optionalInt("customers"); err != nil {
		return core.Period{}, err
	}
	if p.Employees, err = r.optionalInt("employees"); err != nil {
		return core.Period{}, err
	}

	if err := p.Validate(); err != nil {
		return core.Period{}, fmt.Errorf("row %d: %w", r.line, err)
	}
	return p, nil
}

func (r csvRow) required(col string) (float64, error) {
	raw := r.cell(col)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ValueError{Row: r.line, Column: col, Value: raw}
	}
	return v, nil
}

func (r csvRow) optionalFloat(col string) (core.Optional[float64], error) {
	raw := r.cell(col)
	if raw == "" {
		return core.None[float64](), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return core.None[float64](), &ValueError{Row: r.line, Column: col, Value: raw}
	}
	return core.Some(v), nil
}

func (r csvRow) optionalInt(col string) (core.Optional[int], error) {
	raw := r.cell(col)
	if raw == "" {
		return core.None[int](), nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return core.None[int](), &ValueError{Row: r.line, Column: col, Value: raw}
	}
	return core.Some(v), nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
