package adapters

import (
	"errors"
	"strings"
	"testing"

	"finmetrics/internal/core"
)

func TestParsePeriodsCSV(t *testing.T) {
	in := "Date,Revenue,COGS,OpEx,net_income,cash,employees,customers,notes\n" +
		"2024-11,2320000,1392000,422000,379500,3800000,50,2180,ok\n" +
		"\n" +
		"2024-12, 2450000 ,1470000,425000,,4200000,51,,\n"

	periods, err := ParsePeriodsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}

	nov := periods[0]
	if nov.Date != "2024-11" || nov.Revenue != 2320000 || nov.COGS != 1392000 || nov.OpEx != 422000 {
		t.Fatalf("unexpected november: %+v", nov)
	}
	if v, ok := nov.NetIncome.Get(); !ok || v != 379500 {
		t.Fatalf("net income = %v (%v)", v, ok)
	}
	if v, ok := nov.Employees.Get(); !ok || v != 50 {
		t.Fatalf("employees = %v (%v)", v, ok)
	}

	dec := periods[1]
	if dec.Revenue != 2450000 {
		t.Fatalf("padded revenue not trimmed: %v", dec.Revenue)
	}
	if dec.NetIncome.IsPresent() || dec.Customers.IsPresent() || dec.EBITDA.IsPresent() {
		t.Fatalf("blank optional cells must stay absent: %+v", dec)
	}
}

func TestParsePeriodsCSVErrors(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"empty document", "", "No data found in CSV", ErrNoData},
		{"header only", "date,revenue,cogs,opex\n", "No data found in CSV", ErrNoData},
		{"missing column", "date,revenue,cogs\n2024-01,1,1\n", "Missing required column: opex", ErrMissingColumn},
		{"blank required cell", "date,revenue,cogs,opex\n2024-01,,1,1\n", "Missing required column: revenue", ErrMissingColumn},
		{"bad number", "date,revenue,cogs,opex\n2024-01,abc,1,1\n", `Invalid numeric value "abc" in column revenue (row 2)`, core.ErrNonNumeric},
		{"fractional headcount", "date,revenue,cogs,opex,employees\n2024-01,1,1,1,2.5\n", `Invalid numeric value "2.5" in column employees (row 2)`, core.ErrNonNumeric},
		{"nan revenue", "date,revenue,cogs,opex\n2024-01,NaN,1,1\n", "row 2: revenue: non-numeric value", core.ErrNonNumeric},
		{"nan optional", "date,revenue,cogs,opex,cash\n2024-01,1,1,1,NaN\n", `Invalid numeric value "NaN" in column cash (row 2)`, core.ErrNonNumeric},
		{"inf optional", "date,revenue,cogs,opex,current_assets\n2024-01,1,1,1,Inf\n", `Invalid numeric value "Inf" in column current_assets (row 2)`, core.ErrNonNumeric},
		{"negative inf optional", "date,revenue,cogs,opex,debt\n2024-01,1,1,1,-Inf\n", `Invalid numeric value "-Inf" in column debt (row 2)`, core.ErrNonNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePeriodsCSV(strings.NewReader(tc.in))
			if err == nil {
				t.Fatalf("expected error")
			}
			if err.Error() != tc.want {
				t.Fatalf("error = %q, want %q", err.Error(), tc.want)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error %v does not wrap %v", err, tc.wantErr)
			}
		})
	}
}

func TestParsePeriodsCSVColumnError(t *testing.T) {
	_, err := ParsePeriodsCSV(strings.NewReader("date,revenue,cogs,opex\n2024-01,1,1,1\n2024-02,1,,1\n"))
	var colErr *ColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
	if colErr.Row != 3 || colErr.Column != "cogs" {
		t.Fatalf("unexpected column error: %+v", colErr)
	}
}
