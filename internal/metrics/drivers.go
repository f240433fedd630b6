package metrics

import (
	"fmt"
	"math"
	"strings"

	"finmetrics/internal/core"
)

type driverFamily int

const (
	familyFallback driverFamily = iota
	familyRevenue
	familyGross
	familyOperatingIncome
	familyOperatingMargin
	familyOpExRatio
	familyEBITDA
	familyNet
)

type magnitude int

const (
	stable magnitude = iota
	moderate
	large
)

func magnitudeOf(absPct float64) magnitude {
	switch {
	case absPct > 10:
		return large
	case absPct > 5:
		return moderate
	default:
		return stable
	}
}

// phrasing holds the favorable and unfavorable copy for one bucket.
// Placeholders: {metric} {direction} {change} {pct}.
type phrasing struct {
	favorable   string
	unfavorable string
}

func same(s string) phrasing { return phrasing{s, s} }

var driverTemplates = map[driverFamily]map[magnitude]phrasing{
	familyRevenue: {
		large: {
			"Revenue {direction} significantly ({pct}%), indicating strong momentum.",
			"Revenue {direction} significantly ({pct}%), indicating potential market challenges.",
		},
		moderate: {
			"Revenue {direction} moderately ({pct}%), continuing growth trajectory.",
			"Revenue {direction} moderately ({pct}%), requiring attention.",
		},
		stable: same("Revenue remained relatively stable with minor {change} of {pct}%."),
	},
	familyGross: {
		large: {
			"Gross margin improved by {pct}pp, suggesting better pricing realization or COGS efficiency.",
			"Gross margin declined by {pct}pp, potentially due to pricing pressure or higher input costs.",
		},
		moderate: {
			"Gross margin improved by {pct}pp, with some benefit from pricing or COGS efficiency.",
			"Gross margin declined by {pct}pp, reflecting some pricing pressure or higher input costs.",
		},
		stable: same("Gross margin was broadly stable, with a minor {change} of {pct}pp."),
	},
	familyOperatingIncome: {
		large: {
			"Operating performance improved, reflecting better cost management.",
			"Operating performance declined, potentially due to cost overruns.",
		},
		moderate: {
			"Operating performance improved, helped by cost management.",
			"Operating performance softened, with some cost overruns.",
		},
		stable: same("Operating income was broadly stable, with a minor {change} of {pct}%."),
	},
	familyOperatingMargin: {
		large: {
			"Operating performance improved, reflecting operating leverage.",
			"Operating performance declined, potentially due to increased operating costs.",
		},
		moderate: {
			"Operating performance improved, with some operating leverage.",
			"Operating performance softened as operating costs rose.",
		},
		stable: same("Operating margin was broadly stable, with a minor {change} of {pct}%."),
	},
	familyOpExRatio: {
		large: {
			"OpEx ratio improved (lower), indicating better expense control relative to revenue.",
			"OpEx ratio increased, suggesting expenses grew faster than revenue.",
		},
		moderate: {
			"OpEx ratio improved (lower), with expenses growing slower than revenue.",
			"OpEx ratio rose, with expenses growing somewhat faster than revenue.",
		},
		stable: same("OpEx ratio was broadly stable, with a minor {change} of {pct}%."),
	},
	familyEBITDA: {
		large: {
			"EBITDA {direction} by {pct}%, strengthening core operating performance.",
			"EBITDA {direction} by {pct}%, weakening core operating performance.",
		},
		moderate: {
			"EBITDA {direction} by {pct}%, modestly strengthening core operating performance.",
			"EBITDA {direction} by {pct}%, modestly weakening core operating performance.",
		},
		stable: same("EBITDA was broadly stable, with a minor {change} of {pct}%."),
	},
	familyNet: {
		large: {
			"Bottom line {direction} by {pct}%, improving overall profitability.",
			"Bottom line {direction} by {pct}%, impacting overall profitability.",
		},
		moderate: {
			"Bottom line {direction} by {pct}%, modestly improving overall profitability.",
			"Bottom line {direction} by {pct}%, modestly impacting overall profitability.",
		},
		stable: same("Bottom line was broadly stable, with a minor {change} of {pct}%."),
	},
	familyFallback: {
		large:    same("{metric} {direction} by {pct}%."),
		moderate: same("{metric} {direction} by {pct}%."),
		stable:   same("{metric} was broadly stable, with a minor {change} of {pct}%."),
	},
}

// explain renders the driver text for one variance. Identical inputs always
// produce identical text.
func explain(family driverFamily, metric string, amount, pct float64, status core.VarianceStatus) string {
	buckets, ok := driverTemplates[family]
	if !ok {
		buckets = driverTemplates[familyFallback]
	}
	absPct := math.Abs(pct)
	p := buckets[magnitudeOf(absPct)]

	tmpl := p.favorable
	if status == core.Unfavorable {
		tmpl = p.unfavorable
	}

	direction, change := "decreased", "decrease"
	switch {
	case amount > 0:
		direction, change = "increased", "increase"
	case amount == 0:
		direction, change = "was unchanged", "change"
	}

	return strings.NewReplacer(
		"{metric}", metric,
		"{direction}", direction,
		"{change}", change,
		"{pct}", fmt.Sprintf("%.1f", absPct),
	).Replace(tmpl)
}
