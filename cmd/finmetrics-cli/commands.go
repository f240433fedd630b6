package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/subcommands"

	"finmetrics/internal/adapters"
	"finmetrics/internal/core"
	"finmetrics/internal/metrics"
	"finmetrics/internal/report"
	"finmetrics/internal/services"
)

func commands() []subcommands.Command {
	return []subcommands.Command{
		&kpisCmd{input: newInput()},
		&varianceCmd{input: newInput()},
		&forecastCmd{input: newInput()},
		&reportCmd{input: newInput()},
	}
}

// input holds the flags every analysis command shares.
type input struct {
	file    string
	sample  bool
	horizon int
	sel     string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newInput() input {
	return input{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

func (in *input) setFlags(f *flag.FlagSet) {
	f.StringVar(&in.file, "f", "", "CSV file with monthly periods, - reads stdin")
	f.BoolVar(&in.sample, "sample", false, "analyze the built-in sample company instead of a file")
	f.IntVar(&in.horizon, "horizon", 0, "months to forecast (0 uses the default)")
	f.StringVar(&in.sel, "select", "", "JSONPath expression applied to the output, e.g. $[0].gross_margin")
}

func (in *input) periods() ([]core.Period, error) {
	if in.sample {
		return services.SamplePeriods(), nil
	}
	switch in.file {
	case "":
		return nil, errors.New("no input: pass -f <file.csv> or -sample")
	case "-":
		return adapters.ParsePeriodsCSV(in.stdin)
	}
	fh, err := os.Open(in.file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return adapters.ParsePeriodsCSV(fh)
}

type analysis struct {
	periods   []core.Period
	kpis      []core.IndicatorSet
	variances []core.VarianceRecord
	forecasts map[string]core.ScenarioForecast
}

func (in *input) analyze() (analysis, error) {
	periods, err := in.periods()
	if err != nil {
		return analysis{}, err
	}
	kpis, variances, forecasts, err := services.Analyze(periods, in.horizon)
	if err != nil {
		return analysis{}, err
	}
	return analysis{periods: periods, kpis: kpis, variances: variances, forecasts: forecasts}, nil
}

// printJSON writes v as indented JSON, narrowed by the -select expression
// when one is given.
func (in *input) printJSON(v any) error {
	if in.sel != "" {
		// jsonpath walks generic maps and slices, not structs.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		v, err = jsonpath.Get(in.sel, generic)
		if err != nil {
			return fmt.Errorf("select %q: %w", in.sel, err)
		}
	}
	enc := json.NewEncoder(in.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (in *input) fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(in.stderr, err)
	return subcommands.ExitFailure
}

type kpisCmd struct {
	input
	period string
}

func (*kpisCmd) Name() string     { return "kpis" }
func (*kpisCmd) Synopsis() string { return "compute the KPI set of every period" }
func (*kpisCmd) Usage() string {
	return `finmetrics-cli kpis (-f <file.csv> | -sample) [-period YYYY-MM] [-select <jsonpath>]

  Prints the indicator set of each period as JSON, oldest first.
`
}

func (c *kpisCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.period, "period", "", "only print the KPIs of this period")
}

func (c *kpisCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.analyze()
	if err != nil {
		return c.fail(err)
	}
	kpis := a.kpis
	if c.period != "" {
		kpis = kpis[:0:0]
		for _, set := range a.kpis {
			if set.Period == c.period {
				kpis = append(kpis, set)
			}
		}
	}
	if err := c.printJSON(kpis); err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

type varianceCmd struct {
	input
	status string
	metric string
}

func (*varianceCmd) Name() string     { return "variance" }
func (*varianceCmd) Synopsis() string { return "compare the last two periods" }
func (*varianceCmd) Usage() string {
	return `finmetrics-cli variance (-f <file.csv> | -sample) [-status Favorable|Unfavorable] [-metric name] [-select <jsonpath>]

  Prints the variance of each tracked metric between the two most recent
  periods. Fewer than two periods yields an empty list.
`
}

func (c *varianceCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.status, "status", "", "only print variances with this status")
	f.StringVar(&c.metric, "metric", "", "only print this metric, one of: "+strings.Join(metrics.TrackedMetricNames(), ", "))
}

// trackedMetric resolves name case-insensitively to a tracked metric name.
func trackedMetric(name string) (string, error) {
	names := metrics.TrackedMetricNames()
	for _, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q: use one of %s", name, strings.Join(names, ", "))
}

func (c *varianceCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.analyze()
	if err != nil {
		return c.fail(err)
	}
	metric := ""
	if c.metric != "" {
		if metric, err = trackedMetric(c.metric); err != nil {
			return c.fail(err)
		}
	}
	records := a.variances[:0:0]
	for _, r := range a.variances {
		if c.status != "" && !strings.EqualFold(string(r.Status), c.status) {
			continue
		}
		if metric != "" && r.Metric != metric {
			continue
		}
		records = append(records, r)
	}
	if err := c.printJSON(records); err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

type forecastCmd struct {
	input
	scenario string
}

func (*forecastCmd) Name() string     { return "forecast" }
func (*forecastCmd) Synopsis() string { return "project revenue and net income forward" }
func (*forecastCmd) Usage() string {
	return `finmetrics-cli forecast (-f <file.csv> | -sample) [-horizon N] [-scenario name] [-select <jsonpath>]

  Prints base, upside, downside and stress forecasts. With -scenario
  only that scenario is printed when it exists.
`
}

func (c *forecastCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.scenario, "scenario", "", "print a single scenario, one of: "+strings.Join(metrics.ScenarioNames(), ", "))
}

func (c *forecastCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.analyze()
	if err != nil {
		return c.fail(err)
	}
	var out any = a.forecasts
	if sf, ok := a.forecasts[c.scenario]; ok {
		out = sf
	}
	if err := c.printJSON(out); err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	input
	name   string
	format string
	style  string
	width  int
	now    func() time.Time
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "render a full analysis report" }
func (*reportCmd) Usage() string {
	return `finmetrics-cli report (-f <file.csv> | -sample) [-name <title>] [-format terminal|markdown|html]

  Renders KPIs, variances and forecasts as a report. The terminal format
  styles the markdown for the current terminal.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.name, "name", services.DefaultRunName, "report title")
	f.StringVar(&c.format, "format", "terminal", "output format: terminal, markdown or html")
	f.StringVar(&c.style, "style", "", "glamour style for terminal output (auto-detected when empty)")
	f.IntVar(&c.width, "width", 100, "word wrap width for terminal output")
}

func (c *reportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.analyze()
	if err != nil {
		return c.fail(err)
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	name := strings.TrimSpace(c.name)
	if name == "" {
		name = services.DefaultRunName
	}
	run := core.AnalysisRun{
		Name:      name,
		CreatedAt: now().UTC(),
		Periods:   a.periods,
		KPIs:      a.kpis,
		Variances: a.variances,
		Forecasts: a.forecasts,
	}

	switch c.format {
	case "markdown":
		_, err = io.WriteString(c.stdout, report.Markdown(run))
	case "html":
		err = report.HTML(c.stdout, run, run.CreatedAt)
	case "terminal":
		var out string
		out, err = report.Terminal(report.Markdown(run), c.style, c.width)
		if err == nil {
			_, err = io.WriteString(c.stdout, out)
		}
	default:
		err = fmt.Errorf("unknown format %q: use terminal, markdown or html", c.format)
	}
	if err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}
