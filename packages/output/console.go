package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/runner"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatResponse prints the status line, headers when verbose, then the
// body. JSON bodies are indented.
func (f *ConsoleFormatter) FormatResponse(resp *http.Response) {
	f.statusLine(resp, "")
	if f.verbose {
		f.headers(resp, "")
	}
	if len(resp.Body) > 0 {
		fmt.Fprintf(f.writer, "%s\n", prettyBody(resp))
	}
}

func (f *ConsoleFormatter) statusLine(resp *http.Response, indent string) {
	paint := color.New(color.FgGreen, color.Bold).SprintFunc()
	if !resp.Ok() {
		paint = color.New(color.FgRed, color.Bold).SprintFunc()
	}
	cyan := color.New(color.FgCyan).SprintFunc()

	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d", resp.StatusCode)
	}
	fmt.Fprintf(f.writer, "%s%s %s\n", indent, paint("HTTP "+status), cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))
}

func (f *ConsoleFormatter) headers(resp *http.Response, indent string) {
	faint := color.New(color.Faint).SprintFunc()
	keys := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.writer, "%s%s %s\n", indent, faint(k+":"), strings.Join(resp.Headers[k], ", "))
	}
}

func prettyBody(resp *http.Response) string {
	if json.Valid(resp.Body) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
			return buf.String()
		}
	}
	return resp.Text()
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.File
	if title == "" {
		title = result.Name
	}
	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+title))
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		name := r.Name
		if r.Session != "" {
			name += " " + yellow("["+r.Session+"]")
		}

		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Error != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		symbol := green("✓")
		if !r.Passed {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose && r.Response != nil {
			f.statusLine(r.Response, "    ")
			if r.Response.Reused {
				fmt.Fprintf(f.writer, "    Connection: reused\n")
			}
		}

		if !r.Passed && len(r.Assertions) > 0 {
			for _, a := range r.Assertions {
				if !a.Passed {
					fmt.Fprintf(f.writer, "    %s %s\n", red("→"), a.Subject)
					fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
					fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
					if a.Message != "" {
						fmt.Fprintf(f.writer, "      %s\n", a.Message)
					}
				}
			}
		}

		if f.verbose && len(r.Captures) > 0 {
			fmt.Fprintf(f.writer, "    Captures:\n")
			names := make([]string, 0, len(r.Captures))
			for name := range r.Captures {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(f.writer, "      %s = %s\n", name, formatValue(r.Captures[name], 100))
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Steps: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

// FormatRepeat prints run counts and latency percentiles.
func (f *ConsoleFormatter) FormatRepeat(result *runner.RepeatResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "%s\n", bold("Repeat summary"))
	fmt.Fprintf(f.writer, "  Runs:     %d (%s, %s)\n", result.Runs,
		green(fmt.Sprintf("%d passed", result.Passed)),
		red(fmt.Sprintf("%d failed", result.Failed)))
	fmt.Fprintf(f.writer, "  Time:     %s\n", formatLatency(result.Duration))

	s := result.Summary
	if s == nil || s.Total == 0 {
		fmt.Fprintf(f.writer, "\n")
		return
	}
	fmt.Fprintf(f.writer, "  Requests: %d (%d failed)\n", s.Total, s.Failed)
	fmt.Fprintf(f.writer, "  Latency:  p50=%s p95=%s p99=%s min=%s max=%s mean=%s\n",
		formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99),
		formatLatency(s.Min), formatLatency(s.Max), formatLatency(s.Mean))

	for _, step := range s.Steps {
		fmt.Fprintf(f.writer, "    %-24s n=%-5d p50=%-9s p95=%-9s p99=%s\n",
			step.Name, step.Total, formatLatency(step.P50), formatLatency(step.P95), formatLatency(step.P99))
	}
	fmt.Fprintf(f.writer, "\n")
}

func formatLatency(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitreq"), version)
}
