package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/runner"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary     `json:"summary"`
	Steps    []JSONStep      `json:"steps"`
	Repeat   *runner.Summary `json:"repeat,omitempty"`
	Duration float64         `json:"duration"`
	Time     string          `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONStep represents a single step result
type JSONStep struct {
	Name       string            `json:"name"`
	File       string            `json:"file,omitempty"`
	Session    string            `json:"session,omitempty"`
	Passed     bool              `json:"passed"`
	Skipped    bool              `json:"skipped,omitempty"`
	SkipReason string            `json:"skipReason,omitempty"`
	Duration   float64           `json:"duration"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"errorKind,omitempty"`
	Request    *JSONRequest      `json:"request,omitempty"`
	Response   *JSONResponse     `json:"response,omitempty"`
	Assertions []JSONAssertion   `json:"assertions,omitempty"`
	Captures   map[string]string `json:"captures,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Query   string            `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details. Body is embedded as JSON when
// the response body is valid JSON, otherwise as a string.
type JSONResponse struct {
	StatusCode int                 `json:"statusCode"`
	Status     string              `json:"status"`
	Ok         bool                `json:"ok"`
	Reused     bool                `json:"reused"`
	Headers    map[string][]string `json:"headers,omitempty"`
	Body       json.RawMessage     `json:"body,omitempty"`
	Duration   float64             `json:"duration"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONStep
	repeat  *runner.Summary
	pending bool
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONStep, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func newJSONResponse(resp *http.Response) *JSONResponse {
	out := &JSONResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Ok:         resp.Ok(),
		Reused:     resp.Reused,
		Headers:    resp.Headers,
		Duration:   float64(resp.Duration.Milliseconds()),
	}
	if len(resp.Body) > 0 {
		if json.Valid(resp.Body) {
			out.Body = json.RawMessage(resp.Body)
		} else if text, err := json.Marshal(resp.Text()); err == nil {
			out.Body = text
		}
	}
	return out
}

// FormatResponse writes one response document immediately.
func (f *JSONFormatter) FormatResponse(resp *http.Response) {
	f.encode(newJSONResponse(resp))
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.pending = true
	for _, r := range result.Results {
		step := JSONStep{
			Name:     r.Name,
			File:     result.File,
			Session:  r.Session,
			Passed:   r.Passed,
			Skipped:  r.Skipped,
			Duration: float64(r.Duration.Milliseconds()),
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			step.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			step.Error = r.Error.Error()
			step.ErrorKind = string(http.KindOf(r.Error))
		}

		if r.Request != nil {
			step.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Query:   r.Request.Params.Encode(),
				Headers: r.Request.Headers,
			}
		}

		if r.Response != nil {
			step.Response = newJSONResponse(r.Response)
		}

		if len(r.Assertions) > 0 {
			step.Assertions = make([]JSONAssertion, len(r.Assertions))
			for i, a := range r.Assertions {
				step.Assertions[i] = JSONAssertion{
					Subject:  a.Subject,
					Expected: a.Expected,
					Actual:   a.Actual,
					Passed:   a.Passed,
					Message:  a.Message,
				}
			}
		}

		if len(r.Captures) > 0 {
			step.Captures = r.Captures
		}

		f.results = append(f.results, step)
	}
}

// FormatRepeat adds the latency summary to the flushed document.
func (f *JSONFormatter) FormatRepeat(result *runner.RepeatResult) {
	f.pending = true
	f.repeat = result.Summary
}

// FormatError writes {"error": ...} immediately, with the error kind when
// the error came from the HTTP client.
func (f *JSONFormatter) FormatError(err error) {
	out := map[string]string{"error": err.Error()}
	if kind := http.KindOf(err); kind != "" {
		out["kind"] = string(kind)
	}
	f.encode(out)
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output. It writes nothing when no run
// was formatted.
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	if !f.pending {
		return nil
	}

	var passed, failed, skipped int
	for _, t := range f.results {
		if t.Skipped {
			skipped++
		} else if t.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Steps:    f.results,
		Repeat:   f.repeat,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	f.pending = false
	return f.encode(output)
}

func (f *JSONFormatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
