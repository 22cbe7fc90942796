package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/tidwall/gjson"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
}

type Evaluator struct {
	response *http.Response
	bodyJSON gjson.Result
	baseDir  string // Base directory for resolving schema file paths
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir resolves relative schema paths against dir and refuses paths
// that leave it.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(resp *http.Response, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		response: resp,
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every check set in expect, in a fixed order: status, ok,
// headers, contains, json paths, schema, duration.
func (e *Evaluator) Evaluate(expect *parser.Expect) []*Result {
	if expect == nil {
		return nil
	}

	var results []*Result
	if expect.Status != 0 {
		results = append(results, e.check("status", e.response.StatusCode, expect.Status))
	}
	if expect.Ok != nil {
		results = append(results, e.check("ok", e.response.Ok(), *expect.Ok))
	}
	for _, name := range sortedKeys(expect.Headers) {
		results = append(results, e.header(name, expect.Headers[name]))
	}
	if expect.Contains != "" {
		results = append(results, e.contains(expect.Contains))
	}
	for _, path := range sortedKeys(expect.JSON) {
		results = append(results, e.jsonPath(path, expect.JSON[path]))
	}
	if expect.Schema != nil {
		results = append(results, e.schema(expect.Schema))
	}
	if expect.MaxDuration != "" {
		results = append(results, e.duration(expect.MaxDuration))
	}
	return results
}

func (e *Evaluator) check(subject string, actual, expected any) *Result {
	passed, msg := equals(actual, expected)
	return &Result{
		Subject:  subject,
		Passed:   passed,
		Message:  msg,
		Expected: expected,
		Actual:   actual,
	}
}

func (e *Evaluator) header(name, expected string) *Result {
	actual := e.response.Header(name)
	result := &Result{
		Subject:  "header " + name,
		Expected: expected,
		Actual:   actual,
		Passed:   strings.Contains(actual, expected),
	}
	if !result.Passed {
		result.Message = fmt.Sprintf("expected header %s to contain '%s', got '%s'", name, expected, actual)
	}
	return result
}

func (e *Evaluator) contains(expected string) *Result {
	result := &Result{
		Subject:  "body",
		Expected: expected,
		Passed:   strings.Contains(e.response.Text(), expected),
	}
	if !result.Passed {
		result.Message = fmt.Sprintf("expected body to contain '%s'", expected)
	}
	return result
}

func (e *Evaluator) jsonPath(path string, expected any) *Result {
	result := &Result{Subject: "json " + path, Expected: expected}
	if !e.bodyJSON.Exists() {
		result.Message = "response body is not JSON"
		return result
	}

	value := e.bodyJSON.Get(path)
	if value.Exists() {
		result.Actual = value.Value()
	}
	result.Passed, result.Message = equals(result.Actual, expected)
	return result
}

func (e *Evaluator) schema(schema any) *Result {
	result := &Result{Subject: "schema", Expected: schema}

	var data []byte
	switch s := schema.(type) {
	case string:
		schemaPath := s
		if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
			schemaPath = filepath.Join(e.baseDir, schemaPath)
		}
		if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
			result.Message = err.Error()
			return result
		}
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			result.Message = fmt.Sprintf("failed to read schema file: %v", err)
			return result
		}
		data = raw
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			result.Message = fmt.Sprintf("failed to marshal inline schema: %v", err)
			return result
		}
		data = raw
	}

	if err := e.response.ValidateSchema(data); err != nil {
		result.Message = err.Error()
		return result
	}
	result.Passed = true
	return result
}

func (e *Evaluator) duration(max string) *Result {
	result := &Result{Subject: "duration", Expected: max, Actual: e.response.Duration.String()}
	limit, err := time.ParseDuration(max)
	if err != nil {
		result.Message = fmt.Sprintf("invalid duration %q", max)
		return result
	}
	result.Passed = e.response.Duration <= limit
	if !result.Passed {
		result.Message = fmt.Sprintf("expected response within %s, took %s", limit, e.response.Duration)
	}
	return result
}

// equals compares loosely: numbers by value whatever their Go type, and
// scalars by their printed form, so YAML 5 matches JSON "5".
func equals(actual, expected any) (bool, string) {
	actual, expected = normalize(actual), normalize(expected)
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if isScalar(actual) && isScalar(expected) && fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

// normalize passes containers through encoding/json so values decoded from
// YAML and from a response body share the same Go types.
func normalize(v any) any {
	switch v.(type) {
	case []any, map[string]any, http.Object:
		data, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return v
		}
		return out
	default:
		return v
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, []any, map[string]any:
		return false
	default:
		return true
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Evaluate checks resp against expect.
func Evaluate(resp *http.Response, expect *parser.Expect, opts ...EvaluatorOption) []*Result {
	return NewEvaluator(resp, opts...).Evaluate(expect)
}

// Failed returns the results that did not pass.
func Failed(results []*Result) []*Result {
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	// Clean and resolve both paths
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	// Ensure the path starts with the base directory
	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
