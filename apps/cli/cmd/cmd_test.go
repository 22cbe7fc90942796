package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/abdul-hamid-achik/hitreq/packages/mock"
	"github.com/abdul-hamid-achik/hitreq/packages/output"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func resetFlags() {
	configFlag, envFileFlag, outputFlag, timeoutFlag = "", "", "", ""
	verboseFlag = 0
	noColorFlag, requestIDFlag = false, false
	nameFlag, bailFlag, watchFlag = "", false, false
	repeatFlag, rateFlag, varFlags = 0, 0, nil
	paramFlags, headerFlags = nil, nil
	jsonFlag, dataFlag, failFlag = "", "", false
	forceInit = false
	servePortFlag, serveDelayFlag = 8080, ""

	// cobra keeps Changed between executions, which trips flag groups
	unchange := func(f *pflag.Flag) { f.Changed = false }
	rootCmd.PersistentFlags().VisitAll(unchange)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(unchange)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--no-color"))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func newMockServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(mock.NewServer().Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeResponse(t *testing.T, out string) output.JSONResponse {
	t.Helper()
	var resp output.JSONResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGet_ParamsInOrder(t *testing.T) {
	ts := newMockServer(t)

	out, _, err := execute(t, "get", ts.URL+"/data", "-p", "q=test", "-p", "limit=5", "-p", "q=again", "-o", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, resp.Ok)
	assert.Equal(t, "q=test&limit=5&q=again", gjson.GetBytes(resp.Body, "rawQuery").String())
}

func TestPost_JSONKeepsKeyOrder(t *testing.T) {
	ts := newMockServer(t)

	out, _, err := execute(t, "post", ts.URL+"/submit", "--json", `{"b": 1, "a": {"z": true, "y": null}}`, "-o", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	var keys []string
	gjson.GetBytes(resp.Body, "json").ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	assert.Equal(t, []string{"b", "a"}, keys)
	assert.Equal(t, "Submitted!", gjson.GetBytes(resp.Body, "message").String())
}

func TestPost_InvalidJSON(t *testing.T) {
	ts := newMockServer(t)

	_, _, err := execute(t, "post", ts.URL+"/submit", "--json", `{"a":`)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestPost_RawData(t *testing.T) {
	ts := newMockServer(t)

	out, _, err := execute(t, "post", ts.URL+"/submit", "--data", "plain", "-H", "Content-Type: text/plain", "-o", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "plain", gjson.GetBytes(resp.Body, "data").String())
	assert.Equal(t, "text/plain", gjson.GetBytes(resp.Body, "contentType").String())
}

func TestRequest_HeaderFromEnvFile(t *testing.T) {
	ts := newMockServer(t)
	envFile := writeFile(t, t.TempDir(), ".env", "TOKEN=abc\n")

	out, _, err := execute(t, "request", "get", ts.URL+"/headers",
		"-H", "Authorization: Bearer {{TOKEN}}", "--env-file", envFile, "-o", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "Bearer abc", gjson.GetBytes(resp.Body, "headers.Authorization").String())
}

func TestRequest_BadHeader(t *testing.T) {
	_, _, err := execute(t, "request", "GET", "http://localhost/", "-H", "no-colon")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestGet_FailFlag(t *testing.T) {
	ts := newMockServer(t)

	_, _, err := execute(t, "get", ts.URL+"/status/404")
	assert.NoError(t, err)

	out, _, err := execute(t, "get", ts.URL+"/status/404", "--fail")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCodeFor(err))
	assert.Contains(t, out, "404")
}

func TestGet_UnsupportedScheme(t *testing.T) {
	_, _, err := execute(t, "get", "ftp://example.test/file")
	require.Error(t, err)
	assert.Equal(t, http.KindUnsupportedScheme, http.KindOf(err))
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestGet_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	out, _, err := execute(t, "get", "http://"+addr+"/", "-o", "json")
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, exitCodeFor(err))
	assert.Equal(t, string(http.KindConnection), gjson.Get(out, "kind").String())
}

func TestGet_Timeout(t *testing.T) {
	ts := newMockServer(t)

	_, _, err := execute(t, "get", ts.URL+"/delay/2s", "--timeout", "50ms")
	require.Error(t, err)
	assert.True(t, http.IsTimeout(err))
	assert.Equal(t, ExitNetworkError, exitCodeFor(err))
}

func TestRun_DefaultScript(t *testing.T) {
	ts := newMockServer(t)

	out, _, err := execute(t, "run", "--var", "base="+ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "3 passed")
	assert.Contains(t, out, "[main]")
}

func TestRun_FailingStep(t *testing.T) {
	ts := newMockServer(t)
	script := writeFile(t, t.TempDir(), "fail.yaml", fmt.Sprintf(`
steps:
  - name: wrong status
    url: %s/status/500
    expect:
      status: 200
  - name: never sent
    url: %s/
`, ts.URL, ts.URL))

	out, _, err := execute(t, "run", script, "--bail", "-o", "json")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCodeFor(err))

	assert.Equal(t, int64(1), gjson.Get(out, "summary.failed").Int())
	assert.Equal(t, int64(1), gjson.Get(out, "summary.skipped").Int())
}

func TestRun_ParseError(t *testing.T) {
	script := writeFile(t, t.TempDir(), "broken.yaml", "steps: [\n")

	_, _, err := execute(t, "run", script)
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCodeFor(err))
}

func TestRun_NoScripts(t *testing.T) {
	_, _, err := execute(t, "run", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCodeFor(err))
}

func TestRun_Repeat(t *testing.T) {
	ts := newMockServer(t)

	out, _, err := execute(t, "run", "--var", "base="+ts.URL, "--repeat", "3", "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, int64(9), gjson.Get(out, "repeat.total").Int())
	assert.Equal(t, int64(0), gjson.Get(out, "repeat.failed").Int())
	assert.Len(t, gjson.Get(out, "repeat.steps").Array(), 3)
}

func TestRun_InvalidVar(t *testing.T) {
	_, _, err := execute(t, "run", "--var", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestRun_WatchNeedsFiles(t *testing.T) {
	ts := newMockServer(t)

	_, _, err := execute(t, "run", "--var", "base="+ts.URL, "--watch")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bad.yaml", "timeout: soon\n")

	_, _, err := execute(t, "get", "http://localhost/", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCodeFor(err))

	_, _, err = execute(t, "get", "http://localhost/", "--env-file", filepath.Join(dir, "missing.env"))
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCodeFor(err))

	_, _, err = execute(t, "get", "http://localhost/", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCodeFor(err))
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", parser.Sample())

	out, _, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+good+" (3 steps)")

	writeFile(t, dir, "bad.yaml", "steps:\n  - method: GET\n")
	_, stderr, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCodeFor(err))
	assert.Contains(t, stderr, "step has no url")
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, _, err := execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "hitreq project initialized!")

	script, err := parser.ParseFile(filepath.Join(dir, "hitreq.yaml"))
	require.NoError(t, err)
	assert.NoError(t, script.Validate())
	assert.FileExists(t, filepath.Join(dir, ".hitreq.yaml"))

	_, _, err = execute(t, "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCodeFor(err))

	_, _, err = execute(t, "init", "--force")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hitreq version "+version)
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"explicit", exitWith(ExitParseError, errors.New("x")), ExitParseError},
		{"wrapped explicit", fmt.Errorf("outer: %w", exitWith(ExitConfigError, errors.New("x"))), ExitConfigError},
		{"unsupported scheme", &http.Error{Kind: http.KindUnsupportedScheme}, ExitUsageError},
		{"timeout", &http.Error{Kind: http.KindTimeout}, ExitNetworkError},
		{"session closed", &http.Error{Kind: http.KindSessionClosed}, ExitNetworkError},
		{"plain", errors.New("unknown flag"), ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"base=http://x?a=b", " k =v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"base": "http://x?a=b", "k": "v"}, got)

	got, err = parseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseKeyValues([]string{"=v"})
	assert.Error(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&buf, 0, true)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger = newLogger(&buf, 2, true)
	logger.Debug().Msg("debug line")
	logger.Trace().Msg("trace line")
	assert.Contains(t, buf.String(), "debug line")
	assert.NotContains(t, buf.String(), "trace line")
}
