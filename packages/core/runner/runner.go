package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/assertions"
	"github.com/abdul-hamid-achik/hitreq/packages/capture"
	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/rs/zerolog"
)

type Runner struct {
	config *Config
	logger zerolog.Logger
}

type Config struct {
	// Bail stops the run after the first failed step.
	Bail       bool
	NameFilter string
	// Variables are defaults the script's vars override.
	Variables map[string]string
	// Overrides win over the script's vars.
	Overrides     map[string]string
	ClientOptions []http.ClientOption
	Logger        *zerolog.Logger
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Runner{
		config: cfg,
		logger: logger,
	}
}

type RunResult struct {
	File     string
	Name     string
	Results  []*StepResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Success reports whether no step failed.
func (r *RunResult) Success() bool {
	return r.Failed == 0
}

type StepResult struct {
	Name       string
	Session    string
	Passed     bool
	Skipped    bool
	SkipReason string
	Duration   time.Duration
	Request    *http.Request
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   map[string]string
	Error      error
}

// RunFile parses, validates and runs the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	script, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return r.Run(ctx, script)
}

// Run executes the steps in order. Session-less steps share one client
// without a connection pool; each session name gets its own Session. Every
// session is closed before Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context, script *parser.Script) (result *RunResult, err error) {
	start := time.Now()
	result = &RunResult{
		File: script.Path,
		Name: script.Name,
	}

	resolver := r.newResolver(script)
	client := http.NewClient(r.clientOptions()...)

	sessions := make(map[string]*http.Session)
	defer func() {
		for name, s := range sessions {
			if cerr := s.Close(); cerr != nil {
				r.logger.Warn().Err(cerr).Str("session", name).Msg("closing session")
			}
		}
		result.Duration = time.Since(start)
	}()

	baseDir := ""
	if script.Path != "" {
		baseDir = filepath.Dir(script.Path)
	}

	stopped := ""
	for _, step := range script.Steps {
		if stopped == "" && ctx.Err() != nil {
			stopped = "canceled"
		}
		if stopped != "" {
			result.skip(step, stopped)
			continue
		}
		if r.config.NameFilter != "" && !matchesPattern(step.Name, r.config.NameFilter) {
			result.skip(step, "filtered out")
			continue
		}

		sender, err := r.sender(client, sessions, step.Session)
		if err != nil {
			return result, err
		}

		sr := r.runStep(ctx, sender, resolver, step, baseDir)
		result.Results = append(result.Results, sr)
		if sr.Passed {
			result.Passed++
		} else {
			result.Failed++
			if r.config.Bail {
				stopped = "bail: previous step failed"
			}
		}
	}

	return result, nil
}

func (r *RunResult) skip(step *parser.Step, reason string) {
	r.Results = append(r.Results, &StepResult{
		Name:       step.Label(),
		Session:    step.Session,
		Skipped:    true,
		SkipReason: reason,
	})
	r.Skipped++
}

// doer is satisfied by both *http.Client and *http.Session.
type doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

func (r *Runner) sender(client *http.Client, sessions map[string]*http.Session, name string) (doer, error) {
	if name == "" {
		return client, nil
	}
	if s, ok := sessions[name]; ok {
		return s, nil
	}
	s, err := client.OpenSession()
	if err != nil {
		return nil, fmt.Errorf("opening session %q: %w", name, err)
	}
	sessions[name] = s
	return s, nil
}

func (r *Runner) clientOptions() []http.ClientOption {
	opts := append([]http.ClientOption{}, r.config.ClientOptions...)
	return append(opts, http.WithLogger(r.logger))
}

func (r *Runner) newResolver(script *parser.Script) *env.Resolver {
	resolver := env.NewResolver()
	resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn().Msgf(format, args...)
	})
	resolver.SetVariables(r.config.Variables)
	resolver.SetVariables(script.Vars)
	resolver.SetVariables(r.config.Overrides)
	return resolver
}

func (r *Runner) runStep(ctx context.Context, sender doer, resolver *env.Resolver, step *parser.Step, baseDir string) *StepResult {
	result := &StepResult{
		Name:     step.Label(),
		Session:  step.Session,
		Captures: make(map[string]string),
	}

	req, err := buildRequest(step, resolver)
	if err != nil {
		result.Error = err
		return result
	}
	result.Request = req

	start := time.Now()
	resp, err := sender.Do(ctx, req)
	result.Duration = time.Since(start)

	if err != nil {
		r.logger.Debug().Err(err).Str("step", result.Name).Msg("step failed")
		result.Error = err
		return result
	}
	result.Response = resp

	opts := []assertions.EvaluatorOption{}
	if baseDir != "" {
		opts = append(opts, assertions.WithBaseDir(baseDir))
	}
	result.Assertions = assertions.Evaluate(resp, resolveExpect(step.Expect, resolver), opts...)
	result.Passed = len(assertions.Failed(result.Assertions)) == 0

	captures, err := step.Captures()
	if err != nil {
		result.Error = err
		result.Passed = false
		return result
	}
	values, missing := capture.ExtractAll(resp, captures)
	for name, value := range values {
		result.Captures[name] = value
		resolver.SetCapture(step.Name, name, value)
	}
	for _, name := range missing {
		r.logger.Warn().Str("step", result.Name).Str("capture", name).Msg("capture matched nothing")
	}

	return result
}

// buildRequest resolves placeholders in every part of the step.
func buildRequest(step *parser.Step, resolver *env.Resolver) (*http.Request, error) {
	req := http.NewRequest(step.Method, resolver.Resolve(step.URL))

	for _, p := range step.Params {
		values := make([]string, len(p.Values))
		for i, v := range p.Values {
			values[i] = resolver.Resolve(v)
		}
		req.AddParam(resolver.Resolve(p.Key), values...)
	}
	for k, v := range resolver.ResolveAll(step.Headers) {
		req.SetHeader(k, v)
	}

	if step.JSON != nil {
		req.SetJSON(resolver.ResolveValue(step.JSON))
	} else if step.Body != "" {
		req.SetBody([]byte(resolver.Resolve(step.Body)))
	}

	if step.Timeout != "" {
		d, err := time.ParseDuration(step.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", step.Timeout, err)
		}
		req.SetTimeout(d)
	}
	return req, nil
}

// resolveExpect returns a copy of e with placeholders in its string values
// resolved, so captures from earlier steps can be asserted on.
func resolveExpect(e *parser.Expect, resolver *env.Resolver) *parser.Expect {
	if e == nil {
		return nil
	}
	out := *e
	out.Contains = resolver.Resolve(e.Contains)
	out.Headers = resolver.ResolveAll(e.Headers)
	if e.JSON != nil {
		out.JSON = make(map[string]any, len(e.JSON))
		for path, v := range e.JSON {
			out.JSON[resolver.Resolve(path)] = resolver.ResolveValue(v)
		}
	}
	if schema, ok := e.Schema.(string); ok {
		out.Schema = resolver.Resolve(schema)
	}
	return &out
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}
