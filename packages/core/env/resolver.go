package env

import (
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitreq/packages/builtin"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
)

var (
	variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	// ${NAME} is shorthand for {{$NAME}}
	envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver substitutes placeholders. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	captures  map[string]string
	warnFunc  WarnFunc
	funcs     *builtin.Registry
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]string),
		captures:  make(map[string]string),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called for unresolved placeholders
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value taken from step's response, reachable as both
// {{name}} and {{step.name}}.
func (r *Resolver) SetCapture(step, name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[name] = value
	if step != "" {
		r.captures[step+"."+name] = value
	}
}

func (r *Resolver) lookup(expr string) (string, bool) {
	if strings.HasPrefix(expr, "$") {
		return os.LookupEnv(expr[1:])
	}
	if v, ok, err := r.funcs.Call(expr); ok {
		if err != nil {
			r.warn("%v", err)
			return "", false
		}
		return v, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[expr]; ok {
		return v, true
	}
	v, ok := r.variables[expr]
	return v, ok
}

func (r *Resolver) Resolve(input string) string {
	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := r.lookup(expr); ok {
			return v
		}
		r.warn("unresolved variable: %s", expr)
		return match
	})
	return envPattern.ReplaceAllStringFunc(out, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		r.warn("unresolved environment variable: %s", name)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// ResolveValue walks a decoded script value and resolves every string in
// it. Containers are copied, never modified in place.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Resolve(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case http.Object:
		out := make(http.Object, 0, len(val))
		for _, f := range val {
			out = append(out, http.Field{Key: f.Key, Value: r.ResolveValue(f.Value)})
		}
		return out
	default:
		return v
	}
}

// Unresolved lists placeholders in input that have no value, in order.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok := r.lookup(expr); !ok {
			missing = append(missing, expr)
		}
	}
	for _, m := range envPattern.FindAllStringSubmatch(input, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok {
			missing = append(missing, "$"+m[1])
		}
	}
	return missing
}
