package env

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitcontract/packages/builtin"
	"github.com/rs/zerolog"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// UnresolvedError lists the expressions Resolve could not expand.
type UnresolvedError struct {
	Exprs []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved variables: %s", strings.Join(e.Exprs, ", "))
}

// Resolver expands {{...}} expressions. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]string
	captures  map[string]string
	funcs     *builtin.Registry
	log       zerolog.Logger
}

type Option func(*Resolver)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// WithFunctions replaces the built-in function registry.
func WithFunctions(funcs *builtin.Registry) Option {
	return func(r *Resolver) {
		r.funcs = funcs
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		variables: make(map[string]string),
		captures:  make(map[string]string),
		funcs:     builtin.NewRegistry(),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
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

// SetCapture stores a value captured by caseName. It is reachable both as
// {{caseName.name}} and as {{name}}; the latter is overwritten by later
// captures of the same name.
func (r *Resolver) SetCapture(caseName, name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures[caseName+"."+name] = value
	r.captures[name] = value
}

func (r *Resolver) Capture(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

// Captures returns a copy of every captured value.
func (r *Resolver) Captures() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.captures))
	for k, v := range r.captures {
		out[k] = v
	}
	return out
}

// Resolve expands every expression in input. Expressions that cannot be
// expanded are left in place and reported in an *UnresolvedError; a failing
// built-in function is returned as is.
func (r *Resolver) Resolve(input string) (string, error) {
	var unresolved []string
	var firstErr error

	out := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		val, ok, err := r.lookup(expr)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		if !ok {
			r.log.Debug().Str("expr", expr).Msg("unresolved variable")
			unresolved = append(unresolved, expr)
			return match
		}
		return val
	})

	if firstErr != nil {
		return out, firstErr
	}
	if len(unresolved) > 0 {
		return out, &UnresolvedError{Exprs: unresolved}
	}
	return out, nil
}

func (r *Resolver) lookup(expr string) (string, bool, error) {
	if strings.HasPrefix(expr, "$") {
		val, ok := os.LookupEnv(expr[1:])
		return val, ok, nil
	}

	if strings.Contains(expr, "(") {
		return r.funcs.Call(expr)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if val, ok := r.captures[expr]; ok {
		return val, true, nil
	}
	val, ok := r.variables[expr]
	return val, ok, nil
}

// ResolveAll resolves every value of values and stops at the first error.
func (r *Resolver) ResolveAll(values map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make(map[string]string, len(values))
	for _, k := range keys {
		v, err := r.Resolve(values[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		result[k] = v
	}
	return result, nil
}

// HasUnresolved reports whether input still contains an expression
// Resolve would not expand. Functions are not evaluated.
func (r *Resolver) HasUnresolved(input string) bool {
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if _, ok := os.LookupEnv(expr[1:]); !ok {
				return true
			}
		case strings.Contains(expr, "("):
		default:
			r.mu.RLock()
			_, inCaptures := r.captures[expr]
			_, inVars := r.variables[expr]
			r.mu.RUnlock()
			if !inCaptures && !inVars {
				return true
			}
		}
	}
	return false
}
