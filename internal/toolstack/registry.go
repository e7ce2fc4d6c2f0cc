package toolstack

import (
	"fmt"
	"strings"

	"github.com/platformsh/platform-cli/internal/errors"
)

// Factory creates a fresh toolstack instance.
type Factory func(env Env) Toolstack

// Registry maps toolstack keys to implementations. Detection runs in
// registration order, so earlier entries win.
type Registry struct {
	env       Env
	factories []Factory
}

// NewRegistry creates a registry from factories in priority order.
func NewRegistry(env Env, factories ...Factory) *Registry {
	return &Registry{env: env, factories: factories}
}

// Default returns the built-in toolstacks: Drupal, then Symfony, then
// generic (which is never detected, only chosen explicitly).
func Default(env Env) *Registry {
	env = env.withDefaults()
	return NewRegistry(env,
		func(env Env) Toolstack { return NewDrupal(env) },
		func(env Env) Toolstack { return NewSymfony(env) },
		func(env Env) Toolstack { return NewGeneric(env) },
	)
}

// Keys lists the registered keys in priority order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.factories))
	for _, f := range r.factories {
		keys = append(keys, f(r.env).Key())
	}
	return keys
}

// All returns a fresh instance of every registered toolstack.
func (r *Registry) All() []Toolstack {
	all := make([]Toolstack, 0, len(r.factories))
	for _, f := range r.factories {
		all = append(all, f(r.env))
	}
	return all
}

// Get returns a fresh instance of the toolstack registered under key.
func (r *Registry) Get(key string) (Toolstack, error) {
	for _, f := range r.factories {
		if t := f(r.env); t.Key() == key {
			return t, nil
		}
	}
	return nil, &errors.Error{
		Code:       errors.ErrToolstack,
		Message:    fmt.Sprintf("Toolstack not found: %s", key),
		Suggestion: fmt.Sprintf("Set 'toolstack' in .platform.app.yaml to one of: %s", strings.Join(r.Keys(), ", ")),
		Cause:      ErrNotFound,
	}
}

// Resolve picks the toolstack for appRoot. An explicit key must exist; it
// never falls back to detection. Without one, the first toolstack whose
// Detect matches wins. A nil toolstack with a nil error means nothing matched.
func (r *Registry) Resolve(appRoot, explicitKey string) (Toolstack, error) {
	if explicitKey != "" {
		return r.Get(explicitKey)
	}

	for _, t := range r.All() {
		if t.Detect(appRoot) {
			return t, nil
		}
	}
	return nil, nil
}
