package toolstack

import "context"

// GenericKey identifies the generic toolstack.
const GenericKey = "generic"

// Generic copies the application as is. It is never detected; applications
// opt in with "toolstack: generic".
type Generic struct {
	Base
}

// NewGeneric creates a generic toolstack.
func NewGeneric(env Env) *Generic {
	return &Generic{Base: newBase(env)}
}

// Key implements Toolstack.
func (g *Generic) Key() string { return GenericKey }

// Detect implements Toolstack.
func (g *Generic) Detect(string) bool { return false }

// Requirements implements Toolstack.
func (g *Generic) Requirements() []string { return nil }

// Build implements Toolstack.
func (g *Generic) Build(context.Context) error { return g.copyApp() }

// Install implements Toolstack.
func (g *Generic) Install(ctx context.Context, docRoot string) error {
	return g.linkWebRoot(docRoot)
}
