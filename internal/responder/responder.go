// Package responder holds the domain agents a routed turn lands on: the
// coaching personas backed by the LLM and the static welcome agent.
package responder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fitcoach/internal/memory"
)

// Responder produces the reply for one routed turn.
type Responder interface {
	// Name is the routing target this responder serves.
	Name() string

	// Respond builds the reply from the turn and the bounded context.
	Respond(ctx context.Context, turn string, mem memory.BoundedContext) (string, error)
}

// Registry maps routing targets to responders.
type Registry struct {
	byName map[string]Responder
}

// NewRegistry builds a registry from the given responders. Duplicate names
// are a programming error.
func NewRegistry(responders ...Responder) (*Registry, error) {
	byName := make(map[string]Responder, len(responders))
	for _, r := range responders {
		if _, dup := byName[r.Name()]; dup {
			return nil, fmt.Errorf("duplicate responder %q", r.Name())
		}
		byName[r.Name()] = r
	}
	return &Registry{byName: byName}, nil
}

// Lookup returns the responder for a routing target.
func (r *Registry) Lookup(name string) (Responder, bool) {
	resp, ok := r.byName[name]
	return resp, ok
}

// Names lists registered targets, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildPrompt assembles the user-side prompt: compact history first, then
// the current turn. The persona goes in the system prompt, not here.
func buildPrompt(turn string, mem memory.BoundedContext) string {
	rendered := mem.Render()
	if rendered == "" {
		return turn
	}
	var b strings.Builder
	b.WriteString("Conversación reciente: ")
	b.WriteString(rendered)
	b.WriteString("\n\nMensaje actual: ")
	b.WriteString(turn)
	return b.String()
}
