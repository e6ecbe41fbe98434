// File path: internal/registry/selector.go
package registry

import (
	"strings"

	"github.com/shopintel/queryweaver/internal/guard"
	"github.com/shopintel/queryweaver/internal/params"
)

// Selector picks a route for a question. The rule set order encodes
// priority; the last rule is the guaranteed fallback.
type Selector struct {
	registry *Registry
	guard    *guard.Guard
}

// NewSelector constructs a selector over an immutable registry.
func NewSelector(registry *Registry, g *guard.Guard) *Selector {
	return &Selector{registry: registry, guard: g}
}

// Select resolves a route for the question. A write-intent question fails
// before any route is chosen. A normalizable job number forces the per-job
// route when it is configured. Otherwise the first rule whose entire keyword
// list matches wins, and the final catch-all guarantees a route.
func (s *Selector) Select(question string, parameters map[string]interface{}) (Route, error) {
	if err := s.guard.CheckQuestion(question); err != nil {
		return Route{}, err
	}

	if jobNum := params.JobNum(parameters, question); jobNum != "" {
		if route, ok := s.registry.Lookup(JobRouteID); ok {
			return route, nil
		}
	}

	lowered := strings.ToLower(question)
	routes := s.registry.routes
	for _, route := range routes {
		if len(route.Match) == 0 {
			continue
		}
		if matchesAll(lowered, route.Match) {
			return route, nil
		}
	}
	return routes[len(routes)-1], nil
}

func matchesAll(loweredQuestion string, keywords []string) bool {
	for _, keyword := range keywords {
		if !strings.Contains(loweredQuestion, strings.ToLower(keyword)) {
			return false
		}
	}
	return true
}
