// File path: internal/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy is the execution mode a route resolves to.
type Strategy string

const (
	StrategyRelationalOnly      Strategy = "relational_only"
	StrategyGraphAndRelational  Strategy = "graph_and_relational"
	StrategyRelationalThenGraph Strategy = "relational_then_optional_graph"
)

// JobRouteID is the route selected unconditionally whenever a job number can
// be normalized from the request; job identifiers are unambiguous while
// keywords are not.
const JobRouteID = "tool_usage_for_job"

// MaxGraphDepth is the hard ceiling for graph traversal depth regardless of
// configuration.
const MaxGraphDepth = 3

// MaxAlternateIDs caps the deduplicated id set handed to the optional
// enrichment query.
const MaxAlternateIDs = 200

// Route maps a question shape to a strategy and pre-approved template(s).
// Routes are immutable configuration, loaded once at startup.
type Route struct {
	ID             string   `json:"id"`
	Match          []string `json:"match"`
	Strategy       Strategy `json:"strategy"`
	SQLTemplate    string   `json:"sql_template"`
	CypherTemplate string   `json:"cypher_template,omitempty"`
}

// Registry holds the routing rule set and the query template tables.
type Registry struct {
	routes []Route
}

// New validates the rule set and constructs a registry. The last rule is the
// catch-all fallback by convention and therefore must have no keywords.
func New(routes []Route) (*Registry, error) {
	if len(routes) == 0 {
		return nil, errors.New("routing rules required")
	}
	for i, route := range routes {
		if strings.TrimSpace(route.ID) == "" {
			return nil, fmt.Errorf("route %d: id required", i)
		}
		switch route.Strategy {
		case StrategyRelationalOnly, StrategyGraphAndRelational, StrategyRelationalThenGraph:
		default:
			return nil, fmt.Errorf("route %s: unknown strategy %q", route.ID, route.Strategy)
		}
		if _, ok := sqlTemplates[route.SQLTemplate]; !ok {
			return nil, fmt.Errorf("route %s: unknown sql template %q", route.ID, route.SQLTemplate)
		}
		if route.CypherTemplate != "" {
			if _, ok := cypherTemplates[route.CypherTemplate]; !ok {
				return nil, fmt.Errorf("route %s: unknown cypher template %q", route.ID, route.CypherTemplate)
			}
		}
	}
	if last := routes[len(routes)-1]; len(last.Match) != 0 {
		return nil, fmt.Errorf("last route %s must be the keywordless catch-all", last.ID)
	}
	copied := make([]Route, len(routes))
	copy(copied, routes)
	return &Registry{routes: copied}, nil
}

// Routes returns a copy of the configured rule set in priority order.
func (r *Registry) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Lookup returns the route with the given id.
func (r *Registry) Lookup(id string) (Route, bool) {
	for _, route := range r.routes {
		if route.ID == id {
			return route, true
		}
	}
	return Route{}, false
}

// SQL returns the relational template body for a template name.
func SQL(name string) (string, bool) {
	body, ok := sqlTemplates[name]
	return body, ok
}

// Cypher returns the graph template function for a template name. Template
// arguments must already be sanitized by the caller.
func Cypher(name string) (CypherTemplate, bool) {
	fn, ok := cypherTemplates[name]
	return fn, ok
}

// ClampDepth bounds a configured traversal depth to the hard ceiling.
func ClampDepth(configured int) int {
	if configured <= 0 {
		return 1
	}
	if configured > MaxGraphDepth {
		return MaxGraphDepth
	}
	return configured
}
