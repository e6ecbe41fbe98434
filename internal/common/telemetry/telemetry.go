// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/shopintel/queryweaver/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	relationalQueryTotal     *expvar.Int
	relationalQueryLatencyMS *expvar.Int

	graphQueryTotal     *expvar.Map
	graphQueryLatencyMS *expvar.Map

	llmCallTotal     *expvar.Map
	llmCallLatencyMS *expvar.Map

	routeRequests *expvar.Map
)

func ensureInit() {
	initOnce.Do(func() {
		relationalQueryTotal = expvar.NewInt("queryweaver_relational_query_total")
		relationalQueryLatencyMS = expvar.NewInt("queryweaver_relational_query_latency_ms")

		graphQueryTotal = expvar.NewMap("queryweaver_graph_query_total")
		graphQueryLatencyMS = expvar.NewMap("queryweaver_graph_query_latency_ms")

		llmCallTotal = expvar.NewMap("queryweaver_llm_call_total")
		llmCallLatencyMS = expvar.NewMap("queryweaver_llm_call_latency_ms")

		routeRequests = expvar.NewMap("queryweaver_route_requests")
	})
}

// StartSpan records a debug-level trace span; the returned finish callback
// logs the duration together with any supplied attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// SpanDuration reports the elapsed time of the span carried by ctx, if any.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

func RecordRelationalQuery(duration time.Duration) {
	ensureInit()
	relationalQueryTotal.Add(1)
	if duration > 0 {
		relationalQueryLatencyMS.Add(duration.Milliseconds())
	}
}

func RecordGraphQuery(kind string, duration time.Duration) {
	ensureInit()
	graphQueryTotal.Add(mapKey(kind), 1)
	if duration > 0 {
		graphQueryLatencyMS.Add(mapKey(kind), duration.Milliseconds())
	}
}

func RecordLLMCall(kind string, duration time.Duration) {
	ensureInit()
	llmCallTotal.Add(mapKey(kind), 1)
	if duration > 0 {
		llmCallLatencyMS.Add(mapKey(kind), duration.Milliseconds())
	}
}

func RecordRoute(routeID string) {
	ensureInit()
	routeRequests.Add(mapKey(routeID), 1)
}

func mapKey(kind string) string {
	key := strings.TrimSpace(strings.ToLower(kind))
	if key == "" {
		return "unknown"
	}
	return key
}
