package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const namespace = "messenger"

// unmatchedRoute is the route label for requests gin could not route.
const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests served, by method, route template and status.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency by route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	grpcHandledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "grpc", Name: "handled_total",
		Help: "Unary gRPC calls handled, by service, method and code.",
	}, []string{"grpc_service", "grpc_method", "grpc_code"})

	wsConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "ws", Name: "connections",
		Help: "Open live connections by stream kind.",
	}, []string{"kind"})

	wsEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ws", Name: "events_total",
		Help: "Connection lifecycle events by stream kind.",
	}, []string{"kind", "event"})

	amqpPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "amqp", Name: "publish_errors_total",
		Help: "Failed broker publishes across the event publisher and the relay.",
	})

	busDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "bus", Name: "deliveries_total",
		Help: "Frames handed to subscriber queues, by topic kind.",
	}, []string{"topic_kind"})

	busSlowConsumersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "bus", Name: "slow_consumers_total",
		Help: "Subscribers disconnected because their send queue was full.",
	})

	relayMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "relay", Name: "messages_total",
		Help: "Frames exchanged with peer instances, by direction.",
	}, []string{"direction"})

	storeQueueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store", Name: "queue_wait_seconds",
		Help:    "Time live connections wait for a store worker.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	messagesStoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "messages", Name: "stored_total",
		Help: "Messages persisted, by room type and source.",
	}, []string{"room_type", "source"})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcHandledTotal,
		wsConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		busDeliveriesTotal,
		busSlowConsumersTotal,
		relayMessagesTotal,
		storeQueueWait,
		messagesStoredTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latency per route template.
// Upgraded websocket requests are counted once, when the handshake returns.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		service, method := splitFullMethod(info.FullMethod)
		grpcHandledTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its two names.
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}

// TrackWSConnection bumps the open-connection gauge and returns the matching
// decrement.
func TrackWSConnection(kind string) (done func()) {
	g := wsConnections.WithLabelValues(kind)
	g.Inc()
	return g.Dec
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncBusDelivery(topicKind string) {
	busDeliveriesTotal.WithLabelValues(topicKind).Inc()
}

func IncSlowConsumer() {
	busSlowConsumersTotal.Inc()
}

func IncRelay(direction string) {
	relayMessagesTotal.WithLabelValues(direction).Inc()
}

func ObserveStoreWait(d time.Duration) {
	storeQueueWait.Observe(d.Seconds())
}

func IncMessageStored(roomType, source string) {
	messagesStoredTotal.WithLabelValues(roomType, source).Inc()
}
