// Package stats exposes obfsrelay's per-user counters as Prometheus
// metrics: an alternate, pull-based view of the same data C7's
// StatsRegistry keeps, wired as an events.Observer instead of reading the
// registry directly so it can run entirely off the event stream.
package stats

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obfs2relay/obfs2relay/events"
	"github.com/obfs2relay/obfs2relay/obfsrelay"
)

// Factory owns the registered collectors. One Factory is shared by every
// per-CPU observer the event stream spawns.
type Factory struct {
	registry *prometheus.Registry

	clientConnections   *prometheus.CounterVec
	telegramConnections *prometheus.CounterVec
	currentConnections  prometheus.Gauge
	trafficBytes        *prometheus.CounterVec
	handshakesRejected  prometheus.Counter
}

// NewFactory builds a Factory and registers its collectors under prefix
// (e.g. "obfs2relay").
func NewFactory(prefix string) *Factory {
	registry := prometheus.NewRegistry()

	f := &Factory{
		registry: registry,
		clientConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_client_connections_total",
			Help: "Client connections accepted, by ip family; the user label is always empty.",
		}, []string{"user", "ip_family"}),
		telegramConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_telegram_connections_total",
			Help: "Upstream connections opened, by user and datacenter.",
		}, []string{"user", "dc"}),
		currentConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_current_connections",
			Help: "Connections currently relaying traffic.",
		}),
		trafficBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_traffic_bytes_total",
			Help: "Bytes relayed, by user and direction.",
		}, []string{"user", "direction"}),
		handshakesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_handshakes_rejected_total",
			Help: "Client preambles that matched no configured user.",
		}),
	}

	registry.MustRegister(
		f.clientConnections,
		f.telegramConnections,
		f.currentConnections,
		f.trafficBytes,
		f.handshakesRejected,
	)

	return f
}

// Handler returns the HTTP handler to mount the metrics endpoint on.
func (f *Factory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{})
}

// Serve starts a metrics HTTP server on bindTo until ctx is cancelled.
func (f *Factory) Serve(ctx context.Context, bindTo string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", f.Handler())

	server := &http.Server{Addr: bindTo, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	return server.ListenAndServe() //nolint: wrapcheck
}

// NewObserverFactory returns an events.ObserverFactory bound to f. Pass it
// to events.New to wire the exporter into the proxy's event stream.
func (f *Factory) NewObserverFactory() events.ObserverFactory {
	return func() events.Observer {
		return processor{factory: f}
	}
}

type processor struct {
	factory *Factory
}

func (p processor) EventStart(evt obfsrelay.EventStart) {
	family := ipFamily(evt.RemoteIP.To4() != nil)
	p.factory.clientConnections.WithLabelValues("", family).Inc()
}

func (p processor) EventConnectedToDC(evt obfsrelay.EventConnectedToDC) {
	p.factory.telegramConnections.WithLabelValues(evt.User, strconv.Itoa(evt.DC)).Inc()
	p.factory.currentConnections.Inc()
}

func (p processor) EventTraffic(evt obfsrelay.EventTraffic) {
	direction := "to_client"
	if !evt.IsRead {
		direction = "to_telegram"
	}

	p.factory.trafficBytes.WithLabelValues(evt.User, direction).Add(float64(evt.Traffic))
}

func (p processor) EventFinish(obfsrelay.EventFinish) {
	p.factory.currentConnections.Dec()
}

func (p processor) EventHandshakeRejected(obfsrelay.EventHandshakeRejected) {
	p.factory.handshakesRejected.Inc()
}

func (p processor) Shutdown() {}
