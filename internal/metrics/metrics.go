// Package metrics implements OpenTelemetry and Prometheus metrics
// collection for the bridge: per-interface packet, drop, and send-error
// counters.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Drop reasons recorded on the dropped-packet counter.
const (
	DropDecode   = "decode"
	DropFiltered = "filtered"
	DropEncode   = "encode"
)

// Metrics manages OpenTelemetry and Prometheus metric collection. All
// record methods are safe on a nil or unconfigured Metrics, so the
// packet path never checks whether metrics are enabled.
type Metrics struct {
	received         metric.Int64Counter
	forwarded        metric.Int64Counter
	dropped          metric.Int64Counter
	sendErrors       metric.Int64Counter
	prometheusAddr   string
	prometheusServer *http.Server
}

// New initializes metrics with OpenTelemetry and/or Prometheus
// endpoints. Metrics are enabled when at least one endpoint is
// configured.
func New(otelEndpoint string, prometheusEndpoint string) (*Metrics, error) {
	m := &Metrics{
		prometheusAddr: prometheusEndpoint,
	}

	if otelEndpoint == "" && prometheusEndpoint == "" {
		return m, nil
	}

	ctx := context.Background()

	var readers []sdkmetric.Reader

	if otelEndpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(otelEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			slog.Warn("failed to create OTLP exporter", "error", err)
		} else {
			readers = append(readers, sdkmetric.NewPeriodicReader(exporter))
			slog.Info("OTLP exporter configured", "endpoint", otelEndpoint)
		}
	}

	if prometheusEndpoint != "" {
		promExporter, err := prometheus.New()
		if err != nil {
			slog.Warn("failed to create Prometheus exporter", "error", err)
		} else {
			readers = append(readers, promExporter)
			slog.Info("Prometheus exporter configured", "endpoint", prometheusEndpoint)
		}
	}

	if len(readers) == 0 {
		slog.Warn("no metric exporters configured")
		return m, nil
	}

	var opts []sdkmetric.Option
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	meterProvider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(meterProvider)

	meter := otel.Meter("mdns-bridge")

	received, err := meter.Int64Counter(
		"mdns_bridge.packets.received",
		metric.WithDescription("Datagrams received from a bridged interface"),
	)
	if err != nil {
		slog.Warn("failed to create received counter", "error", err)
		return m, nil
	}

	forwarded, err := meter.Int64Counter(
		"mdns_bridge.packets.forwarded",
		metric.WithDescription("Datagrams sent to a peer interface"),
	)
	if err != nil {
		slog.Warn("failed to create forwarded counter", "error", err)
		return m, nil
	}

	dropped, err := meter.Int64Counter(
		"mdns_bridge.packets.dropped",
		metric.WithDescription("Ingress datagrams dropped before dispatch, or outbound variants that failed to re-encode"),
	)
	if err != nil {
		slog.Warn("failed to create dropped counter", "error", err)
		return m, nil
	}

	sendErrors, err := meter.Int64Counter(
		"mdns_bridge.send.errors",
		metric.WithDescription("Datagrams lost to transient send failures"),
	)
	if err != nil {
		slog.Warn("failed to create send error counter", "error", err)
		return m, nil
	}

	m.received = received
	m.forwarded = forwarded
	m.dropped = dropped
	m.sendErrors = sendErrors

	if m.prometheusAddr != "" {
		if err := m.startPrometheusServer(); err != nil {
			slog.Warn("failed to start Prometheus server", "error", err)
		}
	}

	return m, nil
}

// Received records one ingress datagram.
func (m *Metrics) Received(iface, family string) {
	if m == nil || m.received == nil {
		return
	}

	m.received.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("interface", iface),
			attribute.String("family", family),
		),
	)
}

// Forwarded records one datagram sent to a peer.
func (m *Metrics) Forwarded(iface, family string) {
	if m == nil || m.forwarded == nil {
		return
	}

	m.forwarded.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("interface", iface),
			attribute.String("family", family),
		),
	)
}

// Dropped records one ingress datagram dropped before dispatch
// (DropDecode, DropFiltered), or one outbound variant that failed to
// re-encode (DropEncode); other peers may still have been sent the
// datagram in that case.
func (m *Metrics) Dropped(iface, family, reason string) {
	if m == nil || m.dropped == nil {
		return
	}

	m.dropped.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("interface", iface),
			attribute.String("family", family),
			attribute.String("reason", reason),
		),
	)
}

// SendError records one datagram lost to a transient send failure.
func (m *Metrics) SendError(iface, family string) {
	if m == nil || m.sendErrors == nil {
		return
	}

	m.sendErrors.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("interface", iface),
			attribute.String("family", family),
		),
	)
}

// startPrometheusServer starts the HTTP server for Prometheus metrics.
func (m *Metrics) startPrometheusServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := m.prometheusAddr
	m.prometheusServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		slog.Info("starting Prometheus metrics server", "endpoint", addr+"/metrics")
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Prometheus metrics server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the Prometheus metrics server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.prometheusServer == nil {
		return nil
	}
	return m.prometheusServer.Shutdown(ctx)
}
