// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes connector counters to Prometheus
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/eocon/pkg/connector"
	"github.com/Thermoquad/eocon/pkg/esp3"
)

// Source is what the collector reads on every scrape. *connector.Connector
// implements it.
type Source interface {
	State() connector.State
	Statistics() esp3.StatsSnapshot
	DeliveryStats() (delivered, failed uint64)
	LinkStats() connector.LinkStats
	QueueDepths() (inbound, outbound int)
}

// Config configures the collector
type Config struct {
	Namespace   string
	ConstLabels prometheus.Labels
}

// Option configures the collector
type Option func(*Config)

// WithNamespace sets the metric namespace (default "eocon")
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithConstLabels adds constant labels to every metric
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// Collector reads connector counters at scrape time
type Collector struct {
	src Source

	frames        *prometheus.Desc
	headerRejects *prometheus.Desc
	truncated     *prometheus.Desc
	skippedBytes  *prometheus.Desc
	packetsByType *prometheus.Desc
	deliveries    *prometheus.Desc
	bytesIn       *prometheus.Desc
	bytesOut      *prometheus.Desc
	packetsOut    *prometheus.Desc
	ioErrors      *prometheus.Desc
	queueDepth    *prometheus.Desc
	running       *prometheus.Desc
}

// NewCollector creates a collector over src
func NewCollector(src Source, opts ...Option) *Collector {
	cfg := Config{Namespace: "eocon"}
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(cfg.Namespace, subsystem, name),
			help, labels, cfg.ConstLabels)
	}

	return &Collector{
		src:           src,
		frames:        desc("decoder", "frames_total", "Frames decoded, by payload checksum result.", "result"),
		headerRejects: desc("decoder", "header_rejects_total", "Frames discarded for a header checksum mismatch."),
		truncated:     desc("decoder", "truncated_frames_total", "Frames cut short by the end of available input."),
		skippedBytes:  desc("decoder", "skipped_bytes_total", "Bytes discarded while searching for a sync byte."),
		packetsByType: desc("decoder", "packets_total", "Decoded packets, by packet type.", "type"),
		deliveries:    desc("distributor", "deliveries_total", "Listener deliveries, by result.", "result"),
		bytesIn:       desc("link", "received_bytes_total", "Bytes read from the transport."),
		bytesOut:      desc("link", "sent_bytes_total", "Bytes written to the transport."),
		packetsOut:    desc("link", "sent_packets_total", "Packets written to the transport."),
		ioErrors:      desc("link", "errors_total", "Transport errors, by direction.", "direction"),
		queueDepth:    desc("link", "queue_depth", "Items buffered between loops, by queue.", "queue"),
		running:       desc("", "running", "1 while acquisition is running."),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.frames, c.headerRejects, c.truncated, c.skippedBytes, c.packetsByType,
		c.deliveries, c.bytesIn, c.bytesOut, c.packetsOut, c.ioErrors, c.queueDepth, c.running,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	stats := c.src.Statistics()
	counter(c.frames, stats.ValidFrames, "valid")
	counter(c.frames, stats.PayloadErrors, "invalid")
	counter(c.headerRejects, stats.HeaderRejects)
	counter(c.truncated, stats.TruncatedFrames)
	counter(c.skippedBytes, stats.SkippedBytes)
	for kind, n := range stats.ByType {
		counter(c.packetsByType, n, esp3.FormatPacketType(kind))
	}

	delivered, failed := c.src.DeliveryStats()
	counter(c.deliveries, delivered, "delivered")
	counter(c.deliveries, failed, "failed")

	link := c.src.LinkStats()
	counter(c.bytesIn, link.BytesIn)
	counter(c.bytesOut, link.BytesOut)
	counter(c.packetsOut, link.PacketsOut)
	counter(c.ioErrors, link.ReadErrors, "read")
	counter(c.ioErrors, link.WriteErrors, "write")

	inbound, outbound := c.src.QueueDepths()
	gauge(c.queueDepth, float64(inbound), "inbound_bytes")
	gauge(c.queueDepth, float64(outbound), "outbound_packets")

	running := 0.0
	if c.src.State().Phase == connector.PhaseRunning {
		running = 1
	}
	gauge(c.running, running)
}

// NewRouter serves g at /metrics plus a /healthz probe
func NewRouter(g prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}

// Serve registers a collector for src on a fresh registry and serves it on
// addr until ctx is cancelled
func Serve(ctx context.Context, addr string, src Source, log zerolog.Logger, opts ...Option) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(src, opts...)); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
