package exporter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rxtx-hosting/stationlens/pkg/reconciler"
	"github.com/rxtx-hosting/stationlens/pkg/serverlist"
)

const serverLabel = "server"

// Registry owns the four per-server gauge families. Writers hold mu for a
// whole reconciliation pass and Gather holds it for a whole scrape, so a
// scrape never sees a half-applied pass.
type Registry struct {
	players   *prometheus.GaugeVec
	fps       *prometheus.GaugeVec
	version   *prometheus.GaugeVec
	time      *prometheus.GaugeVec
	reg       *prometheus.Registry
	cache     map[string]reconciler.Series
	updatedAt time.Time
	mu        sync.RWMutex
}

func NewRegistry(runtimeMetrics bool) *Registry {
	newGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name,
				Help: help,
			},
			[]string{serverLabel},
		)
	}

	r := &Registry{
		players: newGauge("unitystation_players", "Amount of players on server"),
		fps:     newGauge("unitystation_fps", "Frames per second"),
		version: newGauge("unitystation_version", "Version of build"),
		time:    newGauge("unitystation_time", "In-game time"),
		reg:     prometheus.NewRegistry(),
		cache:   make(map[string]reconciler.Series),
	}

	r.reg.MustRegister(r.players, r.fps, r.version, r.time)
	if runtimeMetrics {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return r
}

// Reconcile applies one fetch result as a single atomic pass.
func (r *Registry) Reconcile(servers []serverlist.Server) reconciler.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()

	plan := reconciler.Reconcile(unlocked{r}, servers, r.labelsLocked())
	r.updatedAt = time.Now()
	return plan
}

func (r *Registry) SetServer(series reconciler.Series) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(series)
}

func (r *Registry) RemoveServer(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(name)
}

func (r *Registry) AllLabels() reconciler.LabelSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.labelsLocked()
}

// Snapshot returns the exported series sorted by server name, and the time of
// the last reconciliation.
func (r *Registry) Snapshot() ([]reconciler.Series, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reconciler.Series, 0, len(r.cache))
	for _, series := range r.cache {
		out = append(out, series)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Server < out[j].Server })
	return out, r.updatedAt
}

func (r *Registry) Lookup(name string) (reconciler.Series, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	series, ok := r.cache[name]
	return series, ok
}

// Gather implements prometheus.Gatherer.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reg.Gather()
}

func (r *Registry) setLocked(series reconciler.Series) {
	r.players.WithLabelValues(series.Server).Set(series.Players)
	r.fps.WithLabelValues(series.Server).Set(series.FPS)
	r.version.WithLabelValues(series.Server).Set(series.Version)
	r.time.WithLabelValues(series.Server).Set(series.TimeMinutes)
	r.cache[series.Server] = series
}

func (r *Registry) removeLocked(name string) {
	r.players.DeleteLabelValues(name)
	r.fps.DeleteLabelValues(name)
	r.version.DeleteLabelValues(name)
	r.time.DeleteLabelValues(name)
	delete(r.cache, name)
}

func (r *Registry) labelsLocked() reconciler.LabelSet {
	labels := make(reconciler.LabelSet, len(r.cache))
	for name := range r.cache {
		labels[name] = struct{}{}
	}
	return labels
}

// unlocked is the reconciler.Sink used while mu is already held.
type unlocked struct{ r *Registry }

func (u unlocked) SetServer(series reconciler.Series) { u.r.setLocked(series) }
func (u unlocked) RemoveServer(name string)           { u.r.removeLocked(name) }

// Refresher brings the registry up to date before a scrape is served.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type MetricsServer struct {
	gatherer  prometheus.Gatherer
	refresher Refresher
	path      string
	srv       *http.Server
}

// NewMetricsServer serves gatherer (normally a *Registry) on addr and path.
// refresher may be nil, in which case scrapes return whatever the last
// completed pass left behind.
func NewMetricsServer(addr, path string, gatherer prometheus.Gatherer, refresher Refresher) *MetricsServer {
	m := &MetricsServer{
		gatherer:  gatherer,
		refresher: refresher,
		path:      path,
	}
	m.srv = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return m
}

func (m *MetricsServer) Handler() http.Handler {
	metrics := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
	})

	mux := http.NewServeMux()
	mux.HandleFunc(m.path, func(w http.ResponseWriter, req *http.Request) {
		if m.refresher != nil {
			if err := m.refresher.Refresh(req.Context()); err != nil {
				slog.Warn("Refresh before scrape failed, serving last known state", "error", err)
			}
		}
		metrics.ServeHTTP(w, req)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (m *MetricsServer) StartServer() error {
	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
