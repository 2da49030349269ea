package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rxtx-hosting/stationlens/pkg/reconciler"
	"github.com/rxtx-hosting/stationlens/pkg/serverlist"
	"golang.org/x/sync/singleflight"
)

type Fetcher interface {
	FetchServers(ctx context.Context) ([]serverlist.Server, error)
}

type Updater interface {
	Reconcile(servers []serverlist.Server) reconciler.Plan
}

type Status struct {
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Servers     int       `json:"servers"`
	Ticks       uint64    `json:"ticks"`
	Failures    uint64    `json:"failures"`
	Healthy     bool      `json:"healthy"`
}

// Scheduler runs fetch-then-reconcile ticks. Ticks never overlap: a Refresh
// issued while a tick is in flight waits for that tick instead of starting
// another fetch.
type Scheduler struct {
	fetcher  Fetcher
	updater  Updater
	interval time.Duration
	group    singleflight.Group

	mu     sync.Mutex
	status Status
}

func New(fetcher Fetcher, updater Updater, interval time.Duration) *Scheduler {
	return &Scheduler{
		fetcher:  fetcher,
		updater:  updater,
		interval: interval,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_ = s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.tick(ctx)
		}
	}
}

// Refresh runs a tick now, or joins the one already running. It returns when
// the tick completes or ctx is done, whichever comes first.
func (s *Scheduler) Refresh(ctx context.Context) error {
	ch := s.group.DoChan("tick", func() (interface{}, error) {
		return nil, s.run(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) tick(ctx context.Context) error {
	_, err, _ := s.group.Do("tick", func() (interface{}, error) {
		return nil, s.run(ctx)
	})
	return err
}

func (s *Scheduler) run(ctx context.Context) error {
	start := time.Now()
	servers, err := s.fetcher.FetchServers(ctx)
	if err != nil {
		s.record(start, 0, err)
		slog.Error("Error fetching server list", "error", err)
		return err
	}

	plan := s.updater.Reconcile(servers)
	s.record(start, len(plan.Labels), nil)

	slog.Debug("Reconciled server list",
		"servers", len(plan.Labels),
		"added", len(plan.Added),
		"removed", len(plan.Stale),
		"duration", time.Since(start))
	for _, name := range plan.Stale {
		slog.Debug("Server left the list", "server", name)
	}
	for _, name := range plan.Added {
		slog.Debug("Server joined the list", "server", name)
	}
	return nil
}

func (s *Scheduler) record(attempt time.Time, servers int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Ticks++
	s.status.LastAttempt = attempt
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		s.status.Healthy = false
		return
	}
	s.status.LastSuccess = attempt
	s.status.LastError = ""
	s.status.Servers = servers
	s.status.Healthy = true
}
