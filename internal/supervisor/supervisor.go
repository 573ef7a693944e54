// Package supervisor is the health supervisor: a ticker-driven job that
// turns "one callback per tick" into "one health check + restart action
// per registered peer". It is non-authoritative — it never synthesizes
// state, only restarts a dead peer and lets it rebuild its own state
// from its own source of truth.
package supervisor

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/mkirsten/beosound5c-sub001/internal/routerclient"
)

// DefaultInterval is the health-check tick period.
const DefaultInterval = 5 * time.Minute

// HealthDeadline bounds how long a peer's /health endpoint has to respond.
const HealthDeadline = 1 * time.Second

// Peer is one process this supervisor watches: a health URL to poll and
// the service-manager unit name to restart on failure.
type Peer struct {
	Name        string
	HealthURL   string
	ServiceUnit string

	mu               sync.Mutex
	consecutiveFails int
}

// Supervisor periodically checks each registered Peer's liveness and
// restarts it through the host's service manager on failure.
type Supervisor struct {
	client   *routerclient.Client
	interval time.Duration
	peers    []*Peer
	restart  func(ctx context.Context, unit string) error
}

// New builds a Supervisor watching peers at the given interval (<=0 uses
// DefaultInterval).
func New(interval time.Duration, peers []*Peer, client *routerclient.Client) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Supervisor{
		client:   client,
		interval: interval,
		peers:    peers,
		restart:  systemctlRestart,
	}
}

// Run ticks at the configured interval, checking every peer, until ctx is
// cancelled. It performs an initial check immediately, then re-checks
// every interval thereafter.
func (s *Supervisor) Run(ctx context.Context) {
	slog.Info("supervisor: starting", "interval", s.interval, "peers", len(s.peers))

	s.checkAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("supervisor: stopping")
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Supervisor) checkAll(ctx context.Context) {
	for _, p := range s.peers {
		s.checkOne(ctx, p)
	}
}

func (s *Supervisor) checkOne(ctx context.Context, p *Peer) {
	if s.client.Probe(ctx, p.HealthURL, HealthDeadline) {
		p.mu.Lock()
		p.consecutiveFails = 0
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.consecutiveFails++
	fails := p.consecutiveFails
	p.mu.Unlock()

	slog.Warn("supervisor: peer unhealthy, restarting", "peer", p.Name, "consecutive_fails", fails)
	if err := s.restart(ctx, p.ServiceUnit); err != nil {
		slog.Error("supervisor: restart failed", "peer", p.Name, "unit", p.ServiceUnit, "error", err)
		return
	}

	p.mu.Lock()
	p.consecutiveFails = 0
	p.mu.Unlock()
}

// systemctlRestart shells out to the host's service manager.
func systemctlRestart(ctx context.Context, unit string) error {
	cmd := exec.CommandContext(ctx, "systemctl", "restart", unit)
	return cmd.Run()
}
