// Package discovery announces a daemon's HTTP surface on the local network
// via mDNS/DNS-SD, so that companion daemons and the physical-layer adapters
// they front for can be found without hardcoded addresses.
package discovery

import (
	"context"
	"log/slog"

	"github.com/brutella/dnssd"
)

// Config describes the service instance to announce.
type Config struct {
	// Instance is the human-readable name shown to browsers, e.g.
	// "living-room-router".
	Instance string
	// Service is the DNS-SD service type, e.g. "_beosound5c-router._tcp".
	Service string
	Port    int
}

// Announce publishes cfg on the local network and returns a func that stops
// the responder. Failure to announce is logged, not fatal: a daemon still
// answers direct requests without mDNS, it's just not auto-discoverable.
func Announce(cfg Config) (stop func()) {
	svc, err := dnssd.NewService(dnssd.Config{ //nolint:exhaustruct
		Name: cfg.Instance,
		Type: cfg.Service,
		Port: cfg.Port,
	})
	if err != nil {
		slog.Error("discovery: failed to build service", "error", err)
		return func() {}
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		slog.Error("discovery: failed to create responder", "error", err)
		return func() {}
	}

	if _, err := rp.Add(svc); err != nil {
		slog.Error("discovery: failed to add service", "error", err)
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			slog.Error("discovery: responder stopped", "error", err)
		}
	}()

	slog.Info("discovery: announcing", "instance", cfg.Instance, "service", cfg.Service, "port", cfg.Port)
	return cancel
}
