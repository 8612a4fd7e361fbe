// Package bridge wires decoded mDNS traffic between network interfaces:
// it owns the interface records, their per-family peer fan-out tables,
// and the per-family workers that move packets.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/joshuafuller/mdns-bridge/config"
	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/filter"
	"github.com/joshuafuller/mdns-bridge/internal/metrics"
	"github.com/joshuafuller/mdns-bridge/internal/transport"
)

// Interface is one bridged network interface. Records are created at
// startup and never mutated afterwards; workers read them freely
// without synchronization.
type Interface struct {
	name  string
	index int

	filterIn  *filter.List
	filterOut *filter.List

	enabled [transport.FamilyCount]bool
	conns   [transport.FamilyCount]*transport.Conn

	// Derived fan-out state, populated by computeFanOut: the ordered
	// peers in each family, how many of them have no outbound filter,
	// and the distinct outbound filter lists among them (deduplicated
	// by pointer identity, in peer-list discovery order).
	peers        [transport.FamilyCount][]*Interface
	peerNoFilter [transport.FamilyCount]int
	variants     [transport.FamilyCount][]*filter.List
}

// Name returns the interface's symbolic name.
func (i *Interface) Name() string {
	return i.name
}

// Bridge is the whole forwarding fabric: the immutable interface set
// plus one worker per address family with at least two enabled
// interfaces.
type Bridge struct {
	ifaces    []*Interface
	global    *filter.List
	filtering bool
	workers   []*Worker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds the bridge from a validated configuration: compiles and
// interns the filter lists, resolves and binds every interface, and
// computes the per-family fan-out. Any failure here is fatal — the
// bridge never starts partially configured.
func New(cfg *config.Config, m *metrics.Metrics) (*Bridge, error) {
	global, err := cfg.Filter.Build()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		global:    global,
		filtering: cfg.Options.Filtering,
		metrics:   m,
		logger:    slog.Default(),
	}

	for idx := range cfg.Interfaces {
		ic := &cfg.Interfaces[idx]

		osif, err := net.InterfaceByName(ic.Name)
		if err != nil {
			b.Close()
			return nil, &errors.ConfigError{
				Section: "interfaces",
				Message: fmt.Sprintf("interface %q not found", ic.Name),
				Err:     err,
			}
		}
		if osif.Flags&net.FlagUp == 0 {
			b.logger.Warn("interface is down", "interface", ic.Name)
		}
		if osif.Flags&net.FlagMulticast == 0 {
			b.Close()
			return nil, &errors.ConfigError{
				Section: "interfaces",
				Message: fmt.Sprintf("interface %q does not support multicast", ic.Name),
			}
		}

		iface := &Interface{name: ic.Name, index: osif.Index}

		if iface.filterIn, err = ic.FilterIn.Build(); err != nil {
			b.Close()
			return nil, err
		}
		if iface.filterOut, err = ic.FilterOut.Build(); err != nil {
			b.Close()
			return nil, err
		}

		iface.enabled[transport.IPv4] = ic.IPv4Enabled()
		iface.enabled[transport.IPv6] = ic.IPv6Enabled()
		for f := transport.Family(0); f < transport.FamilyCount; f++ {
			if !iface.enabled[f] {
				continue
			}
			conn, err := transport.Listen(f, osif)
			if err != nil {
				b.Close()
				return nil, err
			}
			iface.conns[f] = conn
		}

		b.ifaces = append(b.ifaces, iface)
	}

	b.internFilters()

	if err := computeFanOut(b.ifaces); err != nil {
		b.Close()
		return nil, err
	}

	// Sockets for families that ended up disabled are not needed.
	for _, iface := range b.ifaces {
		for f := transport.Family(0); f < transport.FamilyCount; f++ {
			if !iface.enabled[f] && iface.conns[f] != nil {
				iface.conns[f].Close()
				iface.conns[f] = nil
			}
		}
	}

	for f := transport.Family(0); f < transport.FamilyCount; f++ {
		var members []*Interface
		for _, iface := range b.ifaces {
			if iface.enabled[f] {
				members = append(members, iface)
			}
		}
		if len(members) >= 2 {
			b.workers = append(b.workers, newWorker(b, f, members, cfg.Options.WarnUnsupported))
			b.logger.Info("bridging", "family", f.String(), "interfaces", len(members))
		}
	}

	return b, nil
}

// internFilters deduplicates filter lists so equal lists share one
// instance: an inbound list equal to the global list is elided (the
// global already covers it), and equal outbound lists collapse to a
// single pointer — which is what lets a worker invoke the encoder once
// per distinct outbound filter instead of once per peer.
func (b *Bridge) internFilters() {
	var outbound []*filter.List

	for _, iface := range b.ifaces {
		if iface.filterIn != nil && filter.Equal(iface.filterIn, b.global) {
			iface.filterIn = nil
		}

		if iface.filterOut == nil {
			continue
		}
		matched := false
		for _, existing := range outbound {
			if filter.Equal(iface.filterOut, existing) {
				iface.filterOut = existing
				matched = true
				break
			}
		}
		if !matched {
			outbound = append(outbound, iface.filterOut)
		}
	}
}

func containsList(lists []*filter.List, l *filter.List) bool {
	for _, x := range lists {
		if x == l {
			return true
		}
	}
	return false
}

// computeFanOut derives the per-family peer tables. A family with fewer
// than two enabled interfaces cannot bridge, so every interface is
// disabled for it; at least one family must remain bridgeable.
func computeFanOut(ifaces []*Interface) error {
	bridgeable := false

	for f := transport.Family(0); f < transport.FamilyCount; f++ {
		var enabled []*Interface
		for _, iface := range ifaces {
			if iface.enabled[f] {
				enabled = append(enabled, iface)
			}
		}

		if len(enabled) < 2 {
			for _, iface := range ifaces {
				iface.enabled[f] = false
				iface.peers[f] = nil
				iface.peerNoFilter[f] = 0
				iface.variants[f] = nil
			}
			continue
		}
		bridgeable = true

		for _, iface := range enabled {
			iface.peers[f] = iface.peers[f][:0]
			iface.peerNoFilter[f] = 0
			iface.variants[f] = iface.variants[f][:0]

			for _, peer := range enabled {
				if peer == iface {
					continue
				}
				iface.peers[f] = append(iface.peers[f], peer)
				if peer.filterOut == nil {
					iface.peerNoFilter[f]++
					continue
				}
				if !containsList(iface.variants[f], peer.filterOut) {
					iface.variants[f] = append(iface.variants[f], peer.filterOut)
				}
			}
		}
	}

	if !bridgeable {
		return &errors.ConfigError{
			Section: "interfaces",
			Message: "no address family has two or more enabled interfaces",
		}
	}
	return nil
}

// Run starts one worker per bridgeable family and blocks until the
// context is canceled or a worker fails. Sockets are closed on the way
// out, which unblocks the notifier pumps.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, w := range b.workers {
		g.Go(func() error {
			return w.run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		b.Close()
		return nil
	})

	return g.Wait()
}

// Close releases every bound socket.
func (b *Bridge) Close() {
	for _, iface := range b.ifaces {
		for f := transport.Family(0); f < transport.FamilyCount; f++ {
			if iface.conns[f] != nil {
				iface.conns[f].Close()
			}
		}
	}
}
