package bridge

import (
	"context"
	goerrors "errors"
	"log/slog"

	"github.com/joshuafuller/mdns-bridge/internal/filter"
	"github.com/joshuafuller/mdns-bridge/internal/message"
	"github.com/joshuafuller/mdns-bridge/internal/metrics"
	"github.com/joshuafuller/mdns-bridge/internal/transport"
)

// Worker is the event loop for one address family. It owns all of its
// hot-path state — decoder and encoder scratch, the send buffer, and
// the readiness notifier — so the packet path takes no locks.
type Worker struct {
	bridge   *Bridge
	family   transport.Family
	ifaces   []*Interface
	notifier *transport.Notifier
	parser   *message.Parser
	builder  *message.Builder
	out      *message.Packet
	logger   *slog.Logger

	// forwarder is the function called to actually send a datagram to a
	// peer. A field so it can be mocked in unit tests.
	forwarder func(peer *Interface, payload []byte)
}

func newWorker(b *Bridge, family transport.Family, ifaces []*Interface, warn bool) *Worker {
	logger := b.logger.With("family", family.String())
	w := &Worker{
		bridge:   b,
		family:   family,
		ifaces:   ifaces,
		notifier: transport.NewNotifier(),
		parser:   message.NewParser(warn, logger),
		builder:  message.NewBuilder(),
		out:      new(message.Packet),
		logger:   logger,
	}
	w.forwarder = w.send
	return w
}

// run registers every interface socket with the readiness notifier and
// processes ingress packets strictly in arrival order until the context
// is canceled.
func (w *Worker) run(ctx context.Context) error {
	for _, iface := range w.ifaces {
		w.notifier.Add(iface.conns[w.family], iface)
	}

	for {
		ev, ok := w.notifier.Wait(ctx)
		if !ok {
			return nil
		}
		if ev.Err != nil {
			// Receive errors after shutdown are the closed sockets.
			if ctx.Err() != nil {
				return nil
			}
			iface := ev.UserData.(*Interface)
			w.logger.Error("receive failed", "interface", iface.name, "error", ev.Err)
			return ev.Err
		}

		iface := ev.UserData.(*Interface)
		w.process(iface, ev.Packet)
		transport.PutPacket(ev.Packet)
	}
}

// process runs the per-packet pipeline for one ingress datagram:
// decode and inbound-filter (when filtering is enabled), then dispatch
// — the received bytes or a clean re-encode to the no-filter peers
// first, then one encode per distinct outbound filter variant.
func (w *Worker) process(in *Interface, pkt *message.Packet) {
	w.bridge.metrics.Received(in.name, w.family.String())

	if !w.bridge.filtering {
		for _, peer := range in.peers[w.family] {
			w.forwarder(peer, pkt.Bytes())
		}
		return
	}

	if err := w.parser.Decode(pkt, w.bridge.global, in.filterIn); err != nil {
		if goerrors.Is(err, message.ErrAllFiltered) {
			w.bridge.metrics.Dropped(in.name, w.family.String(), metrics.DropFiltered)
			return
		}
		w.bridge.metrics.Dropped(in.name, w.family.String(), metrics.DropDecode)
		w.logger.Warn("dropping malformed packet",
			"interface", in.name, "source", pkt.Source(), "error", err)
		return
	}

	if in.peerNoFilter[w.family] > 0 {
		// When nothing was filtered out the received bytes still
		// represent the kept set and go out verbatim; otherwise a
		// clean datagram is rebuilt without an outbound filter.
		payload := pkt.Bytes()
		if w.parser.Modified() {
			payload = w.encode(in, pkt, nil)
		}
		if payload != nil {
			for _, peer := range in.peers[w.family] {
				if peer.filterOut == nil {
					w.forwarder(peer, payload)
				}
			}
		}
	}

	for _, variant := range in.variants[w.family] {
		payload := w.encode(in, pkt, variant)
		if payload == nil {
			continue
		}
		for _, peer := range in.peers[w.family] {
			if peer.filterOut == variant {
				w.forwarder(peer, payload)
			}
		}
	}
}

// encode builds one outbound datagram for a filter variant, returning
// nil when nothing survived or the encode failed.
func (w *Worker) encode(in *Interface, pkt *message.Packet, variant *filter.List) []byte {
	n, err := w.builder.Encode(w.parser, pkt, w.out, variant)
	if err != nil {
		w.bridge.metrics.Dropped(in.name, w.family.String(), metrics.DropEncode)
		w.logger.Warn("dropping packet that failed to re-encode",
			"interface", in.name, "source", pkt.Source(), "error", err)
		return nil
	}
	if n == 0 {
		return nil
	}
	return w.out.Bytes()
}

// send transmits one datagram to a peer. Send failures are transient:
// logged, counted, and otherwise ignored.
func (w *Worker) send(peer *Interface, payload []byte) {
	if err := peer.conns[w.family].Send(payload); err != nil {
		w.bridge.metrics.SendError(peer.name, w.family.String())
		w.logger.Warn("send failed", "interface", peer.name, "error", err)
		return
	}
	w.bridge.metrics.Forwarded(peer.name, w.family.String())
}
