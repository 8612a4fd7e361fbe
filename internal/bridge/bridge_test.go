package bridge

import (
	"testing"

	"github.com/joshuafuller/mdns-bridge/internal/filter"
	"github.com/joshuafuller/mdns-bridge/internal/transport"
)

func testInterface(name string, v4, v6 bool, out *filter.List) *Interface {
	i := &Interface{name: name, filterOut: out}
	i.enabled[transport.IPv4] = v4
	i.enabled[transport.IPv6] = v6
	return i
}

func mustList(t *testing.T, mode filter.Mode, names ...string) *filter.List {
	t.Helper()
	l, err := filter.NewList(mode, names)
	if err != nil {
		t.Fatalf("building list: %v", err)
	}
	return l
}

func TestComputeFanOut_Peers(t *testing.T) {
	a := testInterface("a", true, true, nil)
	b := testInterface("b", true, false, nil)
	c := testInterface("c", true, true, nil)
	ifaces := []*Interface{a, b, c}

	if err := computeFanOut(ifaces); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// IPv4: everyone bridges, nobody is its own peer.
	for _, iface := range ifaces {
		peers := iface.peers[transport.IPv4]
		if len(peers) != 2 {
			t.Errorf("%s IPv4 peers = %d, want 2", iface.name, len(peers))
		}
		for _, p := range peers {
			if p == iface {
				t.Errorf("%s lists itself as a peer", iface.name)
			}
		}
		if iface.peerNoFilter[transport.IPv4] != 2 {
			t.Errorf("%s no-filter peers = %d, want 2",
				iface.name, iface.peerNoFilter[transport.IPv4])
		}
		if len(iface.variants[transport.IPv4]) != 0 {
			t.Errorf("%s variants = %d, want 0",
				iface.name, len(iface.variants[transport.IPv4]))
		}
	}

	// IPv6: only a and c are enabled.
	if !a.enabled[transport.IPv6] || !c.enabled[transport.IPv6] {
		t.Error("a and c should stay IPv6-enabled")
	}
	if len(a.peers[transport.IPv6]) != 1 || a.peers[transport.IPv6][0] != c {
		t.Error("a's IPv6 peer should be c")
	}
}

func TestComputeFanOut_DisablesLoneFamily(t *testing.T) {
	a := testInterface("a", true, true, nil)
	b := testInterface("b", true, false, nil)

	if err := computeFanOut([]*Interface{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.enabled[transport.IPv6] {
		t.Error("IPv6 should be disabled with only one enabled interface")
	}
	if !a.enabled[transport.IPv4] || !b.enabled[transport.IPv4] {
		t.Error("IPv4 should remain enabled")
	}
}

func TestComputeFanOut_NoBridgeableFamily(t *testing.T) {
	a := testInterface("a", true, false, nil)
	b := testInterface("b", false, true, nil)

	if err := computeFanOut([]*Interface{a, b}); err == nil {
		t.Error("expected error when no family has two enabled interfaces")
	}
}

func TestComputeFanOut_VariantDedupByIdentity(t *testing.T) {
	shared := mustList(t, filter.ModeDeny, "_ssh")
	other := mustList(t, filter.ModeAllow, "_ipp")

	in := testInterface("in", true, false, nil)
	p1 := testInterface("p1", true, false, shared)
	p2 := testInterface("p2", true, false, shared) // same pointer as p1
	p3 := testInterface("p3", true, false, other)
	p4 := testInterface("p4", true, false, nil)

	if err := computeFanOut([]*Interface{in, p1, p2, p3, p4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Encoder invocations per ingress packet on "in": one for the
	// no-filter peer plus one per distinct variant.
	if got := len(in.variants[transport.IPv4]); got != 2 {
		t.Errorf("distinct variants = %d, want 2", got)
	}
	if in.peerNoFilter[transport.IPv4] != 1 {
		t.Errorf("no-filter peers = %d, want 1", in.peerNoFilter[transport.IPv4])
	}

	// Variants appear in peer-list discovery order.
	if in.variants[transport.IPv4][0] != shared || in.variants[transport.IPv4][1] != other {
		t.Error("variants not in discovery order")
	}
}

func TestInternFilters(t *testing.T) {
	global := mustList(t, filter.ModeDeny, "_ssh")

	a := testInterface("a", true, false, mustList(t, filter.ModeDeny, "_ssh"))
	b := testInterface("b", true, false, mustList(t, filter.ModeDeny, "_ssh"))
	c := testInterface("c", true, false, mustList(t, filter.ModeAllow, "_ipp"))
	a.filterIn = mustList(t, filter.ModeDeny, "_ssh") // equal to global
	b.filterIn = mustList(t, filter.ModeAllow, "_airplay")

	br := &Bridge{ifaces: []*Interface{a, b, c}, global: global}
	br.internFilters()

	if a.filterIn != nil {
		t.Error("inbound filter equal to the global filter should be elided")
	}
	if b.filterIn == nil {
		t.Error("distinct inbound filter should be kept")
	}
	if a.filterOut != b.filterOut {
		t.Error("equal outbound filters should collapse to one instance")
	}
	if a.filterOut == c.filterOut {
		t.Error("distinct outbound filters should stay distinct")
	}
}
