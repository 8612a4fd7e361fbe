package message

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/miekg/dns"

	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// decodeAgain runs a freshly encoded packet back through a decoder.
func decodeAgain(t *testing.T, payload []byte) *Parser {
	t.Helper()
	p := NewParser(false, nil)
	if err := p.Decode(testPacket(payload), nil, nil); err != nil {
		t.Fatalf("re-decoding encoder output: %v", err)
	}
	return p
}

// TestEncode_SharedOwnerCompression validates that a repeated owner name
// is emitted once literally and then as a single back-pointer.
func TestEncode_SharedOwnerCompression(t *testing.T) {
	raw := header(0x0001, 0x8400, 0, 2, 0, 0)
	raw = append(raw, record("host.local", protocol.TypeA, 0x8001, 120, []byte{10, 0, 0, 1})...)
	raw = append(raw, record("host.local", protocol.TypeAAAA, 0x8001, 120,
		bytes.Repeat([]byte{0}, 16))...)

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	n, err := b.Encode(p, src, out, nil)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}

	// header(12) + name(12)+fixed(10)+A rdata(4) + pointer(2)+fixed(10)+AAAA rdata(16)
	const want = 12 + 26 + 28
	if n != want {
		t.Fatalf("encoded length = %d, want %d", n, want)
	}

	// The second owner name is a two-byte pointer to the first at
	// offset 12.
	if out.Bytes()[38] != 0xC0 || out.Bytes()[39] != 12 {
		t.Errorf("second owner = %#x %#x, want a pointer to offset 12",
			out.Bytes()[38], out.Bytes()[39])
	}

	again := decodeAgain(t, out.Bytes())
	for i := range again.Records() {
		if got := again.Records()[i].Name.String(); got != "host.local" {
			t.Errorf("record %d name = %q after round trip", i, got)
		}
	}
}

// TestEncode_RoundTripLaw validates encode(decode(M)) decodes back to
// byte-identical expanded names and identical opaque RDATA.
func TestEncode_RoundTripLaw(t *testing.T) {
	raw := header(0xBEEF, 0x8400, 1, 2, 0, 1)
	raw = append(raw, question("_services._dns-sd._udp.local", protocol.TypePTR)...)
	raw = append(raw, record("_ipp._tcp.local", protocol.TypePTR, 0x0001, 4500,
		wireName("Office._ipp._tcp.local"))...)
	raw = append(raw, record("Office._ipp._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 631, "printer.local"))...)
	raw = append(raw, record("printer.local", protocol.TypeA, 0x8001, 120, []byte{10, 1, 2, 3})...)

	src := testPacket(raw)
	first := NewParser(false, nil)
	if err := first.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	if _, err := b.Encode(first, src, out, nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	again := decodeAgain(t, out.Bytes())

	if len(again.Queries()) != len(first.Queries()) {
		t.Fatalf("queries = %d, want %d", len(again.Queries()), len(first.Queries()))
	}
	for i := range first.Queries() {
		if !first.Queries()[i].Name.Equal(&again.Queries()[i].Name) {
			t.Errorf("query %d name changed across round trip", i)
		}
	}

	if len(again.Records()) != len(first.Records()) {
		t.Fatalf("records = %d, want %d", len(again.Records()), len(first.Records()))
	}
	for i := range first.Records() {
		fr, ar := &first.Records()[i], &again.Records()[i]
		if !fr.Name.Equal(&ar.Name) {
			t.Errorf("record %d owner changed across round trip", i)
		}
		if fr.Type != ar.Type || fr.Section != ar.Section {
			t.Errorf("record %d type/section changed across round trip", i)
		}
		if fr.HasRData && !fr.RData.Equal(&ar.RData) {
			t.Errorf("record %d RDATA name changed across round trip", i)
		}
	}

	// The A record's opaque RDATA is byte-identical.
	last := again.Records()[len(again.Records())-1]
	outBytes := out.Bytes()
	if !bytes.Equal(outBytes[last.rdataOff:last.rdataOff+last.rdataLen], []byte{10, 1, 2, 3}) {
		t.Error("opaque RDATA changed across round trip")
	}

	// Consecutive encodes from the same parsed state are identical:
	// the dictionary reset is complete.
	out2 := new(Packet)
	if _, err := b.Encode(first, src, out2, nil); err != nil {
		t.Fatalf("second encode: %v", err)
	}
	if !bytes.Equal(out.Bytes(), out2.Bytes()) {
		t.Error("consecutive encodes differ; dictionary reset is incomplete")
	}
}

// TestEncode_HeaderPreservation validates that ID and flags are copied
// verbatim while section counts reflect what was actually emitted.
func TestEncode_HeaderPreservation(t *testing.T) {
	raw := header(0xABCD, 0x8400, 0, 2, 0, 0)
	raw = append(raw, record("Office._ipp._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 631, "printer.local"))...)
	raw = append(raw, record("Laptop._ssh._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 22, "laptop.local"))...)

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, allowList(t, "_ipp"), nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	if _, err := b.Encode(p, src, out, nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	h, err := ParseHeader(out.Bytes())
	if err != nil {
		t.Fatalf("parsing output header: %v", err)
	}
	if h.ID != 0xABCD || h.Flags != 0x8400 {
		t.Errorf("ID/flags = %#x/%#x, want 0xabcd/0x8400", h.ID, h.Flags)
	}
	if h.ANCount != 1 || h.QDCount != 0 || h.NSCount != 0 || h.ARCount != 0 {
		t.Errorf("counts = %d/%d/%d/%d, want 0/1/0/0",
			h.QDCount, h.ANCount, h.NSCount, h.ARCount)
	}

	// The surviving SRV's target was re-compressed: its RDATA carries a
	// back-pointer for the shared suffix instead of a full name.
	again := decodeAgain(t, out.Bytes())
	r := again.Records()[0]
	wantTarget := wireName("printer.local")
	if !bytes.Equal(r.RData.Bytes(), wantTarget) {
		t.Errorf("SRV target = %v, want %v", r.RData.Bytes(), wantTarget)
	}
	if r.rdataLen >= 6+len(wantTarget) {
		t.Errorf("SRV RDATA length %d shows no compression (uncompressed would be %d)",
			r.rdataLen, 6+len(wantTarget))
	}
}

// TestEncode_OutboundFilter validates per-variant outbound filtering
// (deny on one peer, none on another).
func TestEncode_OutboundFilter(t *testing.T) {
	raw := header(0, 0x8400, 0, 2, 0, 0)
	raw = append(raw, record("TV._airplay._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 7000, "tv.local"))...)
	raw = append(raw, record("Laptop._ssh._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 22, "laptop.local"))...)

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()

	filtered := new(Packet)
	if _, err := b.Encode(p, src, filtered, denyList(t, "_ssh")); err != nil {
		t.Fatalf("encoding with deny filter: %v", err)
	}
	got := decodeAgain(t, filtered.Bytes())
	if len(got.Records()) != 1 || got.Records()[0].Name.String() != "TV._airplay._tcp.local" {
		t.Errorf("deny-filtered output kept %d records", len(got.Records()))
	}

	unfiltered := new(Packet)
	if _, err := b.Encode(p, src, unfiltered, nil); err != nil {
		t.Fatalf("encoding without filter: %v", err)
	}
	if got := decodeAgain(t, unfiltered.Bytes()); len(got.Records()) != 2 {
		t.Errorf("unfiltered output kept %d records, want 2", len(got.Records()))
	}
}

// TestEncode_EmptyResultSuppression validates that a fully filtered
// variant produces no datagram.
func TestEncode_EmptyResultSuppression(t *testing.T) {
	raw := header(0, 0x8400, 0, 1, 0, 0)
	raw = append(raw, record("Laptop._ssh._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 22, "laptop.local"))...)

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	n, err := b.Encode(p, src, out, allowList(t, "_ipp"))
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if n != 0 || out.Len() != 0 {
		t.Errorf("encode returned %d bytes, want 0 for a fully filtered packet", n)
	}
}

// TestEncode_NSEC validates that the NSEC next-domain name goes through
// the compression codec while the type bitmap is copied verbatim, with
// the RDATA length rewritten to the emitted count.
func TestEncode_NSEC(t *testing.T) {
	bitmap := []byte{0x00, 0x04, 0x40, 0x00}
	rdata := append(wireName("host.local"), bitmap...)
	raw := header(0, 0x8400, 0, 1, 0, 0)
	raw = append(raw, record("host.local", protocol.TypeNSEC, 0x8001, 120, rdata)...)

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	if _, err := b.Encode(p, src, out, nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	// Owner "host.local" is emitted at offset 12; the identical
	// next-domain name collapses to one pointer, so RDATA is
	// pointer(2) + bitmap(4).
	outBytes := out.Bytes()
	rdlenOff := 12 + 12 + 8
	rdlen := int(binary.BigEndian.Uint16(outBytes[rdlenOff : rdlenOff+2]))
	if rdlen != 2+len(bitmap) {
		t.Fatalf("emitted RDATA length = %d, want %d", rdlen, 2+len(bitmap))
	}
	if !bytes.Equal(outBytes[rdlenOff+2+2:rdlenOff+2+2+len(bitmap)], bitmap) {
		t.Error("NSEC bitmap not copied verbatim")
	}

	again := decodeAgain(t, outBytes)
	r := again.Records()[0]
	if r.RData.String() != "host.local" || r.SecondaryLen != len(bitmap) {
		t.Errorf("round-tripped NSEC: next=%q bitmap=%d", r.RData.String(), r.SecondaryLen)
	}
}

// TestEncode_DictionaryGrowth exercises children-range relocation by
// putting many sibling labels under one dictionary node.
func TestEncode_DictionaryGrowth(t *testing.T) {
	hosts := []string{
		"alpha.local", "bravo.local", "charlie.local", "delta.local",
		"echo.local", "foxtrot.local", "golf.local", "hotel.local",
		"india.local", "juliet.local",
	}

	raw := header(0, 0x8400, 0, len(hosts), 0, 0)
	for i, h := range hosts {
		raw = append(raw, record(h, protocol.TypeA, 0x8001, 120, []byte{10, 0, 0, byte(i)})...)
	}

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	if _, err := b.Encode(p, src, out, nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	again := decodeAgain(t, out.Bytes())
	if len(again.Records()) != len(hosts) {
		t.Fatalf("records = %d, want %d", len(again.Records()), len(hosts))
	}
	for i, h := range hosts {
		if got := again.Records()[i].Name.String(); got != h {
			t.Errorf("record %d name = %q, want %q", i, got, h)
		}
	}
}

// TestEncode_MiekgOracle validates encoder output against an
// independent DNS implementation.
func TestEncode_MiekgOracle(t *testing.T) {
	raw := header(0x0007, 0x8400, 0, 3, 0, 0)
	raw = append(raw, record("_ipp._tcp.local", protocol.TypePTR, 0x0001, 4500,
		wireName("Office._ipp._tcp.local"))...)
	raw = append(raw, record("Office._ipp._tcp.local", protocol.TypeSRV, 0x0001, 120,
		srvRData(0, 0, 631, "printer.local"))...)
	raw = append(raw, record("printer.local", protocol.TypeA, 0x8001, 120, []byte{10, 1, 2, 3})...)

	src := testPacket(raw)
	p := NewParser(false, nil)
	if err := p.Decode(src, nil, nil); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	b := NewBuilder()
	out := new(Packet)
	if _, err := b.Encode(p, src, out, nil); err != nil {
		t.Fatalf("encoding: %v", err)
	}

	var msg dns.Msg
	if err := msg.Unpack(out.Bytes()); err != nil {
		t.Fatalf("independent implementation rejects encoder output: %v", err)
	}
	if len(msg.Answer) != 3 {
		t.Fatalf("oracle sees %d answers, want 3", len(msg.Answer))
	}
	ptr, ok := msg.Answer[0].(*dns.PTR)
	if !ok || ptr.Ptr != "Office._ipp._tcp.local." {
		t.Errorf("oracle PTR = %v", msg.Answer[0])
	}
	srv, ok := msg.Answer[1].(*dns.SRV)
	if !ok || srv.Target != "printer.local." || srv.Port != 631 {
		t.Errorf("oracle SRV = %v", msg.Answer[1])
	}
	a, ok := msg.Answer[2].(*dns.A)
	if !ok || a.A.String() != "10.1.2.3" {
		t.Errorf("oracle A = %v", msg.Answer[2])
	}
}
