package transport

import (
	"net"
	"testing"
)

func TestPacketPool_Reuse(t *testing.T) {
	p := GetPacket()
	if p.Len() != 0 {
		t.Errorf("fresh packet length = %d, want 0", p.Len())
	}

	copy(p.Buf(), []byte{0xDE, 0xAD})
	p.SetLen(2)
	p.SetSource(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5353})
	PutPacket(p)

	q := GetPacket()
	defer PutPacket(q)
	if q.Len() != 0 {
		t.Errorf("recycled packet length = %d, want 0", q.Len())
	}
	if q.Source() != nil {
		t.Error("recycled packet kept its source address")
	}
}

func TestFamily_String(t *testing.T) {
	if IPv4.String() != "IPv4" || IPv6.String() != "IPv6" {
		t.Error("family mnemonics wrong")
	}
	if Family(7).String() != "invalid" {
		t.Error("out-of-range family should be invalid")
	}
}
