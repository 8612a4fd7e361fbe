package transport

import (
	"sync"

	"github.com/joshuafuller/mdns-bridge/internal/message"
)

// packetPool recycles receive packets between the notifier pumps and
// the bridge workers. A pump draws a packet, fills it from the socket,
// and hands it to the worker; the worker returns it once dispatch for
// that ingress packet is complete.
var packetPool = sync.Pool{
	New: func() interface{} {
		return new(message.Packet)
	},
}

// GetPacket returns a cleared packet from the pool.
func GetPacket() *message.Packet {
	return packetPool.Get().(*message.Packet)
}

// PutPacket returns a packet to the pool for reuse. The caller must not
// touch the packet afterwards.
func PutPacket(p *message.Packet) {
	p.Reset()
	packetPool.Put(p)
}
