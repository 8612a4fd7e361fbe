// Package message implements mDNS message re-encoding with name
// compression per RFC 1035 §4.1.4.
package message

import (
	"bytes"
	"encoding/binary"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/filter"
	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// dictEntry is one node of the per-packet compression dictionary. The
// dictionary is a tree rooted at an implicit root node, stored as a
// growable arena: each node addresses its children as a contiguous
// index range rather than through pointers, so the arena survives
// reallocation and resets cheaply.
type dictEntry struct {
	// label is the node's label in wire form (length prefix included).
	// It references either the incoming or the outgoing packet and is
	// invalid after reset.
	label []byte

	// child / childCap / childLen describe the node's children range in
	// the arena.
	child    int
	childCap int
	childLen int

	// ptr is the wire back-pointer value (0xC000 | offset), nonzero
	// exactly when this label's bytes have been written into the
	// current outbound packet at a known offset.
	ptr uint16
}

// Seed labels every mDNS message shares. They are present in the
// dictionary from reset so the common suffixes are discovered without
// warm-up, but they carry no emitted pointer until an actual emission
// records one.
var (
	seedLabelLocal = []byte{5, 'l', 'o', 'c', 'a', 'l'}
	seedLabelTCP   = []byte{4, '_', 't', 'c', 'p'}
)

// Seed arena layout: the root at index 0 with a child range holding
// "local", which in turn holds "_tcp". Each seed range keeps a few
// spare slots so the first insertions don't relocate.
const (
	seedRootChild  = 1
	seedLocalChild = 1 + seedChildCap
	seedChildCap   = 4
	seedSize       = 1 + 2*seedChildCap
)

// Builder is the worker-local packet encoder. It owns the compression
// dictionary, which grows monotonically and is reset to the seed at the
// start of each outbound packet.
//
// A Builder is not safe for concurrent use; each bridge worker owns one.
type Builder struct {
	dict []dictEntry

	// path holds the dictionary node for each label of the name being
	// encoded, indexed from the root end.
	path [protocol.MaxNameLabels]int
}

// NewBuilder returns an encoder with the dictionary pre-sized to a
// multiple of the seed.
func NewBuilder() *Builder {
	b := &Builder{dict: make([]dictEntry, seedSize, seedSize*16)}
	b.reset()
	return b
}

// reset restores the dictionary to the seed state: root → local → _tcp,
// no emitted pointers.
func (b *Builder) reset() {
	b.dict = b.dict[:seedSize]
	for i := range b.dict {
		b.dict[i] = dictEntry{}
	}
	b.dict[0] = dictEntry{child: seedRootChild, childCap: seedChildCap, childLen: 1}
	b.dict[seedRootChild] = dictEntry{label: seedLabelLocal, child: seedLocalChild, childCap: seedChildCap, childLen: 1}
	b.dict[seedLocalChild] = dictEntry{label: seedLabelTCP}
}

// findChild looks label up in a node's children range.
func (b *Builder) findChild(parent int, label []byte) int {
	e := &b.dict[parent]
	for i := e.child; i < e.child+e.childLen; i++ {
		if bytes.Equal(b.dict[i].label, label) {
			return i
		}
	}
	return -1
}

// insertChild records label as a new child of parent and returns its
// index. A full children range is relocated to the end of the arena
// with doubled capacity; relocation moves only the parent's direct
// children, which nothing else addresses by index, so no fixups are
// needed elsewhere.
func (b *Builder) insertChild(parent int, label []byte) int {
	child := b.dict[parent].child
	childCap := b.dict[parent].childCap
	childLen := b.dict[parent].childLen

	switch {
	case childCap == 0:
		base := len(b.dict)
		b.grow(seedChildCap)
		b.dict[parent].child = base
		b.dict[parent].childCap = seedChildCap
		child = base
	case childLen == childCap:
		base := len(b.dict)
		b.grow(childCap * 2)
		copy(b.dict[base:], b.dict[child:child+childLen])
		b.dict[parent].child = base
		b.dict[parent].childCap = childCap * 2
		child = base
	}

	idx := child + childLen
	b.dict[idx] = dictEntry{label: label}
	b.dict[parent].childLen = childLen + 1
	return idx
}

// grow appends n zeroed entries to the arena, reallocating
// multiplicatively when capacity is exhausted.
func (b *Builder) grow(n int) {
	for i := 0; i < n; i++ {
		b.dict = append(b.dict, dictEntry{})
	}
}

// encodeName writes one name at out[pos:] using the compression
// dictionary and returns the next write position.
//
// The name's labels are walked from the root end inward through the
// dictionary, inserting any that are missing, to find the deepest
// suffix already emitted into this packet. Labels not covered by that
// suffix are written verbatim — each newly written label records its
// wire offset — followed by a two-byte back-pointer to the suffix, or a
// terminating zero byte when no suffix has been emitted.
func (b *Builder) encodeName(out []byte, pos int, n *Name) (int, error) {
	k := n.LabelCount()

	parent := 0
	for step := 0; step < k; step++ {
		label := n.Label(k - 1 - step)
		idx := b.findChild(parent, label)
		if idx < 0 {
			idx = b.insertChild(parent, label)
		}
		b.path[step] = idx
		parent = idx
	}

	// Deepest node along the path whose label bytes are already in the
	// outbound packet.
	ptrStep := -1
	for step := k - 1; step >= 0; step-- {
		if b.dict[b.path[step]].ptr != 0 {
			ptrStep = step
			break
		}
	}

	literal := k - 1 - ptrStep
	for i := 0; i < literal; i++ {
		label := n.Label(i)
		if pos+len(label) > len(out) {
			return pos, errOutboundOverflow(pos)
		}
		copy(out[pos:], label)
		node := &b.dict[b.path[k-1-i]]
		if node.ptr == 0 {
			node.ptr = uint16(0xC000 | pos)
		}
		pos += len(label)
	}

	if ptrStep >= 0 {
		if pos+2 > len(out) {
			return pos, errOutboundOverflow(pos)
		}
		binary.BigEndian.PutUint16(out[pos:], b.dict[b.path[ptrStep]].ptr)
		return pos + 2, nil
	}

	if pos+1 > len(out) {
		return pos, errOutboundOverflow(pos)
	}
	out[pos] = 0
	return pos + 1, nil
}

// errOutboundOverflow reports an assembled packet exceeding the send
// buffer. Possible only for a pathological ingress packet whose source
// compression is denser than a fresh dictionary can reproduce.
func errOutboundOverflow(pos int) error {
	return &errors.WireFormatError{
		Operation: "encode message",
		Offset:    pos,
		Message:   "assembled packet exceeds buffer capacity",
	}
}

// Encode assembles an outbound packet from the parsed state, applying
// one outbound filter list (nil for none), and returns the assembled
// length. A length of zero means nothing survived filtering and no
// datagram should be sent.
//
// Opaque RDATA bytes, fixed header fields, the SRV prefix and the NSEC
// bitmap are copied from the source packet; every name is re-emitted
// through a fresh compression dictionary, and each record's RDATA
// length field is rewritten to the actual emitted byte count. The
// header is written last: ID and flags verbatim from the source, the
// four section counts as the actual emitted counts.
func (b *Builder) Encode(p *Parser, src, out *Packet, outbound *filter.List) (int, error) {
	b.reset()
	data := src.Bytes()
	buf := out.Buf()
	pos := protocol.HeaderSize

	var queryCount int
	var sectionCounts [sectionCount]int
	var err error

	for i := range p.Queries() {
		q := &p.queries[i]
		if outbound != nil && q.Type.QueryFilterTarget() == protocol.FilterOwner &&
			!outbound.Admits(q.Name.Bytes()) {
			continue
		}

		pos, err = b.encodeName(buf, pos, &q.Name)
		if err != nil {
			return 0, err
		}
		if pos+protocol.QueryFixedSize > len(buf) {
			return 0, errOutboundOverflow(pos)
		}
		copy(buf[pos:], data[q.fixed:q.fixed+protocol.QueryFixedSize])
		pos += protocol.QueryFixedSize
		queryCount++
	}

	for i := range p.Records() {
		r := &p.records[i]
		if outbound != nil && !admitOutbound(r, outbound) {
			continue
		}

		pos, err = b.encodeRecord(buf, pos, data, r)
		if err != nil {
			return 0, err
		}
		sectionCounts[r.Section]++
	}

	if queryCount == 0 && sectionCounts[SectionAnswer] == 0 &&
		sectionCounts[SectionAuthority] == 0 && sectionCounts[SectionAdditional] == 0 {
		out.SetLen(0)
		return 0, nil
	}

	copy(buf[0:4], data[0:4])
	binary.BigEndian.PutUint16(buf[4:6], uint16(queryCount))
	binary.BigEndian.PutUint16(buf[6:8], uint16(sectionCounts[SectionAnswer]))
	binary.BigEndian.PutUint16(buf[8:10], uint16(sectionCounts[SectionAuthority]))
	binary.BigEndian.PutUint16(buf[10:12], uint16(sectionCounts[SectionAdditional]))

	out.SetLen(pos)
	return pos, nil
}

// encodeRecord emits one resource record: owner name, fixed fields from
// the source, then type-specific RDATA with the length field backfilled
// to the emitted count.
func (b *Builder) encodeRecord(buf []byte, pos int, data []byte, r *Record) (int, error) {
	var err error

	pos, err = b.encodeName(buf, pos, &r.Name)
	if err != nil {
		return pos, err
	}

	// TYPE, CLASS, TTL verbatim; RDLENGTH reserved for backfill.
	if pos+protocol.RecordFixedSize > len(buf) {
		return pos, errOutboundOverflow(pos)
	}
	copy(buf[pos:], data[r.fixed:r.fixed+8])
	pos += 8
	lenPos := pos
	pos += 2

	rdataStart := pos
	switch r.Type {
	case protocol.TypePTR, protocol.TypeCNAME, protocol.TypeDNAME:
		pos, err = b.encodeName(buf, pos, &r.RData)
		if err != nil {
			return pos, err
		}

	case protocol.TypeSRV:
		if pos+r.SecondaryLen > len(buf) {
			return pos, errOutboundOverflow(pos)
		}
		copy(buf[pos:], data[r.rdataOff:r.rdataOff+r.SecondaryLen])
		pos += r.SecondaryLen
		pos, err = b.encodeName(buf, pos, &r.RData)
		if err != nil {
			return pos, err
		}

	case protocol.TypeNSEC:
		pos, err = b.encodeName(buf, pos, &r.RData)
		if err != nil {
			return pos, err
		}
		bitmap := data[r.rdataOff+r.rdataLen-r.SecondaryLen : r.rdataOff+r.rdataLen]
		if pos+len(bitmap) > len(buf) {
			return pos, errOutboundOverflow(pos)
		}
		copy(buf[pos:], bitmap)
		pos += len(bitmap)

	default:
		if pos+r.rdataLen > len(buf) {
			return pos, errOutboundOverflow(pos)
		}
		copy(buf[pos:], data[r.rdataOff:r.rdataOff+r.rdataLen])
		pos += r.rdataLen
	}

	binary.BigEndian.PutUint16(buf[lenPos:], uint16(pos-rdataStart))
	return pos, nil
}

// admitOutbound evaluates a record's filter input against one outbound
// list. The targets match inbound filtering: owner name for
// service-scoped types, RDATA name for pointer-carrying types,
// everything else unfiltered.
func admitOutbound(r *Record, outbound *filter.List) bool {
	switch r.Type.RecordFilterTarget() {
	case protocol.FilterOwner:
		return outbound.Admits(r.Name.Bytes())
	case protocol.FilterRData:
		return outbound.Admits(r.RData.Bytes())
	default:
		return true
	}
}
