// Package message implements DNS message parsing per RFC 1035.
package message

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/filter"
	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// ErrAllFiltered reports that a packet decoded cleanly but no query or
// resource record survived inbound filtering. The packet is dropped
// without an error log line.
var ErrAllFiltered = &errors.WireFormatError{
	Operation: "decode message",
	Offset:    -1,
	Message:   "no queries or records survived filtering",
}

// Parser is the worker-local packet decoder. It holds growable query
// and record scratch arrays that are reset at the start of each
// incoming packet and never shrunk.
//
// A Parser is not safe for concurrent use; each bridge worker owns one.
type Parser struct {
	warn   bool
	logger *slog.Logger

	header  Header
	queries []Query
	records []Record
	dropped int
}

// NewParser returns a decoder. When warn is set, records and queries of
// unsupported types produce a log line as they are dropped.
func NewParser(warn bool, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{warn: warn, logger: logger}
}

// Header returns the header of the most recently decoded packet.
func (p *Parser) Header() Header {
	return p.header
}

// Queries returns the questions that survived decoding and inbound
// filtering, in wire order.
func (p *Parser) Queries() []Query {
	return p.queries
}

// Records returns the resource records that survived decoding and
// inbound filtering, in wire order (answer, authority, additional).
func (p *Parser) Records() []Record {
	return p.records
}

// Modified reports whether decoding removed anything from the packet —
// by inbound filtering or by dropping an unsupported type — so the
// received bytes no longer represent the kept set.
func (p *Parser) Modified() bool {
	return p.dropped > 0
}

// Decode parses one received packet and applies inbound filtering.
//
// A name is admitted when the global filter list (if any) admits it AND
// the ingress interface's inbound list (if any) admits it. Decode
// returns a WireFormatError for any structural violation — the whole
// packet is dropped — and ErrAllFiltered when nothing survived.
func (p *Parser) Decode(pkt *Packet, global, inbound *filter.List) error {
	data := pkt.Bytes()
	p.queries = p.queries[:0]
	p.records = p.records[:0]
	p.dropped = 0

	header, err := ParseHeader(data)
	if err != nil {
		return err
	}
	p.header = header

	totalRecords := int(header.ANCount) + int(header.NSCount) + int(header.ARCount)
	if int(header.QDCount) > protocol.MaxQueries {
		return &errors.WireFormatError{
			Operation: "decode message",
			Offset:    4,
			Message:   fmt.Sprintf("question count %d exceeds maximum %d", header.QDCount, protocol.MaxQueries),
		}
	}
	if totalRecords > protocol.MaxRecords {
		return &errors.WireFormatError{
			Operation: "decode message",
			Offset:    6,
			Message:   fmt.Sprintf("record count %d exceeds maximum %d", totalRecords, protocol.MaxRecords),
		}
	}

	// Scratch growth is monotonic across packets.
	if cap(p.queries) < int(header.QDCount) {
		p.queries = make([]Query, 0, int(header.QDCount))
	}
	if cap(p.records) < totalRecords {
		p.records = make([]Record, 0, totalRecords)
	}

	offset := protocol.HeaderSize

	for i := 0; i < int(header.QDCount); i++ {
		offset, err = p.decodeQuery(data, offset, global, inbound)
		if err != nil {
			return err
		}
	}

	sections := [sectionCount]int{
		int(header.ANCount),
		int(header.NSCount),
		int(header.ARCount),
	}
	for section, count := range sections {
		for i := 0; i < count; i++ {
			offset, err = p.decodeRecord(data, offset, Section(section), global, inbound)
			if err != nil {
				return err
			}
		}
	}

	if offset != len(data) {
		return &errors.WireFormatError{
			Operation: "decode message",
			Offset:    offset,
			Message:   fmt.Sprintf("%d trailing bytes after final section", len(data)-offset),
		}
	}

	if len(p.queries) == 0 && len(p.records) == 0 {
		return ErrAllFiltered
	}

	return nil
}

// decodeQuery parses one question entry and applies source filtering.
func (p *Parser) decodeQuery(data []byte, offset int, global, inbound *filter.List) (int, error) {
	q := p.nextQuery()

	next, err := ParseName(data, offset, &q.Name)
	if err != nil {
		p.queries = p.queries[:len(p.queries)-1]
		return offset, err
	}

	if next+protocol.QueryFixedSize > len(data) {
		p.queries = p.queries[:len(p.queries)-1]
		return offset, &errors.WireFormatError{
			Operation: "decode question",
			Offset:    next,
			Message:   "truncated question fixed fields",
		}
	}

	q.Type = protocol.RecordType(binary.BigEndian.Uint16(data[next : next+2]))
	q.fixed = next
	next += protocol.QueryFixedSize

	if !q.Type.QuerySupported() {
		p.queries = p.queries[:len(p.queries)-1]
		p.dropped++
		if p.warn {
			p.logger.Warn("dropping unsupported query type",
				"type", uint16(q.Type), "name", q.Name.String())
		}
		return next, nil
	}

	if q.Type.QueryFilterTarget() == protocol.FilterOwner && !admit(&q.Name, global, inbound) {
		p.queries = p.queries[:len(p.queries)-1]
		p.dropped++
		return next, nil
	}

	return next, nil
}

// decodeRecord parses one resource record, validates its RDATA against
// the declared length, and applies source filtering.
func (p *Parser) decodeRecord(data []byte, offset int, section Section, global, inbound *filter.List) (int, error) {
	r := p.nextRecord()
	drop := func() {
		p.records = p.records[:len(p.records)-1]
	}

	next, err := ParseName(data, offset, &r.Name)
	if err != nil {
		drop()
		return offset, err
	}

	if next+protocol.RecordFixedSize > len(data) {
		drop()
		return offset, &errors.WireFormatError{
			Operation: "decode record",
			Offset:    next,
			Message:   "truncated record fixed fields",
		}
	}

	r.Type = protocol.RecordType(binary.BigEndian.Uint16(data[next : next+2]))
	r.Section = section
	r.fixed = next
	rdataLen := int(binary.BigEndian.Uint16(data[next+8 : next+10]))
	next += protocol.RecordFixedSize

	if rdataLen == 0 {
		drop()
		return offset, &errors.WireFormatError{
			Operation: "decode record",
			Offset:    next,
			Message:   fmt.Sprintf("%s record with empty RDATA", r.Type),
		}
	}
	if next+rdataLen > len(data) {
		drop()
		return offset, &errors.WireFormatError{
			Operation: "decode record",
			Offset:    next,
			Message:   fmt.Sprintf("truncated RDATA: %d bytes declared, %d available", rdataLen, len(data)-next),
		}
	}

	r.rdataOff = next
	r.rdataLen = rdataLen
	r.HasRData = false
	r.SecondaryLen = 0
	rdataEnd := next + rdataLen

	switch r.Type {
	case protocol.TypePTR, protocol.TypeCNAME, protocol.TypeDNAME:
		// The embedded name must fill the RDATA exactly.
		nameEnd, err := ParseName(data, next, &r.RData)
		if err != nil {
			drop()
			return offset, err
		}
		if nameEnd != rdataEnd {
			drop()
			return offset, &errors.WireFormatError{
				Operation: "decode record",
				Offset:    nameEnd,
				Message:   fmt.Sprintf("%s RDATA name does not fill declared length", r.Type),
			}
		}
		r.HasRData = true

	case protocol.TypeSRV:
		// Fixed priority/weight/port, then a target name filling the
		// remainder per RFC 2782.
		if rdataLen <= 6 {
			drop()
			return offset, &errors.WireFormatError{
				Operation: "decode record",
				Offset:    next,
				Message:   "SRV RDATA shorter than its fixed fields",
			}
		}
		nameEnd, err := ParseName(data, next+6, &r.RData)
		if err != nil {
			drop()
			return offset, err
		}
		if nameEnd != rdataEnd {
			drop()
			return offset, &errors.WireFormatError{
				Operation: "decode record",
				Offset:    nameEnd,
				Message:   "SRV target name does not fill declared length",
			}
		}
		r.HasRData = true
		r.SecondaryLen = 6

	case protocol.TypeNSEC:
		// Next-domain name followed by a variable type bitmap per
		// RFC 6762 §6.1.
		nameEnd, err := ParseName(data, next, &r.RData)
		if err != nil {
			drop()
			return offset, err
		}
		if nameEnd > rdataEnd {
			drop()
			return offset, &errors.WireFormatError{
				Operation: "decode record",
				Offset:    nameEnd,
				Message:   "NSEC next-domain name overruns declared length",
			}
		}
		r.HasRData = true
		r.SecondaryLen = rdataEnd - nameEnd

	case protocol.TypeA, protocol.TypeAAAA, protocol.TypeTXT, protocol.TypeHINFO,
		protocol.TypeSVCB, protocol.TypeHTTPS, protocol.TypeOPT:
		// Opaque RDATA, copied byte-for-byte on the way out.

	default:
		drop()
		p.dropped++
		if p.warn {
			p.logger.Warn("dropping unsupported record type",
				"type", uint16(r.Type), "name", r.Name.String(), "section", section.String())
		}
		return rdataEnd, nil
	}

	switch r.Type.RecordFilterTarget() {
	case protocol.FilterOwner:
		if !admit(&r.Name, global, inbound) {
			drop()
			p.dropped++
		}
	case protocol.FilterRData:
		if !admit(&r.RData, global, inbound) {
			drop()
			p.dropped++
		}
	}

	return rdataEnd, nil
}

// nextQuery returns a cleared slot at the end of the query scratch.
func (p *Parser) nextQuery() *Query {
	p.queries = p.queries[:len(p.queries)+1]
	q := &p.queries[len(p.queries)-1]
	q.Name.Reset()
	return q
}

// nextRecord returns a cleared slot at the end of the record scratch.
func (p *Parser) nextRecord() *Record {
	p.records = p.records[:len(p.records)+1]
	r := &p.records[len(p.records)-1]
	r.Name.Reset()
	r.RData.Reset()
	return r
}

// admit applies the global and per-interface inbound lists. The two
// intersect, so evaluation order does not matter.
func admit(name *Name, global, inbound *filter.List) bool {
	if global != nil && !global.Admits(name.Bytes()) {
		return false
	}
	if inbound != nil && !inbound.Admits(name.Bytes()) {
		return false
	}
	return true
}
