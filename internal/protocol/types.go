package protocol

// RecordType represents a DNS record type per RFC 1035 §3.2.2.
type RecordType uint16

// Record and query types handled on the bridge hot path.
//
// Any other type is dropped from the forwarded packet (with an optional
// warning log line); it does not fail the packet.
const (
	// TypeA is an IPv4 host address record per RFC 1035 §3.4.1.
	TypeA RecordType = 1

	// TypeCNAME is a canonical-name record per RFC 1035 §3.3.1.
	TypeCNAME RecordType = 5

	// TypePTR is a domain-name pointer record per RFC 1035 §3.3.12.
	// DNS-SD (RFC 6763) uses PTR records for service enumeration.
	TypePTR RecordType = 12

	// TypeHINFO is a host-information record per RFC 1035 §3.3.2.
	TypeHINFO RecordType = 13

	// TypeTXT is a text record per RFC 1035 §3.3.14.
	TypeTXT RecordType = 16

	// TypeAAAA is an IPv6 host address record per RFC 3596.
	TypeAAAA RecordType = 28

	// TypeSRV is a service-location record per RFC 2782.
	TypeSRV RecordType = 33

	// TypeDNAME is a name-redirection record per RFC 6672.
	TypeDNAME RecordType = 39

	// TypeOPT is the EDNS(0) pseudo-record per RFC 6891.
	TypeOPT RecordType = 41

	// TypeNSEC is used by mDNS for negative responses per RFC 6762 §6.1.
	TypeNSEC RecordType = 47

	// TypeSVCB is a service-binding record per RFC 9460.
	TypeSVCB RecordType = 64

	// TypeHTTPS is the HTTPS-specific service-binding record per RFC 9460.
	TypeHTTPS RecordType = 65

	// TypeANY is the query meta-type per RFC 1035 §3.2.3, valid in
	// questions only. RFC 6762 §8.1 uses it for probing.
	TypeANY RecordType = 255
)

// String returns the mnemonic for a RecordType.
func (rt RecordType) String() string {
	switch rt {
	case TypeA:
		return "A"
	case TypeCNAME:
		return "CNAME"
	case TypePTR:
		return "PTR"
	case TypeHINFO:
		return "HINFO"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeSRV:
		return "SRV"
	case TypeDNAME:
		return "DNAME"
	case TypeOPT:
		return "OPT"
	case TypeNSEC:
		return "NSEC"
	case TypeSVCB:
		return "SVCB"
	case TypeHTTPS:
		return "HTTPS"
	case TypeANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// FilterTarget identifies which name of a query or record is evaluated
// against filter lists.
type FilterTarget uint8

const (
	// FilterNone marks types exempt from filtering. Address records are
	// exempt so hostname resolution keeps working under an allow filter
	// that only names service types.
	FilterNone FilterTarget = iota

	// FilterOwner evaluates the owner name.
	FilterOwner

	// FilterRData evaluates the name embedded in RDATA.
	FilterRData
)

// QuerySupported reports whether a question of this type is forwarded.
func (rt RecordType) QuerySupported() bool {
	return rt == TypeANY || rt.RecordSupported()
}

// RecordSupported reports whether a resource record of this type is
// forwarded. TypeANY is a query meta-type and is not a valid record type.
func (rt RecordType) RecordSupported() bool {
	switch rt {
	case TypeA, TypeCNAME, TypePTR, TypeHINFO, TypeTXT, TypeAAAA,
		TypeSRV, TypeDNAME, TypeOPT, TypeNSEC, TypeSVCB, TypeHTTPS:
		return true
	default:
		return false
	}
}

// RecordFilterTarget returns the filter input for a resource record of
// this type.
//
// PTR, CNAME and DNAME carry the interesting name in RDATA; SRV, TXT,
// HINFO, SVCB and HTTPS are service-scoped and filter on their owner
// name; address records, NSEC and OPT pass unfiltered.
func (rt RecordType) RecordFilterTarget() FilterTarget {
	switch rt {
	case TypePTR, TypeCNAME, TypeDNAME:
		return FilterRData
	case TypeSRV, TypeTXT, TypeHINFO, TypeSVCB, TypeHTTPS:
		return FilterOwner
	default:
		return FilterNone
	}
}

// QueryFilterTarget returns the filter input for a question of this type.
//
// A question carries no RDATA, so types that filter on the RDATA name in
// record form filter on the owner name here; the owner of a PTR question
// is the service type being enumerated. The exemptions match record form.
func (rt RecordType) QueryFilterTarget() FilterTarget {
	switch rt {
	case TypePTR, TypeCNAME, TypeDNAME, TypeSRV, TypeTXT, TypeHINFO,
		TypeSVCB, TypeHTTPS, TypeANY:
		return FilterOwner
	default:
		return FilterNone
	}
}
