package protocol

import "testing"

func TestRecordType_String(t *testing.T) {
	tests := []struct {
		rt   RecordType
		want string
	}{
		{TypeA, "A"},
		{TypeCNAME, "CNAME"},
		{TypePTR, "PTR"},
		{TypeHINFO, "HINFO"},
		{TypeTXT, "TXT"},
		{TypeAAAA, "AAAA"},
		{TypeSRV, "SRV"},
		{TypeDNAME, "DNAME"},
		{TypeOPT, "OPT"},
		{TypeNSEC, "NSEC"},
		{TypeSVCB, "SVCB"},
		{TypeHTTPS, "HTTPS"},
		{TypeANY, "ANY"},
		{RecordType(15), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.rt.String(); got != tt.want {
			t.Errorf("RecordType(%d).String() = %q, want %q", uint16(tt.rt), got, tt.want)
		}
	}
}

func TestRecordType_Supported(t *testing.T) {
	if RecordType(15).RecordSupported() { // MX
		t.Error("MX should not be supported")
	}
	if TypeANY.RecordSupported() {
		t.Error("ANY is a query meta-type, not a record type")
	}
	if !TypeANY.QuerySupported() {
		t.Error("ANY queries are supported")
	}
	if !TypeNSEC.RecordSupported() {
		t.Error("NSEC records are supported")
	}
}

func TestRecordType_FilterTargets(t *testing.T) {
	tests := []struct {
		rt     RecordType
		record FilterTarget
		query  FilterTarget
	}{
		{TypePTR, FilterRData, FilterOwner},
		{TypeCNAME, FilterRData, FilterOwner},
		{TypeDNAME, FilterRData, FilterOwner},
		{TypeSRV, FilterOwner, FilterOwner},
		{TypeTXT, FilterOwner, FilterOwner},
		{TypeHINFO, FilterOwner, FilterOwner},
		{TypeSVCB, FilterOwner, FilterOwner},
		{TypeHTTPS, FilterOwner, FilterOwner},
		{TypeA, FilterNone, FilterNone},
		{TypeAAAA, FilterNone, FilterNone},
		{TypeNSEC, FilterNone, FilterNone},
		{TypeOPT, FilterNone, FilterNone},
		{TypeANY, FilterNone, FilterOwner},
	}

	for _, tt := range tests {
		if got := tt.rt.RecordFilterTarget(); got != tt.record {
			t.Errorf("%v record filter target = %v, want %v", tt.rt, got, tt.record)
		}
		if got := tt.rt.QueryFilterTarget(); got != tt.query {
			t.Errorf("%v query filter target = %v, want %v", tt.rt, got, tt.query)
		}
	}
}
