// Package filter implements domain-name filtering for bridged mDNS
// traffic: immutable match names compiled from configuration and
// ordered allow/deny lists evaluated against decoded wire names.
package filter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/joshuafuller/mdns-bridge/internal/errors"
	"github.com/joshuafuller/mdns-bridge/internal/protocol"
)

// Mode selects the admission semantics of a List.
type Mode uint8

const (
	// ModeAllow admits a name iff at least one match name appears in it.
	ModeAllow Mode = iota

	// ModeDeny admits a name iff no match name appears in it.
	ModeDeny
)

// String returns the mode mnemonic.
func (m Mode) String() string {
	switch m {
	case ModeAllow:
		return "allow"
	case ModeDeny:
		return "deny"
	default:
		return "invalid"
	}
}

// MatchName is an immutable filter pattern: a domain-name fragment in
// wire layout (length-prefixed labels, no terminator). Match names are
// compiled once at configuration time and shared by reference.
type MatchName struct {
	data []byte
}

// ParseMatchName compiles a dotted name fragment into wire layout.
//
// The fragment follows DNS label rules: no empty labels, labels of at
// most 63 bytes, total wire length below the name capacity. Matching is
// case-sensitive, so the fragment is kept byte-for-byte as configured.
func ParseMatchName(s string) (*MatchName, error) {
	trimmed := strings.TrimSuffix(s, ".")
	if trimmed == "" {
		return nil, &errors.ValidationError{
			Field:   "filter name",
			Value:   s,
			Message: "empty match name",
		}
	}

	labels := strings.Split(trimmed, ".")
	data := make([]byte, 0, len(trimmed)+len(labels))
	for _, label := range labels {
		if label == "" {
			return nil, &errors.ValidationError{
				Field:   "filter name",
				Value:   s,
				Message: "empty label (consecutive dots)",
			}
		}
		if len(label) > protocol.MaxLabelLength {
			return nil, &errors.ValidationError{
				Field:   "filter name",
				Value:   s,
				Message: fmt.Sprintf("label %q exceeds maximum length %d bytes per RFC 1035 §3.1", label, protocol.MaxLabelLength),
			}
		}
		data = append(data, byte(len(label)))
		data = append(data, label...)
	}

	if len(data) > protocol.MaxNameLength-1 {
		return nil, &errors.ValidationError{
			Field:   "filter name",
			Value:   s,
			Message: fmt.Sprintf("match name exceeds %d wire bytes", protocol.MaxNameLength-1),
		}
	}

	return &MatchName{data: data}, nil
}

// Bytes returns the wire-layout pattern bytes.
func (m *MatchName) Bytes() []byte {
	return m.data
}

// String returns the dotted presentation form for log lines.
func (m *MatchName) String() string {
	var b strings.Builder
	for off := 0; off < len(m.data); {
		if off > 0 {
			b.WriteByte('.')
		}
		n := int(m.data[off])
		b.Write(m.data[off+1 : off+1+n])
		off += 1 + n
	}
	return b.String()
}

// List is an ordered, immutable set of match names with allow-or-deny
// semantics. The match names are sorted and deduplicated at
// construction, which makes list equality a positional comparison.
type List struct {
	mode  Mode
	names []*MatchName
}

// NewList compiles filter strings into a List. The names are sorted
// lexicographically by wire bytes and deduplicated.
func NewList(mode Mode, names []string) (*List, error) {
	if len(names) == 0 {
		return nil, &errors.ValidationError{
			Field:   "filter",
			Message: "filter list has no names",
		}
	}

	parsed := make([]*MatchName, 0, len(names))
	for _, s := range names {
		m, err := ParseMatchName(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, m)
	}

	sort.Slice(parsed, func(i, j int) bool {
		return bytes.Compare(parsed[i].data, parsed[j].data) < 0
	})

	deduped := parsed[:1]
	for _, m := range parsed[1:] {
		if !bytes.Equal(m.data, deduped[len(deduped)-1].data) {
			deduped = append(deduped, m)
		}
	}

	return &List{mode: mode, names: deduped}, nil
}

// Mode returns the list's admission mode.
func (l *List) Mode() Mode {
	return l.mode
}

// Len returns the number of match names.
func (l *List) Len() int {
	return len(l.names)
}

// Names returns the ordered match names. The slice is shared; callers
// must not mutate it.
func (l *List) Names() []*MatchName {
	return l.names
}

// Admits evaluates a decoded name, given in uncompressed wire form,
// against the list.
//
// A match name matches when its wire bytes appear as a contiguous byte
// subsequence of the name's label bytes. Each pattern carries its own
// leading length byte, so a pattern like "_ipp" only matches a complete
// label of that spelling. Matching is case-sensitive.
func (l *List) Admits(wire []byte) bool {
	for _, m := range l.names {
		if bytes.Contains(wire, m.data) {
			return l.mode == ModeAllow
		}
	}
	return l.mode == ModeDeny
}

// Equal reports whether two lists are interchangeable: same mode, same
// count, same ordered match-name byte contents. A nil list (no
// filtering) only equals another nil list.
func Equal(a, b *List) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.mode != b.mode || len(a.names) != len(b.names) {
		return false
	}
	for i := range a.names {
		if !bytes.Equal(a.names[i].data, b.names[i].data) {
			return false
		}
	}
	return true
}
