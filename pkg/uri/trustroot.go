package uri

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// HostKind discriminates the host variants of a trust root.
type HostKind int

// Host variants.
const (
	HostDomain HostKind = iota
	HostIPv4
	HostIPv6
)

func (k HostKind) String() string {
	switch k {
	case HostDomain:
		return "domain"
	case HostIPv4:
		return "ipv4"
	case HostIPv6:
		return "ipv6"
	}
	return "unknown"
}

// TrustRoot is the validated authority component of an agent URI: a domain
// name, IPv4 address, or bracketed IPv6 address, with an optional port.
//
// Trust roots are normalized at parse: ASCII letters are lowercased, a
// single trailing dot on a domain is stripped, IPv6 hex digits are
// lowercased (the textual form is otherwise retained, no re-compression),
// and ports are rendered without leading zeros. Only ASCII input is
// accepted; Unicode hosts must be pre-encoded to Punycode by the caller.
//
// The zero value is not a valid TrustRoot; obtain one from ParseTrustRoot.
type TrustRoot struct {
	kind HostKind
	// host is the canonical textual host without brackets or port,
	// e.g. "anthropic.com", "192.168.1.1", "::1".
	host    string
	addr    netip.Addr // set for HostIPv4 and HostIPv6
	port    uint16
	hasPort bool
}

// ParseTrustRoot parses and normalizes a trust root.
//
// Bracketed IPv6 literals are tried first, then strict dotted-quad IPv4,
// then domain names. A host consisting solely of digits and dots must be a
// valid IPv4 address; it is never reinterpreted as a domain.
func ParseTrustRoot(input string) (TrustRoot, error) {
	if input == "" {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootEmpty,
			Span:   Span{Offset: 0, Length: 0},
			Reason: "trust root is empty",
		}
	}
	if len(input) > MaxTrustRootLength {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootTooLong,
			Span:   Span{Offset: MaxTrustRootLength, Length: len(input) - MaxTrustRootLength},
			Reason: fmt.Sprintf("trust root is %d bytes, limit is %d", len(input), MaxTrustRootLength),
		}
	}
	for i := 0; i < len(input); i++ {
		if input[i] >= 0x80 {
			return TrustRoot{}, &TrustRootError{
				Code:   TrustRootInvalidLabel,
				Span:   Span{Offset: i, Length: 1},
				Reason: "trust root must be ASCII",
			}
		}
	}

	if input[0] == '[' {
		return parseIPv6Literal(input)
	}

	hostPart, port, hasPort, err := splitHostPort(input)
	if err != nil {
		return TrustRoot{}, err
	}

	if isDottedQuadShaped(hostPart) {
		addr, err := parseDottedQuad(hostPart)
		if err != nil {
			return TrustRoot{}, err
		}
		return TrustRoot{kind: HostIPv4, host: hostPart, addr: addr, port: port, hasPort: hasPort}, nil
	}

	host, err := normalizeDomain(hostPart)
	if err != nil {
		return TrustRoot{}, err
	}
	return TrustRoot{kind: HostDomain, host: host, port: port, hasPort: hasPort}, nil
}

// Kind returns the host variant.
func (t TrustRoot) Kind() HostKind {
	return t.kind
}

// Host returns the canonical textual host without port or IPv6 brackets.
func (t TrustRoot) Host() string {
	return t.host
}

// Port returns the port and whether one was specified.
func (t TrustRoot) Port() (uint16, bool) {
	return t.port, t.hasPort
}

// Addr returns the parsed IP address for IPv4 and IPv6 hosts.
func (t TrustRoot) Addr() (netip.Addr, bool) {
	if t.kind == HostDomain {
		return netip.Addr{}, false
	}
	return t.addr, true
}

// WithoutPort returns a copy of the trust root with the port cleared.
func (t TrustRoot) WithoutPort() TrustRoot {
	t.port = 0
	t.hasPort = false
	return t
}

// WithPort returns a copy of the trust root with the given port. It fails
// if the resulting textual form would exceed MaxTrustRootLength.
func (t TrustRoot) WithPort(port uint16) (TrustRoot, error) {
	t.port = port
	t.hasPort = true
	if n := len(t.String()); n > MaxTrustRootLength {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootTooLong,
			Span:   Span{Offset: MaxTrustRootLength, Length: n - MaxTrustRootLength},
			Reason: fmt.Sprintf("trust root with port is %d bytes, limit is %d", n, MaxTrustRootLength),
		}
	}
	return t, nil
}

// IsLocalhost reports whether the trust root refers to the local machine.
func (t TrustRoot) IsLocalhost() bool {
	switch t.kind {
	case HostDomain:
		return t.host == "localhost"
	default:
		return t.addr.IsLoopback()
	}
}

// String returns the canonical textual form, with IPv6 hosts bracketed and
// the port appended when present.
func (t TrustRoot) String() string {
	var b strings.Builder
	if t.kind == HostIPv6 {
		b.WriteByte('[')
		b.WriteString(t.host)
		b.WriteByte(']')
	} else {
		b.WriteString(t.host)
	}
	if t.hasPort {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(t.port), 10))
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (t TrustRoot) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TrustRoot) UnmarshalText(text []byte) error {
	parsed, err := ParseTrustRoot(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// splitHostPort splits a trailing ":port" off a non-bracketed host. The
// suffix after the last colon is only treated as a port when it is
// non-empty and all digits; anything else is left for host validation to
// reject.
func splitHostPort(input string) (host string, port uint16, hasPort bool, err error) {
	idx := strings.LastIndexByte(input, ':')
	if idx < 0 {
		return input, 0, false, nil
	}
	portPart := input[idx+1:]
	if portPart == "" || !allDigits(portPart) {
		return input, 0, false, nil
	}
	p, err := parsePort(portPart, idx+1)
	if err != nil {
		return "", 0, false, err
	}
	return input[:idx], p, true, nil
}

func parsePort(s string, offset int) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v > 65535 {
		return 0, &TrustRootError{
			Code:   TrustRootInvalidPort,
			Span:   Span{Offset: offset, Length: len(s)},
			Reason: fmt.Sprintf("port %q must be 0-65535", s),
		}
	}
	return uint16(v), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

// isDottedQuadShaped reports whether the host consists solely of digits
// and dots, i.e. it must parse as IPv4 or fail.
func isDottedQuadShaped(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) && s[i] != '.' {
			return false
		}
	}
	return true
}

// parseDottedQuad parses a strict IPv4 dotted quad: exactly four decimal
// octets 0-255, no leading zeros.
func parseDottedQuad(s string) (netip.Addr, error) {
	fail := func(reason string) (netip.Addr, error) {
		return netip.Addr{}, &TrustRootError{
			Code:   TrustRootInvalidIPv4,
			Span:   Span{Offset: 0, Length: len(s)},
			Reason: reason,
		}
	}
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return fail(fmt.Sprintf("expected 4 octets, found %d", len(parts)))
	}
	var octets [4]byte
	for i, part := range parts {
		if part == "" || len(part) > 3 {
			return fail(fmt.Sprintf("octet %d is malformed", i))
		}
		if len(part) > 1 && part[0] == '0' {
			return fail(fmt.Sprintf("octet %d has a leading zero", i))
		}
		v, err := strconv.Atoi(part)
		if err != nil || v > 255 {
			return fail(fmt.Sprintf("octet %d is out of range", i))
		}
		octets[i] = byte(v)
	}
	return netip.AddrFrom4(octets), nil
}

// parseIPv6Literal parses "[addr]" with an optional ":port". The textual
// address is validated with net/netip and retained lowercased; it is not
// re-compressed, so the input form round-trips.
func parseIPv6Literal(input string) (TrustRoot, error) {
	closing := strings.IndexByte(input, ']')
	if closing < 0 {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootInvalidIPv6,
			Span:   Span{Offset: 0, Length: len(input)},
			Reason: "missing closing bracket for IPv6 literal",
		}
	}
	addrText := toLowerASCII(input[1:closing])
	addr, err := netip.ParseAddr(addrText)
	if err != nil || !addr.Is6() {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootInvalidIPv6,
			Span:   Span{Offset: 1, Length: closing - 1},
			Reason: fmt.Sprintf("%q is not a valid IPv6 address", input[1:closing]),
		}
	}
	if addr.Zone() != "" {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootInvalidIPv6,
			Span:   Span{Offset: 1, Length: closing - 1},
			Reason: "zone identifiers are not permitted",
		}
	}

	root := TrustRoot{kind: HostIPv6, host: addrText, addr: addr}
	rest := input[closing+1:]
	if rest == "" {
		return root, nil
	}
	if rest[0] != ':' {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootUnexpectedTrailer,
			Span:   Span{Offset: closing + 1, Length: len(rest)},
			Reason: "expected ':' after IPv6 closing bracket",
		}
	}
	portPart := rest[1:]
	if !allDigits(portPart) {
		return TrustRoot{}, &TrustRootError{
			Code:   TrustRootInvalidPort,
			Span:   Span{Offset: closing + 2, Length: len(portPart)},
			Reason: fmt.Sprintf("port %q must be numeric", portPart),
		}
	}
	p, err2 := parsePort(portPart, closing+2)
	if err2 != nil {
		return TrustRoot{}, err2
	}
	root.port = p
	root.hasPort = true
	return root, nil
}

// normalizeDomain validates a domain name and returns its canonical form:
// lowercased, with a single trailing dot stripped.
func normalizeDomain(domain string) (string, error) {
	trimmed := domain
	if strings.HasSuffix(trimmed, ".") && len(trimmed) > 1 {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if trimmed == "" || trimmed == "." {
		return "", &TrustRootError{
			Code:   TrustRootInvalidLabel,
			Span:   Span{Offset: 0, Length: len(domain)},
			Reason: "domain has no labels",
		}
	}
	if len(trimmed) > maxDNSDomainLength {
		return "", &TrustRootError{
			Code:   TrustRootInvalidLabel,
			Span:   Span{Offset: 0, Length: len(domain)},
			Reason: fmt.Sprintf("domain exceeds %d characters", maxDNSDomainLength),
		}
	}

	offset := 0
	for _, label := range strings.Split(trimmed, ".") {
		if err := validateLabel(label, offset); err != nil {
			return "", err
		}
		offset += len(label) + 1
	}
	return toLowerASCII(trimmed), nil
}

func validateLabel(label string, offset int) error {
	if label == "" {
		return &TrustRootError{
			Code:   TrustRootInvalidLabel,
			Span:   Span{Offset: offset, Length: 0},
			Reason: "empty label (consecutive or leading dot)",
		}
	}
	if len(label) > maxDNSLabelLength {
		return &TrustRootError{
			Code:   TrustRootInvalidLabel,
			Span:   Span{Offset: offset, Length: len(label)},
			Reason: fmt.Sprintf("label exceeds %d characters", maxDNSLabelLength),
		}
	}
	for i := 0; i < len(label); i++ {
		if !isLabelChar(label[i]) {
			return &TrustRootError{
				Code:   TrustRootInvalidLabel,
				Span:   Span{Offset: offset + i, Length: 1},
				Reason: fmt.Sprintf("character %q is not valid in a label", label[i]),
			}
		}
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return &TrustRootError{
			Code:   TrustRootInvalidLabel,
			Span:   Span{Offset: offset, Length: len(label)},
			Reason: "label cannot start or end with a hyphen",
		}
	}
	return nil
}
