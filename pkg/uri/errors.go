package uri

import "fmt"

// Span identifies the offending bytes within the parsed input.
// Offset is a byte offset from the start of the input handed to the parser;
// Length may be zero when the problem is the absence of something.
type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

func (s Span) String() string {
	return fmt.Sprintf("byte %d..%d", s.Offset, s.Offset+s.Length)
}

// TrustRootCode classifies trust root parse failures.
type TrustRootCode string

// Trust root error codes.
const (
	TrustRootEmpty             TrustRootCode = "empty"
	TrustRootTooLong           TrustRootCode = "too_long"
	TrustRootInvalidLabel      TrustRootCode = "invalid_label"
	TrustRootInvalidIPv4       TrustRootCode = "invalid_ipv4"
	TrustRootInvalidIPv6       TrustRootCode = "invalid_ipv6"
	TrustRootInvalidPort       TrustRootCode = "invalid_port"
	TrustRootUnexpectedTrailer TrustRootCode = "unexpected_trailer"
)

// TrustRootError reports an invalid trust root.
type TrustRootError struct {
	Code   TrustRootCode
	Span   Span
	Reason string
}

func (e *TrustRootError) Error() string {
	return fmt.Sprintf("trust root [%s] at %s: %s", e.Code, e.Span, e.Reason)
}

// CapabilityPathCode classifies capability path parse failures.
type CapabilityPathCode string

// Capability path error codes.
const (
	CapabilityPathEmpty           CapabilityPathCode = "empty"
	CapabilityPathTooLong         CapabilityPathCode = "too_long"
	CapabilityPathTooManySegments CapabilityPathCode = "too_many_segments"
	CapabilityPathEmptySegment    CapabilityPathCode = "empty_segment"
	CapabilityPathSegmentTooLong  CapabilityPathCode = "segment_too_long"
	CapabilityPathInvalidChar     CapabilityPathCode = "invalid_segment_char"
)

// CapabilityPathError reports an invalid capability path. SegmentIndex is
// the zero-based index of the offending segment, or -1 for path-level
// failures.
type CapabilityPathError struct {
	Code         CapabilityPathCode
	Span         Span
	SegmentIndex int
	Reason       string
}

func (e *CapabilityPathError) Error() string {
	if e.SegmentIndex >= 0 {
		return fmt.Sprintf("capability path [%s] segment %d at %s: %s",
			e.Code, e.SegmentIndex, e.Span, e.Reason)
	}
	return fmt.Sprintf("capability path [%s] at %s: %s", e.Code, e.Span, e.Reason)
}

// AgentIDCode classifies agent ID parse failures.
type AgentIDCode string

// Agent ID error codes.
const (
	AgentIDEmptyPrefix             AgentIDCode = "empty_prefix"
	AgentIDTooLong                 AgentIDCode = "too_long"
	AgentIDPrefixTooLong           AgentIDCode = "prefix_too_long"
	AgentIDPrefixBadChar           AgentIDCode = "prefix_bad_char"
	AgentIDPrefixBadBoundary       AgentIDCode = "prefix_bad_boundary"
	AgentIDMissingUnderscore       AgentIDCode = "missing_underscore"
	AgentIDSuffixWrongLength       AgentIDCode = "suffix_wrong_length"
	AgentIDSuffixBadChar           AgentIDCode = "suffix_bad_char"
	AgentIDSuffixFirstCharTooLarge AgentIDCode = "suffix_first_char_out_of_range"
)

// AgentIDError reports an invalid agent ID.
type AgentIDError struct {
	Code   AgentIDCode
	Span   Span
	Reason string
}

func (e *AgentIDError) Error() string {
	return fmt.Sprintf("agent id [%s] at %s: %s", e.Code, e.Span, e.Reason)
}

// QueryCode classifies query failures.
type QueryCode string

// Query error codes. InvalidTTL is produced by the typed TTL accessor,
// not by parsing: a non-numeric ttl parameter is structurally legal.
const (
	QueryMalformedParam QueryCode = "malformed_param"
	QueryInvalidTTL     QueryCode = "invalid_ttl"
)

// QueryError reports an invalid query string or query parameter access.
type QueryError struct {
	Code   QueryCode
	Span   Span
	Param  string
	Reason string
}

func (e *QueryError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("query [%s] param %q: %s", e.Code, e.Param, e.Reason)
	}
	return fmt.Sprintf("query [%s] at %s: %s", e.Code, e.Span, e.Reason)
}

// FragmentError reports an invalid fragment.
type FragmentError struct {
	Span   Span
	Reason string
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("fragment at %s: %s", e.Span, e.Reason)
}

// ParseCode classifies top-level URI parse failures.
type ParseCode string

// Top-level structural error codes. Component failures use the Invalid*
// codes and wrap the component error, reachable through errors.As.
const (
	ParseMissingScheme         ParseCode = "missing_scheme"
	ParseWrongScheme           ParseCode = "wrong_scheme"
	ParseMissingAuthority      ParseCode = "missing_authority"
	ParseMissingPath           ParseCode = "missing_path"
	ParseMissingAgentID        ParseCode = "missing_agent_id"
	ParseTotalTooLong          ParseCode = "total_too_long"
	ParseInvalidTrustRoot      ParseCode = "invalid_trust_root"
	ParseInvalidCapabilityPath ParseCode = "invalid_capability_path"
	ParseInvalidAgentID        ParseCode = "invalid_agent_id"
	ParseInvalidQuery          ParseCode = "invalid_query"
	ParseInvalidFragment       ParseCode = "invalid_fragment"
)

// ParseError is the top-level error returned by Parse and Build.
type ParseError struct {
	Code   ParseCode
	Span   Span
	Reason string
	Err    error // component error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent uri [%s]: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("agent uri [%s] at %s: %s", e.Code, e.Span, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// shiftSpan rebases a component error's span onto the full URI input so
// that offsets always refer to the string the caller handed to Parse.
func shiftSpan(err error, base int) error {
	switch e := err.(type) {
	case *TrustRootError:
		c := *e
		c.Span.Offset += base
		return &c
	case *CapabilityPathError:
		c := *e
		c.Span.Offset += base
		return &c
	case *AgentIDError:
		c := *e
		c.Span.Offset += base
		return &c
	case *QueryError:
		c := *e
		c.Span.Offset += base
		return &c
	case *FragmentError:
		c := *e
		c.Span.Offset += base
		return &c
	}
	return err
}
