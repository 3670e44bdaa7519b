package uri

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// AgentURI is a parsed and validated agent URI.
//
//	agent://<trust-root>/<capability-path>/<agent-id>[?query][#fragment]
//
// The value owns its components and is immutable; the With* methods
// return modified copies. Query and fragment are carried for display but
// excluded from the canonical identity form.
type AgentURI struct {
	trustRoot   TrustRoot
	path        CapabilityPath
	id          AgentID
	query       Query
	fragment    Fragment
	hasFragment bool
	normalized  string
}

// Parse parses an agent URI.
//
// The grammar is strict: a case-insensitive "agent://" scheme, a trust
// root, at least one capability path segment, and a trailing agent id,
// with an optional query and fragment. Inputs longer than MaxURILength
// are rejected before any further work.
func Parse(input string) (AgentURI, error) {
	if input == "" {
		return AgentURI{}, &ParseError{
			Code:   ParseMissingScheme,
			Span:   Span{Offset: 0, Length: 0},
			Reason: "input is empty",
		}
	}
	if len(input) > MaxURILength {
		return AgentURI{}, &ParseError{
			Code:   ParseTotalTooLong,
			Span:   Span{Offset: MaxURILength, Length: len(input) - MaxURILength},
			Reason: fmt.Sprintf("uri is %d bytes, limit is %d", len(input), MaxURILength),
		}
	}

	const schemePrefix = Scheme + "://"
	if len(input) < len(schemePrefix) || !strings.EqualFold(input[:len(schemePrefix)], schemePrefix) {
		if idx := strings.Index(input, "://"); idx >= 0 {
			return AgentURI{}, &ParseError{
				Code:   ParseWrongScheme,
				Span:   Span{Offset: 0, Length: idx},
				Reason: fmt.Sprintf("scheme %q is not %q", input[:idx], Scheme),
			}
		}
		return AgentURI{}, &ParseError{
			Code:   ParseMissingScheme,
			Span:   Span{Offset: 0, Length: len(input)},
			Reason: fmt.Sprintf("missing %q scheme", schemePrefix),
		}
	}
	rest := input[len(schemePrefix):]
	base := len(schemePrefix)

	// Fragment first, then query: '#' terminates the query part.
	var fragment Fragment
	hasFragment := false
	if idx := strings.IndexByte(rest, '#'); idx >= 0 {
		fragText := rest[idx+1:]
		if fragText != "" {
			f, err := ParseFragment(fragText)
			if err != nil {
				return AgentURI{}, &ParseError{
					Code: ParseInvalidFragment,
					Err:  shiftSpan(err, base+idx+1),
				}
			}
			fragment = f
			hasFragment = true
		}
		rest = rest[:idx]
	}

	var query Query
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		queryText := rest[idx+1:]
		if queryText != "" {
			q, err := ParseQuery(queryText)
			if err != nil {
				return AgentURI{}, &ParseError{
					Code: ParseInvalidQuery,
					Err:  shiftSpan(err, base+idx+1),
				}
			}
			query = q
		}
		rest = rest[:idx]
	}

	if rest == "" {
		return AgentURI{}, &ParseError{
			Code:   ParseMissingAuthority,
			Span:   Span{Offset: base, Length: 0},
			Reason: "missing trust root",
		}
	}

	firstSlash := strings.IndexByte(rest, '/')
	if firstSlash < 0 {
		return AgentURI{}, &ParseError{
			Code:   ParseMissingPath,
			Span:   Span{Offset: base + len(rest), Length: 0},
			Reason: "missing capability path",
		}
	}
	trustText := rest[:firstSlash]
	if trustText == "" {
		return AgentURI{}, &ParseError{
			Code:   ParseMissingAuthority,
			Span:   Span{Offset: base, Length: 0},
			Reason: "missing trust root",
		}
	}
	pathWithID := rest[firstSlash+1:]

	lastSlash := strings.LastIndexByte(pathWithID, '/')
	if lastSlash < 0 || pathWithID[lastSlash+1:] == "" {
		return AgentURI{}, &ParseError{
			Code:   ParseMissingAgentID,
			Span:   Span{Offset: base + len(rest), Length: 0},
			Reason: "missing agent id",
		}
	}
	pathText := pathWithID[:lastSlash]
	idText := pathWithID[lastSlash+1:]
	if pathText == "" {
		return AgentURI{}, &ParseError{
			Code:   ParseMissingPath,
			Span:   Span{Offset: base + firstSlash + 1, Length: 0},
			Reason: "missing capability path",
		}
	}

	trustRoot, err := ParseTrustRoot(trustText)
	if err != nil {
		return AgentURI{}, &ParseError{Code: ParseInvalidTrustRoot, Err: shiftSpan(err, base)}
	}
	path, err := ParseCapabilityPath(pathText)
	if err != nil {
		return AgentURI{}, &ParseError{Code: ParseInvalidCapabilityPath, Err: shiftSpan(err, base+firstSlash+1)}
	}
	id, err := ParseAgentID(idText)
	if err != nil {
		return AgentURI{}, &ParseError{Code: ParseInvalidAgentID, Err: shiftSpan(err, base+firstSlash+1+lastSlash+1)}
	}

	return assemble(trustRoot, path, id, query, fragment, hasFragment)
}

// New creates an agent URI from already-validated components, with no
// query or fragment.
func New(trustRoot TrustRoot, path CapabilityPath, id AgentID) (AgentURI, error) {
	return assemble(trustRoot, path, id, Query{}, Fragment{}, false)
}

// assemble builds the normalized form and enforces the total length bound.
func assemble(trustRoot TrustRoot, path CapabilityPath, id AgentID, query Query, fragment Fragment, hasFragment bool) (AgentURI, error) {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString("://")
	b.WriteString(trustRoot.String())
	b.WriteByte('/')
	b.WriteString(path.String())
	b.WriteByte('/')
	b.WriteString(id.String())
	if !query.IsEmpty() {
		b.WriteByte('?')
		b.WriteString(query.String())
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(fragment.String())
	}
	normalized := b.String()

	if len(normalized) > MaxURILength {
		return AgentURI{}, &ParseError{
			Code:   ParseTotalTooLong,
			Span:   Span{Offset: MaxURILength, Length: len(normalized) - MaxURILength},
			Reason: fmt.Sprintf("uri is %d bytes, limit is %d", len(normalized), MaxURILength),
		}
	}

	return AgentURI{
		trustRoot:   trustRoot,
		path:        path,
		id:          id,
		query:       query,
		fragment:    fragment,
		hasFragment: hasFragment,
		normalized:  normalized,
	}, nil
}

// TrustRoot returns the authority component.
func (u AgentURI) TrustRoot() TrustRoot {
	return u.trustRoot
}

// CapabilityPath returns the capability component.
func (u AgentURI) CapabilityPath() CapabilityPath {
	return u.path
}

// AgentID returns the identifier component.
func (u AgentURI) AgentID() AgentID {
	return u.id
}

// Query returns the query component; it is empty when absent.
func (u AgentURI) Query() Query {
	return u.query
}

// Fragment returns the fragment component and whether one is present.
func (u AgentURI) Fragment() (Fragment, bool) {
	return u.fragment, u.hasFragment
}

// IsLocalhost reports whether the URI's trust root refers to the local
// machine.
func (u AgentURI) IsLocalhost() bool {
	return u.trustRoot.IsLocalhost()
}

// String returns the normalized URI, including any query and fragment.
func (u AgentURI) String() string {
	return u.normalized
}

// Canonical returns the identity form: lowercase scheme, trust root,
// capability path, and agent id, with query and fragment stripped.
func (u AgentURI) Canonical() string {
	return Scheme + "://" + u.trustRoot.String() + "/" + u.path.String() + "/" + u.id.String()
}

// IdentityEq reports whether two URIs name the same agent: their canonical
// forms are byte-equal. Query and fragment are ignored.
func (u AgentURI) IdentityEq(other AgentURI) bool {
	return u.Canonical() == other.Canonical()
}

// IdentityHash returns the SHA-256 of the canonical form, suitable as a
// map key.
func (u AgentURI) IdentityHash() [32]byte {
	return sha256.Sum256([]byte(u.Canonical()))
}

// WithQuery returns a copy with the query replaced.
func (u AgentURI) WithQuery(q Query) (AgentURI, error) {
	return assemble(u.trustRoot, u.path, u.id, q, u.fragment, u.hasFragment)
}

// WithQueryString returns a copy with the query parsed from s.
func (u AgentURI) WithQueryString(s string) (AgentURI, error) {
	q, err := ParseQuery(s)
	if err != nil {
		return AgentURI{}, &ParseError{Code: ParseInvalidQuery, Err: err}
	}
	return u.WithQuery(q)
}

// WithoutQuery returns a copy with the query removed.
func (u AgentURI) WithoutQuery() AgentURI {
	out, _ := assemble(u.trustRoot, u.path, u.id, Query{}, u.fragment, u.hasFragment)
	return out
}

// WithFragment returns a copy with the fragment replaced. An empty
// fragment clears it.
func (u AgentURI) WithFragment(f Fragment) (AgentURI, error) {
	return assemble(u.trustRoot, u.path, u.id, u.query, f, !f.IsEmpty())
}

// WithFragmentString returns a copy with the fragment parsed from s.
func (u AgentURI) WithFragmentString(s string) (AgentURI, error) {
	f, err := ParseFragment(s)
	if err != nil {
		return AgentURI{}, &ParseError{Code: ParseInvalidFragment, Err: err}
	}
	return u.WithFragment(f)
}

// WithoutFragment returns a copy with the fragment removed.
func (u AgentURI) WithoutFragment() AgentURI {
	out, _ := assemble(u.trustRoot, u.path, u.id, u.query, Fragment{}, false)
	return out
}

// MarshalText implements encoding.TextMarshaler using the normalized form.
func (u AgentURI) MarshalText() ([]byte, error) {
	return []byte(u.normalized), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *AgentURI) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
