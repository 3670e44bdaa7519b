package uri

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AgentID is the validated identifier component of an agent URI, in TypeID
// format: a semantic prefix, an underscore, and a 26-character base32
// suffix encoding a 128-bit value.
//
//	llm_chat_01h455vb4pex5vsknk084sn02q
//	^^^^^^^^ prefix        suffix ^^^^^
//
// Prefixes are 1-63 characters of lowercase letters and underscores,
// starting and ending with a letter. Prefixes may themselves contain
// underscores; the suffix alphabet excludes '_', so the split at the last
// underscore is unambiguous.
//
// NewAgentID generates the suffix from a fresh UUIDv7, making ids
// time-sortable. ParseAgentID accepts any 128-bit suffix value and does
// not check the UUID version bits.
//
// The zero value is not a valid AgentID; obtain one from NewAgentID or
// ParseAgentID.
type AgentID struct {
	prefix string
	suffix string
	id     uuid.UUID
}

// NewAgentID creates an agent ID with the given prefix and a freshly
// generated UUIDv7. Successive calls within a process produce ids whose
// suffixes sort in generation order.
func NewAgentID(prefix string) (AgentID, error) {
	if err := validatePrefix(prefix, 0); err != nil {
		return AgentID{}, err
	}
	u, err := defaultV7.next()
	if err != nil {
		return AgentID{}, fmt.Errorf("generate uuidv7: %w", err)
	}
	return AgentID{prefix: prefix, suffix: encodeSuffix(u), id: u}, nil
}

// ParseAgentID parses an agent ID. Input is case-insensitive; the
// canonical form is lowercase.
func ParseAgentID(input string) (AgentID, error) {
	if input == "" {
		return AgentID{}, &AgentIDError{
			Code:   AgentIDEmptyPrefix,
			Span:   Span{Offset: 0, Length: 0},
			Reason: "agent id is empty",
		}
	}
	if len(input) > MaxAgentIDLength {
		return AgentID{}, &AgentIDError{
			Code:   AgentIDTooLong,
			Span:   Span{Offset: MaxAgentIDLength, Length: len(input) - MaxAgentIDLength},
			Reason: fmt.Sprintf("agent id is %d bytes, limit is %d", len(input), MaxAgentIDLength),
		}
	}

	lowered := toLowerASCII(input)
	sep := strings.LastIndexByte(lowered, '_')
	if sep < 0 {
		return AgentID{}, &AgentIDError{
			Code:   AgentIDMissingUnderscore,
			Span:   Span{Offset: 0, Length: len(input)},
			Reason: "missing '_' separator between prefix and suffix",
		}
	}
	if sep == 0 {
		return AgentID{}, &AgentIDError{
			Code:   AgentIDEmptyPrefix,
			Span:   Span{Offset: 0, Length: 1},
			Reason: "prefix is empty",
		}
	}

	prefix := lowered[:sep]
	suffix := lowered[sep+1:]

	if err := validatePrefix(prefix, 0); err != nil {
		return AgentID{}, err
	}
	if err := validateSuffix(suffix, sep+1); err != nil {
		return AgentID{}, err
	}

	return AgentID{
		prefix: prefix,
		suffix: suffix,
		id:     uuid.UUID(decodeSuffix(suffix)),
	}, nil
}

// Prefix returns the semantic prefix, e.g. "llm_chat".
func (a AgentID) Prefix() string {
	return a.prefix
}

// Suffix returns the 26-character base32 suffix.
func (a AgentID) Suffix() string {
	return a.suffix
}

// UUID returns the 128-bit value decoded from the suffix.
func (a AgentID) UUID() uuid.UUID {
	return a.id
}

// String returns the canonical form: prefix, underscore, suffix, all
// lowercase.
func (a AgentID) String() string {
	return a.prefix + "_" + a.suffix
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (a AgentID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AgentID) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// validatePrefix checks a lowercase prefix. base is the prefix's byte
// offset within the larger input, for error spans.
func validatePrefix(prefix string, base int) error {
	if prefix == "" {
		return &AgentIDError{
			Code:   AgentIDEmptyPrefix,
			Span:   Span{Offset: base, Length: 0},
			Reason: "prefix is empty",
		}
	}
	if len(prefix) > MaxAgentPrefixLength {
		return &AgentIDError{
			Code:   AgentIDPrefixTooLong,
			Span:   Span{Offset: base, Length: len(prefix)},
			Reason: fmt.Sprintf("prefix is %d bytes, limit is %d", len(prefix), MaxAgentPrefixLength),
		}
	}
	for i := 0; i < len(prefix); i++ {
		if !isPrefixChar(prefix[i]) {
			return &AgentIDError{
				Code:   AgentIDPrefixBadChar,
				Span:   Span{Offset: base + i, Length: 1},
				Reason: fmt.Sprintf("character %q is not valid in a prefix", prefix[i]),
			}
		}
	}
	if !isLowerAlpha(prefix[0]) {
		return &AgentIDError{
			Code:   AgentIDPrefixBadBoundary,
			Span:   Span{Offset: base, Length: 1},
			Reason: "prefix must start with a letter",
		}
	}
	if !isLowerAlpha(prefix[len(prefix)-1]) {
		return &AgentIDError{
			Code:   AgentIDPrefixBadBoundary,
			Span:   Span{Offset: base + len(prefix) - 1, Length: 1},
			Reason: "prefix must end with a letter",
		}
	}
	return nil
}

// validateSuffix checks a lowercase suffix. base is the suffix's byte
// offset within the larger input.
func validateSuffix(suffix string, base int) error {
	if len(suffix) != SuffixLength {
		return &AgentIDError{
			Code:   AgentIDSuffixWrongLength,
			Span:   Span{Offset: base, Length: len(suffix)},
			Reason: fmt.Sprintf("suffix is %d characters, must be exactly %d", len(suffix), SuffixLength),
		}
	}
	for i := 0; i < len(suffix); i++ {
		if base32Values[suffix[i]] == 0xFF {
			return &AgentIDError{
				Code:   AgentIDSuffixBadChar,
				Span:   Span{Offset: base + i, Length: 1},
				Reason: fmt.Sprintf("character %q is not in the base32 alphabet", suffix[i]),
			}
		}
	}
	// The first character carries only 3 bits; anything above '7' would
	// overflow 128 bits.
	if suffix[0] > '7' {
		return &AgentIDError{
			Code:   AgentIDSuffixFirstCharTooLarge,
			Span:   Span{Offset: base, Length: 1},
			Reason: "first suffix character must be 0-7",
		}
	}
	return nil
}
