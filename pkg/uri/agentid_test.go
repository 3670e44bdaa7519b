package uri

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewAgentID(t *testing.T) {
	id, err := NewAgentID("llm_chat")
	if err != nil {
		t.Fatalf("NewAgentID failed: %v", err)
	}
	if id.Prefix() != "llm_chat" {
		t.Errorf("expected prefix 'llm_chat', got %q", id.Prefix())
	}
	if len(id.Suffix()) != SuffixLength {
		t.Errorf("expected %d-char suffix, got %d", SuffixLength, len(id.Suffix()))
	}
	if id.Suffix()[0] > '7' {
		t.Errorf("first suffix char %q out of range", id.Suffix()[0])
	}
}

func TestNewAgentID_GeneratesUUIDv7(t *testing.T) {
	id, err := NewAgentID("llm")
	if err != nil {
		t.Fatalf("NewAgentID failed: %v", err)
	}
	u := id.UUID()
	if u.Version() != 7 {
		t.Errorf("expected UUID version 7, got %d", u.Version())
	}
	if u.Variant() != uuid.RFC4122 {
		t.Errorf("expected RFC 4122 variant, got %v", u.Variant())
	}
}

func TestNewAgentID_SuffixesSortInGenerationOrder(t *testing.T) {
	suffixes := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		id, err := NewAgentID("llm")
		if err != nil {
			t.Fatalf("NewAgentID failed: %v", err)
		}
		suffixes = append(suffixes, id.Suffix())
	}
	if !sort.StringsAreSorted(suffixes) {
		t.Error("suffixes are not in generation order")
	}
	for i := 1; i < len(suffixes); i++ {
		if suffixes[i] == suffixes[i-1] {
			t.Fatalf("duplicate suffix at %d: %s", i, suffixes[i])
		}
	}
}

func TestParseAgentID(t *testing.T) {
	id, err := ParseAgentID("llm_chat_01h455vb4pex5vsknk084sn02q")
	if err != nil {
		t.Fatalf("ParseAgentID failed: %v", err)
	}
	if id.Prefix() != "llm_chat" {
		t.Errorf("expected prefix 'llm_chat', got %q", id.Prefix())
	}
	if id.Suffix() != "01h455vb4pex5vsknk084sn02q" {
		t.Errorf("unexpected suffix %q", id.Suffix())
	}
	if id.String() != "llm_chat_01h455vb4pex5vsknk084sn02q" {
		t.Errorf("round-trip failed: %q", id.String())
	}
}

func TestParseAgentID_PrefixWithUnderscoreDisambiguation(t *testing.T) {
	// The split is at the LAST underscore: everything before it is the
	// prefix, even when the prefix itself contains underscores.
	tests := []struct {
		input  string
		prefix string
	}{
		{"llm_01h455vb4pex5vsknk084sn02q", "llm"},
		{"llm_chat_01h455vb4pex5vsknk084sn02q", "llm_chat"},
		{"llm_chat_streaming_01h455vb4pex5vsknk084sn02q", "llm_chat_streaming"},
	}
	for _, tt := range tests {
		id, err := ParseAgentID(tt.input)
		if err != nil {
			t.Fatalf("ParseAgentID(%q) failed: %v", tt.input, err)
		}
		if id.Prefix() != tt.prefix {
			t.Errorf("got prefix %q, want %q", id.Prefix(), tt.prefix)
		}
		if id.Suffix() != "01h455vb4pex5vsknk084sn02q" {
			t.Errorf("got suffix %q", id.Suffix())
		}
	}
}

func TestParseAgentID_CaseInsensitive(t *testing.T) {
	upper, err := ParseAgentID("LLM_01H455VB4PEX5VSKNK084SN02Q")
	if err != nil {
		t.Fatalf("ParseAgentID failed: %v", err)
	}
	lower, err := ParseAgentID("llm_01h455vb4pex5vsknk084sn02q")
	if err != nil {
		t.Fatalf("ParseAgentID failed: %v", err)
	}
	if upper.String() != lower.String() {
		t.Errorf("case folding failed: %q != %q", upper.String(), lower.String())
	}
	if upper.UUID() != lower.UUID() {
		t.Error("decoded uuids differ")
	}
}

func TestParseAgentID_Errors(t *testing.T) {
	validSuffix := "01h455vb4pex5vsknk084sn02q"
	tests := []struct {
		name  string
		input string
		code  AgentIDCode
	}{
		{"empty", "", AgentIDEmptyPrefix},
		{"too_long", strings.Repeat("a", 64) + "_" + validSuffix, AgentIDTooLong},
		{"missing_underscore", "llm01h455vb4pex5vsknk084sn02q", AgentIDMissingUnderscore},
		{"empty_prefix", "_" + validSuffix, AgentIDEmptyPrefix},
		{"prefix_digit", "llm2_" + validSuffix, AgentIDPrefixBadChar},
		{"prefix_hyphen", "llm-chat_" + validSuffix, AgentIDPrefixBadChar},
		{"prefix_ends_underscore", "llm__" + validSuffix, AgentIDPrefixBadBoundary},
		{"suffix_short", "llm_01h455vb4pex", AgentIDSuffixWrongLength},
		{"suffix_long", "llm_" + validSuffix + "0", AgentIDSuffixWrongLength},
		{"suffix_excluded_letter", "llm_01h455vb4pex5vsknk084sn0iq", AgentIDSuffixBadChar},
		{"suffix_first_char_8", "llm_81h455vb4pex5vsknk084sn02q", AgentIDSuffixFirstCharTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAgentID(tt.input)
			if err == nil {
				t.Fatalf("ParseAgentID(%q) succeeded, want error", tt.input)
			}
			var idErr *AgentIDError
			if !errors.As(err, &idErr) {
				t.Fatalf("expected *AgentIDError, got %T", err)
			}
			if idErr.Code != tt.code {
				t.Errorf("got code %q, want %q (err: %v)", idErr.Code, tt.code, err)
			}
		})
	}
}

func TestParseAgentID_AmbiguousLettersAreHardErrors(t *testing.T) {
	// i, l, o, u are excluded from the alphabet and never remapped.
	for _, c := range []string{"i", "l", "o", "u"} {
		input := "llm_0" + c + "h455vb4pex5vsknk084sn02q"
		if _, err := ParseAgentID(input); err == nil {
			t.Errorf("suffix containing %q should be rejected", c)
		}
	}
}

func TestAgentID_GenerateParseRoundTrip(t *testing.T) {
	id, err := NewAgentID("sensor_temp")
	if err != nil {
		t.Fatalf("NewAgentID failed: %v", err)
	}
	parsed, err := ParseAgentID(id.String())
	if err != nil {
		t.Fatalf("ParseAgentID failed: %v", err)
	}
	if parsed.Prefix() != id.Prefix() || parsed.Suffix() != id.Suffix() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), id.String())
	}
	if parsed.UUID() != id.UUID() {
		t.Error("decoded uuid differs from generated uuid")
	}
}

func TestBase32_EncodeDecodeVectors(t *testing.T) {
	var zero [16]byte
	if got := encodeSuffix(zero); got != strings.Repeat("0", 26) {
		t.Errorf("encode(0) = %q", got)
	}

	var ones [16]byte
	for i := range ones {
		ones[i] = 0xFF
	}
	if got := encodeSuffix(ones); got != "7"+strings.Repeat("z", 25) {
		t.Errorf("encode(all-ones) = %q", got)
	}

	if decodeSuffix(strings.Repeat("0", 26)) != zero {
		t.Error("decode(26 zeros) != zero value")
	}
	if decodeSuffix("7"+strings.Repeat("z", 25)) != ones {
		t.Error("decode(7zzz...) != all-ones")
	}
}

func TestBase32_RoundTripArbitrary(t *testing.T) {
	suffix := "01h455vb4pex5vsknk084sn02q"
	if got := encodeSuffix(decodeSuffix(suffix)); got != suffix {
		t.Errorf("round-trip failed: %q != %q", got, suffix)
	}
}

func BenchmarkParseAgentID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := ParseAgentID("llm_chat_01h455vb4pex5vsknk084sn02q"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNewAgentID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := NewAgentID("llm"); err != nil {
			b.Fatal(err)
		}
	}
}
