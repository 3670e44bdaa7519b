package uri

import (
	"errors"
	"strings"
	"testing"
)

const testID = "llm_01h455vb4pex5vsknk084sn02q"

func TestParse_Minimal(t *testing.T) {
	input := "agent://a.co/x/" + testID
	u, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if u.TrustRoot().Host() != "a.co" {
		t.Errorf("trust root %q", u.TrustRoot().Host())
	}
	if u.CapabilityPath().String() != "x" {
		t.Errorf("capability path %q", u.CapabilityPath().String())
	}
	if u.AgentID().Prefix() != "llm" {
		t.Errorf("agent id prefix %q", u.AgentID().Prefix())
	}
	if u.Canonical() != input {
		t.Errorf("canonical %q != input", u.Canonical())
	}
	if u.String() != input {
		t.Errorf("String %q != input", u.String())
	}
}

func TestParse_FullURI(t *testing.T) {
	input := "agent://anthropic.com/assistant/chat/llm_chat_01h455vb4pex5vsknk084sn02q?version=2.0&ttl=300#summarization"
	u, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if u.TrustRoot().Host() != "anthropic.com" {
		t.Errorf("trust root %q", u.TrustRoot().Host())
	}
	if u.CapabilityPath().String() != "assistant/chat" {
		t.Errorf("capability path %q", u.CapabilityPath().String())
	}
	if u.AgentID().Prefix() != "llm_chat" {
		t.Errorf("agent id prefix %q", u.AgentID().Prefix())
	}
	v, _ := u.Query().Version()
	if v != "2.0" {
		t.Errorf("version %q", v)
	}
	frag, ok := u.Fragment()
	if !ok || frag.String() != "summarization" {
		t.Errorf("fragment %q, %v", frag.String(), ok)
	}
	if u.String() != input {
		t.Errorf("round-trip failed:\n got %q\nwant %q", u.String(), input)
	}
}

func TestParse_CaseFolding(t *testing.T) {
	u, err := Parse("agent://Anthropic.COM/Assistant/Chat/LLM_01H455VB4PEX5VSKNK084SN02Q?version=1.0#task")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	wantCanonical := "agent://anthropic.com/assistant/chat/llm_01h455vb4pex5vsknk084sn02q"
	if u.Canonical() != wantCanonical {
		t.Errorf("canonical:\n got %q\nwant %q", u.Canonical(), wantCanonical)
	}

	plain, err := Parse(wantCanonical)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !u.IdentityEq(plain) {
		t.Error("identity should ignore case, query, and fragment")
	}
	if u.IdentityHash() != plain.IdentityHash() {
		t.Error("identity hashes should match")
	}
}

func TestParse_SchemeCaseInsensitive(t *testing.T) {
	u, err := Parse("AGENT://a.co/x/" + testID)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !strings.HasPrefix(u.String(), "agent://") {
		t.Errorf("scheme not lowercased: %q", u.String())
	}
}

func TestParse_IPv6WithPort(t *testing.T) {
	input := "agent://[::1]:8472/debug/" + testID
	u, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if u.TrustRoot().Host() != "::1" {
		t.Errorf("host %q", u.TrustRoot().Host())
	}
	port, _ := u.TrustRoot().Port()
	if port != 8472 {
		t.Errorf("port %d", port)
	}
	if u.String() != input {
		t.Errorf("bracketed form not reproduced: %q", u.String())
	}
}

func TestParse_StructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  ParseCode
	}{
		{"empty", "", ParseMissingScheme},
		{"no_scheme", "anthropic.com/chat/" + testID, ParseMissingScheme},
		{"wrong_scheme", "http://anthropic.com/chat/" + testID, ParseWrongScheme},
		{"no_authority", "agent:///chat/" + testID, ParseMissingAuthority},
		{"authority_only", "agent://anthropic.com", ParseMissingPath},
		{"no_path", "agent://anthropic.com/" + testID, ParseMissingAgentID},
		{"trailing_slash", "agent://anthropic.com/chat/", ParseMissingAgentID},
		{"too_long", "agent://a.co/" + strings.Repeat("x", 500) + "/" + testID, ParseTotalTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.input)
			}
			var pErr *ParseError
			if !errors.As(err, &pErr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if pErr.Code != tt.code {
				t.Errorf("got code %q, want %q (err: %v)", pErr.Code, tt.code, err)
			}
		})
	}
}

func TestParse_DoubleSlashIsEmptySegment(t *testing.T) {
	_, err := Parse("agent://anthropic.com//chat/" + testID)
	var cpErr *CapabilityPathError
	if !errors.As(err, &cpErr) {
		t.Fatalf("expected wrapped *CapabilityPathError, got %v", err)
	}
	if cpErr.Code != CapabilityPathEmptySegment {
		t.Errorf("got code %q, want %q", cpErr.Code, CapabilityPathEmptySegment)
	}
}

func TestParse_SuffixWrongLengthPropagates(t *testing.T) {
	_, err := Parse("agent://anthropic.com/chat/llm_01h455vb4pex")
	var idErr *AgentIDError
	if !errors.As(err, &idErr) {
		t.Fatalf("expected wrapped *AgentIDError, got %v", err)
	}
	if idErr.Code != AgentIDSuffixWrongLength {
		t.Errorf("got code %q, want %q", idErr.Code, AgentIDSuffixWrongLength)
	}
}

func TestParse_ComponentErrorSpansAreRebased(t *testing.T) {
	_, err := Parse("agent://anthropic.com/UP PER/" + testID)
	var cpErr *CapabilityPathError
	if !errors.As(err, &cpErr) {
		t.Fatalf("expected wrapped *CapabilityPathError, got %v", err)
	}
	// The offending byte is the space inside the segment, located after
	// "agent://anthropic.com/UP".
	wantOffset := len("agent://anthropic.com/UP")
	if cpErr.Span.Offset != wantOffset {
		t.Errorf("span offset %d, want %d", cpErr.Span.Offset, wantOffset)
	}
}

func TestParse_EmptyQueryAndFragmentAreStripped(t *testing.T) {
	u, err := Parse("agent://anthropic.com/chat/" + testID + "?")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !u.Query().IsEmpty() {
		t.Error("empty query should be stripped")
	}

	u, err = Parse("agent://anthropic.com/chat/" + testID + "#")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := u.Fragment(); ok {
		t.Error("empty fragment should be stripped")
	}
}

func TestAgentURI_NormalizationIdempotent(t *testing.T) {
	inputs := []string{
		"agent://Anthropic.COM/Assistant/LLM_01H455VB4PEX5VSKNK084SN02Q",
		"agent://anthropic.com./chat/" + testID,
		"agent://[0:0:0:0:0:0:0:1]/debug/" + testID,
	}
	for _, input := range inputs {
		u, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		again, err := Parse(u.Canonical())
		if err != nil {
			t.Fatalf("Parse(canonical) failed: %v", err)
		}
		if again.Canonical() != u.Canonical() {
			t.Errorf("canonical not idempotent for %q: %q != %q",
				input, again.Canonical(), u.Canonical())
		}
	}
}

func TestAgentURI_IdentityIgnoresQueryAndFragment(t *testing.T) {
	base, err := Parse("agent://anthropic.com/chat/" + testID)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	decorated, err := Parse("agent://anthropic.com/chat/" + testID + "?version=2.0&ttl=60#task")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !base.IdentityEq(decorated) {
		t.Error("query and fragment must not affect identity")
	}
	if base.IdentityHash() != decorated.IdentityHash() {
		t.Error("identity hashes must match")
	}
}

func TestAgentURI_WithQueryAndFragment(t *testing.T) {
	u, err := Parse("agent://anthropic.com/chat/" + testID)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	withQ, err := u.WithQueryString("version=2.0")
	if err != nil {
		t.Fatalf("WithQueryString failed: %v", err)
	}
	v, _ := withQ.Query().Version()
	if v != "2.0" {
		t.Errorf("version %q", v)
	}

	withF, err := withQ.WithFragmentString("task")
	if err != nil {
		t.Fatalf("WithFragmentString failed: %v", err)
	}
	if withF.String() != "agent://anthropic.com/chat/"+testID+"?version=2.0#task" {
		t.Errorf("unexpected form %q", withF.String())
	}

	stripped := withF.WithoutQuery().WithoutFragment()
	if stripped.String() != u.String() {
		t.Errorf("strip round-trip failed: %q", stripped.String())
	}
}

func TestAgentURI_New(t *testing.T) {
	root, _ := ParseTrustRoot("anthropic.com")
	path, _ := ParseCapabilityPath("assistant/chat")
	id, _ := ParseAgentID(testID)

	u, err := New(root, path, id)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if u.String() != "agent://anthropic.com/assistant/chat/"+testID {
		t.Errorf("unexpected form %q", u.String())
	}
}

func TestAgentURI_IsLocalhost(t *testing.T) {
	u, _ := Parse("agent://localhost:8472/test/" + testID)
	if !u.IsLocalhost() {
		t.Error("expected localhost")
	}
	u, _ = Parse("agent://anthropic.com/test/" + testID)
	if u.IsLocalhost() {
		t.Error("did not expect localhost")
	}
}

func TestAgentURI_TextRoundTrip(t *testing.T) {
	input := "agent://anthropic.com/chat/" + testID + "?version=1.0"
	u, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	text, err := u.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != input {
		t.Errorf("serialized form %q != input", text)
	}
	var decoded AgentURI
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if decoded.String() != input {
		t.Errorf("round-trip failed: %q", decoded.String())
	}
}

func BenchmarkParse(b *testing.B) {
	input := "agent://anthropic.com/assistant/chat/llm_chat_01h455vb4pex5vsknk084sn02q?version=2.0#task"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(input); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCanonical(b *testing.B) {
	u, err := Parse("agent://anthropic.com/assistant/chat/llm_chat_01h455vb4pex5vsknk084sn02q")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = u.Canonical()
	}
}
