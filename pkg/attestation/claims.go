// Package attestation issues and verifies capability attestations for
// agent URIs: signed tokens in which a trust root vouches that an agent
// holds a set of capability paths.
//
// Tokens are Ed25519 JWS envelopes over a compact JSON claim set. The
// verification logic is factored into pure functions (issuer match,
// subject match, expiration, capability coverage) so each security check
// is testable in isolation.
package attestation

import (
	"encoding/json"
	"time"

	"github.com/agentries/agent-uri-go/pkg/uri"
)

// DefaultTTL is the token lifetime when the issuer does not specify one.
const DefaultTTL = 24 * time.Hour

// Claims is the payload of an attestation token.
type Claims struct {
	// Subject is the attested agent URI in canonical form.
	Subject string

	// Capabilities are the capability paths the issuer vouches for, in
	// canonical joined form.
	Capabilities []string

	// Issuer is the trust root issuing the attestation, in canonical
	// form. Verifiers require it to equal the subject's trust root.
	Issuer string

	// Audience optionally names the intended recipient. It is carried in
	// the token as "aud"; Verify does not check it.
	Audience string

	// IssuedAt and ExpiresAt bound the token's validity window.
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewClaims builds a claim set for the given agent with the default TTL.
// The subject and issuer are derived from the URI's canonical forms.
func NewClaims(agentURI uri.AgentURI, capabilities []uri.CapabilityPath) Claims {
	caps := make([]string, len(capabilities))
	for i, c := range capabilities {
		caps[i] = c.String()
	}
	now := time.Now().UTC().Truncate(time.Second)
	return Claims{
		Subject:      agentURI.Canonical(),
		Capabilities: caps,
		Issuer:       agentURI.TrustRoot().String(),
		IssuedAt:     now,
		ExpiresAt:    now.Add(DefaultTTL),
	}
}

// WithTTL returns a copy expiring the given duration after issuance.
func (c Claims) WithTTL(ttl time.Duration) Claims {
	c.ExpiresAt = c.IssuedAt.Add(ttl)
	return c
}

// WithAudience returns a copy with the audience set to aud.
func (c Claims) WithAudience(aud string) Claims {
	c.Audience = aud
	return c
}

// claimsWire is the JSON form carried inside the JWS payload.
type claimsWire struct {
	Sub  string   `json:"sub"`
	Caps []string `json:"capabilities"`
	Iss  string   `json:"iss"`
	Aud  string   `json:"aud,omitempty"`
	Iat  int64    `json:"iat"`
	Exp  int64    `json:"exp"`
}

// MarshalJSON implements json.Marshaler.
func (c Claims) MarshalJSON() ([]byte, error) {
	return json.Marshal(claimsWire{
		Sub:  c.Subject,
		Caps: c.Capabilities,
		Iss:  c.Issuer,
		Aud:  c.Audience,
		Iat:  c.IssuedAt.Unix(),
		Exp:  c.ExpiresAt.Unix(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var w claimsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Subject = w.Sub
	c.Capabilities = w.Caps
	c.Issuer = w.Iss
	c.Audience = w.Aud
	c.IssuedAt = time.Unix(w.Iat, 0).UTC()
	c.ExpiresAt = time.Unix(w.Exp, 0).UTC()
	return nil
}
