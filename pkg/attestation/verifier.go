package attestation

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"

	"github.com/agentries/agent-uri-go/pkg/dht"
	"github.com/agentries/agent-uri-go/pkg/uri"
)

// KeyResolver resolves an issuer's public key by trust root and key id.
// Production resolvers fetch published keys over HTTPS and cache them;
// tests use a static map.
type KeyResolver interface {
	ResolveKey(trustRoot, keyID string) (ed25519.PublicKey, error)
}

// StaticKeys is a KeyResolver over a fixed map from "trustRoot/keyID" to
// public key.
type StaticKeys map[string]ed25519.PublicKey

// ResolveKey implements KeyResolver.
func (s StaticKeys) ResolveKey(trustRoot, keyID string) (ed25519.PublicKey, error) {
	key, ok := s[trustRoot+"/"+keyID]
	if !ok {
		return nil, errf(ErrCodeUnknownKey, "no key %q published by %q", keyID, trustRoot)
	}
	return key, nil
}

// Verifier checks attestation tokens against presented agent URIs.
type Verifier struct {
	keys KeyResolver
	now  func() time.Time
}

// NewVerifier creates a verifier resolving signing keys through keys.
func NewVerifier(keys KeyResolver) *Verifier {
	return &Verifier{keys: keys, now: time.Now}
}

// Verify checks that token is a valid attestation for the presented URI
// covering the required capability path, and returns the claims.
//
// The checks, in order: signature (under the key the subject's trust root
// published), issuer equals the subject's trust root, subject equals the
// presented URI's canonical form, validity window contains now, and some
// attested capability covers the required path.
func (v *Verifier) Verify(token string, presented uri.AgentURI, required uri.CapabilityPath) (Claims, error) {
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return Claims{}, errf(ErrCodeMalformedToken, "parse token: %v", err)
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return Claims{}, errf(ErrCodeMalformedToken, "expected one signature, found %d", len(sigs))
	}
	keyID := sigs[0].ProtectedHeaders().KeyID()

	trustRoot := presented.TrustRoot().String()
	key, err := v.keys.ResolveKey(trustRoot, keyID)
	if err != nil {
		return Claims{}, err
	}

	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.EdDSA, key))
	if err != nil {
		return Claims{}, errf(ErrCodeInvalidSignature, "verify signature: %v", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, errf(ErrCodeMalformedToken, "decode claims: %v", err)
	}

	if err := ValidateIssuer(claims, presented); err != nil {
		return Claims{}, err
	}
	if err := ValidateSubject(claims, presented); err != nil {
		return Claims{}, err
	}
	if err := CheckExpiration(claims, v.now()); err != nil {
		return Claims{}, err
	}
	if err := CheckCoverage(claims, required); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// ValidateIssuer checks that the token issuer equals the presented URI's
// trust root, byte for byte.
func ValidateIssuer(claims Claims, presented uri.AgentURI) error {
	if claims.Issuer != presented.TrustRoot().String() {
		return errf(ErrCodeIssuerMismatch,
			"token issued by %q, presented trust root is %q",
			claims.Issuer, presented.TrustRoot().String())
	}
	return nil
}

// ValidateSubject checks that the token subject equals the presented
// URI's canonical form, byte for byte.
func ValidateSubject(claims Claims, presented uri.AgentURI) error {
	if claims.Subject != presented.Canonical() {
		return errf(ErrCodeSubjectMismatch,
			"token subject %q does not match presented uri %q",
			claims.Subject, presented.Canonical())
	}
	return nil
}

// CheckExpiration checks that now falls inside the validity window.
func CheckExpiration(claims Claims, now time.Time) error {
	if now.Before(claims.IssuedAt) {
		return errf(ErrCodeNotYetValid, "token not valid before %s", claims.IssuedAt)
	}
	if !now.Before(claims.ExpiresAt) {
		return errf(ErrCodeExpired, "token expired at %s", claims.ExpiresAt)
	}
	return nil
}

// CheckCoverage checks that some attested capability covers the required
// path. Attested capabilities that fail to parse are skipped rather than
// granted.
func CheckCoverage(claims Claims, required uri.CapabilityPath) error {
	capabilities := make([]uri.CapabilityPath, 0, len(claims.Capabilities))
	for _, c := range claims.Capabilities {
		parsed, err := uri.ParseCapabilityPath(c)
		if err != nil {
			continue
		}
		capabilities = append(capabilities, parsed)
	}
	if !dht.Covers(capabilities, required) {
		return errf(ErrCodeInsufficientCapabilities,
			"no attested capability covers %q", required.String())
	}
	return nil
}
