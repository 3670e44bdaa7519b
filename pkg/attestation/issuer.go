package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
)

// Issuer signs attestation claims on behalf of a trust root.
type Issuer struct {
	trustRoot  string
	keyID      string
	privateKey ed25519.PrivateKey
}

// GenerateKeyPair generates an Ed25519 signing key pair for an issuer.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// NewIssuer creates an issuer for the given trust root (canonical form)
// with the given signing key. keyID names the key for rotation; verifiers
// resolve it through their KeyResolver.
func NewIssuer(trustRoot, keyID string, privateKey ed25519.PrivateKey) *Issuer {
	return &Issuer{trustRoot: trustRoot, keyID: keyID, privateKey: privateKey}
}

// TrustRoot returns the trust root the issuer signs for.
func (i *Issuer) TrustRoot() string {
	return i.trustRoot
}

// Issue signs the claims and returns a compact JWS token. The claims'
// issuer must match the issuer's trust root.
func (i *Issuer) Issue(claims Claims) (string, error) {
	if claims.Issuer != i.trustRoot {
		return "", errf(ErrCodeIssuerMismatch,
			"claims issuer %q does not match signing trust root %q", claims.Issuer, i.trustRoot)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.KeyIDKey, i.keyID); err != nil {
		return "", fmt.Errorf("set kid header: %w", err)
	}
	if err := headers.Set(jws.TypeKey, "agent-attestation+jws"); err != nil {
		return "", fmt.Errorf("set typ header: %w", err)
	}

	signed, err := jws.Sign(payload,
		jws.WithKey(jwa.EdDSA, i.privateKey, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", fmt.Errorf("sign attestation: %w", err)
	}
	return string(signed), nil
}
