package dht

import (
	"fmt"
	"time"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/agentries/agent-uri-go/pkg/uri"
)

// DefaultTTL is the registration lifetime when none is specified.
// Registrations must be refreshed to remain discoverable.
const DefaultTTL = time.Hour

// Registration binds an agent URI to the endpoints where the agent can
// currently be reached, optionally carrying an attestation token proving
// the capability claims. Records expire and are swept by the registry.
type Registration struct {
	AgentURI     uri.AgentURI
	Endpoints    []Endpoint
	Attestation  string
	RegisteredAt time.Time
	ExpiresAt    time.Time
}

// NewRegistration creates a registration with the default TTL.
func NewRegistration(agentURI uri.AgentURI, endpoints []Endpoint) Registration {
	now := time.Now()
	return Registration{
		AgentURI:     agentURI,
		Endpoints:    endpoints,
		RegisteredAt: now,
		ExpiresAt:    now.Add(DefaultTTL),
	}
}

// WithTTL returns a copy expiring the given duration after registration.
func (r Registration) WithTTL(ttl time.Duration) Registration {
	r.ExpiresAt = r.RegisteredAt.Add(ttl)
	return r
}

// WithAttestation returns a copy carrying the given attestation token.
func (r Registration) WithAttestation(token string) Registration {
	r.Attestation = token
	return r
}

// IsExpired reports whether the registration has passed its expiry.
func (r Registration) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Key returns the DHT key the registration is stored under.
func (r Registration) Key() Key {
	return DeriveKey(r.AgentURI.TrustRoot(), r.AgentURI.CapabilityPath())
}

// registrationWire is the CBOR representation. The URI travels in its
// canonical string form and is re-validated on decode.
type registrationWire struct {
	AgentURI     string     `cbor:"1,keyasint"`
	Endpoints    []Endpoint `cbor:"2,keyasint"`
	Attestation  string     `cbor:"3,keyasint,omitempty"`
	RegisteredAt int64      `cbor:"4,keyasint"` // unix milliseconds
	ExpiresAt    int64      `cbor:"5,keyasint"` // unix milliseconds
}

// MarshalCBOR encodes the registration for storage or replication.
func (r Registration) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(registrationWire{
		AgentURI:     r.AgentURI.String(),
		Endpoints:    r.Endpoints,
		Attestation:  r.Attestation,
		RegisteredAt: r.RegisteredAt.UnixMilli(),
		ExpiresAt:    r.ExpiresAt.UnixMilli(),
	})
}

// UnmarshalCBOR decodes a registration, re-validating the agent URI.
func (r *Registration) UnmarshalCBOR(data []byte) error {
	var w registrationWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := uri.Parse(w.AgentURI)
	if err != nil {
		return fmt.Errorf("registration agent uri: %w", err)
	}
	r.AgentURI = parsed
	r.Endpoints = w.Endpoints
	r.Attestation = w.Attestation
	r.RegisteredAt = time.UnixMilli(w.RegisteredAt).UTC()
	r.ExpiresAt = time.UnixMilli(w.ExpiresAt).UTC()
	return nil
}
