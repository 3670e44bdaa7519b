package dht

import (
	"errors"

	"github.com/agentries/agent-uri-go/pkg/uri"
)

// Registry errors.
var (
	// ErrAlreadyRegistered is returned when an agent URI is registered
	// twice without deregistering first.
	ErrAlreadyRegistered = errors.New("agent already registered")

	// ErrNotFound is returned when no live registration exists for the
	// agent URI.
	ErrNotFound = errors.New("agent not registered")

	// ErrExpired is returned when the registration exists but has
	// passed its expiry.
	ErrExpired = errors.New("registration expired")

	// ErrNoEndpoints is returned when a registration carries no
	// endpoints.
	ErrNoEndpoints = errors.New("registration has no endpoints")

	// ErrKeyCapacity is returned when a DHT key already holds the
	// maximum number of registrations.
	ErrKeyCapacity = errors.New("dht key at capacity")
)

// DHT is the abstract registration/lookup contract for capability-based
// discovery. The in-memory implementation in this package serves tests
// and single-node deployments; distributed implementations satisfy the
// same interface over a real Kademlia network.
//
// Methods are synchronous; distributed implementations wrap them in
// whatever async machinery their transport needs.
type DHT interface {
	// Register stores a registration under the key derived from its
	// trust root and capability path.
	Register(reg Registration) error

	// UpdateEndpoints replaces the endpoints of an existing
	// registration, preserving identity across migration.
	UpdateEndpoints(agentURI uri.AgentURI, endpoints []Endpoint) error

	// Deregister removes a registration.
	Deregister(agentURI uri.AgentURI) error

	// Lookup returns live registrations at exactly the given
	// capability path under the trust root.
	Lookup(root uri.TrustRoot, path uri.CapabilityPath) ([]Registration, error)

	// LookupPrefix returns live registrations at the given path and
	// everywhere below it.
	LookupPrefix(root uri.TrustRoot, path uri.CapabilityPath) ([]Registration, error)
}
