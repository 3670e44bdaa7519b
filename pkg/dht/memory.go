package dht

import (
	"sync"
	"time"

	"github.com/agentries/agent-uri-go/pkg/uri"
)

// DefaultKeyCapacity bounds how many registrations a single DHT key may
// hold in the in-memory registry.
const DefaultKeyCapacity = 64

// MemoryDHT is an in-memory, trie-indexed implementation of the DHT
// contract. It is safe for concurrent use and intended for tests,
// simulations, and single-node resolver deployments.
type MemoryDHT struct {
	mu          sync.RWMutex
	keyCapacity int
	// byURI indexes registrations by canonical agent URI.
	byURI map[string]Registration
	// tries indexes canonical URIs by capability path, one trie per
	// trust root (keyed by its canonical string).
	tries map[string]*PathTrie[string]
	// perKey counts registrations per derived DHT key.
	perKey map[Key]int
	now    func() time.Time
}

// NewMemoryDHT returns an empty registry with the default per-key
// capacity.
func NewMemoryDHT() *MemoryDHT {
	return NewMemoryDHTWithCapacity(DefaultKeyCapacity)
}

// NewMemoryDHTWithCapacity returns an empty registry that holds at most
// keyCapacity registrations per derived key.
func NewMemoryDHTWithCapacity(keyCapacity int) *MemoryDHT {
	return &MemoryDHT{
		keyCapacity: keyCapacity,
		byURI:       make(map[string]Registration),
		tries:       make(map[string]*PathTrie[string]),
		perKey:      make(map[Key]int),
		now:         time.Now,
	}
}

// Register implements DHT.
func (m *MemoryDHT) Register(reg Registration) error {
	if len(reg.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	canonical := reg.AgentURI.Canonical()
	key := reg.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byURI[canonical]; ok {
		if !existing.IsExpired(m.now()) {
			return ErrAlreadyRegistered
		}
		m.removeLocked(existing)
	}
	if m.perKey[key] >= m.keyCapacity {
		return ErrKeyCapacity
	}

	m.byURI[canonical] = reg
	rootKey := reg.AgentURI.TrustRoot().String()
	trie, ok := m.tries[rootKey]
	if !ok {
		trie = NewPathTrie[string]()
		m.tries[rootKey] = trie
	}
	trie.Insert(reg.AgentURI.CapabilityPath(), canonical)
	m.perKey[key]++
	return nil
}

// UpdateEndpoints implements DHT. Identity and expiry are untouched; only
// the network location changes.
func (m *MemoryDHT) UpdateEndpoints(agentURI uri.AgentURI, endpoints []Endpoint) error {
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}
	canonical := agentURI.Canonical()

	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.byURI[canonical]
	if !ok {
		return ErrNotFound
	}
	if reg.IsExpired(m.now()) {
		return ErrExpired
	}
	reg.Endpoints = endpoints
	m.byURI[canonical] = reg
	return nil
}

// Deregister implements DHT.
func (m *MemoryDHT) Deregister(agentURI uri.AgentURI) error {
	canonical := agentURI.Canonical()

	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.byURI[canonical]
	if !ok {
		return ErrNotFound
	}
	m.removeLocked(reg)
	return nil
}

// Lookup implements DHT.
func (m *MemoryDHT) Lookup(root uri.TrustRoot, path uri.CapabilityPath) ([]Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trie, ok := m.tries[root.String()]
	if !ok {
		return nil, nil
	}
	return m.collectLocked(trie.GetExact(path)), nil
}

// LookupPrefix implements DHT.
func (m *MemoryDHT) LookupPrefix(root uri.TrustRoot, path uri.CapabilityPath) ([]Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trie, ok := m.tries[root.String()]
	if !ok {
		return nil, nil
	}
	return m.collectLocked(trie.GetPrefix(path)), nil
}

// ExpireStale removes expired registrations and returns how many were
// dropped.
func (m *MemoryDHT) ExpireStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, reg := range m.byURI {
		if reg.IsExpired(now) {
			m.removeLocked(reg)
			removed++
		}
	}
	return removed
}

// Clear removes all registrations.
func (m *MemoryDHT) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byURI = make(map[string]Registration)
	m.tries = make(map[string]*PathTrie[string])
	m.perKey = make(map[Key]int)
}

// Snapshot returns a copy of every live registration, for persistence.
func (m *MemoryDHT) Snapshot() []Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	out := make([]Registration, 0, len(m.byURI))
	for _, reg := range m.byURI {
		if reg.IsExpired(now) {
			continue
		}
		out = append(out, reg)
	}
	return out
}

// Stats summarizes the registry contents.
type Stats struct {
	Registrations int
	TrustRoots    int
	UniqueKeys    int
}

// Stats returns a snapshot of the registry.
func (m *MemoryDHT) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Registrations: len(m.byURI),
		TrustRoots:    len(m.tries),
		UniqueKeys:    len(m.perKey),
	}
}

// collectLocked resolves canonical URIs to live registrations, skipping
// ones that have expired but not yet been swept.
func (m *MemoryDHT) collectLocked(canonicals []string) []Registration {
	now := m.now()
	var out []Registration
	for _, c := range canonicals {
		reg, ok := m.byURI[c]
		if !ok || reg.IsExpired(now) {
			continue
		}
		out = append(out, reg)
	}
	return out
}

// removeLocked drops a registration from every index.
func (m *MemoryDHT) removeLocked(reg Registration) {
	canonical := reg.AgentURI.Canonical()
	delete(m.byURI, canonical)
	key := reg.Key()
	if n := m.perKey[key]; n <= 1 {
		delete(m.perKey, key)
	} else {
		m.perKey[key] = n - 1
	}
	if trie, ok := m.tries[reg.AgentURI.TrustRoot().String()]; ok {
		trie.Remove(reg.AgentURI.CapabilityPath(), func(c string) bool {
			return c == canonical
		})
		if trie.IsEmpty() {
			delete(m.tries, reg.AgentURI.TrustRoot().String())
		}
	}
}
