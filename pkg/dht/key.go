// Package dht provides capability-based discovery primitives for agent
// URIs: deterministic DHT key derivation, capability coverage checks, a
// segment-wise path trie, and an in-memory registry implementing the
// abstract registration/lookup contract.
//
// Real Kademlia networking, replication, and storage are out of scope;
// distributed implementations consume the key-derivation functions and
// the DHT interface defined here.
package dht

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"

	"github.com/agentries/agent-uri-go/pkg/uri"
)

// Key is a 256-bit DHT key derived from a trust root and capability path.
//
// Derivation is SHA-256(trust_root || "/" || capability_path) over the
// canonical textual forms. The trust root includes its port when present.
// Since both inputs are normalized types, equal identities always derive
// equal keys.
type Key [32]byte

// DeriveKey derives the DHT key for a trust root and capability path.
func DeriveKey(root uri.TrustRoot, path uri.CapabilityPath) Key {
	h := sha256.New()
	h.Write([]byte(root.String()))
	h.Write([]byte{'/'})
	h.Write([]byte(path.String()))
	var k Key
	h.Sum(k[:0])
	return k
}

// PrefixKeys returns one key per non-empty prefix of the path, ordered by
// increasing depth. The last element equals DeriveKey(root, path). DHT
// collaborators use these for subtree enumeration.
func PrefixKeys(root uri.TrustRoot, path uri.CapabilityPath) []Key {
	segments := path.Segments()
	keys := make([]Key, 0, len(segments))
	for depth := 1; depth <= len(segments); depth++ {
		h := sha256.New()
		h.Write([]byte(root.String()))
		h.Write([]byte{'/'})
		h.Write([]byte(strings.Join(segments[:depth], "/")))
		var k Key
		h.Sum(k[:0])
		keys = append(keys, k)
	}
	return keys
}

// Distance returns the XOR distance to another key, the Kademlia routing
// metric.
func (k Key) Distance(other Key) Key {
	var d Key
	for i := range k {
		d[i] = k[i] ^ other[i]
	}
	return d
}

// LeadingZeros returns the number of leading zero bits, used for Kademlia
// bucket placement.
func (k Key) LeadingZeros() int {
	n := 0
	for _, b := range k {
		if b == 0 {
			n += 8
			continue
		}
		n += bits.LeadingZeros8(b)
		break
	}
	return n
}

// Hex returns the full 64-character hex encoding.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// KeyFromHex parses a 64-character hex encoding.
func KeyFromHex(s string) (Key, error) {
	var k Key
	if len(s) != 64 {
		return Key{}, fmt.Errorf("dht key hex must be 64 characters, got %d", len(s))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return Key{}, fmt.Errorf("dht key hex: %w", err)
	}
	return k, nil
}

// String returns a truncated hex form for logs.
func (k Key) String() string {
	return hex.EncodeToString(k[:8]) + "..."
}
