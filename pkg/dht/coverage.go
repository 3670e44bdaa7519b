package dht

import "github.com/agentries/agent-uri-go/pkg/uri"

// Covers reports whether any capability in the set covers the target
// path: a capability covers a target when it equals the target or is a
// segment-wise prefix of it. Matching is whole-segment, so "work" never
// covers "workflow".
//
// This is the coverage relation attestation verifiers apply between an
// attestation's granted capabilities and a required path.
func Covers(capabilities []uri.CapabilityPath, target uri.CapabilityPath) bool {
	for _, c := range capabilities {
		if target.StartsWith(c) {
			return true
		}
	}
	return false
}
