package dht

import "fmt"

// Endpoint is a network location where a registered agent can be reached.
// Endpoints are transport hints, not identity: an agent migrates by
// replacing its endpoints while its URI stays fixed.
type Endpoint struct {
	// Protocol is the transport scheme, e.g. "https", "grpc", "wss".
	Protocol string `cbor:"1,keyasint" json:"protocol"`

	// Address is the host:port to dial.
	Address string `cbor:"2,keyasint" json:"address"`

	// Path is an optional path component for HTTP-like transports.
	Path string `cbor:"3,keyasint,omitempty" json:"path,omitempty"`
}

// HTTPS returns an HTTPS endpoint.
func HTTPS(address string) Endpoint {
	return Endpoint{Protocol: "https", Address: address}
}

// HTTPSWithPath returns an HTTPS endpoint with a path.
func HTTPSWithPath(address, path string) Endpoint {
	return Endpoint{Protocol: "https", Address: address, Path: path}
}

// GRPC returns a gRPC endpoint.
func GRPC(address string) Endpoint {
	return Endpoint{Protocol: "grpc", Address: address}
}

// WebSocket returns a secure WebSocket endpoint.
func WebSocket(address string) Endpoint {
	return Endpoint{Protocol: "wss", Address: address}
}

// URI renders the endpoint as a dialable URI string.
func (e Endpoint) URI() string {
	if e.Path != "" {
		return fmt.Sprintf("%s://%s%s", e.Protocol, e.Address, e.Path)
	}
	return fmt.Sprintf("%s://%s", e.Protocol, e.Address)
}
