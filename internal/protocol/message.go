// Package protocol defines the resolver wire protocol: CBOR-framed
// messages exchanged between agents and the resolver daemon over
// WebSocket.
package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"

	cbor "github.com/fxamacker/cbor/v2"
)

// CurrentVersion is the resolver protocol version.
const CurrentVersion = 1

// MessageType identifies the kind of a resolver message.
type MessageType uint8

// Message type codes.
const (
	// Control (0x00-0x0F)
	MessageTypePing  MessageType = 0x01
	MessageTypePong  MessageType = 0x02
	MessageTypeError MessageType = 0x0F

	// Registry operations (0x10-0x1F)
	MessageTypeRegister        MessageType = 0x10
	MessageTypeUpdateEndpoints MessageType = 0x11
	MessageTypeDeregister      MessageType = 0x12
	MessageTypeLookup          MessageType = 0x13
	MessageTypeLookupPrefix    MessageType = 0x14

	// Responses (0x20-0x2F)
	MessageTypeAck    MessageType = 0x20
	MessageTypeResult MessageType = 0x21
)

// Message is the resolver protocol envelope. Payload layout depends on
// Type; see the payload structs below.
type Message struct {
	V             uint            `cbor:"1,keyasint"`
	ID            []byte          `cbor:"2,keyasint"` // 8 bytes timestamp + 8 bytes random
	Type          MessageType     `cbor:"3,keyasint"`
	Ts            uint64          `cbor:"4,keyasint"` // unix milliseconds
	Payload       cbor.RawMessage `cbor:"5,keyasint,omitempty"`
	CorrelationID []byte          `cbor:"6,keyasint,omitempty"` // ID of the request being answered
}

// NewMessage creates a message of the given type with an encoded payload.
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	now := time.Now()
	msg := &Message{
		V:    CurrentVersion,
		ID:   generateID(now),
		Type: msgType,
		Ts:   uint64(now.UnixMilli()),
	}
	if payload != nil {
		raw, err := cbor.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return msg, nil
}

// IDHex returns the message ID as hex, for logging and correlation maps.
func (m *Message) IDHex() string {
	return hex.EncodeToString(m.ID)
}

// DecodePayload decodes the payload into out.
func (m *Message) DecodePayload(out interface{}) error {
	return cbor.Unmarshal(m.Payload, out)
}

// Marshal encodes the message as CBOR.
func (m *Message) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

// Unmarshal decodes the message from CBOR.
func (m *Message) Unmarshal(data []byte) error {
	return cbor.Unmarshal(data, m)
}

// generateID generates a 16-byte message ID:
// 8 bytes big-endian millisecond timestamp + 8 random bytes.
func generateID(now time.Time) []byte {
	id := make([]byte, 16)
	binary.BigEndian.PutUint64(id[:8], uint64(now.UnixMilli()))
	if _, err := rand.Read(id[8:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return id
}

// RegisterRequest asks the resolver to store a registration. The
// registration travels in its CBOR wire form.
type RegisterRequest struct {
	Registration cbor.RawMessage `cbor:"1,keyasint"`
	TTLSeconds   uint64          `cbor:"2,keyasint,omitempty"`
}

// UpdateEndpointsRequest replaces the endpoints of a live registration.
type UpdateEndpointsRequest struct {
	AgentURI  string          `cbor:"1,keyasint"`
	Endpoints cbor.RawMessage `cbor:"2,keyasint"`
}

// DeregisterRequest removes a registration.
type DeregisterRequest struct {
	AgentURI string `cbor:"1,keyasint"`
}

// LookupRequest queries registrations under a trust root. Used for both
// exact and prefix lookups; the message type distinguishes them.
type LookupRequest struct {
	TrustRoot      string `cbor:"1,keyasint"`
	CapabilityPath string `cbor:"2,keyasint"`
}

// ResultPayload carries lookup results, each registration in its CBOR
// wire form.
type ResultPayload struct {
	Registrations []cbor.RawMessage `cbor:"1,keyasint,omitempty"`
}
