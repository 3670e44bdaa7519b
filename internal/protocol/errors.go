package protocol

import (
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
)

// Wire error codes. The thousands digit groups them: 1xxx registry
// logic, 2xxx transport, 3xxx security, 5xxx internal.
const (
	CodeAgentNotFound      = 1001
	CodeAlreadyRegistered  = 1002
	CodeRegistrationFull   = 1003
	CodeNoEndpoints        = 1004
	CodeInvalidURI         = 1101
	CodeTransportError     = 2001
	CodeAttestationInvalid = 3001
	CodeInternalError      = 5000
)

// WireError is a resolver protocol error, transmissible as an error
// message payload.
type WireError struct {
	Code    int    `cbor:"1,keyasint" json:"code"`
	Name    string `cbor:"2,keyasint" json:"name"`
	Message string `cbor:"3,keyasint" json:"message"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("resolver error [%d] %s: %s", e.Code, e.Name, e.Message)
}

// NewWireError creates a wire error with the standard name for the code.
func NewWireError(code int, message string) *WireError {
	name := "UNKNOWN_ERROR"
	switch code {
	case CodeAgentNotFound:
		name = "AGENT_NOT_FOUND"
	case CodeAlreadyRegistered:
		name = "ALREADY_REGISTERED"
	case CodeRegistrationFull:
		name = "REGISTRATION_FULL"
	case CodeNoEndpoints:
		name = "NO_ENDPOINTS"
	case CodeInvalidURI:
		name = "INVALID_URI"
	case CodeTransportError:
		name = "TRANSPORT_ERROR"
	case CodeAttestationInvalid:
		name = "ATTESTATION_INVALID"
	case CodeInternalError:
		name = "INTERNAL_ERROR"
	}
	return &WireError{Code: code, Name: name, Message: message}
}

// ToMessage wraps the error in an error message answering requestID.
func (e *WireError) ToMessage(requestID []byte) (*Message, error) {
	payload, err := cbor.Marshal(e)
	if err != nil {
		return nil, err
	}
	msg, err := NewMessage(MessageTypeError, nil)
	if err != nil {
		return nil, err
	}
	msg.Payload = payload
	msg.CorrelationID = requestID
	return msg, nil
}
