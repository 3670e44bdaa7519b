package attestation

import "fmt"

// Attestation error codes.
const (
	ErrCodeMalformedToken           = "malformed_token"
	ErrCodeInvalidSignature         = "invalid_signature"
	ErrCodeUnknownKey               = "unknown_key"
	ErrCodeIssuerMismatch           = "issuer_mismatch"
	ErrCodeSubjectMismatch          = "subject_mismatch"
	ErrCodeExpired                  = "expired"
	ErrCodeNotYetValid              = "not_yet_valid"
	ErrCodeInsufficientCapabilities = "insufficient_capabilities"
	ErrCodeAudienceMismatch         = "audience_mismatch"
)

// Error reports an attestation issuance or verification failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("attestation [%s]: %s", e.Code, e.Message)
}

func errf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
