package attestation

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// Token sealing for private registration flows: an agent seals its
// attestation token to a resolver's published sealing key so the token is
// only readable by that resolver, not by everyone who can observe the
// registration record. Sealing uses NaCl box
// (Curve25519/XSalsa20/Poly1305).

// SealingKeySize is the size of box public and private keys.
const SealingKeySize = 32

// GenerateSealingKeyPair generates a Curve25519 key pair for token
// sealing.
func GenerateSealingKeyPair() (publicKey, privateKey *[SealingKeySize]byte, err error) {
	return box.GenerateKey(rand.Reader)
}

// SealToken encrypts token from the sender to the recipient. The output
// is nonce || ciphertext.
func SealToken(token string, recipientPub, senderPriv *[SealingKeySize]byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	sealed := box.Seal(nonce[:], []byte(token), &nonce, recipientPub, senderPriv)
	return sealed, nil
}

// OpenToken decrypts a sealed token produced by SealToken.
func OpenToken(sealed []byte, senderPub, recipientPriv *[SealingKeySize]byte) (string, error) {
	if len(sealed) < 24 {
		return "", errf(ErrCodeMalformedToken, "sealed token shorter than its nonce")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	opened, ok := box.Open(nil, sealed[24:], &nonce, senderPub, recipientPriv)
	if !ok {
		return "", errf(ErrCodeInvalidSignature, "sealed token failed to authenticate")
	}
	return string(opened), nil
}
