package logging

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/byteness/supportaccess/iso8601"
)

// MinKeyLength is the minimum length in bytes for HMAC-SHA256 secret keys.
const MinKeyLength = 32

// ErrKeyTooShort is returned when the secret key is shorter than MinKeyLength.
var ErrKeyTooShort = errors.New("secret key must be at least 32 bytes")

// SignatureConfig holds configuration for log signing.
type SignatureConfig struct {
	KeyID     string // Identifier for the signing key, recorded on every entry for rotation
	SecretKey []byte // HMAC-SHA256 secret key
}

// Validate checks that the configuration is valid.
func (c *SignatureConfig) Validate() error {
	if len(c.SecretKey) < MinKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

// SignedEntry wraps a log entry with its HMAC signature.
type SignedEntry struct {
	Entry     any    `json:"entry"`
	Signature string `json:"signature"` // hex-encoded HMAC-SHA256
	KeyID     string `json:"key_id"`
	Timestamp string `json:"timestamp"` // when the entry was signed
}

// signedPayload is the exact structure covered by the signature. The signing
// time and key ID are part of it so neither can be swapped after the fact.
type signedPayload struct {
	Entry     any    `json:"entry"`
	Timestamp string `json:"timestamp"`
	KeyID     string `json:"key_id"`
}

// ComputeSignature returns the hex-encoded HMAC-SHA256 of entry's JSON encoding.
func ComputeSignature(entry any, secretKey []byte) (string, error) {
	if len(secretKey) < MinKeyLength {
		return "", ErrKeyTooShort
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature reports whether signature matches entry under secretKey.
// A malformed signature is reported as invalid, not as an error.
func VerifySignature(entry any, signature string, secretKey []byte) (bool, error) {
	expected, err := ComputeSignature(entry, secretKey)
	if err != nil {
		return false, err
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(provided, want) == 1, nil
}

// NewSignedEntry signs entry with the current time.
func NewSignedEntry(entry any, config *SignatureConfig) (*SignedEntry, error) {
	return signAt(entry, config, time.Now())
}

func signAt(entry any, config *SignatureConfig, at time.Time) (*SignedEntry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	payload := signedPayload{
		Entry:     entry,
		Timestamp: iso8601.Format(at),
		KeyID:     config.KeyID,
	}

	signature, err := ComputeSignature(payload, config.SecretKey)
	if err != nil {
		return nil, err
	}

	return &SignedEntry{
		Entry:     entry,
		Signature: signature,
		KeyID:     config.KeyID,
		Timestamp: payload.Timestamp,
	}, nil
}

// Verify checks the signature of a SignedEntry.
func (s *SignedEntry) Verify(secretKey []byte) (bool, error) {
	payload := signedPayload{
		Entry:     s.Entry,
		Timestamp: s.Timestamp,
		KeyID:     s.KeyID,
	}
	return VerifySignature(payload, s.Signature, secretKey)
}
