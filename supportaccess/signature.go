package supportaccess

import (
	"strings"
	"time"

	saerrors "github.com/byteness/supportaccess/errors"
)

// SignatureValidator checks consent signatures presented on approval.
type SignatureValidator struct {
	// Window is the maximum age of a signature. Defaults to SignatureFreshnessWindow.
	Window time.Duration
}

// NewSignatureValidator creates a validator with the default freshness window.
func NewSignatureValidator() *SignatureValidator {
	return &SignatureValidator{Window: SignatureFreshnessWindow}
}

// IsFresh reports whether now-Window <= signedAt <= now.
// Any future timestamp is rejected, however small the skew.
func (v *SignatureValidator) IsFresh(signedAt, now time.Time) bool {
	window := v.Window
	if window <= 0 {
		window = SignatureFreshnessWindow
	}
	if signedAt.After(now) {
		return false
	}
	return !signedAt.Before(now.Add(-window))
}

// Check validates a signature's content and freshness at now.
func (v *SignatureValidator) Check(sig *DigitalSignature, now time.Time) error {
	if sig == nil ||
		strings.TrimSpace(sig.SignatureData) == "" ||
		strings.TrimSpace(sig.ConsentText) == "" ||
		sig.SignedAt.IsZero() {
		return saerrors.Validation("Invalid signature")
	}
	if !v.IsFresh(sig.SignedAt, now) {
		return saerrors.Validation("Invalid signature timestamp")
	}
	return nil
}
