package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
)

// Verifier authenticates inbound webhook deliveries. It fails closed: every
// check runs before any handler sees the payload, and each failure mode
// yields a distinct error.
type Verifier struct {
	apiKey    string
	apiSecret string
}

// NewVerifier creates a verifier for the configured platform credentials.
func NewVerifier(apiKey, apiSecret string) *Verifier {
	return &Verifier{apiKey: apiKey, apiSecret: apiSecret}
}

// Verify checks the claimed signature and API key against the raw body.
// Missing credentials are a validation error (the request is malformed);
// present-but-wrong credentials are an authentication error.
func (v *Verifier) Verify(body []byte, signature, apiKey string) error {
	if signature == "" || apiKey == "" {
		return fmt.Errorf("missing signature or API key: %w", mferrors.ErrValidation)
	}
	if apiKey != v.apiKey {
		return fmt.Errorf("unknown API key: %w", mferrors.ErrUnauthenticated)
	}
	if !v.validSignature(body, signature) {
		return fmt.Errorf("invalid signature: %w", mferrors.ErrUnauthenticated)
	}
	return nil
}

// validSignature checks an HMAC-SHA256 hex signature over the raw body.
func (v *Verifier) validSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(v.apiSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 signature the platform is expected to
// send for a body.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.apiSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
