package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Standard Webhooks headers sent by Dodo Payments.
const (
	HeaderWebhookID        = "webhook-id"
	HeaderWebhookTimestamp = "webhook-timestamp"
	HeaderWebhookSignature = "webhook-signature"
)

const (
	secretPrefix     = "whsec_"
	signatureVersion = "v1"
	defaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignatureHeaders = errors.New("missing webhook signature headers")
	ErrSignatureTimestamp      = errors.New("webhook timestamp outside tolerance")
	ErrSignatureMismatch       = errors.New("no matching webhook signature")
)

// SignatureVerifier checks Standard Webhooks signatures: HMAC-SHA256 over
// "<id>.<timestamp>.<body>", base64 encoded, listed as "v1,<sig>" entries.
type SignatureVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSignatureVerifier decodes a "whsec_" secret. A secret without the prefix is also
// accepted as base64.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	encoded := strings.TrimPrefix(strings.TrimSpace(secret), secretPrefix)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("webhook secret is empty")
	}
	return &SignatureVerifier{key: key, tolerance: defaultTolerance, now: time.Now}, nil
}

func (v *SignatureVerifier) sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether headers carry a valid signature for body.
func (v *SignatureVerifier) Verify(headers http.Header, body []byte) error {
	id := strings.TrimSpace(headers.Get(HeaderWebhookID))
	timestamp := strings.TrimSpace(headers.Get(HeaderWebhookTimestamp))
	signatures := strings.TrimSpace(headers.Get(HeaderWebhookSignature))
	if id == "" || timestamp == "" || signatures == "" {
		return ErrMissingSignatureHeaders
	}

	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrSignatureTimestamp, timestamp)
	}
	skew := v.now().Sub(time.Unix(seconds, 0))
	if math.Abs(float64(skew)) > float64(v.tolerance) {
		return ErrSignatureTimestamp
	}

	expected := []byte(v.sign(id, timestamp, body))
	for _, entry := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersion {
			continue
		}
		if hmac.Equal([]byte(sig), expected) {
			return nil
		}
	}
	return ErrSignatureMismatch
}
