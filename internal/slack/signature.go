package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"mueck/internal/domain"
)

const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"

	signatureVersion = "v0"
)

// Sign computes the v0 request signature for body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the presented signature in constant time.
func VerifySignature(secret, timestamp, signature string, body []byte) error {
	if secret == "" || timestamp == "" || signature == "" {
		return domain.ErrSignatureMismatch
	}
	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// Verifier adds replay protection on top of VerifySignature.
type Verifier struct {
	MaxSkew time.Duration
	Now     func() time.Time
}

// Verify checks the timestamp window, then the signature. MaxSkew <= 0 disables the window.
func (v Verifier) Verify(secret, timestamp, signature string, body []byte) error {
	if v.MaxSkew > 0 {
		sec, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return fmt.Errorf("bad timestamp: %w", domain.ErrSignatureMismatch)
		}
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		skew := now().Sub(time.Unix(sec, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.MaxSkew {
			return fmt.Errorf("stale timestamp: %w", domain.ErrSignatureMismatch)
		}
	}
	return VerifySignature(secret, timestamp, signature, body)
}
