package authflow

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const CSRFCookieName = "console_csrf"

var (
	ErrCSRFMalformed = errors.New("csrf token malformed")
	ErrCSRFSignature = errors.New("csrf token signature mismatch")
	ErrCSRFExpired   = errors.New("csrf token expired")
)

// GenerateCSRF binds a double-submit token to the console session id.
func GenerateCSRF(secret, sessionID string, now time.Time) string {
	msg := sessionID + ":" + strconv.FormatInt(now.Unix(), 10)
	payload := append([]byte(msg), csrfMAC(secret, msg)...)
	return base64.RawURLEncoding.EncodeToString(payload)
}

func VerifyCSRF(secret, sessionID, token string, maxAge time.Duration, now time.Time) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) <= sha256.Size {
		return ErrCSRFMalformed
	}
	msg := string(raw[:len(raw)-sha256.Size])
	sig := raw[len(raw)-sha256.Size:]
	if !hmac.Equal(sig, csrfMAC(secret, msg)) {
		return ErrCSRFSignature
	}
	id, tsRaw, ok := strings.Cut(msg, ":")
	if !ok || id != sessionID {
		return ErrCSRFSignature
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil || ts <= 0 {
		return ErrCSRFMalformed
	}
	if maxAge > 0 && now.Unix()-ts > int64(maxAge/time.Second) {
		return ErrCSRFExpired
	}
	return nil
}

func csrfMAC(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
