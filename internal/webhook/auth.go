package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
)

// SignatureHeader carries the base64 HMAC of the raw request body.
const SignatureHeader = "X-Signature"

// Sign returns the X-Signature value for body: base64 HMAC-SHA256 keyed with
// the UTF-8 bytes of key.
func Sign(body []byte, key string) string {
	return sign(body, []byte(key))
}

func sign(body, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks sig against body. The key is tried as UTF-8 first,
// then hex-decoded when it looks like hex.
func VerifySignature(body []byte, key, sig string) bool {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return false
	}
	if constantEqual(sign(body, []byte(key)), sig) {
		return true
	}
	if raw, err := hex.DecodeString(key); err == nil && len(raw) > 0 {
		return constantEqual(sign(body, raw), sig)
	}
	return false
}

// VerifyBasicAuth checks the Authorization header of r.
func VerifyBasicAuth(r *http.Request, username, password string) bool {
	u, p, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return constantEqual(u, username) && constantEqual(p, password)
}

func constantEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
