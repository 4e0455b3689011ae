// Package webhook validates and normalizes inbound carrier requests.
// The carrier posts form-encoded payloads to an unauthenticated public
// endpoint; requests are authenticated by recomputing the carrier's HMAC
// signature, then translated into the canonical RawChannelMessage so the
// rest of the system never sees carrier field names.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/url"
	"sort"
)

// SignatureHeader is the request header carrying the carrier's signature.
const SignatureHeader = "X-Carrier-Signature"

// Validator checks carrier webhook signatures with a shared secret.
type Validator struct {
	secret string
}

// NewValidator creates a signature validator. An empty secret fails every
// request; signature checking cannot be silently disabled.
func NewValidator(secret string) *Validator {
	return &Validator{secret: secret}
}

// ComputeSignature reproduces the carrier's scheme: HMAC-SHA1 over the full
// request URL concatenated with every form key+value pair in sorted key
// order, base64-encoded.
func ComputeSignature(secret, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(requestURL))
	for _, k := range keys {
		for _, v := range form[k] {
			mac.Write([]byte(k))
			mac.Write([]byte(v))
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Valid reports whether the given signature matches the request. The
// comparison is constant-time. Missing signature or secret is a mismatch.
func (v *Validator) Valid(requestURL string, form url.Values, signature string) bool {
	if v.secret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(v.secret, requestURL, form)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
