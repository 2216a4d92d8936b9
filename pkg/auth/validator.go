package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
)

type validator struct {
	authToken string
	enabled   bool
}

// NewValidator creates a webhook signature validator. When disabled every
// request passes, which keeps local testing with curl possible.
func NewValidator(authToken string, enabled bool) *validator {
	return &validator{
		authToken: authToken,
		enabled:   enabled,
	}
}

// IsAuthentic reports whether the request carries a valid provider signature.
// The provider signs the request URL concatenated with the sorted form
// parameters using HMAC-SHA1 over the account auth token.
func (v *validator) IsAuthentic(r *http.Request) bool {
	if !v.enabled {
		return true
	}

	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(v.expectedSignature(r)))
}

func (v *validator) expectedSignature(r *http.Request) string {
	var b strings.Builder
	b.WriteString(requestURL(r))

	keys := make([]string, 0, len(r.PostForm))
	for k := range r.PostForm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(r.PostForm.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(v.authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// requestURL rebuilds the public URL the provider signed. Behind a proxy the
// original scheme arrives in X-Forwarded-Proto.
func requestURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}

	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
