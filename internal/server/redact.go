package server

import (
	"bytes"
	"net/url"
	"strings"
)

const redacted = "[REDACTED]"

// Redactor scrubs configured secrets from anything the proxy writes or logs.
type Redactor struct {
	secrets [][]byte
}

// NewRedactor builds a redactor for the non-empty secrets, matching both their raw and URL-encoded forms.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if s == "" {
			continue
		}
		r.secrets = append(r.secrets, []byte(s))
		if enc := url.QueryEscape(s); enc != s {
			r.secrets = append(r.secrets, []byte(enc))
		}
	}
	return r
}

// Bytes returns b with every secret replaced.
func (r *Redactor) Bytes(b []byte) []byte {
	for _, s := range r.secrets {
		if bytes.Contains(b, s) {
			b = bytes.ReplaceAll(b, s, []byte(redacted))
		}
	}
	return b
}

// String returns s with every secret replaced.
func (r *Redactor) String(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, string(secret), redacted)
	}
	return s
}
