// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the scrubbing rules applied to request metadata before it
// is logged. Bodies are never logged. Credentials travel in the Authorization
// header or, for websocket upgrades from browsers, in the token query
// parameter; both are masked outright. Emails, phone numbers and UUIDs in
// other values are replaced with placeholders.
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// RedactOptions configures additional scrub behavior for Logger.
//
// MaskHeaders and MaskParams name extra headers and query parameters whose
// values are replaced with "[REDACTED]". Matching is case-insensitive and
// merged with the built-in sets. LogHeaders adds the scrubbed request headers
// to the access log line.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
	LogHeaders  bool
}

var (
	// UUIDs go first so the phone pattern cannot eat their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

type redactor struct {
	maskHeaders map[string]struct{}
	maskParams  map[string]struct{}
}

func newRedactor(opts RedactOptions) *redactor {
	r := &redactor{
		maskHeaders: lowerSet("authorization", "cookie", "set-cookie", "sec-websocket-protocol"),
		maskParams:  lowerSet("token", "access_token"),
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.maskHeaders[h] = struct{}{}
		}
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			r.maskParams[p] = struct{}{}
		}
	}
	return r
}

func lowerSet(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// text scrubs identifiers out of free text.
func (r *redactor) text(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// query masks credential parameters and scrubs the rest, keeping the
// original parameter order.
func (r *redactor) query(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			name = key
		}
		if _, ok := r.maskParams[strings.ToLower(name)]; ok {
			parts[i] = key + "=[REDACTED]"
			continue
		}
		parts[i] = r.text(part)
	}
	return strings.Join(parts, "&")
}

// headers returns a scrubbed, single-valued copy of h.
func (r *redactor) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.maskHeaders[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.text(strings.Join(vv, ", "))
	}
	return out
}
