package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// NormalizeDomain trims and lowercases so trivially different requests with
// identical semantics map to the same key.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// Fingerprint derives the exact-tier key for a response: a stable hash over
// the query text, the normalized domain and the result-shaping parameters.
func Fingerprint(query, domain string, maxResults, maxChunks int) string {
	return keyedHash("resp", strings.TrimSpace(query), NormalizeDomain(domain), maxResults, maxChunks)
}

// SearchFingerprint keys the search-result tier. max_chunks does not shape
// search output and is excluded.
func SearchFingerprint(query, domain string, maxResults int) string {
	return keyedHash("search", strings.TrimSpace(query), NormalizeDomain(domain), maxResults)
}

// ContentFingerprint keys the scraped-content tier by URL.
func ContentFingerprint(url string) string {
	return keyedHash("content", strings.TrimSpace(url))
}

func keyedHash(kind string, parts ...interface{}) string {
	h := sha256.New()
	_, _ = io.WriteString(h, kind)
	for _, part := range parts {
		_, _ = io.WriteString(h, "\x00")
		_, _ = fmt.Fprintf(h, "%v", part)
	}
	return kind + ":" + hex.EncodeToString(h.Sum(nil))
}
