// Package apikeys loads and resolves the API keys file described in
// spec.md §6, grounded on original_source/src/auth.rs's ApiKeyStore. The
// per-key rate limiting it used to do inline (a fixed per-minute counter)
// is deliberately NOT carried over here — spec.md §3/§4.4 specifies a
// continuous token bucket, which lives in internal/ratelimit instead.
package apikeys

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Recognised scopes, per spec.md §6.
const (
	ScopePasteCreate = "paste:create"
	ScopePasteRead   = "paste:read"
	ScopeRecentRead  = "recent:read"
	ScopeAPIIndex    = "api:index"
)

// Entry is one configured API key.
type Entry struct {
	Name                 string   `json:"name"`
	Key                  string   `json:"key"`
	Scopes               []string `json:"scopes"`
	MaxRequestsPerMinute int      `json:"max_requests_per_minute"`
}

type keysFile struct {
	Keys []Entry `json:"keys"`
}

// Store resolves API keys for the admission layer. A zero-value Store (no
// file configured) is disabled and authorize-by-key is skipped entirely.
type Store struct {
	entries []Entry
	byKey   map[string]Entry
}

// Load reads and validates the API keys file at path. An empty path
// returns a disabled Store, matching "otherwise, if --token is configured"
// falling through to token-based auth in spec.md §4.5.
func Load(path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api keys file: %w", err)
	}

	var file keysFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse api keys file: %w", err)
	}

	byKey := make(map[string]Entry, len(file.Keys))
	for _, e := range file.Keys {
		if strings.TrimSpace(e.Key) == "" {
			return nil, fmt.Errorf("api key entry has empty key")
		}
		if len(e.Scopes) == 0 {
			return nil, fmt.Errorf("api key %q must include at least one scope", keyName(e))
		}
		if e.MaxRequestsPerMinute == 0 {
			return nil, fmt.Errorf("api key %q has invalid max_requests_per_minute=0", keyName(e))
		}
		if _, dup := byKey[e.Key]; dup {
			return nil, fmt.Errorf("duplicate api key in api keys file")
		}
		byKey[e.Key] = e
	}

	return &Store{entries: file.Keys, byKey: byKey}, nil
}

func keyName(e Entry) string {
	if e.Name != "" {
		return e.Name
	}
	return "unnamed"
}

// Enabled reports whether any keys are configured.
func (s *Store) Enabled() bool {
	return s != nil && len(s.entries) > 0
}

// Entries returns the configured keys, for wiring up the rate limiter at
// startup.
func (s *Store) Entries() []Entry {
	if s == nil {
		return nil
	}
	return s.entries
}

// Resolve finds the entry matching provided using a constant-time
// comparison against every configured key, so response timing does not
// leak which prefix matched. crypto/subtle is the canonical stdlib
// primitive here; no ecosystem library in the example pack does this
// better.
func (s *Store) Resolve(provided string) (Entry, bool) {
	if s == nil || provided == "" {
		return Entry{}, false
	}
	var match Entry
	found := false
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare([]byte(e.Key), []byte(provided)) == 1 {
			match = e
			found = true
		}
	}
	return match, found
}

// HasScope reports whether entry is authorised for needed, where "*" in
// an entry's scope list grants every scope.
func HasScope(entry Entry, needed string) bool {
	for _, s := range entry.Scopes {
		if s == "*" || s == needed {
			return true
		}
	}
	return false
}

// PrincipalID returns the identity used to scope idempotency and rate
// limits: the key's configured name, or a short key-derived fallback.
func PrincipalID(entry Entry) string {
	if entry.Name != "" {
		return entry.Name
	}
	if len(entry.Key) > 8 {
		return "key:" + entry.Key[:8]
	}
	return "key:" + entry.Key
}
