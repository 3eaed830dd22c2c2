// Package idutil provides the path and identifier utilities used by the
// repository store: ULID generation, filename slug sanitisation, extension
// inference and the date-partitioned path builder.
package idutil

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	maxSlugLen = 64
	maxExtLen  = 8
)

// idSource is a process-wide monotonic ULID source. ulid.Monotonic is only
// monotonic across calls made through the same entropy source, so we keep a
// single instance behind a mutex rather than constructing one per call.
var (
	idMu     sync.Mutex
	idSource = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID string. IDs generated through NewID are
// monotonically increasing for equal timestamps, matching the ordering
// "recent" relies on.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), idSource)
	return id.String()
}

// DatePath returns the "YYYY/MM/DD" partition for t in UTC.
func DatePath(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d/%02d/%02d", u.Year(), u.Month(), u.Day())
}

// SanitizeSlug reduces name to the set [A-Za-z0-9._-], collapses repeated
// '_'/'-' runs, trims leading/trailing separators and truncates to
// maxSlugLen bytes. An empty or all-rejected name becomes "paste".
func SanitizeSlug(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "paste"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	slug := b.String()

	slug = collapseRuns(slug, '-')
	slug = collapseRuns(slug, '_')
	slug = strings.Trim(slug, "-_")

	if slug == "" {
		return "paste"
	}
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		slug = strings.Trim(slug, "-_")
		if slug == "" {
			return "paste"
		}
	}
	return slug
}

func collapseRuns(s string, sep byte) string {
	var b strings.Builder
	prevSep := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == sep {
			if prevSep {
				continue
			}
			prevSep = true
		} else {
			prevSep = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Ext returns the file extension implied by name: the final dot segment if
// it is alphanumeric and at most maxExtLen bytes long, else "".
func Ext(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	ext := name[idx+1:]
	if len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}
