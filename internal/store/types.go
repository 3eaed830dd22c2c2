// Package store implements the git-backed paste repository: the directory
// layout, the single-writer mutex, the git subprocess wrapper and the
// push-policy state machine described by the repository store component.
package store

import (
	"path/filepath"
	"time"
)

// Paste is the immutable metadata record for one committed paste.
type Paste struct {
	ID          string    `json:"id"`
	Sha256      string    `json:"sha256"`
	Commit      string    `json:"commit"`
	ContentType string    `json:"content_type,omitempty"`
	Tag         string    `json:"tag,omitempty"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Path        string    `json:"path"`
	Slug        string    `json:"slug"`
	Ext         string    `json:"ext"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// CreateInput carries everything a create request supplies.
type CreateInput struct {
	Name        string
	Tag         string
	Msg         string
	ContentType string
	Body        []byte
	ClientIP    string
	UserAgent   string
}

// CreateResult is returned by Create and serialised as the HTTP create
// response body. PushWarning is set only when push mode is best_effort and
// the push failed; it is not part of the wire response (the client never
// sees a best-effort push failure per spec.md §4.8) but lets the caller log
// it.
type CreateResult struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Commit      string `json:"commit"`
	RawURL      string `json:"raw_url"`
	ViewURL     string `json:"view_url"`
	MetaURL     string `json:"meta_url"`
	PushWarning string `json:"-"`
}

// PushMode governs how a remote push failure after a commit is handled.
type PushMode string

const (
	PushOff        PushMode = "off"
	PushBestEffort PushMode = "best_effort"
	PushStrict     PushMode = "strict"
)

// Paths collects the directory layout rooted at a base directory, grounded
// on the original implementation's AppPaths (original_source/src/types.rs).
type Paths struct {
	Base        string
	Repo        string
	Run         string
	Tmp         string
	GitLock     string
	Idempotency string
}

// PathsFromBase derives the standard layout from a base directory.
func PathsFromBase(base string) Paths {
	run := filepath.Join(base, "run")
	return Paths{
		Base:        base,
		Repo:        filepath.Join(base, "repo"),
		Run:         run,
		Tmp:         filepath.Join(base, "tmp"),
		GitLock:     filepath.Join(run, "git.lock"),
		Idempotency: filepath.Join(run, "idempotency"),
	}
}
