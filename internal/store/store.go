package store

import (
	"fmt"
	"os"
	"sync"
)

// ErrNotFound is returned by GetMeta/GetRaw when no paste exists for the id.
var ErrNotFound = fmt.Errorf("paste not found")

// ErrPushFailed is returned by Create when a strict push failed and the
// commit was rolled back.
var ErrPushFailed = fmt.Errorf("push_failed")

// Store owns the git repository rooted at a base directory and serialises
// every mutating operation behind a single mutex, matching §4.1's "exactly
// one mutating operation at a time" invariant. It is the generalisation of
// the teacher's DiskStore to a git-backed, file-tree repository instead of
// a diskv key/value store.
type Store struct {
	mu       sync.Mutex
	paths    Paths
	identity Identity
	push     PushMode
	remote   string
}

// Options configures a new Store.
type Options struct {
	BaseDir  string
	Identity Identity
	Push     PushMode
	Remote   string
}

// Open creates repo/, run/ and tmp/ under base if absent, bootstraps the
// git repository with its initial commit (README.md and .gitignore, no
// pastes), and returns a ready Store.
// Fails with a wrapped error if the git binary is missing, matching
// GitUnavailable in §7 (the caller maps that to a non-zero exit code).
func Open(opts Options) (*Store, error) {
	if err := checkGitInstalled(); err != nil {
		return nil, err
	}

	paths := PathsFromBase(opts.BaseDir)
	for _, dir := range []string{paths.Run, paths.Tmp, paths.Idempotency, paths.Repo} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := bootstrapRepo(paths.Repo, opts.Identity); err != nil {
		return nil, fmt.Errorf("bootstrap repository: %w", err)
	}

	return &Store{
		paths:    paths,
		identity: opts.Identity,
		push:     opts.Push,
		remote:   opts.Remote,
	}, nil
}

// Paths exposes the store's directory layout.
func (s *Store) Paths() Paths { return s.paths }

// Ready reports whether the repository exists and has at least one commit.
func (s *Store) Ready() bool {
	return readyRepo(s.paths.Repo, s.identity)
}
