package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zhengpenghou/lanpaste/internal/idutil"
)

// Create writes the content and metadata files, commits them as a single
// git commit whose hash is embedded in the metadata via the two-phase
// amend scheme, drives the push policy, and returns the create response
// together with the committed Paste. Grounded on
// original_source/src/store.rs::build_paste_draft combined with
// gitops.rs::commit_paste, reshaped around spec.md's amend requirement and
// the teacher's single-writer-mutex pattern in src/store/disk.go.
func (s *Store) Create(in CreateInput) (CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := idutil.NewID()
	createdAt := time.Now().UTC()

	name := in.Name
	if name == "" {
		name = "paste"
	}
	slug := idutil.SanitizeSlug(name)
	ext := idutil.Ext(name)

	fileName := id + "__" + slug
	if ext != "" {
		fileName += "." + ext
	}
	relPath := filepath.ToSlash(filepath.Join("pastes", idutil.DatePath(createdAt), fileName))
	metaRelPath := filepath.ToSlash(filepath.Join("meta", id+".json"))

	absPath := filepath.Join(s.paths.Repo, filepath.FromSlash(relPath))
	metaPath := filepath.Join(s.paths.Repo, filepath.FromSlash(metaRelPath))

	sum := sha256.Sum256(in.Body)
	sha := hex.EncodeToString(sum[:])

	paste := Paste{
		ID:          id,
		Sha256:      sha,
		Commit:      "",
		ContentType: in.ContentType,
		Tag:         in.Tag,
		Size:        len(in.Body),
		CreatedAt:   createdAt,
		Path:        relPath,
		Slug:        slug,
		Ext:         ext,
		ClientIP:    in.ClientIP,
		UserAgent:   in.UserAgent,
	}

	if err := s.writeAtomic(absPath, in.Body); err != nil {
		return CreateResult{}, fmt.Errorf("write paste: %w", err)
	}
	if err := s.writeMeta(metaPath, paste); err != nil {
		_ = os.Remove(absPath)
		return CreateResult{}, fmt.Errorf("write meta: %w", err)
	}

	subject := in.Msg
	if subject == "" {
		subject = "paste " + id
		if in.Tag != "" {
			subject += " [tag:" + in.Tag + "]"
		}
	}

	if err := addAndCommit(s.paths.Repo, s.identity, relPath, metaRelPath, subject); err != nil {
		s.cleanupFailedCreate(absPath, metaPath)
		return CreateResult{}, fmt.Errorf("commit paste: %w", err)
	}

	hash, err := headHash(s.paths.Repo, s.identity)
	if err != nil {
		s.cleanupFailedCreate(absPath, metaPath)
		return CreateResult{}, fmt.Errorf("resolve commit hash: %w", err)
	}

	paste.Commit = hash
	if err := s.writeMeta(metaPath, paste); err != nil {
		return CreateResult{}, fmt.Errorf("rewrite meta with commit hash: %w", err)
	}
	if err := amendCommit(s.paths.Repo, s.identity, metaRelPath); err != nil {
		return CreateResult{}, fmt.Errorf("amend commit: %w", err)
	}

	result, pushErr := runPushPolicy(s.paths.Repo, s.identity, s.push, s.remote)
	if pushErr != nil {
		if result.RolledBack {
			_ = os.Remove(absPath)
			_ = os.Remove(metaPath)
			// git reset --hard prunes directories it emptied; restore the
			// pastes/ and meta/ layout that bootstrapRepo created.
			_ = os.MkdirAll(filepath.Join(s.paths.Repo, "pastes"), 0o755)
			_ = os.MkdirAll(filepath.Join(s.paths.Repo, "meta"), 0o755)
		}
		return CreateResult{}, fmt.Errorf("%w: %v", ErrPushFailed, pushErr)
	}

	var pushWarning string
	if s.push == PushBestEffort && !result.Pushed && result.PushErr != nil {
		pushWarning = result.PushErr.Error()
	}

	return CreateResult{
		ID:          id,
		Path:        relPath,
		Commit:      hash,
		RawURL:      "/api/v1/p/" + id + "/raw",
		ViewURL:     "/p/" + id,
		MetaURL:     "/api/v1/p/" + id,
		PushWarning: pushWarning,
	}, nil
}

// cleanupFailedCreate removes any staged/temp state left behind by a
// failed commit, per §7's "no error path may leave a staged but
// uncommitted git index" rule.
func (s *Store) cleanupFailedCreate(absPath, metaPath string) {
	abortStaged(s.paths.Repo, s.identity)
	_ = os.Remove(absPath)
	_ = os.Remove(metaPath)
}

// writeAtomic writes data to a temp file under tmp/ and renames it into
// place, matching the teacher's temp-and-rename convention and §4.1's
// write-then-rename requirement.
func (s *Store) writeAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.paths.Tmp, "paste-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

func (s *Store) writeMeta(dest string, p Paste) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return s.writeAtomic(dest, data)
}

// Fingerprint computes the idempotency fingerprint for a create request:
// sha256 of content_type || tag || name || body, per spec.md §4.3.
func Fingerprint(contentType, name, tag string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(contentType))
	h.Write([]byte{0})
	h.Write([]byte(tag))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
