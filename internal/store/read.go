package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GetMeta returns the committed metadata for id, or ErrNotFound.
func (s *Store) GetMeta(id string) (Paste, error) {
	path := filepath.Join(s.paths.Repo, "meta", id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Paste{}, ErrNotFound
		}
		return Paste{}, err
	}
	var p Paste
	if err := json.Unmarshal(data, &p); err != nil {
		return Paste{}, err
	}
	return p, nil
}

// GetRaw returns the committed body bytes for id, or ErrNotFound.
func (s *Store) GetRaw(id string) ([]byte, Paste, error) {
	meta, err := s.GetMeta(id)
	if err != nil {
		return nil, Paste{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.paths.Repo, filepath.FromSlash(meta.Path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Paste{}, ErrNotFound
		}
		return nil, Paste{}, err
	}
	return data, meta, nil
}

// Recent returns the most recently created pastes, newest first, at most
// min(n, 500), optionally filtered to an exact tag match. n <= 0 is
// treated as the default of 50, per spec.md §9 open question (b).
func (s *Store) Recent(n int, tag string) ([]Paste, error) {
	const (
		defaultN = 50
		maxN     = 500
	)
	if n <= 0 {
		n = defaultN
	}
	if n > maxN {
		n = maxN
	}

	metaDir := filepath.Join(s.paths.Repo, "meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	pastes := make([]Paste, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(metaDir, entry.Name()))
		if err != nil {
			continue
		}
		var p Paste
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		if tag != "" && p.Tag != tag {
			continue
		}
		pastes = append(pastes, p)
	}

	// ULIDs sort lexicographically by creation time; descending ID order
	// is equivalent to newest-first per spec.md §4.1.
	sort.Slice(pastes, func(i, j int) bool { return pastes[i].ID > pastes[j].ID })

	if len(pastes) > n {
		pastes = pastes[:n]
	}
	return pastes, nil
}
