package fsadapter

import (
	"os"
	"path/filepath"
)

// DirEntry is one surviving entry of a directory listing: its bare
// name and its sandbox-resolved form, so the caller (the server
// engine) can opportunistically populate the stat cache from it
// without re-resolving (spec §4.8: "Enumeration also opportunistically
// populates the stat cache with each entry").
type DirEntry struct {
	Name     string
	Resolved Resolved
}

// List enumerates a resolved directory, dropping entries whose
// symlink target escapes the sandbox and entries that are neither
// regular files nor directories (spec §4.8).
func (s *Sandbox) List(dir Resolved) ([]DirEntry, error) {
	ents, err := os.ReadDir(dir.RealPath)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(ents))
	for _, e := range ents {
		full := filepath.Join(dir.RealPath, e.Name())
		r, err := s.Resolve(full)
		if err != nil {
			continue // escapes sandbox, or not a regular file/dir
		}
		out = append(out, DirEntry{Name: e.Name(), Resolved: r})
	}
	return out, nil
}
