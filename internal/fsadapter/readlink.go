package fsadapter

import (
	"os"
	"path/filepath"

	"github.com/iluksbr/filerelay/internal/relayerr"
)

// Readlink resolves p and, if its leaf is a symlink, returns the
// target's path relative to base — the target's realpath if it is a
// directory, else its parent (spec §4.8, usb_comm.py:1262-1269). If p's
// leaf is not itself a symlink, it returns "" with no error, matching
// the original's empty successful response (usb_comm.py:1252,
// 1279-1280). If the target's base escapes the sandbox, this returns
// an ApplicationError (the caller replies z).
func (s *Sandbox) Readlink(p string) (string, error) {
	target, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	return s.ReadlinkResolved(target)
}

// ReadlinkResolved is Readlink for a path already resolved by the
// caller, avoiding a redundant Resolve (EvalSymlinks + lstat) call.
func (s *Sandbox) ReadlinkResolved(target Resolved) (string, error) {
	leafInfo, err := os.Lstat(target.AliasResolvedPath)
	if err != nil || leafInfo.Mode()&os.ModeSymlink == 0 {
		return "", nil
	}

	base := target.RealPath
	if !target.IsDir {
		base = filepath.Dir(target.RealPath)
	}

	if _, ok := s.Root(base); !ok {
		return "", &relayerr.ApplicationError{Reason: "symlink target escapes sandbox"}
	}

	rel, err := filepath.Rel(base, target.RealPath)
	if err != nil {
		return "", &relayerr.ApplicationError{Reason: "cannot compute relative path: " + err.Error()}
	}
	return filepath.ToSlash(rel), nil
}
