// Package fsadapter implements the server-side filesystem adapter:
// sandboxed path resolution, stat, hashing, directory enumeration, and
// symlink resolution (spec §4.8, §4.9), grounded in the teacher's
// baseDir-confinement check (serverudp.handleREQ's filepath.Clean +
// ".." rejection) generalized from a single root to an ordered table
// of (real, alias) prefixes, in the spirit of rclone's local backend
// root-confinement pattern (backend/local/local.go's localPath/Join).
package fsadapter

import (
	"path/filepath"
	"strings"

	"github.com/iluksbr/filerelay/internal/relayerr"
)

// Prefix is one (real, alias) sandbox table entry. Both fields are
// guaranteed, by NewSandbox, to end with "/".
type Prefix struct {
	Real  string
	Alias string
}

// Sandbox holds the ordered prefix table built at startup; it is
// read-only thereafter (spec §5).
type Sandbox struct {
	prefixes []Prefix
}

func ensureTrailingSlash(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}

// NewSandbox builds a Sandbox from raw (real, alias) pairs, forcing
// each to an absolute, trailing-slash form. When alias is empty, it
// defaults to real (spec §6: "the alias-free short form").
func NewSandbox(pairs []Prefix) (*Sandbox, error) {
	out := make([]Prefix, 0, len(pairs))
	for _, p := range pairs {
		real, err := filepath.Abs(p.Real)
		if err != nil {
			return nil, err
		}
		alias := p.Alias
		if alias == "" {
			alias = p.Real
		}
		aliasAbs, err := filepath.Abs(alias)
		if err != nil {
			return nil, err
		}
		// Aliases are virtual and need not correspond to a real path on
		// disk, but filepath.Abs still gives us a clean, slash-joined
		// form to prefix-match against.
		out = append(out, Prefix{
			Real:  ensureTrailingSlash(filepath.ToSlash(real)),
			Alias: ensureTrailingSlash(filepath.ToSlash(aliasAbs)),
		})
	}
	return &Sandbox{prefixes: out}, nil
}

// resolveAlias rewrites p's leading alias occurrence to the
// corresponding real prefix (spec §4.8 step 1). It tries an exact
// (with-or-without trailing slash) match first, then a prefix match.
func (s *Sandbox) resolveAlias(p string) string {
	clean := filepath.ToSlash(p)
	for _, pre := range s.prefixes {
		aliasNoSlash := strings.TrimSuffix(pre.Alias, "/")
		if clean == aliasNoSlash || clean == pre.Alias {
			return strings.TrimSuffix(pre.Real, "/")
		}
		if strings.HasPrefix(clean, pre.Alias) {
			return pre.Real + clean[len(pre.Alias):]
		}
	}
	return clean
}

func (s *Sandbox) containsReal(real string) bool {
	for _, pre := range s.prefixes {
		trimmed := strings.TrimSuffix(pre.Real, "/")
		if real == trimmed || strings.HasPrefix(real, pre.Real) {
			return true
		}
	}
	return false
}

// Resolved is the outcome of sandbox path resolution.
type Resolved struct {
	// RealPath is the canonicalized (symlink- and ..-resolved) path.
	RealPath string
	// AliasResolvedPath is RealPath before the final realpath/symlink
	// resolution — used to test is_symlink against the leaf itself
	// rather than its target (spec §4.9).
	AliasResolvedPath string
	IsDir             bool
	IsRegular         bool
}

// Resolve implements spec §4.8: alias rewrite, realpath canonicalization,
// containment check, and the regular-file-or-directory restriction.
func (s *Sandbox) Resolve(p string) (Resolved, error) {
	aliasResolved := s.resolveAlias(p)

	real, err := evalSymlinksPartial(aliasResolved)
	if err != nil {
		return Resolved{}, &relayerr.ApplicationError{Reason: "path not found: " + err.Error()}
	}

	if !s.containsReal(filepath.ToSlash(real)) {
		return Resolved{}, &relayerr.ApplicationError{Reason: "path escapes sandbox"}
	}

	fi, err := lstatFollow(real)
	if err != nil {
		return Resolved{}, &relayerr.ApplicationError{Reason: "stat failed: " + err.Error()}
	}
	if !fi.IsDir() && !fi.Mode().IsRegular() {
		return Resolved{}, &relayerr.ApplicationError{Reason: "not a regular file or directory"}
	}

	return Resolved{
		RealPath:           real,
		AliasResolvedPath:  aliasResolved,
		IsDir:              fi.IsDir(),
		IsRegular:          fi.Mode().IsRegular(),
	}, nil
}

// Root returns the real prefix that base (a resolved, in-sandbox path)
// falls under — used by K (readlink) to compute a sandbox-relative
// result (spec §4.8).
func (s *Sandbox) Root(base string) (string, bool) {
	baseSlash := filepath.ToSlash(base)
	for _, pre := range s.prefixes {
		if strings.HasPrefix(baseSlash, pre.Real) || baseSlash == strings.TrimSuffix(pre.Real, "/") {
			return strings.TrimSuffix(pre.Real, "/"), true
		}
	}
	return "", false
}
