package fsadapter

import (
	"os"
	"path/filepath"

	"github.com/iluksbr/filerelay/internal/wire"
)

func evalSymlinksPartial(p string) (string, error) {
	return filepath.EvalSymlinks(p)
}

func lstatFollow(p string) (os.FileInfo, error) {
	return os.Stat(p)
}

// StatPath stats a resolved path and packs the result per spec §3/§4.9.
// isSymlink is tested against the pre-realpath, alias-resolved path
// (Resolved.AliasResolvedPath), not the canonicalized target.
func StatPath(r Resolved) (wire.StatRecord, error) {
	fi, err := lstatFollow(r.RealPath)
	if err != nil {
		return wire.StatRecord{}, err
	}
	linkInfo, err := os.Lstat(r.AliasResolvedPath)
	isSymlink := err == nil && linkInfo.Mode()&os.ModeSymlink != 0

	var flags wire.StatFlags
	if fi.IsDir() {
		flags |= wire.StatIsDir
	}
	if fi.Mode().IsRegular() {
		flags |= wire.StatIsRegular
	}
	if isSymlink {
		flags |= wire.StatIsSymlink
	}

	return wire.StatRecord{
		Flags: flags,
		Mode:  uint16(fi.Mode().Perm()),
		Size:  uint32(fi.Size()),
		Mtime: uint32(fi.ModTime().Unix()),
		Ctime: uint32(ctime(fi)),
	}, nil
}
