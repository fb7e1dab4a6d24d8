package fsadapter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/filerelay/internal/fsadapter"
	"github.com/iluksbr/filerelay/internal/wire"
)

func TestResolveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	_, err = sandbox.Resolve(filepath.Join(root, "../etc/passwd"))
	require.Error(t, err)
}

func TestResolveAcceptsFileInsideRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0o644))

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	r, err := sandbox.Resolve(filepath.Join(root, "f"))
	require.NoError(t, err)
	require.True(t, r.IsRegular)
	require.False(t, r.IsDir)
}

func TestResolveAliasRewrite(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0o644))

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root, Alias: "/virtual"}})
	require.NoError(t, err)

	r, err := sandbox.Resolve("/virtual/f")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "f"), r.RealPath)
}

func TestListSkipsEscapingSymlinkAndPopulatesNames(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "escape")))

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	dirResolved, err := sandbox.Resolve(root)
	require.NoError(t, err)

	entries, err := sandbox.List(dirResolved)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "a.txt")
	require.NotContains(t, names, "escape")
}

func TestReadlinkReturnsSandboxRelativePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "target.txt"), []byte("t"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub", "target.txt"), filepath.Join(root, "link")))

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	rel, err := sandbox.Readlink(filepath.Join(root, "link"))
	require.NoError(t, err)
	require.Equal(t, "target.txt", rel)
}

func TestReadlinkOnNonSymlinkReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0o644))

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	rel, err := sandbox.Readlink(filepath.Join(root, "f"))
	require.NoError(t, err)
	require.Equal(t, "", rel)
}

func TestStatPathFlagsRegularFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("abcd"), 0o644))

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	r, err := sandbox.Resolve(filepath.Join(root, "f"))
	require.NoError(t, err)

	rec, err := fsadapter.StatPath(r)
	require.NoError(t, err)
	require.Equal(t, uint32(4), rec.Size)
	require.NotZero(t, rec.Flags&wire.StatIsRegular)
}

func TestHashFileIsDeterministic(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "f")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	h1, err := fsadapter.HashFile(path)
	require.NoError(t, err)
	h2, err := fsadapter.HashFile(path)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 128) // SHA-512 hex digest
}
