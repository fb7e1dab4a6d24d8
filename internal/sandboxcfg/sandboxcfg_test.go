package sandboxcfg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/filerelay/internal/sandboxcfg"
)

func TestLoadLeavesMissingAliasEmpty(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "sandbox.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte(
		"[data]\nreal = /srv/data/\n\n[uploads]\nreal = /srv/uploads/\nalias = /u/\n"), 0o644))

	prefixes, err := sandboxcfg.Load(iniPath)
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	require.Equal(t, "/srv/data/", prefixes[0].Real)
	require.Equal(t, "", prefixes[0].Alias)
	require.Equal(t, "/u/", prefixes[1].Alias)
}

func TestLoadMissingRealKeyErrors(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "sandbox.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte("[broken]\nalias = /x/\n"), 0o644))

	_, err := sandboxcfg.Load(iniPath)
	require.Error(t, err)
}
