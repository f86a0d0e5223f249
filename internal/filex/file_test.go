package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureFileDir_CreatesParentInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureFileDir(filepath.Join("data", "relaytale.db"))
	require.NoError(t, err)

	wantDir := filepath.Join(tmp, "data")
	require.Equal(t, filepath.Join(wantDir, "relaytale.db"), got)

	fi, err := os.Stat(wantDir)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}

	_, err = os.Stat(got)
	require.True(t, os.IsNotExist(err), "the file itself is not created")
}

func TestEnsureFileDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "deeper", "stories.db")

	first, err := EnsureFileDir(path)
	require.NoError(t, err)
	second, err := EnsureFileDir(path)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, path, first)
}

func TestEnsureFileDir_FailsIfFileBlocksDirectory(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("data", []byte("x"), 0o660))

	_, err := EnsureFileDir(filepath.Join("data", "relaytale.db"))
	require.Error(t, err, "should fail when a file sits where the directory goes")
}
