package fsutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("# unit\n"), 0644))
	}
	return fs
}

func TestFindFilesByExtension(t *testing.T) {
	fs := tree(t, "/cfg/b.hcl", "/cfg/a.hcl", "/cfg/sub/c.hcl", "/cfg/notes.txt")

	files, err := FindFilesByExtension(fs, "/cfg", ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"/cfg/a.hcl", "/cfg/b.hcl", "/cfg/sub/c.hcl"}, files)
}

func TestFindFilesByExtension_EmptyExtensionPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = FindFilesByExtension(afero.NewMemMapFs(), "/", "") })
}

func TestExpandPaths(t *testing.T) {
	fs := tree(t, "/cfg/10-base.hcl", "/cfg/20-web.hcl", "/cfg/readme.md", "/extra/x.conf")

	got, err := ExpandPaths(fs, []string{
		"/extra/x.conf",
		"/cfg",
		"/cfg/20-web.hcl",
		"/missing.hcl",
		"/extra/x.conf",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/extra/x.conf",
		"/cfg/10-base.hcl",
		"/cfg/20-web.hcl",
		"/missing.hcl",
	}, got)
}

func TestExpandPaths_Empty(t *testing.T) {
	got, err := ExpandPaths(afero.NewMemMapFs(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
