package storage

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save([]byte("%PDF-1.3"), "legal-review C-1.pdf", "legal-review")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "legal-review"+string(filepath.Separator)))
	assert.Equal(t, ".pdf", filepath.Ext(rel))
	assert.Contains(t, filepath.Base(rel), "legal-review_C-1-")
	assert.True(t, store.Exists(rel))

	f, err := store.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	require.NoError(t, store.Delete(rel))
	assert.False(t, store.Exists(rel))
}

func TestLocalStorageFullPathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "etc", "passwd"), store.FullPath("../../etc/passwd"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "document", sanitizeName(""))
	assert.Equal(t, "a_b-c", sanitizeName("a/b-c"))
}
