package fetcher

import (
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"adm1.csv":        "adm1_pcode\nAF01\n",
		"adm2.csv":        "adm2_pcode\nAF0101\n",
		"docs/readme.txt": "boundaries",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "docs", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "boundaries", string(data))
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../../../etc/passwd": "malicious"})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_DirectoryEntries(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "nested.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	_, err = w.Create("boundaries.gdb/")
	require.NoError(t, err)
	fw, err := w.Create("boundaries.gdb/a00000001.gdbtable")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("table")) //nolint:errcheck
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 1)

	info, err := os.Stat(filepath.Join(destDir, "boundaries.gdb"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExtractZIP_InvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notazip.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
}

func TestIsZIP(t *testing.T) {
	assert.True(t, IsZIP(createTestZIP(t, map[string]string{"a.csv": "a"})))

	plain := filepath.Join(t.TempDir(), "data.xlsx.zip")
	require.NoError(t, os.WriteFile(plain, []byte("a,b\n"), 0o644))
	assert.False(t, IsZIP(plain))
	assert.False(t, IsZIP(filepath.Join(t.TempDir(), "missing.zip")))
}

func TestGunzipFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "layers.gz")
	f, err := os.Create(src)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("SQLite format 3"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "layers.gpkg")
	n, err := GunzipFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3", string(data))
}

func TestGunzipFile_NotGzip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plain.gz")
	require.NoError(t, writeTestFile(src, "not compressed"))

	_, err := GunzipFile(src, filepath.Join(t.TempDir(), "out.gpkg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}
