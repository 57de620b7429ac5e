package output

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipEntries(t *testing.T, r *zip.Reader) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = data
	}
	return out
}

func TestBundleWriteRemovesIntermediates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := Bundle{Dir: dir}.Write(sampleRun())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultArchiveName), path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultArchiveName, entries[0].Name())

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	files := zipEntries(t, &zr.Reader)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{DefaultProfilesName, DefaultLogsName}, names)
	assert.Len(t, readAll(t, files[DefaultLogsName]), 3)
}

func TestBundleWriteKeepsIntermediates(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	_, err := Bundle{Dir: dir, KeepIntermediate: true}.Write(sampleRun())
	require.NoError(t, err)

	for _, name := range []string{DefaultProfilesName, DefaultLogsName, DefaultArchiveName} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestBundleArchiveInMemory(t *testing.T) {
	t.Parallel()

	data, err := Bundle{ProfilesName: "p.csv", LogsName: "l.csv"}.Archive(sampleRun())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := zipEntries(t, zr)
	require.Contains(t, files, "p.csv")
	require.Contains(t, files, "l.csv")
	assert.Len(t, readAll(t, files["p.csv"]), 3)
}
