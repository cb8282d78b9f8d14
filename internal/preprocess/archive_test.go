package preprocess

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestArchiveOriginalsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()

	a := writeFixture(t, dir, "siteA/capture1.pcap", "aaaa")
	b := writeFixture(t, dir, "siteB/capture2.pcap", "bbbb")

	archivePath, err := archiveOriginals(out, []string{a, b}, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "archive.tar.gz"), archivePath)

	// No leftover temp file.
	_, err = os.Stat(archivePath + ".tmp")
	assert.True(t, os.IsNotExist(err))

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	members := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		members[hdr.Name] = string(data)
	}

	// Inputs share dir as common root, so members keep their relative paths.
	assert.Equal(t, map[string]string{
		"siteA/capture1.pcap": "aaaa",
		"siteB/capture2.pcap": "bbbb",
	}, members)
}

func TestArchiveOriginalsUncompressed(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	a := writeFixture(t, dir, "one.pcap", "x")

	archivePath, err := archiveOriginals(out, []string{a}, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "archive.tar"), archivePath)

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	tr := tar.NewReader(f)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "one.pcap", hdr.Name)
}

func TestArchiveMemberNamesBasenameCollision(t *testing.T) {
	// No common root below /, so both fall back to basenames; the collision
	// forces a directory prefix onto the second member.
	names := archiveMemberNames([]string{"/data/capture.pcap", "/srv/capture.pcap"})
	require.Len(t, names, 2)
	assert.Equal(t, "capture.pcap", names[0])
	assert.Equal(t, filepath.Join("srv", "capture.pcap"), names[1])
}

func TestCommonRoot(t *testing.T) {
	assert.Equal(t, "/data", commonRoot([]string{"/data/a/x.pcap", "/data/b/y.pcap"}))
	assert.Equal(t, "/data/a", commonRoot([]string{"/data/a/x.pcap", "/data/a/y.pcap"}))
	// Only the filesystem root in common counts as no common root.
	assert.Equal(t, "", commonRoot([]string{"/data/x.pcap", "/srv/y.pcap"}))
}
