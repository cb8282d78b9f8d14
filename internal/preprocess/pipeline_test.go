package preprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A pipeline run with no transforming steps enabled copies every input to
// its .ready location, preserving count and positional stem alignment.
func TestRunPassThrough(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	a := writeFixture(t, in, "first.pcap", "content-a")
	b := writeFixture(t, in, "second.pcapng", "content-b")

	rc := RuntimeConfig{Preprocess: Config{ReportEnabled: false}}
	res, err := Run(context.Background(), rc, []string{a, b}, out, nil, "")
	require.NoError(t, err)

	require.Len(t, res.FinalFiles, 2)
	assert.Equal(t, filepath.Join(out, "first.ready.pcap"), res.FinalFiles[0])
	assert.Equal(t, filepath.Join(out, "second.ready.pcapng"), res.FinalFiles[1])

	got, err := os.ReadFile(res.FinalFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "content-a", string(got))
}

func TestRunArchivesOriginals(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	a := writeFixture(t, in, "only.pcap", "bytes")

	rc := RuntimeConfig{Preprocess: Config{ArchiveOriginal: true, ArchiveCompress: true}}
	res, err := Run(context.Background(), rc, []string{a}, out, nil, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "archive.tar.gz"), res.ArchivePath)
	_, err = os.Stat(res.ArchivePath)
	assert.NoError(t, err)

	// Archiving never removes or rewrites the original.
	orig, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(orig))
}

func TestRunRejectsUnknownStep(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	a := writeFixture(t, in, "x.pcap", "x")

	_, err := Run(context.Background(), RuntimeConfig{}, []string{a}, out, []string{"no-such-step"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preprocess step")
}

func TestRunRejectsEmptyInput(t *testing.T) {
	_, err := Run(context.Background(), RuntimeConfig{}, nil, t.TempDir(), nil, "")
	require.Error(t, err)
}

func TestRunKeepsCallerScratchDir(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	scratch := t.TempDir()
	a := writeFixture(t, in, "x.pcap", "x")

	_, err := Run(context.Background(), RuntimeConfig{}, []string{a}, out, nil, scratch)
	require.NoError(t, err)

	_, err = os.Stat(scratch)
	assert.NoError(t, err)
}
