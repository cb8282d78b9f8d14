package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBytes(t *testing.T, dir, name string, b []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestSniffFormat(t *testing.T) {
	dir := t.TempDir()

	pcapPath := writeBytes(t, dir, "classic.pcap", []byte{0xd4, 0xc3, 0xb2, 0xa1, 0, 0, 0, 0})
	ngPath := writeBytes(t, dir, "next-gen.pcapng", []byte{0x0a, 0x0d, 0x0d, 0x0a, 0, 0, 0, 0})
	junkPath := writeBytes(t, dir, "junk.bin", []byte{0x01, 0x02, 0x03, 0x04})
	emptyPath := writeBytes(t, dir, "empty.bin", nil)

	format, err := SniffFormat(pcapPath)
	require.NoError(t, err)
	assert.Equal(t, FormatPcap, format)

	format, err = SniffFormat(ngPath)
	require.NoError(t, err)
	assert.Equal(t, FormatPcapNG, format)

	format, err = SniffFormat(junkPath)
	require.NoError(t, err)
	assert.Equal(t, FormatUnknown, format)

	format, err = SniffFormat(emptyPath)
	require.NoError(t, err)
	assert.Equal(t, FormatUnknown, format)
}

func TestWriteEmptyPreservesFormat(t *testing.T) {
	dir := t.TempDir()
	pcapPath := writeBytes(t, dir, "source.pcap", []byte{0xd4, 0xc3, 0xb2, 0xa1, 0, 0, 0, 0})
	outPath := filepath.Join(dir, "out.pcap")

	require.NoError(t, WriteEmpty(pcapPath, outPath))

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	format, err := SniffFormat(outPath)
	require.NoError(t, err)
	assert.Equal(t, FormatPcap, format)
}

func TestWriteEmptyPreservesNgFormat(t *testing.T) {
	dir := t.TempDir()
	ngPath := writeBytes(t, dir, "source.pcapng", []byte{0x0a, 0x0d, 0x0d, 0x0a, 0, 0, 0, 0})
	outPath := filepath.Join(dir, "out.pcapng")

	require.NoError(t, WriteEmpty(ngPath, outPath))

	format, err := SniffFormat(outPath)
	require.NoError(t, err)
	assert.Equal(t, FormatPcapNG, format)
}
