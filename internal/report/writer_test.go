package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesSidecar(t *testing.T) {
	dir := t.TempDir()
	primary := filepath.Join(dir, "matched_connections.txt")

	require.NoError(t, Write(primary, "matched_connections", "pair a<->b\n"))

	body, err := os.ReadFile(primary)
	require.NoError(t, err)
	assert.Equal(t, "pair a<->b\n", string(body))

	metaBytes, err := os.ReadFile(primary + ".meta.json")
	require.NoError(t, err)

	var meta Meta
	require.NoError(t, json.Unmarshal(metaBytes, &meta))
	assert.Equal(t, "matched_connections", meta.ID)
	assert.Equal(t, SourceBasic, meta.Source)
}

func TestWriteAtomicLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, WriteAtomic(path, "hello"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.txt", entries[0].Name())
}

func TestMarkdownDocument(t *testing.T) {
	doc := MarkdownDocument("Matched connections", "A B 0.93\n")
	assert.Equal(t, "## Matched connections\n\n```\nA B 0.93\n```\n", doc)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "raw", Render("t", "raw", FormatTxt))
	assert.Contains(t, Render("t", "raw", FormatMarkdown), "## t")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	_, err = ParseFormat("html")
	require.Error(t, err)
}
