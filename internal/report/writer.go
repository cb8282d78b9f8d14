// Package report writes primary command outputs with their .meta.json
// sidecars, shared by every capmaster subcommand that produces a file.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/rickypin/capmaster/util"
)

// Format selects the primary output flavor.
type Format string

const (
	FormatTxt      Format = "txt"
	FormatMarkdown Format = "md"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTxt, FormatMarkdown:
		return Format(s), nil
	default:
		return "", util.NewConfigError(fmt.Sprintf("unknown output format %q", s), "valid formats: txt, md")
	}
}

// SourceBasic is the source tag stamped into sidecar metadata for reports
// produced directly by this tool.
const SourceBasic = "basic"

// Meta is the sidecar schema. The schema is extensible; consumers ignore
// unknown keys.
type Meta struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// Write stores body at path atomically and drops a <path>.meta.json sidecar
// identifying the report kind. An empty path sends body to stdout with no
// sidecar.
func Write(path, id, body string) error {
	if path == "" {
		_, err := os.Stdout.WriteString(body)
		return err
	}

	if err := WriteAtomic(path, body); err != nil {
		return err
	}
	return writeMeta(path, id)
}

// WriteAtomic writes content to a temp file in path's directory and renames
// it into place, so readers never observe a partially written file.
func WriteAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.NewOutputDirectoryError(dir, err.Error())
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return util.NewOutputDirectoryError(dir, err.Error())
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "flushing %s", path)
	}
	return os.Rename(tmpName, path)
}

func writeMeta(primary, id string) error {
	meta := Meta{ID: id, Source: SourceBasic}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding sidecar metadata")
	}
	return WriteAtomic(primary+".meta.json", string(data)+"\n")
}

// MarkdownDocument renders a fixed-width report body as Markdown: a
// second-level title followed by the body in a fenced code block.
func MarkdownDocument(title, body string) string {
	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n```\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n```\n")
	return b.String()
}

// Render produces the final primary content for the requested format:
// Markdown documents get the title header and code fence, plain text passes
// through unchanged.
func Render(title, body string, format Format) string {
	if format == FormatMarkdown {
		return MarkdownDocument(title, body)
	}
	return body
}
