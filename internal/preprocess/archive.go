package preprocess

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/rickypin/capmaster/printer"
)

// archiveOriginals writes every input capture into a tar archive in
// outputDir, gzip-compressed when compress is set. The archive is written to
// a temp file and renamed into place so originals are never at risk of being
// orphaned by a half-written archive. Returns the archive path.
func archiveOriginals(outputDir string, inputs []string, compress bool) (string, error) {
	name := "archive.tar"
	if compress {
		name = "archive.tar.gz"
	}
	archivePath := filepath.Join(outputDir, name)
	tmpPath := archivePath + ".tmp"

	names := archiveMemberNames(inputs)

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", tmpPath)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	var tw *tar.Writer
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		tw = tar.NewWriter(gz)
	} else {
		tw = tar.NewWriter(f)
	}

	for i, src := range inputs {
		if err := addArchiveMember(tw, src, names[i]); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", errors.Wrap(err, "finalizing archive")
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", errors.Wrap(err, "finalizing archive compression")
		}
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "flushing archive")
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		return "", errors.Wrapf(err, "renaming archive into place at %s", archivePath)
	}

	printer.Infof("archived %d original capture(s) to %s\n", len(inputs), archivePath)
	return archivePath, nil
}

// archiveMemberNames picks the stored name for each input: relative to the
// inputs' common root directory when one exists, otherwise just the
// basename. A name that is already taken is replaced by the input's parent
// directory name joined with its basename.
func archiveMemberNames(inputs []string) []string {
	root := commonRoot(inputs)

	names := make([]string, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, src := range inputs {
		name := filepath.Base(src)
		if root != "" {
			if rel, err := filepath.Rel(root, src); err == nil && !strings.HasPrefix(rel, "..") {
				name = rel
			}
		}
		if seen[name] {
			name = filepath.Join(filepath.Base(filepath.Dir(src)), filepath.Base(src))
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// commonRoot returns the deepest directory containing every input, or ""
// when the only shared ancestor is the filesystem root (treated as "no
// common root").
func commonRoot(inputs []string) string {
	if len(inputs) == 0 {
		return ""
	}

	root := filepath.Dir(absOrSelf(inputs[0]))
	for _, p := range inputs[1:] {
		dir := filepath.Dir(absOrSelf(p))
		for root != dir && !isAncestor(root, dir) {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	if root == string(filepath.Separator) || root == "." {
		return ""
	}
	return root
}

func isAncestor(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func addArchiveMember(tw *tar.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s for archiving", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return errors.Wrapf(err, "building tar header for %s", src)
	}
	hdr.Name = filepath.ToSlash(name)

	if err := tw.WriteHeader(hdr); err != nil {
		return errors.Wrapf(err, "writing tar header for %s", src)
	}
	if _, err := io.Copy(tw, in); err != nil {
		return errors.Wrapf(err, "archiving %s", src)
	}
	return nil
}
