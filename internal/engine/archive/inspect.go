package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"modpack/internal/core/errors"

	"github.com/klauspost/compress/zip"
)

// EntryInfo describes one record of an existing archive.
type EntryInfo struct {
	Name           string
	Size           uint64
	CompressedSize uint64
	Modified       time.Time
	Method         uint16
}

// safeName rejects entry names that would escape the extraction directory.
func safeName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return errors.AddContext(errors.New(errors.CodeValidationError, "illegal archive entry name"), errors.CtxPath, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return errors.AddContext(errors.New(errors.CodeValidationError, "archive entry escapes root"), errors.CtxPath, name)
		}
	}
	if path.Clean(name) != strings.TrimSuffix(name, "/") {
		return errors.AddContext(errors.New(errors.CodeValidationError, "archive entry name is not clean"), errors.CtxPath, name)
	}
	return nil
}

// Inspect lists the records of the archive at archivePath, failing on the
// first unsafe entry name.
func Inspect(archivePath string) ([]EntryInfo, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	out := make([]EntryInfo, 0, len(zr.File))
	for _, f := range zr.File {
		if err := safeName(f.Name); err != nil {
			return nil, err
		}
		out = append(out, EntryInfo{
			Name:           f.Name,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Modified:       f.Modified,
			Method:         f.Method,
		})
	}
	return out, nil
}

// Extract unpacks the archive at archivePath beneath dest and returns the
// absolute paths of the files it wrote.
func Extract(archivePath, dest string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dest, err)
	}

	written := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if err := safeName(f.Name); err != nil {
			return nil, err
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if rel, err := filepath.Rel(root, target); err != nil || strings.HasPrefix(rel, "..") {
			return nil, errors.AddContext(errors.New(errors.CodeValidationError, "archive entry escapes root"), errors.CtxPath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return nil, err
		}
		written = append(written, target)
	}
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
