// Package archive writes a resolved module set as a deterministic zip and
// reads it back safely.
package archive

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"modpack/internal/core/errors"
	"modpack/internal/engine/module"
	"modpack/internal/shared/observability"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

const (
	CompressionDeflate = "deflate"
	CompressionStore   = "store"
)

// Options controls record encoding. The zero value deflates at the default
// level and stamps records with the time Write is called.
type Options struct {
	Compression string
	// Level is a flate level from -2 (huffman only) to 9. Zero selects the
	// default level; use CompressionStore for uncompressed records.
	Level    int
	DateTime *DateTime
}

// Summary describes a written archive.
type Summary struct {
	Entries []string
	Size    int64
	// Digest is the hex BLAKE3-256 of the archive bytes.
	Digest   string
	DateTime DateTime
}

func method(compression string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(compression)) {
	case "", CompressionDeflate:
		return zip.Deflate, nil
	case CompressionStore:
		return zip.Store, nil
	}
	return 0, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported compression %q", compression))
}

// WriteEntries appends one record per entry to zw, in order, all stamped
// with dt. Duplicate archive paths are rejected.
func WriteEntries(zw *zip.Writer, entries []module.Resolved, dt DateTime, method uint16) ([]string, error) {
	modified := dt.Time()
	seen := make(map[string]struct{}, len(entries))
	paths := make([]string, 0, len(entries))

	for _, e := range entries {
		if _, dup := seen[e.ArchivePath]; dup {
			return nil, errors.AddContext(errors.New(errors.CodeInternal, "duplicate archive entry"), errors.CtxPath, e.ArchivePath)
		}
		seen[e.ArchivePath] = struct{}{}

		hdr := &zip.FileHeader{
			Name:     e.ArchivePath,
			Method:   method,
			Modified: modified,
		}
		hdr.SetMode(0o600)

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", e.ArchivePath, err)
		}
		if _, err := w.Write(e.Source); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", e.ArchivePath, err)
		}
		paths = append(paths, e.ArchivePath)
	}
	return paths, nil
}

// Write produces a complete archive on out.
func Write(out io.Writer, entries []module.Resolved, opts Options) (*Summary, error) {
	m, err := method(opts.Compression)
	if err != nil {
		return nil, err
	}
	dt := Now()
	if opts.DateTime != nil {
		if err := opts.DateTime.Validate(); err != nil {
			return nil, err
		}
		dt = *opts.DateTime
	}

	hasher := blake3.New()
	counter := &countingWriter{}
	zw := zip.NewWriter(io.MultiWriter(out, hasher, counter))

	level := opts.Level
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("compression level %d out of range", level))
	}
	if level == 0 && m == zip.Deflate {
		level = flate.DefaultCompression
	}
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	paths, err := WriteEntries(zw, entries, dt, m)
	if err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	observability.ArchiveBytes.Observe(float64(counter.n))
	return &Summary{
		Entries:  paths,
		Size:     counter.n,
		Digest:   hex.EncodeToString(hasher.Sum(nil)),
		DateTime: dt,
	}, nil
}

// Digest returns the hex BLAKE3-256 of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
