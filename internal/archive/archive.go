// Package archive exports commit snapshots as zstd-compressed tar streams.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"vcs/internal/content"

	"github.com/klauspost/compress/zstd"
)

// Options controls archive encoding.
type Options struct {
	Level   int       // zstd encoder level, 1 (fastest) to 4 (best)
	ModTime time.Time // modification time stamped on every entry
}

// File is one entry read back from an archive.
type File struct {
	Path string
	Data []byte
}

// Write streams files as a tar archive compressed with zstd, ordered by path.
func Write(w io.Writer, files []content.TrackedFile, opts Options) error {
	if opts.Level < int(zstd.SpeedFastest) || opts.Level > int(zstd.SpeedBestCompression) {
		return fmt.Errorf("invalid archive level %d", opts.Level)
	}

	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevel(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}

	sorted := append([]content.TrackedFile(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	tw := tar.NewWriter(enc)
	for _, f := range sorted {
		if err := writeEntry(tw, f, opts.ModTime); err != nil {
			enc.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		enc.Close()
		return fmt.Errorf("finishing tar stream: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing zstd stream: %w", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, f content.TrackedFile, modTime time.Time) error {
	src, err := os.Open(f.Location)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", f.Path, err)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     f.Path,
		Mode:     0644,
		Size:     info.Size(),
		ModTime:  modTime,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", f.Path, err)
	}
	if _, err := io.Copy(tw, src); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	return nil
}

// Read decodes an archive produced by Write.
func Read(r io.Reader) ([]File, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var files []File
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
		}
		files = append(files, File{Path: hdr.Name, Data: data})
	}
	return files, nil
}
