package tub

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	logpkg "github.com/lmxia/pmlcar/pkg/log"
)

// ExportOptions selects the records written by Export.
type ExportOptions struct {
	// Start is the first index included.
	Start int
	// End is one past the last index included. Zero or less means the last
	// index on disk plus one.
	End int
	// IncludeMedia also archives the sidecar files the selected records reference.
	IncludeMedia bool
}

// Export writes a gzip-compressed tar of the record files in [Start, End) and
// meta.json to w. Archive paths are relative to the tub directory. It returns
// the number of record files written; gaps in the range are skipped.
func (t *Tub) Export(ctx context.Context, w io.Writer, opts ExportOptions) (int, error) {
	ixs, err := t.ScanIndices(true)
	if err != nil {
		return 0, err
	}
	end := opts.End
	if end <= 0 {
		end = 0
		if len(ixs) > 0 {
			end = ixs[len(ixs)-1] + 1
		}
	}

	names := make([]string, 0, len(ixs)+1)
	records := 0
	for _, ix := range ixs {
		if ix < opts.Start || ix >= end {
			continue
		}
		names = append(names, filepath.Base(t.RecordPath(ix)))
		records++
		if opts.IncludeMedia {
			media, err := t.mediaNames(ix)
			if err != nil {
				return 0, err
			}
			names = append(names, media...)
		}
	}
	names = append(names, metaFileName)

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := addFile(tw, t.path, name); err != nil {
			return 0, fmt.Errorf("export %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	t.logger.Info("tub exported", logpkg.Int("records", records),
		logpkg.Int("start", opts.Start), logpkg.Int("end", end), logpkg.Bool("media", opts.IncludeMedia))
	return records, nil
}

// ExportFile writes the archive to dest, creating or truncating it.
func (t *Tub) ExportFile(ctx context.Context, dest string, opts ExportOptions) (int, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := t.Export(ctx, f, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return 0, err
	}
	return n, nil
}

func (t *Tub) mediaNames(ix int) ([]string, error) {
	desc, err := t.Descriptor(ix)
	if err != nil {
		return nil, err
	}
	var out []string
	for key, raw := range desc {
		f, ok := t.schema.Lookup(key)
		if !ok || !f.Kind.IsMedia() {
			continue
		}
		if name, ok := raw.(string); ok && name != "" && !filepath.IsAbs(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func addFile(tw *tar.Writer, root, name string) error {
	full := filepath.Join(root, name)
	fi, err := os.Stat(full)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(name)
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	fp, err := os.Open(full)
	if err != nil {
		return err
	}
	defer fp.Close()
	_, err = io.Copy(tw, fp)
	return err
}

// Import extracts an archive produced by Export into dest. A missing dest
// becomes a new tub. An existing tub is extended only when its meta.json
// declares the same schema as the archive and none of the archived files are
// already present; otherwise nothing is written and ErrSchemaMismatch or
// fs.ErrExist is returned. It returns the number of record files imported.
func Import(ctx context.Context, r io.Reader, dest string) (int, error) {
	dest = filepath.Clean(dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	staging, err := os.MkdirTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".import-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(staging)

	names, err := extractArchive(ctx, r, staging)
	if err != nil {
		return 0, err
	}
	schema, err := readMeta(filepath.Join(staging, metaFileName))
	if err != nil {
		return 0, fmt.Errorf("import: archive meta: %w", err)
	}

	writeMeta := true
	if existing, err := readMeta(filepath.Join(dest, metaFileName)); err == nil {
		if !existing.Equal(schema) {
			return 0, fmt.Errorf("%w: archive declares %v as %v, %s declares %v as %v", ErrSchemaMismatch,
				schema.Inputs(), schema.Types(), dest, existing.Inputs(), existing.Types())
		}
		writeMeta = false
	} else if !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("import into %s: %w", dest, err)
	}

	for _, name := range names {
		if name == metaFileName {
			continue
		}
		if _, err := os.Lstat(filepath.Join(dest, name)); err == nil {
			return 0, fmt.Errorf("import: %s already in %s: %w", name, dest, fs.ErrExist)
		} else if !os.IsNotExist(err) {
			return 0, err
		}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, err
	}
	if writeMeta {
		if err := os.Rename(filepath.Join(staging, metaFileName), filepath.Join(dest, metaFileName)); err != nil {
			return 0, err
		}
	}
	records := 0
	for _, name := range names {
		if name == metaFileName {
			continue
		}
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dest, name)); err != nil {
			return records, err
		}
		if _, ok := parseRecordName(name); ok {
			records++
		}
	}
	return records, nil
}

// extractArchive unpacks the regular files of a gzip tar into dir and returns
// their names. Entries outside dir are rejected.
func extractArchive(ctx context.Context, r io.Reader, dir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.FromSlash(hdr.Name)
		if name != filepath.Base(name) || name == ".." || name == "." {
			return nil, fmt.Errorf("import: unexpected nested entry %q", hdr.Name)
		}
		if err := extractFile(filepath.Join(dir, name), tr); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
}

func extractFile(path string, r io.Reader) error {
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fp, r); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
