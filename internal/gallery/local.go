package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// Prefixes of the transient entries Local leaves in its directory while
// it works. Anything carrying them is hidden from listings.
const (
	UploadTempPrefix = ".upload-"
	RenumberPrefix   = ".renumber-"
)

// Local keeps images as plain files in one directory. The filename is the
// id. Every delete is followed by a renumbering pass that closes gaps in
// the sequential names.
//
// Nothing here is locked: two concurrent deletes may interleave their
// renumbering passes.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

func (l *Local) Name() string { return "local" }

// Dir is the image directory.
func (l *Local) Dir() string { return l.dir }

func (l *Local) Ping(_ context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return domain.IOError("create image directory", err)
	}
	return nil
}

// path resolves a plain base name inside the directory.
func (l *Local) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return "", domain.Invalid("image", "invalid image name")
	}
	return filepath.Join(l.dir, name), nil
}

func (l *Local) Exists(_ context.Context, filename string) (bool, error) {
	p, err := l.path(filename)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, domain.IOError("stat image", err)
	}
	return true, nil
}

// Put writes to a temp file in the same directory and renames it into
// place, so a failed upload never shows up under its final name.
func (l *Local) Put(_ context.Context, w domain.BlobWrite) (domain.ImageAsset, error) {
	final, err := l.path(w.Filename)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return domain.ImageAsset{}, domain.IOError("create image directory", err)
	}

	tmp, err := os.CreateTemp(l.dir, UploadTempPrefix+"*")
	if err != nil {
		return domain.ImageAsset{}, domain.IOError("create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, w.Body); err != nil {
		return domain.ImageAsset{}, domain.IOError("write image", err)
	}
	if err := tmp.Sync(); err != nil {
		return domain.ImageAsset{}, domain.IOError("sync image", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.ImageAsset{}, domain.IOError("close image", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return domain.ImageAsset{}, domain.IOError("chmod image", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return domain.ImageAsset{}, domain.IOError("commit image", err)
	}
	committed = true

	info, err := os.Stat(final)
	if err != nil {
		return domain.ImageAsset{}, domain.IOError("stat image", err)
	}
	return l.asset(info), nil
}

func (l *Local) asset(info fs.FileInfo) domain.ImageAsset {
	return domain.ImageAsset{
		ID:          domain.AssetID(info.Name()),
		Filename:    info.Name(),
		Size:        info.Size(),
		ContentType: ContentType(filepath.Ext(info.Name())),
		UpdatedAt:   info.ModTime().UTC(),
	}
}

func (l *Local) List(_ context.Context) ([]domain.ImageAsset, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ImageAsset{}, nil
		}
		return nil, domain.IOError("read image directory", err)
	}

	assets := make([]domain.ImageAsset, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		assets = append(assets, l.asset(info))
	}
	return assets, nil
}

func (l *Local) Open(_ context.Context, id domain.AssetID) (domain.ImageBlob, error) {
	p, err := l.path(string(id))
	if err != nil {
		return domain.ImageBlob{}, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ImageBlob{}, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
		}
		return domain.ImageBlob{}, domain.IOError("open image", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return domain.ImageBlob{}, domain.IOError("stat image", err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return domain.ImageBlob{}, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}
	return domain.ImageBlob{ImageAsset: l.asset(info), Body: f}, nil
}

// Delete removes the file and renumbers the remaining sequential names.
func (l *Local) Delete(_ context.Context, id domain.AssetID) error {
	p, err := l.path(string(id))
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
		}
		return domain.IOError("delete image", err)
	}
	return l.Renumber()
}

// Renumber renames every sequentially named image to 01, 02, ... in its
// current numeric order. Files pass through a scratch directory so that no
// rename ever lands on a name still in use. Other names and the background
// sentinel are left alone.
func (l *Local) Renumber() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return domain.IOError("read image directory", err)
	}

	type seqFile struct {
		n    int
		name string
	}
	var files []seqFile
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == domain.SentinelFilename {
			continue
		}
		if n, ok := sequence(e.Name()); ok {
			files = append(files, seqFile{n: n, name: e.Name()})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].n != files[j].n {
			return files[i].n < files[j].n
		}
		return files[i].name < files[j].name
	})

	targets := make([]string, len(files))
	inPlace := true
	for i, f := range files {
		targets[i] = fmt.Sprintf("%02d%s", i+1, strings.ToLower(filepath.Ext(f.name)))
		if targets[i] != f.name {
			inPlace = false
		}
	}
	if inPlace {
		return nil
	}

	scratch, err := os.MkdirTemp(l.dir, RenumberPrefix+"*")
	if err != nil {
		return domain.IOError("create renumber directory", err)
	}

	for _, f := range files {
		if err := os.Rename(filepath.Join(l.dir, f.name), filepath.Join(scratch, f.name)); err != nil {
			return domain.IOError("renumber images", err)
		}
	}
	for i, f := range files {
		if err := os.Rename(filepath.Join(scratch, f.name), filepath.Join(l.dir, targets[i])); err != nil {
			return domain.IOError("renumber images", err)
		}
	}

	// Only an empty scratch directory is removed; a failed pass leaves the
	// files where they can be recovered.
	if err := os.Remove(scratch); err != nil {
		return domain.IOError("remove renumber directory", err)
	}
	return nil
}
