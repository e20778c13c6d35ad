// Package file keeps journal entries in a single JSON file.
//
// The file is the whole table: every mutation reads it, changes the slice
// and writes it back. Writes go through a temp file and a rename so a crash
// leaves either the old or the new table, never a truncated one. There is no
// locking; concurrent writers race on the read-modify-write cycle, which is
// acceptable for a single-user deployment.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MrSnakeDoc/together/internal/domain"
)

type JournalFile struct {
	path string
}

func NewJournalFile(path string) *JournalFile {
	return &JournalFile{path: path}
}

func (f *JournalFile) Name() string { return "file" }

func (f *JournalFile) Path() string { return f.path }

// Ping reports whether the directory holding the file is usable.
func (f *JournalFile) Ping(context.Context) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.IOError("prepare journal directory", err)
	}
	return nil
}

func (f *JournalFile) List(context.Context) ([]domain.Entry, error) {
	return f.read()
}

func (f *JournalFile) Get(_ context.Context, id string) (domain.Entry, error) {
	entries, err := f.read()
	if err != nil {
		return domain.Entry{}, err
	}
	if i := indexOf(entries, id); i >= 0 {
		return entries[i], nil
	}
	return domain.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
}

func (f *JournalFile) Insert(_ context.Context, e domain.Entry) error {
	entries, err := f.read()
	if err != nil {
		return err
	}
	if indexOf(entries, e.ID) >= 0 {
		return fmt.Errorf("entry %s already exists", e.ID)
	}
	return f.write(append(entries, e))
}

func (f *JournalFile) Replace(_ context.Context, e domain.Entry) error {
	entries, err := f.read()
	if err != nil {
		return err
	}
	i := indexOf(entries, e.ID)
	if i < 0 {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
	}
	entries[i] = e
	return f.write(entries)
}

func (f *JournalFile) Delete(_ context.Context, id string) error {
	entries, err := f.read()
	if err != nil {
		return err
	}
	i := indexOf(entries, id)
	if i < 0 {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return f.write(append(entries[:i], entries[i+1:]...))
}

func indexOf(entries []domain.Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

// read loads the table. A missing or empty file is an empty table.
func (f *JournalFile) read() ([]domain.Entry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Entry{}, nil
	}
	if err != nil {
		return nil, domain.IOError("read journal file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Entry{}, nil
	}

	var entries []domain.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, domain.IOError("decode journal file", err)
	}
	return entries, nil
}

// write replaces the table atomically.
func (f *JournalFile) write(entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return domain.IOError("encode journal file", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.IOError("prepare journal directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".journal-*.tmp")
	if err != nil {
		return domain.IOError("create temp journal file", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return domain.IOError("write temp journal file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return domain.IOError("sync temp journal file", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.IOError("close temp journal file", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return domain.IOError("replace journal file", err)
	}
	return nil
}
