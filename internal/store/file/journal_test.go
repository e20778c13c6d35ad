package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/together/internal/domain"
)

func TestJournalFileCRUD(t *testing.T) {
	ctx := context.Background()
	f := NewJournalFile(filepath.Join(t.TempDir(), "data", "journal.json"))

	entries, err := f.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	e := domain.Entry{ID: "1", Title: "t", Content: "c", Author: "a", Timestamp: 10}
	require.NoError(t, f.Insert(ctx, e))
	assert.Error(t, f.Insert(ctx, e), "duplicate id must be rejected")

	got, err := f.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, e, got)

	e.Title = "changed"
	require.NoError(t, f.Replace(ctx, e))
	got, err = f.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Title)

	require.NoError(t, f.Delete(ctx, "1"))
	_, err = f.Get(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.Delete(ctx, "1"), domain.ErrNotFound)
	assert.ErrorIs(t, f.Replace(ctx, e), domain.ErrNotFound)
}

func TestJournalFileFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.json")
	f := NewJournalFile(path)

	require.NoError(t, f.Insert(ctx, domain.Entry{
		ID:        "1700000000",
		Title:     "第一篇 <b>",
		Content:   "今天 & 明天",
		Author:    "小明",
		Date:      "2023年11月15日",
		Time:      "06:13:20",
		Timestamp: 1700000000,
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.True(t, strings.HasPrefix(text, "[\n  {\n    \"id\": \"1700000000\""), text)
	assert.Contains(t, text, `"title": "第一篇 <b>"`)
	assert.Contains(t, text, `"content": "今天 & 明天"`)
	assert.Contains(t, text, `"timestamp": 1700000000`)
	assert.NotContains(t, text, `\u`)
}

func TestJournalFileLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewJournalFile(filepath.Join(dir, "journal.json"))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.Insert(ctx, domain.Entry{ID: id}))
	}
	require.NoError(t, f.Delete(ctx, "b"))

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "journal.json", names[0].Name())

	entries, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)
}

func TestJournalFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	_, err := NewJournalFile(path).List(context.Background())
	var ioErr *domain.IOFailure
	assert.ErrorAs(t, err, &ioErr)
}

func TestJournalFileEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))

	entries, err := NewJournalFile(path).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
