package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// memBackend is an in-memory Backend that assigns generated ids, like the
// blob store does.
type memBackend struct {
	pingErr error
	seq     int
	assets  map[domain.AssetID]domain.ImageAsset
	data    map[domain.AssetID][]byte
	puts    int
}

func newMemBackend() *memBackend {
	return &memBackend{
		assets: map[domain.AssetID]domain.ImageAsset{},
		data:   map[domain.AssetID][]byte{},
	}
}

func (m *memBackend) Name() string                 { return "mem" }
func (m *memBackend) Ping(_ context.Context) error { return m.pingErr }

func (m *memBackend) Exists(_ context.Context, filename string) (bool, error) {
	for _, a := range m.assets {
		if a.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBackend) Put(_ context.Context, w domain.BlobWrite) (domain.ImageAsset, error) {
	m.puts++
	data, err := io.ReadAll(w.Body)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	m.seq++
	id := domain.AssetID(fmt.Sprintf("blob-%d", m.seq))
	a := domain.ImageAsset{ID: id, Filename: w.Filename, Size: int64(len(data)), ContentType: w.ContentType}
	m.assets[id] = a
	m.data[id] = data
	return a, nil
}

func (m *memBackend) Delete(_ context.Context, id domain.AssetID) error {
	if _, ok := m.assets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.assets, id)
	delete(m.data, id)
	return nil
}

func (m *memBackend) List(_ context.Context) ([]domain.ImageAsset, error) {
	out := make([]domain.ImageAsset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out, nil
}

func (m *memBackend) Open(_ context.Context, id domain.AssetID) (domain.ImageBlob, error) {
	a, ok := m.assets[id]
	if !ok {
		return domain.ImageBlob{}, domain.ErrNotFound
	}
	return domain.ImageBlob{ImageAsset: a, Body: io.NopCloser(bytes.NewReader(m.data[id]))}, nil
}

func upload(name string, data []byte) domain.Upload {
	return domain.Upload{Filename: name, Body: bytes.NewReader(data)}
}

func TestStore_UploadRejectsBeforeWrite(t *testing.T) {
	mem := newMemBackend()
	s := NewStore(Options{Backend: mem, MaxBytes: 1024})
	ctx := context.Background()

	tests := []struct {
		name string
		up   domain.Upload
	}{
		{"disallowed extension", upload("notes.txt", imageBytes(pngMagic, 100))},
		{"not an image", upload("fake.png", []byte("definitely text"))},
		{"too large", upload("big.png", imageBytes(pngMagic, 2048))},
		{"no file", domain.Upload{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Upload(ctx, tt.up, "01.jpg")
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
		})
	}
	assert.Zero(t, mem.puts)
}

func TestStore_SniffingGovernsExtension(t *testing.T) {
	s := NewStore(Options{Backend: newMemBackend()})

	asset, err := s.Upload(context.Background(), upload("holiday.jpg", imageBytes(pngMagic, 100)), "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "01.png", asset.Filename)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, "/images/"+asset.ID.String(), asset.URL)
}

func TestStore_UploadNaming(t *testing.T) {
	mem := newMemBackend()
	s := NewStore(Options{Backend: mem, NewName: func(ext string) string { return "generated" + ext }})
	ctx := context.Background()

	a, err := s.Upload(ctx, upload("a.jpg", imageBytes(jpegMagic, 10)), "")
	require.NoError(t, err)
	assert.Equal(t, "generated.jpg", a.Filename)

	a, err = s.Upload(ctx, upload("a.jpg", imageBytes(jpegMagic, 10)), "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "01.jpg", a.Filename)

	a, err = s.Upload(ctx, upload("a.jpg", imageBytes(jpegMagic, 10)), "01.jpg")
	require.NoError(t, err)
	assert.Equal(t, "generated.jpg", a.Filename, "taken name falls back to a generated one")

	a, err = s.Upload(ctx, upload("a.jpg", imageBytes(jpegMagic, 10)), domain.SentinelFilename)
	require.NoError(t, err)
	assert.Equal(t, "generated.jpg", a.Filename, "sentinel is reserved")
}

func TestStore_DefaultNewNameIsHex(t *testing.T) {
	s := NewStore(Options{Backend: newMemBackend()})
	a, err := s.Upload(context.Background(), upload("a.gif", imageBytes([]byte("GIF89a"), 10)), "")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{32}\.gif$`, a.Filename)
}

func TestStore_UnavailableBackend(t *testing.T) {
	mem := newMemBackend()
	mem.pingErr = errors.New("connection refused")
	s := NewStore(Options{Backend: mem})
	ctx := context.Background()

	_, err := s.Upload(ctx, upload("a.png", imageBytes(pngMagic, 10)), "01.png")
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Zero(t, mem.puts)

	err = s.Delete(ctx, "blob-1")
	assert.True(t, domain.IsUnavailable(err))
}

func TestStore_ListOrderAndFiltering(t *testing.T) {
	mem := newMemBackend()
	for _, name := range []string{"zeta.png", "10.png", domain.SentinelFilename, "02.jpg", "alpha.gif", "readme.txt", "01.png"} {
		_, err := mem.Put(context.Background(), domain.BlobWrite{Filename: name, Body: bytes.NewReader(nil)})
		require.NoError(t, err)
	}
	s := NewStore(Options{Backend: mem})

	list, err := s.List(context.Background())
	require.NoError(t, err)

	var names []string
	for _, a := range list {
		names = append(names, a.Filename)
		assert.NotEmpty(t, a.URL)
	}
	assert.Equal(t, []string{"01.png", "02.jpg", "10.png", "alpha.gif", "zeta.png"}, names)

	next, err := s.NextName(context.Background(), ".jpg")
	require.NoError(t, err)
	assert.Equal(t, "06.jpg", next)
}

func TestStore_DeleteAndFetch(t *testing.T) {
	s := NewStore(Options{Backend: newMemBackend()})
	ctx := context.Background()

	a, err := s.Upload(ctx, upload("a.png", imageBytes(pngMagic, 10)), "01.png")
	require.NoError(t, err)

	blob, err := s.Fetch(ctx, a.ID)
	require.NoError(t, err)
	_ = blob.Body.Close()
	assert.Equal(t, "01.png", blob.Filename)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.True(t, domain.IsNotFound(s.Delete(ctx, a.ID)))

	_, err = s.Fetch(ctx, a.ID)
	assert.True(t, domain.IsNotFound(err))

	assert.True(t, domain.IsValidation(s.Delete(ctx, domain.SentinelFilename)))
	assert.True(t, domain.IsValidation(s.Delete(ctx, "")))
}

func TestStore_DeleteKeepsSentinelWithGeneratedID(t *testing.T) {
	mem := newMemBackend()
	bg, err := mem.Put(context.Background(), domain.BlobWrite{
		Filename:    domain.SentinelFilename,
		ContentType: "image/jpeg",
		Body:        bytes.NewReader(imageBytes(jpegMagic, 10)),
	})
	require.NoError(t, err)
	require.NotEqual(t, domain.AssetID(domain.SentinelFilename), bg.ID)

	s := NewStore(Options{Backend: mem})
	err = s.Delete(context.Background(), bg.ID)
	assert.True(t, domain.IsValidation(err), "got %v", err)
	assert.Contains(t, mem.assets, bg.ID)
}

// Three sequential uploads, then deleting the second, leaves positions 1
// and 2 on the local backend.
func TestStore_LocalUploadDeleteRenumbers(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(Options{Backend: NewLocal(dir)})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		name, err := s.NextName(ctx, ".jpg")
		require.NoError(t, err)
		_, err = s.Upload(ctx, upload("photo.jpg", imageBytes(jpegMagic, 50+i)), name)
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "02.jpg", list[1].Filename)

	require.NoError(t, s.Delete(ctx, list[1].ID))

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01.jpg", list[0].Filename)
	assert.Equal(t, "02.jpg", list[1].Filename)
	assert.Equal(t, int64(52), list[1].Size, "third upload took position 2")

	_, err = os.Stat(filepath.Join(dir, "03.jpg"))
	assert.True(t, os.IsNotExist(err))
}
