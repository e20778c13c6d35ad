// Package gallery validates and stores images in exactly one configured
// backend. Listings are normalised across backends: sequentially named
// images first by number, then every other name in lexical order.
package gallery

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/together/internal/backend"
	"github.com/MrSnakeDoc/together/internal/domain"
	"github.com/MrSnakeDoc/together/internal/logger"
)

// Backend is one physical home for images. Ids are backend specific.
type Backend interface {
	Name() string
	Ping(ctx context.Context) error
	// Exists reports whether an image is stored under filename.
	Exists(ctx context.Context, filename string) (bool, error)
	Put(ctx context.Context, w domain.BlobWrite) (domain.ImageAsset, error)
	Delete(ctx context.Context, id domain.AssetID) error
	List(ctx context.Context) ([]domain.ImageAsset, error)
	Open(ctx context.Context, id domain.AssetID) (domain.ImageBlob, error)
}

// Size limits for uploads.
const (
	DefaultMaxBytes     int64 = 16 << 20
	ConstrainedMaxBytes int64 = 4 << 20
)

var sequentialName = regexp.MustCompile(`(?i)^(\d+)\.(png|jpe?g|gif)$`)

// sequence returns the number of a sequentially named image.
func sequence(name string) (int, bool) {
	m := sequentialName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

type Options struct {
	Backend  Backend
	MaxBytes int64

	// URLFor builds the public URL of an image. Defaults to /images/{id}.
	URLFor func(id domain.AssetID) string
	// NewName returns a collision-free filename for ext.
	NewName      func(ext string) string
	ProbeTimeout time.Duration
	Logger       logger.Logger
}

type Store struct {
	backend      Backend
	maxBytes     int64
	urlFor       func(id domain.AssetID) string
	newName      func(ext string) string
	probeTimeout time.Duration
	log          logger.Logger
}

func NewStore(opts Options) *Store {
	if opts.Backend == nil {
		panic("gallery: backend is required")
	}
	s := &Store{
		backend:      opts.Backend,
		maxBytes:     opts.MaxBytes,
		urlFor:       opts.URLFor,
		newName:      opts.NewName,
		probeTimeout: opts.ProbeTimeout,
		log:          opts.Logger,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	if s.urlFor == nil {
		s.urlFor = func(id domain.AssetID) string { return "/images/" + url.PathEscape(string(id)) }
	}
	if s.newName == nil {
		s.newName = func(ext string) string { return strings.ReplaceAll(uuid.NewString(), "-", "") + ext }
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

func (s *Store) BackendName() string { return s.backend.Name() }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Status probes the configured backend.
func (s *Store) Status(ctx context.Context) backend.State {
	return backend.Probe(ctx, s.backend, s.probeTimeout)
}

func (s *Store) ensureUsable(ctx context.Context) error {
	state := s.Status(ctx)
	if !state.Usable() {
		return domain.Unavailable(s.backend.Name(), state.Err)
	}
	return nil
}

// Upload validates up and stores it. Nothing is written unless the
// extension, the sniffed content and the size are all acceptable. The
// stored name keeps the base of desiredName with the sniffed extension,
// or is generated when desiredName is empty, reserved or taken.
func (s *Store) Upload(ctx context.Context, up domain.Upload, desiredName string) (domain.ImageAsset, error) {
	if up.Body == nil || up.Filename == "" {
		return domain.ImageAsset{}, domain.Invalid("file", "no file selected")
	}
	if !AllowedFile(up.Filename) {
		return domain.ImageAsset{}, domain.Invalid("file", "file type not allowed")
	}
	size, err := CheckSize(up.Body, s.maxBytes)
	if err != nil {
		return domain.ImageAsset{}, err
	}
	ext, err := ValidateContent(up.Body)
	if err != nil {
		return domain.ImageAsset{}, err
	}

	if err := s.ensureUsable(ctx); err != nil {
		return domain.ImageAsset{}, err
	}

	name, err := s.chooseName(ctx, desiredName, ext)
	if err != nil {
		return domain.ImageAsset{}, err
	}

	asset, err := s.backend.Put(ctx, domain.BlobWrite{
		Filename:    name,
		ContentType: ContentType(ext),
		Size:        size,
		Body:        up.Body,
	})
	if err != nil {
		s.log.Error("image upload failed",
			logger.String("backend", s.backend.Name()),
			logger.String("filename", name),
			logger.Error(err))
		return domain.ImageAsset{}, fmt.Errorf("upload image: %w", err)
	}
	asset.URL = s.urlFor(asset.ID)

	s.log.Info("image uploaded",
		logger.String("backend", s.backend.Name()),
		logger.String("id", asset.ID.String()),
		logger.String("filename", asset.Filename),
		logger.Int64("size", asset.Size))
	return asset, nil
}

func (s *Store) chooseName(ctx context.Context, desired, ext string) (string, error) {
	desired = filepath.Base(strings.TrimSpace(desired))
	if desired == "" || desired == "." || desired == string(filepath.Separator) {
		return s.newName(ext), nil
	}

	name := strings.TrimSuffix(desired, filepath.Ext(desired)) + ext
	if name == ext || strings.EqualFold(name, domain.SentinelFilename) {
		return s.newName(ext), nil
	}

	taken, err := s.backend.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("check image name: %w", err)
	}
	if taken {
		s.log.Debug("image name taken, generating one", logger.String("filename", name))
		return s.newName(ext), nil
	}
	return name, nil
}

// NextName is the next sequential name for ext, derived from the listing
// length.
func (s *Store) NextName(ctx context.Context, ext string) (string, error) {
	assets, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d%s", len(assets)+1, ext), nil
}

// List returns the visible images in the normalised order with their URLs.
func (s *Store) List(ctx context.Context) ([]domain.ImageAsset, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	out := make([]domain.ImageAsset, 0, len(all))
	for _, a := range all {
		if a.Filename == domain.SentinelFilename || !AllowedFile(a.Filename) {
			continue
		}
		a.URL = s.urlFor(a.ID)
		out = append(out, a)
	}
	sortAssets(out)
	return out, nil
}

func sortAssets(assets []domain.ImageAsset) {
	sort.SliceStable(assets, func(i, j int) bool {
		a, b := assets[i], assets[j]
		na, seqA := sequence(a.Filename)
		nb, seqB := sequence(b.Filename)
		switch {
		case seqA && seqB && na != nb:
			return na < nb
		case seqA != seqB:
			return seqA
		case a.Filename != b.Filename:
			return a.Filename < b.Filename
		default:
			return a.ID < b.ID
		}
	})
}

// Delete removes an image. The background sentinel cannot be deleted here.
func (s *Store) Delete(ctx context.Context, id domain.AssetID) error {
	if id == "" {
		return domain.Invalid("image", "no image specified")
	}
	if string(id) == domain.SentinelFilename {
		return domain.Invalid("image", "this image cannot be deleted")
	}
	if err := s.ensureUsable(ctx); err != nil {
		return err
	}
	// Blob ids are generated, so the sentinel is recognised by filename.
	sentinel, err := s.isSentinel(ctx, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if sentinel {
		return domain.Invalid("image", "this image cannot be deleted")
	}

	if err := s.backend.Delete(ctx, id); err != nil {
		if !domain.IsNotFound(err) {
			s.log.Error("image delete failed",
				logger.String("backend", s.backend.Name()),
				logger.String("id", id.String()),
				logger.Error(err))
		}
		return fmt.Errorf("delete image: %w", err)
	}

	s.log.Info("image deleted",
		logger.String("backend", s.backend.Name()),
		logger.String("id", id.String()))
	return nil
}

func (s *Store) isSentinel(ctx context.Context, id domain.AssetID) (bool, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range all {
		if a.ID == id {
			return a.Filename == domain.SentinelFilename, nil
		}
	}
	return false, nil
}

// Fetch opens an image for serving. The caller closes the body.
func (s *Store) Fetch(ctx context.Context, id domain.AssetID) (domain.ImageBlob, error) {
	if id == "" {
		return domain.ImageBlob{}, fmt.Errorf("image: %w", domain.ErrNotFound)
	}
	blob, err := s.backend.Open(ctx, id)
	if err != nil {
		return domain.ImageBlob{}, fmt.Errorf("fetch image: %w", err)
	}
	blob.URL = s.urlFor(blob.ID)
	return blob, nil
}
