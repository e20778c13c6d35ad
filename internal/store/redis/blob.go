package redis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/together/internal/domain"
)

const (
	fieldFilename    = "filename"
	fieldContentType = "content_type"
	fieldSize        = "size"
	fieldUploadedAt  = "uploaded_at"
	fieldData        = "data"
)

// Blobs stores images inside Redis hashes. Each image gets a generated id;
// filenames are metadata and are never renumbered.
type Blobs struct {
	*Store
}

// Put stores an image and returns its metadata
func (b *Blobs) Put(ctx context.Context, w domain.BlobWrite) (domain.ImageAsset, error) {
	data, err := io.ReadAll(w.Body)
	if err != nil {
		return domain.ImageAsset{}, domain.IOError("read upload", err)
	}

	id := uuid.NewString()
	now := b.now().UTC()

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ImageKey(id),
			fieldFilename, w.Filename,
			fieldContentType, w.ContentType,
			fieldSize, len(data),
			fieldUploadedAt, now.UnixNano(),
			fieldData, data,
		)
		pipe.SAdd(ctx, KeyAllImages, id)
		return nil
	})
	if err != nil {
		return domain.ImageAsset{}, domain.Unavailable("redis", fmt.Errorf("failed to save image: %w", err))
	}

	return domain.ImageAsset{
		ID:          domain.AssetID(id),
		Filename:    w.Filename,
		Size:        int64(len(data)),
		ContentType: w.ContentType,
		UpdatedAt:   now,
	}, nil
}

// Exists reports whether an image with this filename is stored
func (b *Blobs) Exists(ctx context.Context, filename string) (bool, error) {
	assets, err := b.List(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range assets {
		if a.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

// List retrieves metadata of all images without their data
func (b *Blobs) List(ctx context.Context) ([]domain.ImageAsset, error) {
	ids, err := b.client.SMembers(ctx, KeyAllImages).Result()
	if err != nil {
		return nil, domain.Unavailable("redis", fmt.Errorf("failed to get image IDs: %w", err))
	}

	assets := make([]domain.ImageAsset, 0, len(ids))
	if len(ids) == 0 {
		return assets, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, ImageKey(id), fieldFilename, fieldContentType, fieldSize, fieldUploadedAt)
		}
		return nil
	})
	if err != nil {
		return nil, domain.Unavailable("redis", fmt.Errorf("failed to get image metadata: %w", err))
	}

	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 4 || vals[0] == nil {
			// Set member without a hash; skip it
			continue
		}
		assets = append(assets, assetFromFields(ids[i], vals))
	}
	return assets, nil
}

func assetFromFields(id string, vals []interface{}) domain.ImageAsset {
	str := func(v interface{}) string {
		s, _ := v.(string)
		return s
	}
	size, _ := strconv.ParseInt(str(vals[2]), 10, 64)
	nanos, _ := strconv.ParseInt(str(vals[3]), 10, 64)

	return domain.ImageAsset{
		ID:          domain.AssetID(id),
		Filename:    str(vals[0]),
		ContentType: str(vals[1]),
		Size:        size,
		UpdatedAt:   time.Unix(0, nanos).UTC(),
	}
}

// Open retrieves an image with its data
func (b *Blobs) Open(ctx context.Context, id domain.AssetID) (domain.ImageBlob, error) {
	fields, err := b.client.HGetAll(ctx, ImageKey(string(id))).Result()
	if err != nil {
		return domain.ImageBlob{}, domain.Unavailable("redis", fmt.Errorf("failed to get image: %w", err))
	}
	if len(fields) == 0 {
		return domain.ImageBlob{}, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}

	asset := assetFromFields(string(id), []interface{}{
		fields[fieldFilename], fields[fieldContentType], fields[fieldSize], fields[fieldUploadedAt],
	})
	return domain.ImageBlob{
		ImageAsset: asset,
		Body:       io.NopCloser(bytes.NewReader([]byte(fields[fieldData]))),
	}, nil
}

// Delete removes an image
func (b *Blobs) Delete(ctx context.Context, id domain.AssetID) error {
	var deleted *redis.IntCmd
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, ImageKey(string(id)))
		pipe.SRem(ctx, KeyAllImages, string(id))
		return nil
	})
	if err != nil {
		return domain.Unavailable("redis", fmt.Errorf("failed to delete image: %w", err))
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
