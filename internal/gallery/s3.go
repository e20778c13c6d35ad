package gallery

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// DefaultS3Prefix is the key prefix images live under.
const DefaultS3Prefix = "images/"

// s3API is the subset of *s3.Client used here.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // empty for AWS itself
	AccessKey string // empty to use the default credential chain
	SecretKey string
	Prefix    string
	PathStyle bool
}

// S3 stores images in an S3-compatible bucket. The id is the filename; the
// object key is prefix + filename. Objects are never renumbered.
type S3 struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 builds the client from cfg. No request is made.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client s3API, bucket, prefix string) *S3 {
	if prefix == "" {
		prefix = DefaultS3Prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (b *S3) Name() string { return "s3" }

func (b *S3) key(name string) (string, error) {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return "", domain.Invalid("image", "invalid image name")
	}
	return b.prefix + name, nil
}

func (b *S3) Ping(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return domain.Unavailable("s3", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

func (b *S3) Exists(ctx context.Context, filename string) (bool, error) {
	key, err := b.key(filename)
	if err != nil {
		return false, err
	}
	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, domain.Unavailable("s3", err)
	}
	return true, nil
}

func (b *S3) Put(ctx context.Context, w domain.BlobWrite) (domain.ImageAsset, error) {
	key, err := b.key(w.Filename)
	if err != nil {
		return domain.ImageAsset{}, err
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        w.Body,
		ContentType: aws.String(w.ContentType),
	}
	if w.Size > 0 {
		in.ContentLength = aws.Int64(w.Size)
	}
	if _, err := b.client.PutObject(ctx, in); err != nil {
		return domain.ImageAsset{}, domain.Unavailable("s3", fmt.Errorf("put %s: %w", key, err))
	}

	return domain.ImageAsset{
		ID:          domain.AssetID(w.Filename),
		Filename:    w.Filename,
		Size:        w.Size,
		ContentType: w.ContentType,
	}, nil
}

// Delete checks for the object first since S3 deletes are idempotent.
func (b *S3) Delete(ctx context.Context, id domain.AssetID) error {
	ok, err := b.Exists(ctx, string(id))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}

	key, _ := b.key(string(id))
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)}); err != nil {
		return domain.Unavailable("s3", fmt.Errorf("delete %s: %w", key, err))
	}
	return nil
}

func (b *S3) List(ctx context.Context) ([]domain.ImageAsset, error) {
	assets := []domain.ImageAsset{}
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, domain.Unavailable("s3", fmt.Errorf("list objects: %w", err))
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			assets = append(assets, domain.ImageAsset{
				ID:          domain.AssetID(name),
				Filename:    name,
				Size:        aws.ToInt64(obj.Size),
				ContentType: ContentType(path.Ext(name)),
				UpdatedAt:   aws.ToTime(obj.LastModified),
			})
		}
	}
	return assets, nil
}

func (b *S3) Open(ctx context.Context, id domain.AssetID) (domain.ImageBlob, error) {
	key, err := b.key(string(id))
	if err != nil {
		return domain.ImageBlob{}, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return domain.ImageBlob{}, fmt.Errorf("image %s: %w", id, domain.ErrNotFound)
		}
		return domain.ImageBlob{}, domain.Unavailable("s3", fmt.Errorf("get %s: %w", key, err))
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = ContentType(path.Ext(string(id)))
	}
	return domain.ImageBlob{
		ImageAsset: domain.ImageAsset{
			ID:          id,
			Filename:    string(id),
			Size:        aws.ToInt64(out.ContentLength),
			ContentType: contentType,
			UpdatedAt:   aws.ToTime(out.LastModified),
		},
		Body: out.Body,
	}, nil
}
