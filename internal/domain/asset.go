package domain

import (
	"io"
	"time"
)

// SentinelFilename is reserved for the site background. It never shows up
// in gallery listings and is never renumbered or deleted through the gallery.
const SentinelFilename = "background.jpg"

// AssetID identifies an image at the store boundary. Each backend decides
// what it encodes (a filename, an object key, a generated blob id); callers
// must treat it as opaque.
type AssetID string

func (id AssetID) String() string { return string(id) }

// ImageAsset describes a stored image.
type ImageAsset struct {
	ID          AssetID
	Filename    string
	Size        int64
	ContentType string
	UpdatedAt   time.Time

	// URL is filled in by the gallery store from the configured URL builder.
	URL string
}

// ImageBlob is an open image. The caller closes Body.
type ImageBlob struct {
	ImageAsset
	Body io.ReadCloser
}

// BlobWrite is a validated image handed to a storage backend.
type BlobWrite struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload is an incoming image. Body must be seekable so that it can be
// sniffed and measured before it is written.
type Upload struct {
	Filename string
	Body     io.ReadSeeker
}
