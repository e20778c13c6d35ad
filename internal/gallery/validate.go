package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// SniffLen is how many leading bytes ValidateContent inspects.
const SniffLen = 512

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

var signatures = []struct {
	magic []byte
	ext   string
}{
	{[]byte{0xFF, 0xD8, 0xFF}, ".jpg"},
	{[]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, ".png"},
	{[]byte("GIF87a"), ".gif"},
	{[]byte("GIF89a"), ".gif"},
}

// AllowedFile reports whether name carries an allowed image extension.
// The check ignores case and says nothing about the content.
func AllowedFile(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ValidateContent sniffs the image format from the leading bytes of r and
// returns the canonical extension. The read position is restored.
func ValidateContent(r io.ReadSeeker) (string, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", domain.IOError("seek upload", err)
	}

	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", domain.IOError("read upload", err)
	}
	head = head[:n]

	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return "", domain.IOError("seek upload", err)
	}

	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.ext, nil
		}
	}
	return "", domain.Invalid("file", "invalid image file format")
}

// CheckSize measures the bytes remaining in s without consuming them.
// Anything above limit is a validation error; a limit <= 0 disables the
// check.
func CheckSize(s io.Seeker, limit int64) (int64, error) {
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, domain.IOError("seek upload", err)
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, domain.IOError("seek upload", err)
	}
	if _, err := s.Seek(pos, io.SeekStart); err != nil {
		return 0, domain.IOError("seek upload", err)
	}

	size := end - pos
	if limit > 0 && size > limit {
		return size, domain.Invalid("file", fmt.Sprintf("file size %s exceeds the %s limit",
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit))))
	}
	return size, nil
}

// ContentType maps a canonical extension to its MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
