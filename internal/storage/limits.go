package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	MaxFileSize  int64 = 5 << 20
	MaxTotalSize int64 = 25 << 20
	MaxFiles           = 10
)

var (
	ErrFileTooLarge    = errors.New("max 5MB per file")
	ErrTotalTooLarge   = errors.New("max 25MB total")
	ErrTooManyFiles    = errors.New("max 10 files per submission")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
)

var allowedDocumentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Upload is a file received from a submitter, not yet stored anywhere.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ValidateUploads checks count, per-file size, total size and type before any
// byte is written. Audio types are accepted only when allowAudio is set.
func ValidateUploads(files []Upload, allowAudio bool) error {
	if len(files) > MaxFiles {
		return ErrTooManyFiles
	}

	var total int64
	for _, f := range files {
		if f.Size <= 0 {
			return fmt.Errorf("%w: %s", ErrEmptyFile, f.Name)
		}
		if f.Size > MaxFileSize {
			return fmt.Errorf("%w: %s", ErrFileTooLarge, f.Name)
		}
		if !IsAllowedContentType(f.ContentType, allowAudio) {
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, f.Name, f.ContentType)
		}
		total += f.Size
	}
	if total > MaxTotalSize {
		return ErrTotalTooLarge
	}
	return nil
}

func IsAllowedContentType(contentType string, allowAudio bool) bool {
	ct := normalizeContentType(contentType)
	if allowedDocumentTypes[ct] {
		return true
	}
	return allowAudio && strings.HasPrefix(ct, "audio/")
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
