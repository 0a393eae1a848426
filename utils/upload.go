package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// DefaultMaxUploadBytes is the 5 MiB ceiling for a post image.
	DefaultMaxUploadBytes int64 = 5 * 1024 * 1024
	// UploadURLPrefix is where the upload directory is mounted.
	UploadURLPrefix = "/uploads"
)

// UploadRejectedError reports a file refused before anything was written.
type UploadRejectedError struct {
	Reason   string
	TooLarge bool
}

func (e *UploadRejectedError) Error() string {
	return "upload rejected: " + e.Reason
}

// IsUploadRejected reports whether err carries an UploadRejectedError.
func IsUploadRejected(err error) bool {
	var re *UploadRejectedError
	return errors.As(err, &re)
}

// ImageUploader validates image uploads and stores them under random names.
type ImageUploader struct {
	Dir      string
	MaxBytes int64
}

// NewImageUploader creates an uploader writing into dir.
func NewImageUploader(dir string, maxBytes int64) *ImageUploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImageUploader{Dir: dir, MaxBytes: maxBytes}
}

// Save persists fh and returns its public path, /uploads/<uuid><ext>.
// A nil header is not an error: the post simply has no image.
func (u *ImageUploader) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", nil
	}
	if fh.Size > u.MaxBytes {
		return "", u.tooLarge()
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := checkImageType(fh.Header.Get("Content-Type"), src); err != nil {
		return "", err
	}

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	name := uuid.NewString() + filepath.Ext(filepath.Base(fh.Filename))
	dstPath := filepath.Join(u.Dir, name)
	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	// The declared size can lie; bound the copy as well.
	written, err := io.Copy(out, &io.LimitedReader{R: src, N: u.MaxBytes + 1})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if written > u.MaxBytes {
		_ = os.Remove(dstPath)
		return "", u.tooLarge()
	}

	return path.Join(UploadURLPrefix, name), nil
}

func (u *ImageUploader) tooLarge() error {
	return &UploadRejectedError{
		Reason:   fmt.Sprintf("file exceeds %d bytes", u.MaxBytes),
		TooLarge: true,
	}
}

// checkImageType trusts a declared image/* type. Clients that send no useful type
// get their content sniffed instead. src is rewound afterwards.
func checkImageType(declared string, src multipart.File) error {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if strings.HasPrefix(declared, "image/") {
		return nil
	}
	if declared != "" && declared != "application/octet-stream" {
		return &UploadRejectedError{Reason: "only image files are allowed"}
	}

	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return fmt.Errorf("sniff upload: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return &UploadRejectedError{Reason: "only image files are allowed"}
	}
	return nil
}
