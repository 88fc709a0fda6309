// Package upload stores prescription documents and hands back retrievable URLs.
package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pharmacy/internal/domain"
)

// MaxFileSize is the largest accepted document.
const MaxFileSize = 5 << 20

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// File is a document waiting to be stored.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader is the file upload collaborator.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Validate rejects files of the wrong type or size before any transfer starts.
func Validate(f File) error {
	ct := normalizeType(f.ContentType)
	if _, ok := allowedTypes[ct]; !ok {
		return &domain.UploadRejectedError{Reason: fmt.Sprintf("unsupported file type %q", f.ContentType)}
	}
	if f.Size <= 0 {
		return &domain.UploadRejectedError{Reason: "empty file"}
	}
	if f.Size > MaxFileSize {
		return &domain.UploadRejectedError{Reason: "file exceeds 5MB"}
	}
	return nil
}

func normalizeType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// objectKey builds a collision-free key that keeps the original base name readable.
func objectKey(prefix string, f File) string {
	base := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "prescription" + allowedTypes[normalizeType(f.ContentType)]
	}
	return path.Join(prefix, uuid.NewString()+"-"+base)
}

// MemoryUploader keeps documents in memory and serves them under baseURL.
type MemoryUploader struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(ctx context.Context, f File) (string, error) {
	if err := Validate(f); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(io.LimitReader(f.Body, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("MemoryUploader.Upload: %w", err)
	}
	if len(b) > MaxFileSize {
		return "", &domain.UploadRejectedError{Reason: "file exceeds 5MB"}
	}
	key := objectKey("prescriptions", f)
	u.mu.Lock()
	u.objects[key] = b
	u.mu.Unlock()
	return u.baseURL + "/" + key, nil
}

// Object returns a stored document by key.
func (u *MemoryUploader) Object(key string) ([]byte, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	b, ok := u.objects[key]
	return b, ok
}
