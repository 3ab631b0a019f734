package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fluxgen/internal/domain"
)

// TimestampLayout is the YYYYMMDD_HHMMSS suffix used for job filenames and
// collision avoidance.
const TimestampLayout = "20060102_150405"

// maxCollisionAttempts bounds the counter appended after the timestamp suffix.
const maxCollisionAttempts = 100

// FileStore persists generated images onto the local filesystem.
type FileStore struct {
	basePath string
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, now: time.Now}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Persist writes data under name and returns the path actually used. An
// existing file is never overwritten: the name gets a _YYYYMMDD_HHMMSS suffix
// before the extension, then a counter if that is taken too.
func (s *FileStore) Persist(ctx context.Context, name string, data []byte) (string, error) {
	if s == nil {
		return "", domain.StorageError(nil, "storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", domain.StorageError(err, "storage: persist cancelled")
	}
	cleanName, err := sanitizeKey(name)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanName))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", domain.StorageError(err, "storage: ensure directory")
	}

	ext := filepath.Ext(fullPath)
	stem := strings.TrimSuffix(fullPath, ext)
	candidate := func(i int) string {
		switch i {
		case 0:
			return fullPath
		case 1:
			return fmt.Sprintf("%s_%s%s", stem, s.now().Format(TimestampLayout), ext)
		default:
			return fmt.Sprintf("%s_%s_%d%s", stem, s.now().Format(TimestampLayout), i-1, ext)
		}
	}
	for i := 0; i <= maxCollisionAttempts; i++ {
		path := candidate(i)
		err := writeExclusive(path, data)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", domain.StorageError(err, "storage: write file")
		}
	}
	return "", domain.StorageError(fs.ErrExist, "storage: no free filename for %s", cleanName)
}

// Open returns the stored file at path for streaming.
func (s *FileStore) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.StorageError(err, "image file not found")
		}
		return nil, domain.StorageError(err, "storage: open file")
	}
	return f, nil
}

// JobFilename names the image of a job: {jobID}_{YYYYMMDD_HHMMSS}{ext}.
func JobFilename(jobID string, at time.Time, contentType string) string {
	return fmt.Sprintf("%s_%s%s", jobID, at.Format(TimestampLayout), ExtensionFor(contentType))
}

// ExtensionFor maps an image content type to a file extension, defaulting to .jpg.
func ExtensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.StorageError(nil, "storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", domain.StorageError(nil, "storage: invalid key %q", key)
	}
	return cleaned, nil
}
