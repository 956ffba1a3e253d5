package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Store persists uploaded document bytes. Save returns the storage path that is
// recorded on the document; the other methods accept that path back.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// LocalPath yields a filesystem path readable by the extractor. cleanup must
	// always be called; it is a no-op for stores that are already local.
	LocalPath(ctx context.Context, storagePath string) (p string, cleanup func(), err error)
	Delete(ctx context.Context, storagePath string) error
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds "documents/<user>/<uuid>-<sanitized filename>".
func ObjectKey(userID uuid.UUID, originalFilename string) string {
	base := filepath.Base(strings.TrimSpace(originalFilename))
	base = unsafeKeyChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	if len(base) > 120 {
		ext := path.Ext(base)
		base = base[:120-len(ext)] + ext
	}
	return path.Join("documents", userID.String(), uuid.NewString()+"-"+base)
}

func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".html", ".htm":
		return "text/html"
	case ".md", ".markdown":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

// SpoolToTemp copies r into a temp file that keeps the key's extension so that
// extension-based classification still works on the local copy.
func SpoolToTemp(r io.Reader, key string) (string, func(), error) {
	f, err := os.CreateTemp("", "docsentinel-*"+path.Ext(key))
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("spool object: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// SplitURI splits "<scheme>://bucket/key".
func SplitURI(scheme, uri string) (bucket, key string, err error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("invalid %s uri %q", scheme, uri)
	}
	rest := strings.TrimPrefix(uri, prefix)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid %s uri %q", scheme, uri)
	}
	return bucket, key, nil
}
