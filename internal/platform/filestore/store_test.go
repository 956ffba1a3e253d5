package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/docsentinel-backend/internal/pkg/errors"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

func TestObjectKey(t *testing.T) {
	uid := uuid.New()
	key := ObjectKey(uid, "../../Q3 budget (final).pdf")
	prefix := "documents/" + uid.String() + "/"
	if !strings.HasPrefix(key, prefix) {
		t.Fatalf("key=%q", key)
	}
	if !strings.HasSuffix(key, "-Q3_budget_final_.pdf") {
		t.Fatalf("key=%q", key)
	}
	if strings.Contains(strings.TrimPrefix(key, prefix), "/") {
		t.Fatalf("key escapes user dir: %q", key)
	}
	if k := ObjectKey(uid, "   "); !strings.HasSuffix(k, "-upload") {
		t.Fatalf("empty name key=%q", k)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(logger.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	p, err := s.Save(ctx, "documents/u/a.txt", strings.NewReader("hello"), 5, "text/plain")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	lp, cleanup, err := s.LocalPath(ctx, p)
	if err != nil {
		t.Fatalf("LocalPath: %v", err)
	}
	cleanup()
	b, err := os.ReadFile(lp)
	if err != nil || string(b) != "hello" {
		t.Fatalf("read %q: %q %v", lp, b, err)
	}
	if err := s.Delete(ctx, p); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(lp); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	if err := s.Delete(ctx, p); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
}

func TestLocalStoreRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(logger.NewNop(), filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if err := s.Delete(context.Background(), filepath.Join(dir, "other.txt")); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Save(context.Background(), "../x.txt", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatalf("expected error for escaping key")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{"local", Config{Mode: ModeLocal}, ""},
		{"bad mode", Config{Mode: "s3"}, ConfigErrorInvalidMode},
		{"gcs no bucket", Config{Mode: ModeGCS}, ConfigErrorMissingBucket},
		{"gcs ok", Config{Mode: ModeGCS, Bucket: "b"}, ""},
		{"emulator no host", Config{Mode: ModeGCSEmulator, Bucket: "b"}, ConfigErrorMissingEmulatorHost},
		{"emulator bad host", Config{Mode: ModeGCSEmulator, Bucket: "b", EmulatorHost: "fake-gcs"}, ConfigErrorInvalidEmulatorHost},
		{"minio no endpoint", Config{Mode: ModeMinIO, Bucket: "b"}, ConfigErrorMissingMinIO},
		{"minio ok", Config{Mode: ModeMinIO, Bucket: "b", MinIOEndpoint: "localhost:9000"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Code != tc.code {
				t.Fatalf("err=%v want code %s", err, tc.code)
			}
		})
	}
}

func TestSplitURI(t *testing.T) {
	b, k, err := SplitURI("gs", "gs://bucket/documents/a.pdf")
	if err != nil || b != "bucket" || k != "documents/a.pdf" {
		t.Fatalf("got %q %q %v", b, k, err)
	}
	for _, bad := range []string{"gs://bucket", "s3://bucket/a", "gs:///a"} {
		if _, _, err := SplitURI("gs", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSpoolToTempKeepsExtension(t *testing.T) {
	p, cleanup, err := SpoolToTemp(strings.NewReader("x"), "documents/u/file.docx")
	if err != nil {
		t.Fatalf("SpoolToTemp: %v", err)
	}
	defer cleanup()
	if filepath.Ext(p) != ".docx" {
		t.Fatalf("path=%q", p)
	}
}
