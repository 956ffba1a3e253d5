package ingestion

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

type fakeIngester struct {
	mu    sync.Mutex
	names []string
	got   chan string
}

func newFakeIngester() *fakeIngester {
	return &fakeIngester{got: make(chan string, 16)}
}

func (f *fakeIngester) Ingest(ctx context.Context, userID uuid.UUID, files []services.UploadedFile, mode string) (*services.IngestResult, error) {
	for _, file := range files {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		_, _ = io.ReadAll(rc)
		rc.Close()
		f.mu.Lock()
		f.names = append(f.names, file.OriginalName)
		f.mu.Unlock()
		f.got <- file.OriginalName
	}
	return &services.IngestResult{Job: &types.ProcessingJob{ID: uuid.New(), JobType: types.AnalysisType(mode)}}, nil
}

func TestWatchConfigEnabled(t *testing.T) {
	if (WatchConfig{Dir: "/tmp/inbox"}).Enabled() {
		t.Fatalf("enabled without user")
	}
	if !(WatchConfig{Dir: "/tmp/inbox", UserID: uuid.New()}).Enabled() {
		t.Fatalf("should be enabled")
	}
	if _, err := NewWatcher(logger.NewNop(), WatchConfig{}, newFakeIngester()); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestAllowedFiltersExtensions(t *testing.T) {
	w, err := NewWatcher(logger.NewNop(), WatchConfig{Dir: t.TempDir(), UserID: uuid.New()}, newFakeIngester())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	cases := map[string]bool{
		"contract.PDF": true,
		"notes.txt":    true,
		"setup.exe":    false,
		".hidden.pdf":  false,
		"noext":        false,
	}
	for name, want := range cases {
		if got := w.allowed(name); got != want {
			t.Fatalf("allowed(%q)=%v want %v", name, got, want)
		}
	}
}

func TestIngestFileSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	ing := newFakeIngester()
	w, _ := NewWatcher(logger.NewNop(), WatchConfig{Dir: dir, UserID: uuid.New()}, ing)
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := w.ingestFile(context.Background(), p); err != nil {
			t.Fatalf("ingestFile: %v", err)
		}
	}
	if len(ing.names) != 1 {
		t.Fatalf("ingested %d times", len(ing.names))
	}
	if err := os.WriteFile(p, []byte("hello again"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.ingestFile(context.Background(), p); err != nil {
		t.Fatalf("ingestFile: %v", err)
	}
	if len(ing.names) != 2 {
		t.Fatalf("changed file not re-ingested")
	}
	if err := w.ingestFile(context.Background(), filepath.Join(dir, "gone.txt")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestRunPicksUpExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.pdf"), []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	ing := newFakeIngester()
	w, err := NewWatcher(logger.NewNop(), WatchConfig{Dir: dir, UserID: uuid.New(), InitialScan: true, Debounce: 20 * time.Millisecond}, ing)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	wait := func(want string) {
		t.Helper()
		select {
		case got := <-ing.got:
			if got != want {
				t.Fatalf("got %q want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	wait("existing.pdf")

	if err := os.WriteFile(filepath.Join(dir, "skip.exe"), []byte("MZ"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}
	wait("new.txt")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
