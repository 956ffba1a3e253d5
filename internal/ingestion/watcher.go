// Package ingestion feeds files dropped into an inbox directory into the
// document processing pipeline.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

var defaultExts = map[string]struct{}{
	"pdf": {}, "docx": {}, "doc": {}, "txt": {}, "md": {}, "csv": {}, "json": {}, "xml": {}, "html": {},
}

// Ingester is the slice of the processing service the watcher needs.
type Ingester interface {
	Ingest(ctx context.Context, userID uuid.UUID, files []services.UploadedFile, mode string) (*services.IngestResult, error)
}

type WatchConfig struct {
	Dir         string
	UserID      uuid.UUID
	AllowedExts map[string]struct{}
	InitialScan bool
	// Debounce coalesces the write bursts of a single copy.
	Debounce time.Duration
}

func (c WatchConfig) Enabled() bool {
	return strings.TrimSpace(c.Dir) != "" && c.UserID != uuid.Nil
}

func WatchConfigFromEnv() (WatchConfig, error) {
	cfg := WatchConfig{
		Dir:         envutil.String("INBOX_DIR", ""),
		InitialScan: envutil.Bool("INBOX_INITIAL_SCAN", true),
		Debounce:    envutil.Seconds("INBOX_DEBOUNCE_SECONDS", 2*time.Second),
	}
	if raw := envutil.String("INBOX_USER_ID", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return cfg, fmt.Errorf("INBOX_USER_ID: %w", err)
		}
		cfg.UserID = id
	}
	return cfg, nil
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

type Watcher struct {
	log      *logger.Logger
	cfg      WatchConfig
	ingester Ingester
	seen     map[string]fileStamp
}

func NewWatcher(baseLog *logger.Logger, cfg WatchConfig, ingester Ingester) (*Watcher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("inbox watcher needs a directory and a user id")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = defaultExts
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox dir: %w", err)
	}
	cfg.Dir = abs
	return &Watcher{
		log:      baseLog.With("component", "InboxWatcher"),
		cfg:      cfg,
		ingester: ingester,
		seen:     map[string]fileStamp{},
	}, nil
}

// Run watches the inbox until ctx is done. Only regular files directly inside
// the directory are considered.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.log.Info("inbox watcher started", "dir", w.cfg.Dir, "user_id", w.cfg.UserID)

	pending := map[string]struct{}{}
	if w.cfg.InitialScan {
		entries, err := os.ReadDir(w.cfg.Dir)
		if err != nil {
			return fmt.Errorf("scan inbox: %w", err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && w.allowed(e.Name()) {
				pending[filepath.Join(w.cfg.Dir, e.Name())] = struct{}{}
			}
		}
	}

	// The timer only fires through its channel so pending is owned by this loop.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var fire <-chan time.Time
	arm := func() {
		if w.cfg.Debounce <= 0 {
			w.flush(ctx, pending)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.cfg.Debounce)
		fire = timer.C
	}
	if len(pending) > 0 {
		arm()
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("inbox watcher stopped")
			return nil
		case e, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !w.allowed(e.Name) {
				continue
			}
			pending[e.Name] = struct{}{}
			arm()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("inbox watcher error", "error", err)
		case <-fire:
			fire = nil
			w.flush(ctx, pending)
		}
	}
}

func (w *Watcher) allowed(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	_, ok := w.cfg.AllowedExts[ext]
	return ok
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	for p := range pending {
		delete(pending, p)
		if err := w.ingestFile(ctx, p); err != nil {
			w.log.Warn("inbox ingest failed", "path", p, "error", err)
		}
	}
}

// ingestFile queues one file as a single-document job. A file whose size and
// mtime are unchanged since its last ingest is skipped.
func (w *Watcher) ingestFile(ctx context.Context, p string) error {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}
	if prev, ok := w.seen[p]; ok && prev == stamp {
		return nil
	}

	name := filepath.Base(p)
	res, err := w.ingester.Ingest(ctx, w.cfg.UserID, []services.UploadedFile{{
		OriginalName: name,
		ContentType:  filestore.ContentTypeForKey(name),
		SizeBytes:    info.Size(),
		Open:         func() (io.ReadCloser, error) { return os.Open(p) },
	}}, "single")
	if err != nil {
		return err
	}
	w.seen[p] = stamp
	w.log.Info("inbox file queued", "file", name, "job_id", res.Job.ID)
	return nil
}
