package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/docsentinel-backend/internal/modules/contradiction/extractor"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/platform/filestore"
	"github.com/yungbote/docsentinel-backend/internal/platform/gcp"
	"github.com/yungbote/docsentinel-backend/internal/platform/localmedia"
	"github.com/yungbote/docsentinel-backend/internal/platform/lock"
	"github.com/yungbote/docsentinel-backend/internal/platform/openai"
)

type Clients struct {
	Store      filestore.Store
	Locker     lock.Locker
	Backend    *openai.Client
	PDFParsers []extractor.PDFParser

	closers []func()
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// File store
	storeCfg, err := filestore.ConfigFromEnv()
	if err != nil {
		return c, classifyStorageError(storeCfg, err)
	}
	store, closeStore, err := resolveFileStore(ctx, log, storeCfg)
	if err != nil {
		return c, err
	}
	c.Store = store
	c.closers = append(c.closers, closeStore)

	// Job lock
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rl, err := lock.NewRedisLocker(log, cfg.RedisAddr, cfg.LockPrefix)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis locker: %w", err)
		}
		c.Locker = rl
		c.closers = append(c.closers, func() { _ = rl.Close() })
	} else {
		log.Warn("REDIS_ADDR not set; job locks are process-local")
		c.Locker = lock.NewLocalLocker()
	}

	// Reasoning backend
	backend, err := openai.NewClient(log, openai.ConfigFromEnv())
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	c.Backend = backend

	// PDF parsers, most structured first
	if docCfg := gcp.DocAIConfigFromEnv(); docCfg.Enabled() {
		docai, err := gcp.NewDocAIParser(ctx, log, docCfg)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init document ai: %w", err)
		}
		c.PDFParsers = append(c.PDFParsers, docai)
		c.closers = append(c.closers, func() { _ = docai.Close() })
	}
	c.PDFParsers = append(c.PDFParsers, extractor.LibraryPDFParser{})
	if poppler := localmedia.New(log); poppler.Available() {
		c.PDFParsers = append(c.PDFParsers, poppler)
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
