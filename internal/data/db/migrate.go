package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/docsentinel-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds composite indexes that struct tags cannot express.
// The statements are portable between Postgres and SQLite.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		{"idx_processing_job_claim", `CREATE INDEX IF NOT EXISTS idx_processing_job_claim ON processing_job (status, priority DESC, created_at ASC)`},
		{"idx_document_user_created", `CREATE INDEX IF NOT EXISTS idx_document_user_created ON document (user_id, created_at DESC)`},
		{"idx_finding_document_created", `CREATE INDEX IF NOT EXISTS idx_finding_document_created ON finding (document_id, created_at ASC)`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
