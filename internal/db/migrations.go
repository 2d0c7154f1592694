package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'complaint_status') THEN
			CREATE TYPE complaint_status AS ENUM ('pending', 'assigned', 'resolved', 'dismissed');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'complaint_action') THEN
			CREATE TYPE complaint_action AS ENUM ('CREATE', 'ASSIGN', 'NOTIFY', 'ARCHIVE', 'RESOLVE', 'DISMISS');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS complaint_action_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		complaint_id BIGINT NOT NULL,
		kind VARCHAR(16) NOT NULL DEFAULT 'standard',
		action complaint_action NOT NULL,
		actor_role VARCHAR(16),
		actor_id BIGINT,
		old_status complaint_status,
		new_status complaint_status,
		note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_complaint_action_log_complaint ON complaint_action_log (kind, complaint_id);`,
	`CREATE INDEX IF NOT EXISTS idx_complaint_action_log_created_at ON complaint_action_log (created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_complaint_action_log_actor ON complaint_action_log (actor_role, actor_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
