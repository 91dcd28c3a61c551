package database

import (
	"fmt"

	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs the main application's migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	logger.Info("Creating PostgreSQL extensions...")
	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist before auto-migrate references them
	logger.Info("Creating custom PostgreSQL types...")
	if err := createCustomTypes(db, logger); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	logger.Info("Running GORM auto-migrations...")
	err := db.AutoMigrate(
		&model.UserAccount{},
		&model.SubscriptionRecord{},
		&model.WebhookLog{},
		&model.ProviderCredential{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	logger.Info("Creating custom indexes...")
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Creating database functions...")
	if err := createDatabaseFunctions(db, logger); err != nil {
		logger.Error("Failed to create database functions", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// MigrateRelay runs the relay's migrations. The relay only owns its
// delivery table.
func MigrateRelay(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running relay migrations...")

	if err := db.AutoMigrate(&model.RelayDelivery{}); err != nil {
		logger.Error("Failed to run relay migrations", zap.Error(err))
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_relay_deliveries_pending ON relay_deliveries (created_at) WHERE status = 'queued'`).Error; err != nil {
		logger.Error("Failed to create relay indexes", zap.Error(err))
		return err
	}

	logger.Info("Relay migrations completed successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	// pg_trgm backs the diagnostics substring search
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pg_trgm"`).Error; err != nil {
		return err
	}
	return nil
}

// createCustomTypes creates the webhook_log_status enum, adding any label
// an older database is missing
func createCustomTypes(db *gorm.DB, logger *zap.Logger) error {
	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'webhook_log_status')`).Scan(&exists).Error; err != nil {
		return err
	}

	if !exists {
		return db.Exec(`CREATE TYPE webhook_log_status AS ENUM ('received', 'processing', 'success', 'error', 'skipped')`).Error
	}

	for _, status := range model.AllWebhookLogStatuses {
		var has bool
		if err := db.Raw(`SELECT EXISTS (
			SELECT 1 FROM pg_enum
			WHERE enumlabel = ?
			AND enumtypid = (SELECT oid FROM pg_type WHERE typname = 'webhook_log_status')
		)`, string(status)).Scan(&has).Error; err != nil {
			return err
		}
		if has {
			continue
		}
		// ALTER TYPE ... ADD VALUE cannot take a bind parameter
		stmt := fmt.Sprintf(`ALTER TYPE webhook_log_status ADD VALUE IF NOT EXISTS '%s'`, status)
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
		logger.Info("Added webhook_log_status label", zap.String("status", string(status)))
	}
	return nil
}

// createCustomIndexes creates indexes GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		// outbox sweep
		`CREATE INDEX IF NOT EXISTS idx_webhook_logs_pending ON webhook_logs (updated_at) WHERE status IN ('received', 'processing')`,
		// diagnostics ILIKE search
		`CREATE INDEX IF NOT EXISTS idx_webhook_logs_raw_payload_trgm ON webhook_logs USING gin (raw_payload gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_logs_email_trgm ON webhook_logs USING gin (extracted_email gin_trgm_ops)`,
		// diagnostics JSON path lookup on the ledger
		`CREATE INDEX IF NOT EXISTS idx_subscription_records_payload ON subscription_records USING gin (raw_webhook_payload jsonb_path_ops)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// createDatabaseFunctions installs triggers that keep the ledger
// append-only and the audit trail undeletable
func createDatabaseFunctions(db *gorm.DB, logger *zap.Logger) error {
	rejectSQL := `
CREATE OR REPLACE FUNCTION reject_row_change() RETURNS TRIGGER AS $$
BEGIN
    RAISE EXCEPTION '% on % is not allowed', TG_OP, TG_TABLE_NAME
        USING ERRCODE = 'integrity_constraint_violation';
END;
$$ LANGUAGE plpgsql;`

	if err := db.Exec(rejectSQL).Error; err != nil {
		logger.Error("Failed to create reject_row_change function", zap.Error(err))
		return err
	}

	triggers := []struct {
		table  string
		events string
	}{
		{table: "subscription_records", events: "UPDATE OR DELETE"},
		{table: "webhook_logs", events: "DELETE"},
	}
	for _, t := range triggers {
		dropSQL := fmt.Sprintf(`DROP TRIGGER IF EXISTS immutable_%s ON %s;`, t.table, t.table)
		if err := db.Exec(dropSQL).Error; err != nil {
			logger.Warn("Failed to drop existing trigger", zap.String("table", t.table), zap.Error(err))
		}

		triggerSQL := fmt.Sprintf(`
CREATE TRIGGER immutable_%s
    BEFORE %s ON %s
    FOR EACH ROW EXECUTE FUNCTION reject_row_change();`, t.table, t.events, t.table)
		if err := db.Exec(triggerSQL).Error; err != nil {
			logger.Error("Failed to create trigger", zap.String("table", t.table), zap.Error(err))
			return err
		}
		logger.Info("Created immutability trigger", zap.String("table", t.table))
	}

	return nil
}
