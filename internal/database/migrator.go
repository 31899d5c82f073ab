package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/jackc/pgx/v5"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/rs/zerolog"
)

// migrations holds every file under migrations/ (001_create_users.sql,
// 002_create_campaigns.sql, ...). They are compiled into the binary, so both
// `campaign serve` and `campaign migrate` work from a bare container image.
//
//go:embed migrations/*.sql
var migrations embed.FS

// schemaVersionTable is where tern records the last applied migration.
const schemaVersionTable = "schema_version"

// Migrate brings the schema up to the latest embedded migration.
//
// Steps:
//   - open one plain pgx connection from the same DSN the pool uses
//   - build a tern migrator tracking progress in schema_version
//   - load the embedded SQL files (tern orders them by numeric prefix)
//   - apply whatever is missing, each file in its own transaction
//   - log either "up to date" or the from/to versions
//
// It is called on every `serve` boot before the HTTP listener opens, and on
// its own by `campaign migrate`. A failure here is a startup failure.
func Migrate(ctx context.Context, logger *zerolog.Logger, cfg *config.Config) error {
	// A single connection, not the pool: migrations are a one-shot, sequential
	// job and tern's advisory lock is per connection.
	conn, err := pgx.Connect(ctx, DSN(cfg.Database))
	if err != nil {
		return fmt.Errorf("connecting for migrations: %w", err)
	}
	defer conn.Close(ctx)

	m, err := tern.NewMigrator(ctx, conn, schemaVersionTable)
	if err != nil {
		return fmt.Errorf("constructing database migrator: %w", err)
	}

	// tern wants an fs.FS rooted at the directory holding the .sql files,
	// not at the embed root.
	subtree, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("retrieving database migrations subtree: %w", err)
	}

	if err := m.LoadMigrations(subtree); err != nil {
		return fmt.Errorf("loading database migrations: %w", err)
	}

	// from is the version already applied; 0 on a fresh database.
	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}

	// Runs every pending migration, stopping at the first failing file.
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("applying database migrations: %w", err)
	}

	to := int32(len(m.Migrations))
	if from == to {
		logger.Info().Int32("version", to).Msg("database schema up to date")
	} else {
		logger.Info().Int32("from", from).Int32("to", to).Msg("migrated database schema")
	}
	return nil
}
