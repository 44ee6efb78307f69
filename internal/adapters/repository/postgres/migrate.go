package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateUp runs every *.up.sql migration in file name order.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if !strings.HasSuffix(name, "up.sql") {
			continue
		}
		if err := execMigration(ctx, db, name); err != nil {
			return err
		}
	}
	return nil
}

// ApplyMigration runs the single migration whose file name ends with
// migrationName, e.g. "001_create_pokeplan.down".
func ApplyMigration(ctx context.Context, db *sql.DB, migrationName string) error {
	pattern, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(migrationName)))
	if err != nil {
		return fmt.Errorf("invalid migration name: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if pattern.MatchString(name) {
			return execMigration(ctx, db, name)
		}
	}
	return fmt.Errorf("migration file not found: %s", migrationName)
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func execMigration(ctx context.Context, db *sql.DB, name string) error {
	content, err := migrationFiles.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", name, err)
	}
	if _, err := db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	log.Info().Str("migration", name).Msg("migration applied")
	return nil
}
