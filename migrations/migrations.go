package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/danthegoodman1/directdict/gologger"
	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v4/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	//go:embed *.sql
	migrations embed.FS

	ErrMigrationsNotRun = fmt.Errorf("not all migrations applied")

	logger = gologger.NewLogger()

	migrationSet = migrate.MigrationSet{
		TableName: "directdict_migrations",
	}
)

func source() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       ".",
	}
}

func withDB(dsn string, f func(db *sql.DB) error) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("error in sql.Open: %w", err)
	}
	defer db.Close()
	return f(db)
}

// RunMigrations applies every pending migration, returning how many ran.
func RunMigrations(dsn string) (applied int, err error) {
	err = withDB(dsn, func(db *sql.DB) error {
		applied, err = migrationSet.Exec(db, "postgres", source(), migrate.Up)
		if err != nil {
			return fmt.Errorf("error in migrationSet.Exec: %w", err)
		}
		return nil
	})
	if err == nil && applied > 0 {
		logger.Info().Int("applied", applied).Msg("ran migrations")
	}
	return
}

// CheckMigrations returns ErrMigrationsNotRun when the database is behind the embedded migrations.
func CheckMigrations(dsn string) error {
	return withDB(dsn, func(db *sql.DB) error {
		planned, _, err := migrationSet.PlanMigration(db, "postgres", source(), migrate.Up, 0)
		if err != nil {
			return fmt.Errorf("error in migrationSet.PlanMigration: %w", err)
		}
		for _, mig := range planned {
			logger.Warn().Str("migrationID", mig.Id).Msg("missing migration")
		}
		if len(planned) > 0 {
			return ErrMigrationsNotRun
		}
		return nil
	})
}
