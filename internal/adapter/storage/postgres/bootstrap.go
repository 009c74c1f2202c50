package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureDatabase connects to the server's maintenance database and creates
// cfg.DBName if it does not exist yet.
func EnsureDatabase(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) error {
	conn, err := pgx.Connect(ctx, cfg.MaintenanceDSN())
	if err != nil {
		return fmt.Errorf("connecting to maintenance database: %w", err)
	}
	defer conn.Close(ctx) //nolint:errcheck

	created, err := ensureDatabase(ctx, conn, cfg.DBName)
	if err != nil {
		return err
	}
	if created {
		log.Info().Str("dbname", cfg.DBName).Msg("database created")
	}
	return nil
}

func ensureDatabase(ctx context.Context, q execQuerier, name string) (bool, error) {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM pg_database WHERE datname = $1`, name).Scan(&one)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("checking database %q: %w", name, err)
	}

	// CREATE DATABASE does not accept bind parameters.
	if _, err := q.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("creating database %q: %w", name, err)
	}
	return true, nil
}
