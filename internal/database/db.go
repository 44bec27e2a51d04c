// Package database is the Postgres implementation of store.Store, built on a
// pgx connection pool.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/songdecks/internal/apperr"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/sirupsen/logrus"
)

// Postgres error codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

type Store struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool on url and pings it.
func Connect(ctx context.Context, url string, logger logrus.FieldLogger) (*Store, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     config.ConnConfig.Host,
		"database": config.ConnConfig.Database,
	}).Info("connected to database")
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() { s.pool.Close() }

// WithTx runs fn in one transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(ptx pgx.Tx) error {
		return fn(&tx{tx: ptx})
	})
}

type tx struct {
	tx pgx.Tx
}

var _ store.Tx = (*tx)(nil)

// mapErr classifies driver errors; what names the row for NotFound.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("%s already exists", what))
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, err, fmt.Sprintf("%s references a missing row", what))
		case codeCheckViolation:
			return apperr.Wrap(apperr.KindValidation, err, fmt.Sprintf("invalid %s", what))
		}
	}
	return err
}

// affected turns a zero-row update or delete into NotFound.
func affected(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return mapErr(err, what)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}

// removed is affected for deletes. A row other rows still point at is a
// Conflict, not a missing reference.
func removed(tag pgconn.CommandTag, err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
		return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf("%s is still in use", what))
	}
	return affected(tag, err, what)
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
