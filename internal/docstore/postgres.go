package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const postgresNotifyChannel = "docstore_changes"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// PostgresStore keeps documents as JSONB rows and uses LISTEN/NOTIFY, with the
// collection path as payload, to drive subscriptions.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: logger.With().Str("component", "docstore.postgres").Logger()}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) withTx(ctx context.Context, coll string, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return pgErr(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return pgErr(err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", postgresNotifyChannel, coll); err != nil {
		_ = tx.Rollback(ctx)
		return pgErr(err)
	}
	return pgErr(tx.Commit(ctx))
}

func (s *PostgresStore) Set(ctx context.Context, docPath string, fields map[string]any, opts ...SetOption) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Join(ErrInvalidArgument, err)
	}
	if fields == nil {
		data = []byte("{}")
	}

	query := `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	if applySetOptions(opts).merge {
		query = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`
	}
	return s.withTx(ctx, coll, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query, coll, id, string(data))
		return err
	})
}

func (s *PostgresStore) Update(ctx context.Context, docPath string, fields map[string]any) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Join(ErrInvalidArgument, err)
	}
	if fields == nil {
		data = []byte("{}")
	}
	return s.withTx(ctx, coll, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`,
			coll, id, string(data))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *PostgresStore) Delete(ctx context.Context, docPath string) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	return s.withTx(ctx, coll, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, coll, id)
		return err
	})
}

func (s *PostgresStore) SubscribeCollection(ctx context.Context, collPath string, onNext QueryHandler, onErr ErrorHandler) error {
	coll, err := CleanCollection(collPath)
	if err != nil {
		return err
	}
	return s.listen(ctx, coll, func() error {
		docs, err := s.readCollection(ctx, coll)
		if err != nil {
			return err
		}
		onNext(QuerySnapshot{Path: coll, Docs: docs})
		return nil
	}, onErr)
}

func (s *PostgresStore) SubscribeDoc(ctx context.Context, docPath string, onNext DocHandler, onErr ErrorHandler) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	path := Join(coll, id)
	return s.listen(ctx, coll, func() error {
		snap := DocSnapshot{Path: path, ID: id}
		var raw []byte
		err := s.pool.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2`, coll, id).Scan(&raw)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return pgErr(err)
		default:
			fields := map[string]any{}
			if err := json.Unmarshal(raw, &fields); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			snap.Exists = true
			snap.Fields = fields
		}
		onNext(snap)
		return nil
	}, onErr)
}

// listen takes a connection out of the pool for the lifetime of the subscription;
// LISTEN state must not leak back into the pool, so the connection is closed afterwards.
func (s *PostgresStore) listen(ctx context.Context, coll string, deliver func() error, onErr ErrorHandler) error {
	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return pgErr(err)
	}
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+postgresNotifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return pgErr(err)
	}

	go func() {
		defer conn.Close(context.Background())

		if err := deliver(); err != nil {
			s.report(ctx, coll, err, onErr)
			return
		}
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				s.report(ctx, coll, pgErr(err), onErr)
				return
			}
			if n.Payload != coll {
				continue
			}
			if err := deliver(); err != nil {
				s.report(ctx, coll, err, onErr)
				return
			}
		}
	}()
	return nil
}

func (s *PostgresStore) report(ctx context.Context, coll string, err error, onErr ErrorHandler) {
	if ctx.Err() != nil {
		return
	}
	s.log.Debug().Err(err).Str("path", coll).Msg("subscription stopped")
	if onErr != nil {
		onErr(err)
	}
}

func (s *PostgresStore) readCollection(ctx context.Context, coll string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`, coll)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, pgErr(err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			s.log.Warn().Err(err).Str("path", Join(coll, id)).Msg("skipping undecodable document")
			continue
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr(err)
	}
	return docs, nil
}

func pgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrUnavailable, err)
}
