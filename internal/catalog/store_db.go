package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	category    TEXT NOT NULL DEFAULT '',
	stock       INTEGER NOT NULL DEFAULT 0,
	images      JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectColumns = `id, name, description, price, category, stock, images, created_at`

var errDuplicateID = errors.New("duplicate product id")

// PostgresStore expects a *sql.DB opened with the pgx stdlib driver.
// Appends take a table lock so id assignment cannot race.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("%w: migrate: %w", ErrStorage, err)
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		out, err = queryProducts(ctx, s.db, `SELECT `+selectColumns+` FROM products ORDER BY seq ASC`)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM products WHERE id = $1`, id)
		return scanProduct(row, &p)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return p, nil
}

func (s *PostgresStore) Append(ctx context.Context, p Product) (Product, error) {
	var stored Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return inTx(ctx, s.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `LOCK TABLE products IN SHARE ROW EXCLUSIVE MODE`); err != nil {
				return err
			}

			existing, err := queryProducts(ctx, tx, `SELECT `+selectColumns+` FROM products`)
			if err != nil {
				return err
			}

			stored = prepareNew(p, nextID(existing), s.now())
			images, err := json.Marshal(stored.Images)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO products (id, name, description, price, category, stock, images, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, stored.ID, stored.Name, stored.Description, stored.Price, stored.Category,
				stored.Stock, string(images), stored.CreatedAt.Time)
			if isUniqueViolation(err) {
				return errDuplicateID
			}
			return err
		})
	})
	if err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch func(*Product)) (Product, error) {
	var updated Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return inTx(ctx, s.db, func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
			if err := scanProduct(row, &updated); err != nil {
				return err
			}

			patch(&updated)
			updated.ID = id
			if updated.Images == nil {
				updated.Images = []string{}
			}
			images, err := json.Marshal(updated.Images)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `
				UPDATE products
				SET name = $2, description = $3, price = $4, category = $5, stock = $6, images = $7
				WHERE id = $1
			`, id, updated.Name, updated.Description, updated.Price, updated.Category,
				updated.Stock, string(images))
			return err
		})
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	var affected int64

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func queryProducts(ctx context.Context, q queryer, query string, args ...any) ([]Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, 16)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row rowScanner, p *Product) error {
	var images []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &images, &p.CreatedAt.Time); err != nil {
		return err
	}
	p.Images = []string{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return err
		}
	}
	p.CreatedAt = NewTimestamp(p.CreatedAt.Time)
	return nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
