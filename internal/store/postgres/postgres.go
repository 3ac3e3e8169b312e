package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sales (
	id           TEXT PRIMARY KEY,
	table_number INTEGER NOT NULL,
	table_name   TEXT NOT NULL DEFAULT '',
	items        JSONB NOT NULL DEFAULT '[]'::jsonb,
	total        NUMERIC(12,2) NOT NULL,
	timestamp    TIMESTAMPTZ NOT NULL,
	local_date   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sales_timestamp_idx ON sales (timestamp);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure sales schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Insert(ctx context.Context, record domain.SaleRecord) error {
	if err := store.ValidateForInsert(record); err != nil {
		return err
	}
	items, err := store.EncodeItems(record.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, table_number, table_name, items, total, timestamp, local_date)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
	`,
		record.ID,
		record.TableNumber,
		record.TableName,
		string(items),
		decimal.NewFromFloat(record.Total).Round(2),
		time.UnixMilli(record.Timestamp).UTC(),
		record.Date,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) SelectAll(ctx context.Context) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_number, table_name, items, total, timestamp, local_date
		FROM sales
		ORDER BY timestamp ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.SaleRecord, 0, 128)
	for rows.Next() {
		var (
			record domain.SaleRecord
			items  []byte
			total  decimal.Decimal
			at     time.Time
		)
		if err := rows.Scan(&record.ID, &record.TableNumber, &record.TableName, &items, &total, &at, &record.Date); err != nil {
			return nil, err
		}
		record.Items = store.DecodeItems(items)
		record.Total = total.InexactFloat64()
		record.Timestamp = at.UnixMilli()
		record.Synced = true
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
