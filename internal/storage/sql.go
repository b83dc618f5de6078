package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLStore はpreference_blobsテーブルに保存するKV。
// PostgreSQLとSQLiteでプレースホルダ表記だけが異なる。
// スキーマはdatabase.RunMigrationsで作成済みであること。
type SQLStore struct {
	db        *sql.DB
	selectSQL string
	upsertSQL string
}

var _ KV = (*SQLStore)(nil)

// NewPostgresStore はPostgreSQL用のSQLStoreを生成する。
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:        db,
		selectSQL: `SELECT payload FROM preference_blobs WHERE name = $1`,
		upsertSQL: `INSERT INTO preference_blobs (name, payload, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
	}
}

// NewSQLiteStore はSQLite用のSQLStoreを生成する。
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:        db,
		selectSQL: `SELECT payload FROM preference_blobs WHERE name = ?`,
		upsertSQL: `INSERT INTO preference_blobs (name, payload, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
	}
}

// Get は行を1件取得する。行がなければfoundがfalseになる。
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.selectSQL, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to select %s: %w", key, err)
	}
	return []byte(payload), true, nil
}

// Set は行をUPSERTする。
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.upsertSQL, key, string(value)); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", key, err)
	}
	return nil
}
