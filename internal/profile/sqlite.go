package profile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"
)

// SQLite persists profiles as JSON blobs keyed by user id.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id    TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	// modernc sqlite serializes writes; one connection avoids lock errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init profile schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, userID string) (*Profile, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	var p Profile
	if err := sonic.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	p.normalize()
	return &p, nil
}

func (s *SQLite) Save(ctx context.Context, p *Profile) error {
	data, err := sonic.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.UserID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		p.UserID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.UserID, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
